package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valzamustafa/TourismHub-sub000/internal/config"
	"github.com/valzamustafa/TourismHub-sub000/internal/handlers"
	"github.com/valzamustafa/TourismHub-sub000/internal/middleware"
	"github.com/valzamustafa/TourismHub-sub000/internal/push"
	"github.com/valzamustafa/TourismHub-sub000/internal/repository"
	"github.com/valzamustafa/TourismHub-sub000/internal/services"
)

// RegisterRoutes wires the realtime subsystem and returns the notification
// service so domain producers (booking, payment, review flows) can create
// notifications in-process.
func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) *services.NotificationService {
	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	hub := push.NewHub()
	go hub.Run()

	notificationService := services.NewNotificationService(notificationRepo, hub)
	chatService := services.NewChatService(db, conversationRepo, messageRepo, userRepo, hub)

	notificationHandler := handlers.NewNotificationHandler(notificationService)
	chatHandler := handlers.NewChatHandler(chatService, hub, cfg.JWTSecret)

	api := app.Group("/api")
	protected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	notifications := protected.Group("/notifications")
	notifications.Get("", notificationHandler.List)
	notifications.Get("/unread-count", notificationHandler.UnreadCount)
	notifications.Put("/read-all", notificationHandler.MarkAllRead)
	notifications.Put("/:id/read", notificationHandler.MarkRead)
	notifications.Delete("", notificationHandler.DeleteAll)
	notifications.Delete("/:id", notificationHandler.DeleteOne)

	conversations := protected.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.StartConversation)
	conversations.Get("/unread-count", chatHandler.UnreadConversationCount)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))

	if cfg.DocsEnabled() {
		api.Get("/docs", docsHandler)
	}

	return notificationService
}
