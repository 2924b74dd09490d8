package routes

import "github.com/gofiber/fiber/v2"

type docEndpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
	Auth        string `json:"auth"`
}

// docsHandler serves a machine-readable catalog of the realtime API. Only
// registered in development with ENABLE_API_DOCS set.
func docsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "tourismhub realtime",
		"endpoints": []docEndpoint{
			{Method: "GET", Path: "/api/v1/notifications", Description: "List notifications, newest first with unread ahead of read; paged via ?page and ?limit.", Auth: "bearer"},
			{Method: "GET", Path: "/api/v1/notifications/unread-count", Description: "Authoritative unread notification count.", Auth: "bearer"},
			{Method: "PUT", Path: "/api/v1/notifications/:id/read", Description: "Mark one notification read; repeat calls are no-op successes.", Auth: "bearer"},
			{Method: "PUT", Path: "/api/v1/notifications/read-all", Description: "Mark every notification read.", Auth: "bearer"},
			{Method: "DELETE", Path: "/api/v1/notifications/:id", Description: "Delete one notification.", Auth: "bearer"},
			{Method: "DELETE", Path: "/api/v1/notifications", Description: "Delete all notifications for the caller.", Auth: "bearer"},
			{Method: "GET", Path: "/api/v1/conversations", Description: "Conversation summaries ordered by last activity, with unread counts.", Auth: "bearer"},
			{Method: "POST", Path: "/api/v1/conversations", Description: "Start (or return the existing) conversation with another user.", Auth: "bearer"},
			{Method: "GET", Path: "/api/v1/conversations/unread-count", Description: "Count of conversations holding unread messages.", Auth: "bearer"},
			{Method: "GET", Path: "/api/v1/conversations/:id/messages", Description: "Fetch messages in send order; fetching is the read receipt.", Auth: "bearer"},
			{Method: "POST", Path: "/api/v1/conversations/:id/messages", Description: "Send a message; the other participant is pushed the payload.", Auth: "bearer"},
			{Method: "GET", Path: "/api/v1/ws", Description: "WebSocket push channel; token via ?token or bearer header.", Auth: "bearer"},
			{Method: "GET", Path: "/health", Description: "Liveness probe.", Auth: "none"},
		},
	})
}
