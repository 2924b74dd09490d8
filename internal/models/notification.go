package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// NotificationKind is the closed set of notification categories. Values are
// stable wire/database identifiers; new kinds get new numbers.
type NotificationKind int

const (
	KindSystem   NotificationKind = 1
	KindBooking  NotificationKind = 2
	KindMessage  NotificationKind = 3
	KindActivity NotificationKind = 4
	KindPayment  NotificationKind = 5
)

func (k NotificationKind) Valid() bool {
	return k >= KindSystem && k <= KindPayment
}

func (k NotificationKind) String() string {
	switch k {
	case KindSystem:
		return "system"
	case KindBooking:
		return "booking"
	case KindMessage:
		return "message"
	case KindActivity:
		return "activity"
	case KindPayment:
		return "payment"
	default:
		return "system"
	}
}

func (k NotificationKind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		k = KindSystem
	}
	return json.Marshal(int(k))
}

// UnmarshalJSON accepts either the numeric identifier or the lowercase name.
// Unknown values degrade to KindSystem instead of failing the decode, so an
// older client can still render payloads produced by a newer server.
func (k *NotificationKind) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))

	if n, err := strconv.Atoi(raw); err == nil {
		parsed := NotificationKind(n)
		if !parsed.Valid() {
			parsed = KindSystem
		}
		*k = parsed
		return nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		*k = KindSystem
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "booking":
		*k = KindBooking
	case "message":
		*k = KindMessage
	case "activity":
		*k = KindActivity
	case "payment":
		*k = KindPayment
	default:
		*k = KindSystem
	}
	return nil
}

type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Kind      NotificationKind `json:"kind"`
	RelatedID *int64           `json:"related_id,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}
