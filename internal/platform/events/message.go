package events

import (
	"strings"
	"time"

	"github.com/trendora/api/internal/services"
)

// Message is the wire payload shared by every event transport.
type Message struct {
	Type           string            `json:"type"`
	OrderID        string            `json:"order_id"`
	OrderNumber    string            `json:"order_number,omitempty"`
	UserID         string            `json:"user_id,omitempty"`
	PreviousStatus string            `json:"previous_status,omitempty"`
	CurrentStatus  string            `json:"current_status,omitempty"`
	ActorID        string            `json:"actor_id,omitempty"`
	TotalAmount    int64             `json:"total_amount,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

func newMessage(event services.OrderEvent) Message {
	return Message{
		Type:           event.Type,
		OrderID:        event.OrderID,
		OrderNumber:    event.OrderNumber,
		UserID:         event.UserID,
		PreviousStatus: event.PreviousStatus,
		CurrentStatus:  event.CurrentStatus,
		ActorID:        event.ActorID,
		TotalAmount:    event.TotalAmount,
		OccurredAt:     event.OccurredAt.UTC(),
		Metadata:       event.Metadata,
	}
}

// attributes are the routing fields copied onto transport headers so consumers can filter
// without decoding the payload.
func attributes(event services.OrderEvent) map[string]string {
	attrs := make(map[string]string, 4)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "status", event.CurrentStatus)
	setAttr(attrs, "actorId", event.ActorID)
	return attrs
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
