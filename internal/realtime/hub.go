package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Event is pushed to connected clients so message lists and unread badges
// refresh without polling. Fire and forget: nothing is acknowledged.
type Event struct {
	Type      string `json:"type"`
	CaseID    string `json:"caseId"`
	MessageID string `json:"messageId,omitempty"`
	Urgent    bool   `json:"urgent,omitempty"`
	Unread    int    `json:"unread"`
}

const (
	EventMessageCreated   = "message.created"
	EventMessageRead      = "message.read"
	EventPlacementUpdated = "placement.updated"
)

// Hub fans events out through redis pub/sub, one channel per user, so every
// API instance sees every event regardless of which instance produced it.
type Hub struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewHub(client *redis.Client, log zerolog.Logger) *Hub {
	return &Hub{client: client, log: log}
}

func channelFor(userID string) string {
	return fmt.Sprintf("events:user:%s", userID)
}

func (h *Hub) PublishToUser(ctx context.Context, userID string, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("marshal event")
		return
	}
	if err := h.client.Publish(ctx, channelFor(userID), payload).Err(); err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("publish event")
	}
}

// Subscribe returns the user's event stream and a cancel function. The
// channel closes when the context ends or cancel is called.
func (h *Hub) Subscribe(ctx context.Context, userID string) (<-chan Event, func()) {
	sub := h.client.Subscribe(ctx, channelFor(userID))
	events := make(chan Event, 16)

	go func() {
		defer close(events)
		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.log.Warn().Err(err).Msg("decode event payload")
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, func() { _ = sub.Close() }
}
