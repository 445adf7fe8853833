package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"reviewdesk/internal/access"
	"reviewdesk/internal/caching"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/metrics"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const ReviewCreatedEvent = "review.created"

// Subscription is a live feed of one tenant's review events. Events is
// closed after Unsubscribe or when the subscribing context ends.
type Subscription struct {
	Events <-chan models.ReviewEvent
	cancel func()
	once   sync.Once
}

// Unsubscribe stops the feed. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// ReviewHub publishes and subscribes to per-tenant review events.
type ReviewHub struct {
	broker caching.Broker
}

func NewReviewHub(broker caching.Broker) *ReviewHub {
	return &ReviewHub{broker: broker}
}

func reviewChannel(tenantID uuid.UUID) string {
	return fmt.Sprintf("reviewdesk:reviews:%s", tenantID)
}

func (h *ReviewHub) Publish(ctx context.Context, event models.ReviewEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return h.broker.Publish(ctx, reviewChannel(event.TenantID), payload)
}

// Subscribe follows the tenant of scope. An empty scope yields a feed that
// never delivers.
func (h *ReviewHub) Subscribe(ctx context.Context, scope access.Scope) (*Subscription, error) {
	if scope.IsEmpty() {
		out := make(chan models.ReviewEvent)
		close(out)
		return &Subscription{Events: out, cancel: func() {}}, nil
	}

	tenantID := scope.TenantID()
	msgs, cancel, err := h.broker.Subscribe(ctx, reviewChannel(tenantID))
	if err != nil {
		return nil, err
	}

	out := make(chan models.ReviewEvent, 16)
	done := make(chan struct{})
	metrics.RealtimeSubscribersGauge.Inc()
	go func() {
		defer metrics.RealtimeSubscribersGauge.Dec()
		defer close(out)
		for msg := range msgs {
			var event models.ReviewEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				logger.FromContext(ctx).Warn("dropping malformed review event", zap.Error(err))
				continue
			}
			if event.TenantID != tenantID {
				continue
			}
			select {
			case out <- event:
			case <-done:
				for range msgs {
				}
				return
			case <-ctx.Done():
				cancel()
				return
			}
		}
	}()

	stop := func() {
		close(done)
		cancel()
	}
	return &Subscription{Events: out, cancel: stop}, nil
}
