package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/opensource-finance/harrier/internal/domain"
)

// NATSBus is the Pro tier event bus. Subjects are namespaced per tenant
// ("harrier.<tenant>.<topic>") so one NATS cluster serves many tenants
// without crosstalk.
type NATSBus struct {
	conn *nats.Conn
	cfg  domain.EventBusConfig
}

type natsSubscription struct {
	topic string
	sub   *nats.Subscription
}

// NewNATSBus connects to NATS with automatic reconnection. The initial
// connect also retries, so harrier can start before the broker does.
func NewNATSBus(cfg domain.EventBusConfig) (*NATSBus, error) {
	if cfg.NATSUrl == "" {
		cfg.NATSUrl = nats.DefaultURL
	}
	if cfg.NATSMaxReconnects == 0 {
		cfg.NATSMaxReconnects = 10
	}
	if cfg.NATSReconnectWait == 0 {
		cfg.NATSReconnectWait = 5
	}
	reconnectWait := time.Duration(cfg.NATSReconnectWait) * time.Second

	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.NATSMaxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err, "will_reconnect", !nc.IsClosed())
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			slog.Info("NATS connection closed")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			slog.Error("NATS error", "error", err, "subject", subject)
		}),
	}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}

	conn, err := nats.Connect(cfg.NATSUrl, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSUrl, err)
	}

	slog.Info("NATS connected", "url", cfg.NATSUrl)
	return &NATSBus{conn: conn, cfg: cfg}, nil
}

// Publish wraps the payload in an envelope and sends it on the
// tenant-scoped subject.
func (b *NATSBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	envelope, err := json.Marshal(&domain.Message{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return b.conn.Publish(subject(tenantID, topic), envelope)
}

// Subscribe registers a handler on the tenant-scoped subject. Malformed
// envelopes are logged and skipped; handler errors are logged but do
// not tear the subscription down.
func (b *NATSBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	subj := subject(tenantID, topic)
	natsSub, err := b.conn.Subscribe(subj, func(m *nats.Msg) {
		var msg domain.Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			slog.Error("failed to unmarshal NATS message", "subject", m.Subject, "error", err)
			return
		}
		if err := handler(ctx, &msg); err != nil {
			slog.Error("handler error", "subject", m.Subject, "message_id", msg.ID, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subj, err)
	}

	return &natsSubscription{topic: topic, sub: natsSub}, nil
}

// Ping flushes the connection to verify the broker is reachable.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("NATS not connected")
	}
	return b.conn.FlushWithContext(ctx)
}

// Close drains outstanding subscriptions and closes the connection.
func (b *NATSBus) Close() error {
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return err
	}
	return nil
}

// Stats returns NATS connection statistics.
func (b *NATSBus) Stats() nats.Statistics {
	return b.conn.Stats()
}

func subject(tenantID, topic string) string {
	return fmt.Sprintf("harrier.%s.%s", tenantID, topic)
}

// Unsubscribe removes the subscription.
func (s *natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

// Topic returns the subscribed topic.
func (s *natsSubscription) Topic() string {
	return s.topic
}
