package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-clearance-api/internal/models"
)

// Envelope is the JSON message consumed by the mail service.
type Envelope struct {
	To        string                 `json:"to"`
	Template  string                 `json:"template"`
	RequestID string                 `json:"request_id,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	EmittedAt time.Time              `json:"emitted_at"`
}

type publisher interface {
	Publish(subject string, data []byte) error
}

type flusher interface {
	FlushWithContext(ctx context.Context) error
}

// NATSMailSender hands notification intents to the mail service over NATS.
// Subject convention: <prefix>.<template kind in lower case>.
// Transport, templating and retries belong to the consumer.
type NATSMailSender struct {
	conn   publisher
	prefix string
	now    func() time.Time
}

// NewNATSMailSender wraps an established publisher. *nats.Conn satisfies it.
func NewNATSMailSender(conn publisher, prefix string) *NATSMailSender {
	if prefix == "" {
		prefix = "notifications.clearance"
	}
	return &NATSMailSender{conn: conn, prefix: strings.TrimSuffix(prefix, "."), now: time.Now}
}

// Connect dials NATS with reconnect handlers that report through logger.
func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := nats.Connect(url,
		nats.Name("sma-clearance-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return conn, nil
}

// Subject returns the subject an intent kind is published on.
func (s *NATSMailSender) Subject(kind models.NotificationKind) string {
	return s.prefix + "." + strings.ToLower(string(kind))
}

// Send publishes a single intent. The context bounds the flush when the publisher supports it.
func (s *NATSMailSender) Send(ctx context.Context, intent models.NotificationIntent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(Envelope{
		To:        intent.To,
		Template:  string(intent.Kind),
		RequestID: intent.RequestID,
		Context:   intent.Context,
		EmittedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal intent %s: %w", intent.Kind, err)
	}
	subject := s.Subject(intent.Kind)
	if err := s.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if f, ok := s.conn.(flusher); ok {
		if err := f.FlushWithContext(ctx); err != nil {
			return fmt.Errorf("flush %s: %w", subject, err)
		}
	}
	return nil
}

// LogMailSender records intents in the log only. Used when no NATS URL is configured.
type LogMailSender struct {
	logger *zap.Logger
}

// NewLogMailSender constructs a log-only sender.
func NewLogMailSender(logger *zap.Logger) *LogMailSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailSender{logger: logger}
}

// Send logs the intent and never fails.
func (s *LogMailSender) Send(_ context.Context, intent models.NotificationIntent) error {
	s.logger.Info("notification intent",
		zap.String("to", intent.To),
		zap.String("template", string(intent.Kind)),
		zap.String("request_id", intent.RequestID),
		zap.Any("context", intent.Context),
	)
	return nil
}
