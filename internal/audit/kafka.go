package audit

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/aanand-mishra/student-base/internal/types"
)

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka audit sink. Username and Password
// enable SASL/PLAIN over TLS; leave them empty for a local broker.
type KafkaConfig struct {
	Broker       string
	Topic        string
	Username     string
	Password     string
	WriteTimeout time.Duration
}

// KafkaLogger publishes entries as JSON, keyed by action.
type KafkaLogger struct {
	writer  messageWriter
	timeout time.Duration
}

func NewKafkaLogger(cfg KafkaConfig) *KafkaLogger {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Broker),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: timeout,
	}
	if cfg.Username != "" {
		w.Transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: cfg.Username, Password: cfg.Password},
			TLS:  &tls.Config{},
		}
	}

	return &KafkaLogger{writer: w, timeout: timeout}
}

func (l *KafkaLogger) Log(ctx context.Context, entry types.AuditEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("KafkaLogger.Log: marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	err = l.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.Action),
		Value: value,
		Time:  entry.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("KafkaLogger.Log: write: %w", err)
	}
	return nil
}

func (l *KafkaLogger) Close() error {
	return l.writer.Close()
}
