package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/koustreak/vizly/internal/errs"
	"github.com/koustreak/vizly/internal/logger"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds settings for publishing execution records.
type KafkaConfig struct {
	Brokers      []string      `koanf:"brokers"`
	Topic        string        `koanf:"topic"`
	BatchTimeout time.Duration `koanf:"batch_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// Enabled reports whether a Kafka sink is configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

// messageWriter is the slice of *kafka.Writer the recorder uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRecorder publishes each record as a JSON message keyed by
// connection id, so one connection's history stays in one partition.
type KafkaRecorder struct {
	writer messageWriter
	log    *logger.Logger
}

// NewKafkaRecorder builds an asynchronous writer for cfg. Delivery failures
// are logged and never reach the executor.
func NewKafkaRecorder(cfg KafkaConfig, log *logger.Logger) (*KafkaRecorder, error) {
	if !cfg.Enabled() {
		return nil, errs.New(errs.ErrKindConfig, "kafka audit sink needs brokers and a topic")
	}

	r := &KafkaRecorder{log: log}
	r.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: withDefault(cfg.BatchTimeout, 100*time.Millisecond),
		WriteTimeout: withDefault(cfg.WriteTimeout, 10*time.Second),
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		Async:        true,
		Completion:   r.completed,
	}
	return r, nil
}

func (r *KafkaRecorder) Record(ctx context.Context, rec *Record) {
	msg, err := encodeMessage(rec)
	if err != nil {
		r.log.ErrorWith("failed to encode execution record", err, map[string]any{logger.FieldExecutionID: rec.ID})
		return
	}
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		r.log.ErrorWith("failed to publish execution record", err, map[string]any{logger.FieldExecutionID: rec.ID})
	}
}

// Close flushes pending messages.
func (r *KafkaRecorder) Close() error {
	return r.writer.Close()
}

func (r *KafkaRecorder) completed(msgs []kafka.Message, err error) {
	if err != nil {
		r.log.ErrorWith("execution records were not delivered", err, map[string]any{"count": len(msgs)})
	}
}

func encodeMessage(rec *Record) (kafka.Message, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(rec.ConnectionID),
		Value: body,
		Time:  rec.CompletedAt,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(rec.Status)},
			{Key: "dialect", Value: []byte(rec.Dialect)},
		},
	}, nil
}

func withDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
