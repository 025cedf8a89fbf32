package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/madridclima/weather-etl/internal/config"
	"github.com/madridclima/weather-etl/internal/domain"
)

// Publisher produces cleaned observations to a Kafka topic. It is optional
// infrastructure, enabled by KAFKA_ENABLED; the collector works without it.
type Publisher struct {
	writer       *kafkago.Writer
	municipality string
	logger       *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured sink topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, municipality: cfg.MunicipalityCode, logger: logger}
}

// PublishTable serializes every row of a cleaned table and publishes the
// whole batch in a single WriteMessages call.
func (p *Publisher) PublishTable(ctx context.Context, tbl *domain.Table) error {
	if tbl == nil || tbl.Len() == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, tbl.Len())
	for r := 0; r < tbl.Len(); r++ {
		msg, err := serializeRow(tbl, r, p.municipality)
		if err != nil {
			return err
		}
		msgs[r] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeRow marshals one cleaned observation row into a Kafka message.
// The message is keyed by municipality and forecast datetime so re-published
// observations land in the same partition and compact naturally.
func serializeRow(tbl *domain.Table, row int, municipality string) (kafkago.Message, error) {
	obj := make(map[string]any, len(tbl.Columns()))
	for _, col := range tbl.Columns() {
		v, _ := tbl.Cell(row, col)
		obj[col] = v
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation: %w", err)
	}

	key := municipality
	if dt, ok := obj[domain.ColDateTime].(time.Time); ok {
		key = fmt.Sprintf("%s-%s", municipality, dt.UTC().Format("2006-01-02T15:04:05"))
	}

	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "municipality", Value: []byte(municipality)},
			{Key: "published_at", Value: []byte(domain.Now().UTC().Format(time.RFC3339))},
		},
	}, nil
}
