//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/madridclima/weather-etl/internal/adapter/kafka"
	"github.com/madridclima/weather-etl/internal/config"
	"github.com/madridclima/weather-etl/internal/domain"
)

const testSinkTopic = "test-cleaned-observations"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka launches a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial kafka broker")
	defer conn.Close()

	require.NoError(t, conn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestPublishCleanedObservations runs the full path against a real broker:
// clean a raw table, publish it, and read the messages back from the sink topic.
func TestPublishCleanedObservations(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	raw := domain.New(
		domain.ColDate, domain.ColHour, domain.ColTemperature, domain.ColHumidity,
		domain.ColWindSpeed, domain.ColWindDirection, domain.ColSkyCondition, domain.ColTimestamp,
	)
	require.NoError(t, raw.AppendRow(
		"18/02/2025", 8, "22.5", "65", "10", "N", "Despejado", "18/02/2025 08:15:00",
	))
	require.NoError(t, raw.AppendRow(
		"18/02/2025", 9, "23.0", "60", "0", "C", "Despejado", "18/02/2025 08:15:00",
	))

	cleaned, err := domain.Clean(raw)
	require.NoError(t, err)
	require.Equal(t, 2, cleaned.Len())

	cfg := &config.Config{
		MunicipalityCode: "28079",
		KafkaEnabled:     true,
		KafkaBrokers:     []string{broker},
		KafkaSinkTopic:   testSinkTopic,
	}
	publisher := kafka.NewPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	require.NoError(t, publisher.PublishTable(ctx, cleaned))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testSinkTopic,
		Partition: 0,
		MaxWait:   time.Second,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()

	first, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read first observation")
	assert.Equal(t, "28079-2025-02-18T08:00:00", string(first.Key))

	var obj map[string]any
	require.NoError(t, json.Unmarshal(first.Value, &obj))
	assert.Equal(t, 22.5, obj[domain.ColTemperature])
	assert.Equal(t, "north", obj[domain.ColWindDirection])
	assert.Equal(t, domain.WindStatusWithWind, obj[domain.ColWindStatus])

	second, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read second observation")
	assert.Equal(t, "28079-2025-02-18T09:00:00", string(second.Key))

	require.NoError(t, json.Unmarshal(second.Value, &obj))
	assert.Equal(t, "calm", obj[domain.ColWindDirection])
	assert.Nil(t, obj[domain.ColWindDirectionDegrees])
	assert.Equal(t, domain.WindStatusCalm, obj[domain.ColWindStatus])
}
