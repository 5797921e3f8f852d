//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/kp-forecast-etl/internal/adapter/checkpoint"
	"github.com/couchcryptid/kp-forecast-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/kp-forecast-etl/internal/adapter/kafka"
	"github.com/couchcryptid/kp-forecast-etl/internal/adapter/swpc"
	"github.com/couchcryptid/kp-forecast-etl/internal/domain"
	"github.com/couchcryptid/kp-forecast-etl/internal/observability"
	"github.com/couchcryptid/kp-forecast-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testSinkTopic = "test-kp-forecast"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("kp-forecast-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// serveForecast serves the fixture document the way the SWPC endpoint does.
func serveForecast(t *testing.T) string {
	t.Helper()
	doc, err := os.ReadFile("../domain/testdata/3-day-forecast.txt")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write(doc)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/text/3-day-forecast.txt"
}

type sinkMessage struct {
	Key     string
	Value   map[string]any
	Headers map[string]string
}

func readSink(ctx context.Context, t *testing.T, consumer *kafkago.Reader) sinkMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var value map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &value))
	return sinkMessage{Key: string(msg.Key), Value: value, Headers: headers}
}

// TestPipelineEndToEnd fetches the fixture over HTTP, parses it, saves the
// file and publishes every entry to a real Kafka broker. A second run of the
// same document is recognized as unchanged and publishes nothing.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	source := swpc.NewClient(swpc.Options{
		URL:        serveForecast(t),
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		Backoff:    10 * time.Millisecond,
		MaxBackoff: 50 * time.Millisecond,
	}, discardLogger(), observability.NewMetricsForTesting())

	writer := kafka.NewWriter([]string{broker}, testSinkTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	store, err := checkpoint.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	dir := t.TempDir()
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.February, 17, 12, 35, 0, 0, time.UTC))
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(source, csvfile.NewWriter(dir), pipeline.Options{
		PollInterval: time.Hour,
		RawDataDir:   dir,
	}, discardLogger(), metrics,
		pipeline.WithPublisher(writer),
		pipeline.WithCheckpoints(store),
		pipeline.WithClock(clock),
	)

	run, err := p.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 24, run.Series.Len())
	assert.FileExists(t, run.LocalPath)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	var prev time.Time
	for i := range run.Series.Len() {
		msg := readSink(ctx, t, consumer)
		want := run.Series.Entries[i]

		assert.Equal(t, want.Timestamp.Format(time.RFC3339), msg.Key)
		assert.Equal(t, domain.SeriesName, msg.Value["series"])
		assert.InDelta(t, want.Value, msg.Value["value"], 1e-9)
		assert.Equal(t, run.ID, msg.Headers["run_id"])
		assert.Equal(t, "2024-02-17T12:30:00Z", msg.Headers["issued_at"])
		_, err := time.Parse(time.RFC3339, msg.Headers["processed_at"])
		assert.NoError(t, err, "processed_at should be valid RFC3339")

		ts, err := time.Parse(time.RFC3339, msg.Key)
		require.NoError(t, err)
		assert.True(t, ts.After(prev), "messages must arrive in timestamp order")
		prev = ts
	}

	clock.Advance(time.Hour)
	second, err := p.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, second.Skipped)

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no messages for an unchanged forecast")
}
