package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/kp-forecast-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes forecast entries to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
	now    func() time.Time
}

// NewWriter creates a Kafka producer for the given brokers and sink topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger, now: time.Now}
}

// batchMeta identifies the run that produced a series.
type batchMeta struct {
	runID    string
	issuedAt time.Time // zero when the document carried no issue time
}

// forecastMessage is the JSON value of each published message.
type forecastMessage struct {
	Series    string    `json:"series"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Publish writes one message per entry in a single WriteMessages call and
// returns the number of messages written. Messages are keyed by timestamp, so
// a re-published entry lands on the same partition.
func (w *Writer) Publish(ctx context.Context, runID string, issuedAt time.Time, series domain.ForecastSeries) (int, error) {
	if series.Len() == 0 {
		return 0, nil
	}
	batch := batchMeta{runID: runID, issuedAt: issuedAt}
	processedAt := w.now().UTC()
	msgs := make([]kafkago.Message, series.Len())
	for i, entry := range series.Entries {
		msg, err := serializeToMessage(series.Name, entry, batch, processedAt)
		if err != nil {
			return 0, err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("write messages: %w", err)
	}
	w.logger.Debug("published forecast series", "run_id", runID, "messages", len(msgs))
	return len(msgs), nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals one forecast entry into a Kafka message keyed by
// its RFC3339 timestamp.
func serializeToMessage(series string, entry domain.ForecastEntry, batch batchMeta, processedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(forecastMessage{
		Series:    series,
		Timestamp: entry.Timestamp.UTC(),
		Value:     entry.Value,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize forecast entry: %w", err)
	}

	issuedAt := ""
	if !batch.issuedAt.IsZero() {
		issuedAt = batch.issuedAt.UTC().Format(time.RFC3339)
	}
	return kafkago.Message{
		Key:   []byte(entry.Timestamp.UTC().Format(time.RFC3339)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(batch.runID)},
			{Key: "issued_at", Value: []byte(issuedAt)},
			{Key: "processed_at", Value: []byte(processedAt.Format(time.RFC3339))},
		},
	}, nil
}
