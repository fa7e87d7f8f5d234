package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Journal mirrors every broadcast event onto a Kafka topic so downstream
// consumers (notifications, analytics) can react without a websocket. It is
// a plain Broadcaster sink: writes happen in a goroutine and failures are
// logged, never propagated.
type Journal struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func NewJournal(brokers []string, topic string, log *zap.SugaredLogger) *Journal {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Journal{writer: w, log: log}
}

func (j *Journal) ToChat(chatID uint, ev Event) {
	j.publish(strconv.FormatUint(uint64(chatID), 10), ev)
}

func (j *Journal) ToAll(ev Event) {
	j.publish("all", ev)
}

func (j *Journal) publish(key string, ev Event) {
	if j == nil || j.writer == nil {
		return
	}
	value, err := json.Marshal(ev)
	if err != nil {
		j.log.Warnw("journal marshal failed", "type", ev.Type, "err", err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		msg := kafka.Message{Key: []byte(key), Value: value, Time: time.Now()}
		if err := j.writer.WriteMessages(ctx, msg); err != nil {
			j.log.Warnw("journal publish failed", "type", ev.Type, "err", err)
		}
	}()
}

func (j *Journal) Close() error {
	if j == nil || j.writer == nil {
		return nil
	}
	return j.writer.Close()
}
