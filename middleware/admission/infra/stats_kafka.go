package infra

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"acquisitions-gateway/middleware/admission/domain"
)

// messageWriter é o subconjunto de *kafka.Writer que usamos.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaStatsStore publica cada decisão de admissão como um evento JSON,
// particionado pela chave do balde.
type KafkaStatsStore struct {
	w messageWriter
}

type decisionMessage struct {
	Key     string    `json:"key"`
	Role    string    `json:"role"`
	Allowed bool      `json:"allowed"`
	Reason  string    `json:"reason"`
	Method  string    `json:"method,omitempty"`
	Path    string    `json:"path,omitempty"`
	At      time.Time `json:"at"`
}

// NewKafkaStatsStore cria o writer assíncrono para o tópico informado.
func NewKafkaStatsStore(brokers []string, topic string) *KafkaStatsStore {
	return &KafkaStatsStore{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

func (s *KafkaStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	payload, err := json.Marshal(decisionMessage{
		Key:     string(ev.Key),
		Role:    string(ev.Role),
		Allowed: ev.Allowed,
		Reason:  ev.Reason.String(),
		Method:  ev.Method,
		Path:    ev.Path,
		At:      at.UTC(),
	})
	if err != nil {
		return err
	}
	return s.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Key),
		Value: payload,
		Time:  at,
	})
}

func (s *KafkaStatsStore) Close() error {
	return s.w.Close()
}
