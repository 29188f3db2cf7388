package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/atmx/settlement-analytics/internal/metrics"
	"github.com/atmx/settlement-analytics/internal/model"
)

const consumeRetryDelay = time.Second

// recordNamespace scopes the deterministic ids derived from raw payloads.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("settlement-analytics/settlements"))

// RecordID returns the deterministic id of a raw settlement payload. The
// same line delivered twice maps to the same id.
func RecordID(payload []byte) uuid.UUID {
	return uuid.NewSHA1(recordNamespace, payload)
}

// KafkaSource consumes settlement lines from a Kafka topic into an
// in-memory append-only log. Redelivered messages are dropped by RecordID.
type KafkaSource struct {
	client sarama.ConsumerGroup
	topic  string

	mu      sync.RWMutex
	seen    map[uuid.UUID]struct{}
	records []model.SettlementRecord

	ready  chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewKafkaSource creates a consumer group reading the topic from the
// oldest retained offset, so a fresh group replays the whole log.
func NewKafkaSource(brokers []string, groupID, topic string) (*KafkaSource, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Version = sarama.V2_8_0_0

	client, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("%w: kafka consumer group: %v", ErrSourceUnavailable, err)
	}
	return newKafkaSource(client, topic), nil
}

func newKafkaSource(client sarama.ConsumerGroup, topic string) *KafkaSource {
	return &KafkaSource{
		client: client,
		topic:  topic,
		seen:   make(map[uuid.UUID]struct{}),
		ready:  make(chan struct{}),
	}
}

// Start begins consuming in the background and returns once the first
// session is set up or ctx is done.
func (s *KafkaSource) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	ready := s.ready
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			handler := &settlementHandler{source: s, ready: ready}
			if err := s.client.Consume(ctx, []string{s.topic}, handler); err != nil {
				metrics.SourceErrorsTotal.WithLabelValues("kafka").Inc()
				slog.Error("kafka consume failed", "topic", s.topic, "err", err)
				select {
				case <-ctx.Done():
				case <-time.After(consumeRetryDelay):
				}
			}
			if ctx.Err() != nil {
				return
			}
			// Rebalance: a new session gets a fresh ready channel.
			ready = make(chan struct{})
		}
	}()

	select {
	case <-s.ready:
		slog.Info("kafka settlement consumer ready", "topic", s.topic)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the consumer gracefully.
func (s *KafkaSource) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return s.client.Close()
}

// ReadSettlements implements Source with a snapshot of the consumed log.
func (s *KafkaSource) ReadSettlements(_ context.Context) ([]model.SettlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.SettlementRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// ingest normalizes and appends one payload. It reports whether the payload
// was new and well-formed.
func (s *KafkaSource) ingest(payload []byte) bool {
	rec, err := Normalize(payload)
	if err != nil {
		metrics.MalformedLinesTotal.Inc()
		return false
	}
	id := RecordID(payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[id]; dup {
		return false
	}
	s.seen[id] = struct{}{}
	s.records = append(s.records, rec)
	metrics.SettlementsRead.Set(float64(len(s.records)))
	return true
}

// settlementHandler implements sarama.ConsumerGroupHandler.
type settlementHandler struct {
	source *KafkaSource
	ready  chan struct{}
	once   sync.Once
}

func (h *settlementHandler) Setup(sarama.ConsumerGroupSession) error {
	h.once.Do(func() { close(h.ready) })
	return nil
}

func (h *settlementHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *settlementHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.source.ingest(message.Value)
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
