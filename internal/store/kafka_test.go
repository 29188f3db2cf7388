package store

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession satisfies sarama.ConsumerGroupSession for handler tests.
type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

// fakeClaim satisfies sarama.ConsumerGroupClaim for handler tests.
type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestKafkaSource_ConsumeClaimDedupes(t *testing.T) {
	src := newKafkaSource(nil, "settlements")
	handler := &settlementHandler{source: src, ready: make(chan struct{})}

	payloads := []string{
		`{"ts":"2026-02-12T21:05:00Z","city":"PHX","won":true,"pnl_cents":60}`,
		`{"ts":"2026-02-12T21:05:00Z","city":"PHX","won":true,"pnl_cents":60}`, // redelivery
		`garbage`,
		`{"ts":"2026-02-12T22:05:00Z","city":"SEA","won":false,"pnl_cents":-30}`,
	}
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, len(payloads))}
	for i, p := range payloads {
		claim.messages <- &sarama.ConsumerMessage{Topic: "settlements", Offset: int64(i), Value: []byte(p)}
	}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, handler.Setup(session))
	require.NoError(t, handler.ConsumeClaim(session, claim))
	require.NoError(t, handler.Setup(session), "a second Setup must not panic on the closed ready channel")

	assert.Equal(t, []int64{0, 1, 2, 3}, session.marked, "every message is committed, including skipped ones")

	records, err := src.ReadSettlements(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "PHX", records[0].City)
	assert.Equal(t, "SEA", records[1].City)
}

func TestRecordID_Deterministic(t *testing.T) {
	a := RecordID([]byte(`{"ts":"2026-02-12T21:05:00Z"}`))
	b := RecordID([]byte(`{"ts":"2026-02-12T21:05:00Z"}`))
	c := RecordID([]byte(`{"ts":"2026-02-12T21:06:00Z"}`))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
