package producer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reloop/internal/platform/kafka"
	"reloop/internal/platform/kafka/producer"
)

func TestNew_RequiresBrokers(t *testing.T) {
	for _, brokers := range []string{"", " , "} {
		cfg := kafka.DefaultProducerConfig()
		cfg.Brokers = brokers
		_, err := producer.New(cfg, nil)
		assert.Error(t, err, "brokers %q", brokers)
	}
}

func TestProducer_ClosedRejectsWork(t *testing.T) {
	cfg := kafka.DefaultProducerConfig()
	cfg.Brokers = "127.0.0.1:1"
	p, err := producer.New(cfg, nil)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close(), "close is idempotent")

	err = p.Produce(context.Background(), &producer.Message{Topic: "t", Value: []byte("v")})
	assert.ErrorIs(t, err, producer.ErrClosed)
	assert.ErrorIs(t, p.Ping(context.Background()), producer.ErrClosed)
}

func TestNew_LeaderAcksDisablesIdempotence(t *testing.T) {
	cfg := kafka.DefaultProducerConfig()
	cfg.Brokers = "127.0.0.1:1"
	cfg.Acks = "1"
	p, err := producer.New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, p.Close())
}
