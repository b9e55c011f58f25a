//go:build integration

package notifier_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"reloop/internal/platform/kafka"
	"reloop/internal/platform/kafka/producer"
	"reloop/internal/security/notifier"
	"reloop/pkg/testutil/containers"
)

func TestKafka_NotifyAgainstBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	kc := containers.GetManager().GetKafka(t)
	ctx := context.Background()
	topic := "test-security-signals"
	require.NoError(t, kc.CreateTopic(ctx, topic, 1, 1))

	cfg := kafka.DefaultProducerConfig()
	cfg.Brokers = kc.Brokers
	prod, err := producer.New(cfg, nil)
	require.NoError(t, err)
	defer prod.Close()

	sig := testSignal()
	require.NoError(t, notifier.NewKafka(prod, notifier.WithTopic(topic)).Notify(ctx, sig))

	consumer, err := kc.NewConsumer(ctx, "test-security-signals-group", topic)
	require.NoError(t, err)
	defer consumer.Close()

	record := kc.WaitForMessage(ctx, consumer, 10*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == sig.UserID.String()
	})
	require.NotNil(t, record)

	var decoded notifier.SignalMessage
	require.NoError(t, json.Unmarshal(record.Value, &decoded))
	require.Equal(t, sig.ID.String(), decoded.ID)
}
