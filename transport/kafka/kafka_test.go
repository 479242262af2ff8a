package kafka

import (
	"testing"

	"github.com/Shopify/sarama"
	"github.com/stretchr/testify/assert"
)

// TestDefaultConfigMatchesAtLeastOnceContract: feed.BatchPublisher's
// at-least-once contract requires the producer to actually wait for and
// report broker acks, not fire-and-forget.
func TestDefaultConfigMatchesAtLeastOnceContract(t *testing.T) {
	cfg := DefaultConfig([]string{"localhost:9092"}, "bridgescan")

	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, "bridgescan", cfg.TopicPrefix)
	assert.Equal(t, int32(DefaultPartitions), cfg.Partitions)
	assert.Equal(t, int16(DefaultReplicas), cfg.Replicas)

	assert.True(t, cfg.SaramaConfig.Producer.Return.Successes,
		"a synchronous producer requires Return.Successes to report publish failures")
	assert.Equal(t, sarama.WaitForLocal, cfg.SaramaConfig.Producer.RequiredAcks)
	assert.Equal(t, sarama.CompressionSnappy, cfg.SaramaConfig.Producer.Compression)
}
