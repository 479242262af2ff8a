// Package kafka implements feed.BatchPublisher over a Shopify/sarama sync
// producer, adapted from datasync/chaindatafetcher/event/kafka/kafka.go's
// KafkaBroker.newProducer/Publish and datasync/chaindatafetcher/kafka's
// KafkaConfig. Each Batch is published as a JSON message to a per-network
// topic, keyed by "<network>:<id>" so a crash-and-republish after a
// successful-but-uncommitted publish (feed.BatchPublisher's documented
// at-least-once contract) lands on the same key and downstream consumers
// can dedupe on it.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/hashicorp/go-uuid"

	"github.com/klaytn/bridgescan/log"
	"github.com/klaytn/bridgescan/primitives"
)

var logger = log.NewModuleLogger(log.ModuleTransport)

const (
	DefaultPartitions = 10
	DefaultReplicas   = 1
)

// Config mirrors chaindatafetcher/kafka.KafkaConfig, trimmed to what a
// producer-only publisher needs (no consumer-group/GroupID fields).
type Config struct {
	Brokers      []string
	TopicPrefix  string
	Partitions   int32
	Replicas     int16
	SaramaConfig *sarama.Config
}

// DefaultConfig mirrors GetDefaultKafkaConfig's Producer.Return.Successes +
// MaxVersion setup, adding WaitForLocal acks and Snappy compression; no
// flush settings are changed from sarama's defaults.
func DefaultConfig(brokers []string, topicPrefix string) *Config {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Version = sarama.MaxVersion
	return &Config{
		Brokers:      brokers,
		TopicPrefix:  topicPrefix,
		Partitions:   DefaultPartitions,
		Replicas:     DefaultReplicas,
		SaramaConfig: sc,
	}
}

// Publisher is a feed.BatchPublisher backed by a Kafka sync producer.
type Publisher struct {
	producer sarama.SyncProducer
	admin    sarama.ClusterAdmin
	cfg      *Config
	created  map[string]bool
}

// New dials brokers and opens both a synchronous producer (publish must be
// able to report failure synchronously, unlike a fire-and-forget
// AsyncProducer) and a cluster admin for topic auto-creation.
func New(cfg *Config) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, cfg.SaramaConfig)
	if err != nil {
		return nil, fmt.Errorf("kafka: new producer: %w", err)
	}
	admin, err := sarama.NewClusterAdmin(cfg.Brokers, cfg.SaramaConfig)
	if err != nil {
		return nil, fmt.Errorf("kafka: new cluster admin: %w", err)
	}
	return &Publisher{producer: producer, admin: admin, cfg: cfg, created: make(map[string]bool)}, nil
}

func (p *Publisher) ensureTopic(topic string) error {
	if p.created[topic] {
		return nil
	}
	err := p.admin.CreateTopic(topic, &sarama.TopicDetail{
		NumPartitions:     p.cfg.Partitions,
		ReplicationFactor: p.cfg.Replicas,
	}, false)
	if err != nil && err != sarama.ErrTopicAlreadyExists {
		return err
	}
	p.created[topic] = true
	return nil
}

// PublishBatch implements feed.BatchPublisher. Safe to call twice with the
// same batch: the key is deterministic in (network, id), so Kafka's
// log-compaction (if enabled on the topic) keeps only the latest write, and
// consumers that already processed this id dedupe on it themselves.
func (p *Publisher) PublishBatch(ctx context.Context, batch primitives.Batch) error {
	topic := p.cfg.TopicPrefix + "-" + batch.Network
	if err := p.ensureTopic(topic); err != nil {
		return fmt.Errorf("kafka: ensure topic %s: %w", topic, err)
	}

	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("kafka: marshal batch: %w", err)
	}

	correlationID, _ := uuid.GenerateUUID()
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(fmt.Sprintf("%s:%d", batch.Network, batch.Id)),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("kafka: publish batch %s:%d: %w", batch.Network, batch.Id, err)
	}
	logger.Info("published batch", "network", batch.Network, "id", batch.Id,
		"partition", partition, "offset", offset, "correlation_id", correlationID)
	return nil
}

func (p *Publisher) Close() error {
	if err := p.producer.Close(); err != nil {
		return err
	}
	return p.admin.Close()
}
