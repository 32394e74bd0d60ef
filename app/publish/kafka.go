package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/IBM/sarama"

	"github.com/lysyi3m/news-comb/app/news"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaPublisher writes one message per analyzed article, keyed by article
// ID so updates for the same article land on the same partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka publisher requires brokers and a topic")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	slog.Info("Kafka publisher ready", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return newKafkaPublisher(producer, cfg.Topic), nil
}

func newKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (k *KafkaPublisher) Publish(ctx context.Context, article news.Article, result news.ProcessingResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(NewEvent(article, result))
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	partition, offset, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(article.ID, 10)),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(EventArticleAnalyzed)},
			{Key: []byte("source"), Value: []byte(article.Source)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish article %d: %w", article.ID, err)
	}

	slog.Debug("Event published", "article_id", article.ID, "topic", k.topic, "partition", partition, "offset", offset)
	return nil
}

func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}
