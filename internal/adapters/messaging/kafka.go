package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/athebyme/mms-connector/pkg/interfaces"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
)

// KafkaMessaging реализация MessagingPort с использованием Kafka.
// Коннектор только публикует события, потребителей здесь нет.
type KafkaMessaging struct {
	producer     *kafka.Producer
	flushTimeout time.Duration
}

// NewKafkaMessaging создает новый экземпляр KafkaMessaging
func NewKafkaMessaging(brokers []string, clientID, compressionType string, flushTimeout time.Duration) (interfaces.MessagingPort, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":            strings.Join(brokers, ","),
		"client.id":                    clientID,
		"acks":                         "all", // максимальная надежность
		"retries":                      5,
		"retry.backoff.ms":             500,
		"compression.type":             compressionType,
		"linger.ms":                    10,    // небольшая задержка для батчинга
		"batch.size":                   16384, // размер пакета в байтах
		"message.max.bytes":            1000000,
		"queue.buffering.max.messages": 100000, // размер внутреннего буфера
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka producer: %w", err)
	}

	if flushTimeout <= 0 {
		flushTimeout = 15 * time.Second
	}

	return &KafkaMessaging{
		producer:     producer,
		flushTimeout: flushTimeout,
	}, nil
}

// buildKafkaMessage собирает kafka.Message со служебными заголовками
func buildKafkaMessage(topic string, message []byte, key string) *kafka.Message {
	kafkaHeaders := []kafka.Header{
		{Key: "message_id", Value: []byte(uuid.New().String())},
		{Key: "timestamp", Value: []byte(fmt.Sprintf("%d", time.Now().UnixNano()))},
	}

	var keyBytes []byte
	if key != "" {
		keyBytes = []byte(key)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          message,
		Key:            keyBytes,
		Headers:        kafkaHeaders,
	}
}

// Publish публикует сообщение в указанную тему
func (k *KafkaMessaging) Publish(_ context.Context, topic string, message []byte) error {
	return k.producer.Produce(buildKafkaMessage(topic, message, ""), nil)
}

// PublishWithKey публикует сообщение с указанным ключом партиционирования.
// Ключ — номер заказа или SKU, чтобы события одной сущности шли по порядку.
func (k *KafkaMessaging) PublishWithKey(_ context.Context, topic string, key string, message []byte) error {
	return k.producer.Produce(buildKafkaMessage(topic, message, key), nil)
}

// Close дожидается отправки буферизованных сообщений и закрывает producer
func (k *KafkaMessaging) Close() error {
	k.producer.Flush(int(k.flushTimeout.Milliseconds()))
	k.producer.Close()
	return nil
}
