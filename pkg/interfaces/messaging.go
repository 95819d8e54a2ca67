package interfaces

import "context"

// MessagingPort определяет интерфейс для публикации событий коннектора
// Реализация может использовать Kafka, NATS или любой другой брокер
type MessagingPort interface {
	// Publish публикует сообщение в указанную тему
	Publish(ctx context.Context, topic string, message []byte) error

	// PublishWithKey публикует сообщение с указанным ключом партиционирования
	PublishWithKey(ctx context.Context, topic string, key string, message []byte) error

	// Close закрывает соединение с брокером
	Close() error
}
