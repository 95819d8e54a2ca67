package models

import (
	"errors"
	"fmt"
)

// ErrorKind классифицирует ошибки синхронизации с маркетплейсом
type ErrorKind int

const (
	// ConfigurationError — отсутствуют или невалидны реквизиты подключения.
	// Фатально для вызова, запрос не отправляется.
	ConfigurationError ErrorKind = iota + 1

	// TransportError — сетевая ошибка, таймаут или TLS.
	// Ответу доверять нельзя, вызов прерван.
	TransportError

	// ProtocolError — тело не декодируется как JSON либо отсутствует
	// обязательный контейнер Result при успешном транспорте.
	ProtocolError

	// RemoteApplicationError — корректный конверт с явным признаком ошибки.
	// Сообщение и код статуса сохраняются дословно для диагностики.
	RemoteApplicationError

	// ValidationError — ключ параметра меняется при URL-кодировании,
	// безопасно передать его невозможно.
	ValidationError

	// ReconciliationError — сбой хранилища сущностей при материализации заказа.
	// Откатывает открытую транзакцию и прерывает цикл.
	ReconciliationError
)

// String возвращает имя вида ошибки
func (k ErrorKind) String() string {
	switch k {
	case ConfigurationError:
		return "configuration"
	case TransportError:
		return "transport"
	case ProtocolError:
		return "protocol"
	case RemoteApplicationError:
		return "remote_application"
	case ValidationError:
		return "validation"
	case ReconciliationError:
		return "reconciliation"
	default:
		return "unknown"
	}
}

// SyncError — классифицированная ошибка коннектора
type SyncError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Err        error
}

// Error реализует интерфейс error
func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap возвращает обернутую ошибку
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewSyncError создает классифицированную ошибку
func NewSyncError(kind ErrorKind, message string) *SyncError {
	return &SyncError{Kind: kind, Message: message}
}

// WrapSyncError оборачивает ошибку с классификацией
func WrapSyncError(kind ErrorKind, message string, err error) *SyncError {
	return &SyncError{Kind: kind, Message: message, Err: err}
}

// KindOf возвращает вид ошибки или 0, если ошибка не классифицирована
func KindOf(err error) ErrorKind {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Kind
	}
	return 0
}

// IsKind сообщает, относится ли ошибка к указанному виду
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
