package mms

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/athebyme/mms-connector/internal/domain/models"
	"github.com/google/uuid"
)

// Тело запроса не входит в подпись: протокол маркетплейса использует
// пустой дайджест контента даже для мутирующих методов.
const emptyContentDigest = ""

// Signer вычисляет подпись запроса из реквизитов приложения,
// метода, URL, метки времени и одноразового nonce.
type Signer struct {
	appID string
	key   []byte
}

// NewSigner создает подписанта. Секрет приходит в base64 —
// невалидный секрет или пустые реквизиты фатальны, запросы не отправляются.
func NewSigner(appID, appKeyBase64 string) (*Signer, error) {
	if appID == "" {
		return nil, models.NewSyncError(models.ConfigurationError, "app id is not defined")
	}
	if appKeyBase64 == "" {
		return nil, models.NewSyncError(models.ConfigurationError, "app key is not defined")
	}

	key, err := base64.StdEncoding.DecodeString(appKeyBase64)
	if err != nil {
		return nil, models.WrapSyncError(models.ConfigurationError, "failed to decode app key", err)
	}

	return &Signer{appID: appID, key: key}, nil
}

// AppID возвращает идентификатор приложения
func (s *Signer) AppID() string {
	return s.appID
}

// Sign вычисляет значение заголовка Authorization для фиксированных
// метки времени и nonce. Повторный вызов с теми же аргументами дает
// ту же подпись.
func (s *Signer) Sign(httpMethod, fullURL string, timestamp int64, nonce string) string {
	encodedURL := strings.ToLower(url.QueryEscape(fullURL))

	payload := s.appID +
		strings.ToUpper(httpMethod) +
		encodedURL +
		strconv.FormatInt(timestamp, 10) +
		nonce +
		emptyContentDigest

	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("mms %s:%s:%s:%d", s.appID, signature, nonce, timestamp)
}

// Authorize подписывает запрос свежими меткой времени (секунды UTC)
// и nonce. Nonce никогда не переиспользуется: повтор неудавшегося
// запроса получает новую пару значений.
func (s *Signer) Authorize(httpMethod, fullURL string) string {
	timestamp := time.Now().UTC().Unix()
	nonce := uuid.New().String()
	return s.Sign(httpMethod, fullURL, timestamp, nonce)
}
