package mms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/athebyme/mms-connector/internal/domain/models"
	"github.com/athebyme/mms-connector/internal/metrics"
	"github.com/athebyme/mms-connector/pkg/interfaces"
)

// Verb — HTTP-метод вызова API. Явное перечисление вместо диспетчеризации
// по имени метода: таблица verbTable проверяется на этапе компиляции.
type Verb int

const (
	VerbGet Verb = iota
	VerbPost
	VerbPut
	VerbPatch
	VerbDelete
)

type verbSpec struct {
	method string
	// hasBody: параметры сериализуются в JSON-тело,
	// иначе кодируются в строку запроса
	hasBody bool
}

var verbTable = map[Verb]verbSpec{
	VerbGet:    {method: http.MethodGet, hasBody: false},
	VerbPost:   {method: http.MethodPost, hasBody: true},
	VerbPut:    {method: http.MethodPut, hasBody: true},
	VerbPatch:  {method: http.MethodPatch, hasBody: true},
	VerbDelete: {method: http.MethodDelete, hasBody: false},
}

// ResponseEnvelope — нормализованный ответ API маркетплейса.
// Success вычисляется клиентом по коду статуса и наличию Result,
// значению с провода напрямую не доверяем.
type ResponseEnvelope struct {
	StatusCode   int
	Result       json.RawMessage
	ErrorMessage string
	Success      bool
}

// wireResponse — сырой конверт ответа маркетплейса
type wireResponse struct {
	StatusCode *int            `json:"StatusCode,omitempty"`
	Result     json.RawMessage `json:"Result,omitempty"`
	Message    string          `json:"message,omitempty"`
	Parameters []string        `json:"parameters,omitempty"`
}

// Client выполняет подписанные вызовы REST API маркетплейса.
// Ровно одна сетевая попытка на вызов, без внутренних повторов:
// решение о повторе целого цикла принимает вызывающая сторона.
type Client struct {
	httpClient *http.Client
	signer     *Signer
	logger     interfaces.LoggerPort
	baseURL    string
}

// NewClient создает клиента API маркетплейса
func NewClient(baseURL string, signer *Signer, logger interfaces.LoggerPort, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, models.NewSyncError(models.ConfigurationError, "api base url is not defined")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		signer:     signer,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}, nil
}

// Get выполняет GET-вызов
func (c *Client) Get(ctx context.Context, callType string, parameters map[string]interface{}, mandatoryResult bool) (*ResponseEnvelope, error) {
	return c.Call(ctx, VerbGet, callType, parameters, nil, mandatoryResult)
}

// Post выполняет POST-вызов
func (c *Client) Post(ctx context.Context, callType string, parameters map[string]interface{}, mandatoryResult bool) (*ResponseEnvelope, error) {
	return c.Call(ctx, VerbPost, callType, parameters, nil, mandatoryResult)
}

// Put выполняет PUT-вызов
func (c *Client) Put(ctx context.Context, callType string, parameters map[string]interface{}, mandatoryResult bool) (*ResponseEnvelope, error) {
	return c.Call(ctx, VerbPut, callType, parameters, nil, mandatoryResult)
}

// Patch выполняет PATCH-вызов
func (c *Client) Patch(ctx context.Context, callType string, parameters map[string]interface{}, mandatoryResult bool) (*ResponseEnvelope, error) {
	return c.Call(ctx, VerbPatch, callType, parameters, nil, mandatoryResult)
}

// Delete выполняет DELETE-вызов
func (c *Client) Delete(ctx context.Context, callType string, parameters map[string]interface{}, mandatoryResult bool) (*ResponseEnvelope, error) {
	return c.Call(ctx, VerbDelete, callType, parameters, nil, mandatoryResult)
}

// buildQuery кодирует параметры в строку запроса. Изменение ключа при
// кодировании — ошибка вызывающего (невалидное имя поля), фатально.
// Изменение значения — подстановка с предупреждением в лог.
func (c *Client) buildQuery(ctx context.Context, parameters map[string]interface{}) (string, error) {
	if len(parameters) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(parameters))
	for key := range parameters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		escapedKey := url.QueryEscape(key)
		if escapedKey != key {
			return "", models.NewSyncError(models.ValidationError,
				fmt.Sprintf("parameter key %q is not valid in a url", key))
		}

		value := fmt.Sprint(parameters[key])
		escapedValue := url.QueryEscape(value)
		if escapedValue != value {
			c.logger.WarnWithContext(ctx, "parameter value had to be escaped",
				"key", key, "value", value, "escaped_value", escapedValue)
		}

		pairs = append(pairs, escapedKey+"="+escapedValue)
	}

	return strings.Join(pairs, "&"), nil
}

// Call выполняет один подписанный вызов API и нормализует ответ.
// Каждый вызов логируется целиком, успешный и неуспешный: метод, URL,
// параметры и декодированный ответ — без секретов из заголовков.
func (c *Client) Call(ctx context.Context, verb Verb, callType string, parameters map[string]interface{},
	headers map[string]string, mandatoryResult bool) (*ResponseEnvelope, error) {

	spec, ok := verbTable[verb]
	if !ok {
		return nil, models.NewSyncError(models.ValidationError, fmt.Sprintf("unsupported verb %d", verb))
	}

	fullURL := c.baseURL + "/" + strings.TrimLeft(callType, "/")

	var body io.Reader
	if spec.hasBody {
		encoded, err := json.Marshal(parameters)
		if err != nil {
			return nil, models.WrapSyncError(models.ValidationError, "failed to encode request body", err)
		}
		body = bytes.NewReader(encoded)
	} else {
		query, err := c.buildQuery(ctx, parameters)
		if err != nil {
			return nil, err
		}
		if query != "" {
			fullURL += "?" + query
		}
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, fullURL, body)
	if err != nil {
		return nil, models.WrapSyncError(models.ValidationError, "failed to build request", err)
	}

	req.Header.Set("Authorization", c.signer.Authorize(spec.method, fullURL))
	req.Header.Set("Accept", "application/json")
	if spec.hasBody {
		req.Header.Set("Content-Type", "application/json")
	}

	hasCacheControl := false
	for key, value := range headers {
		if strings.EqualFold(key, "Cache-Control") {
			hasCacheControl = true
		}
		req.Header.Set(key, value)
	}
	if !hasCacheControl {
		req.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorWithContext(ctx, "rest call transport failure",
			"method", spec.method, "url", fullURL, "parameters", parameters, "error", err)
		metrics.RestCalls.WithLabelValues(spec.method, "transport_error").Inc()
		return nil, models.WrapSyncError(models.TransportError,
			fmt.Sprintf("%s %s failed", spec.method, callType), err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.ErrorWithContext(ctx, "rest call body read failure",
			"method", spec.method, "url", fullURL, "error", err)
		metrics.RestCalls.WithLabelValues(spec.method, "transport_error").Inc()
		return nil, models.WrapSyncError(models.TransportError,
			fmt.Sprintf("failed to read %s response", callType), err)
	}

	var wire wireResponse
	if err := json.Unmarshal(rawBody, &wire); err != nil {
		c.logger.ErrorWithContext(ctx, "rest call returned undecodable body",
			"method", spec.method, "url", fullURL, "status", resp.StatusCode, "body", string(rawBody))
		metrics.RestCalls.WithLabelValues(spec.method, "protocol_error").Inc()
		return nil, models.WrapSyncError(models.ProtocolError,
			fmt.Sprintf("failed to decode %s response", callType), err)
	}

	envelope := &ResponseEnvelope{
		StatusCode: resp.StatusCode,
		Result:     wire.Result,
	}
	if wire.StatusCode != nil {
		envelope.StatusCode = *wire.StatusCode
	}

	if wire.Message != "" {
		envelope.ErrorMessage = substituteParameters(wire.Message, wire.Parameters)
		metrics.RestCalls.WithLabelValues(spec.method, "remote_error").Inc()
		c.logger.ErrorWithContext(ctx, "rest call failed",
			"method", spec.method, "url", fullURL, "parameters", parameters,
			"status", envelope.StatusCode, "error", envelope.ErrorMessage)
		return envelope, nil
	}

	envelope.Success = envelope.StatusCode == http.StatusOK

	if mandatoryResult && wire.Result == nil {
		metrics.RestCalls.WithLabelValues(spec.method, "protocol_error").Inc()
		c.logger.ErrorWithContext(ctx, "rest call response misses mandatory result",
			"method", spec.method, "url", fullURL, "status", envelope.StatusCode, "body", string(rawBody))
		return nil, models.NewSyncError(models.ProtocolError,
			fmt.Sprintf("%s response does not contain a result container", callType))
	}

	metrics.RestCalls.WithLabelValues(spec.method, "success").Inc()
	c.logger.InfoWithContext(ctx, "rest call completed",
		"method", spec.method, "url", fullURL, "parameters", parameters,
		"status", envelope.StatusCode, "success", envelope.Success)

	return envelope, nil
}

// substituteParameters подставляет позиционные параметры маркетплейса
// ("%1", "%2", ...) в текст сообщения об ошибке.
func substituteParameters(message string, parameters []string) string {
	for i, value := range parameters {
		search := fmt.Sprintf(`"%%%d"`, i+1)
		message = strings.ReplaceAll(message, search, "`"+value+"`")
	}
	return message
}
