package mms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/athebyme/mms-connector/internal/domain/models"
	"github.com/athebyme/mms-connector/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopLogger — логгер-заглушка для тестов
type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

func (nopLogger) DebugWithContext(ctx context.Context, msg string, args ...interface{}) {}
func (nopLogger) InfoWithContext(ctx context.Context, msg string, args ...interface{})  {}
func (nopLogger) WarnWithContext(ctx context.Context, msg string, args ...interface{})  {}
func (nopLogger) ErrorWithContext(ctx context.Context, msg string, args ...interface{}) {}

func (l nopLogger) WithFields(fields ...interfaces.LogField) interfaces.LoggerPort { return l }
func (l nopLogger) WithField(key string, value interface{}) interfaces.LoggerPort  { return l }
func (nopLogger) Sync() error                                                      { return nil }

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(baseURL, newTestSigner(t), nopLogger{}, 5*time.Second)
	require.NoError(t, err)
	return client
}

func TestCallSuccess(t *testing.T) {
	var gotRequest *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequest = r.Clone(r.Context())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"StatusCode":200,"Result":{"new_since_id":42,"order_ids":[101]}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	envelope, err := client.Get(context.Background(), "orders/ids", map[string]interface{}{"since_id": 1}, true)
	require.NoError(t, err)

	assert.True(t, envelope.Success)
	assert.Equal(t, 200, envelope.StatusCode)
	assert.NotNil(t, envelope.Result)

	require.NotNil(t, gotRequest)
	assert.Equal(t, "since_id=1", gotRequest.URL.RawQuery)
	assert.Contains(t, gotRequest.Header.Get("Authorization"), "mms app-1:")
	assert.Equal(t, "application/json", gotRequest.Header.Get("Accept"))
	assert.Equal(t, "no-cache", gotRequest.Header.Get("Cache-Control"))
}

func TestCallWireStatusOverridesHTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"StatusCode":400,"Result":{}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	envelope, err := client.Get(context.Background(), "orders/ids", nil, false)
	require.NoError(t, err)

	assert.False(t, envelope.Success)
	assert.Equal(t, 400, envelope.StatusCode)
}

func TestCallErrorMessageSubstitution(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"StatusCode":400,"message":"variation \"%1\" not found for \"%2\"","parameters":["sku-9","tmall"]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	envelope, err := client.Get(context.Background(), "variations/ids", nil, false)
	require.NoError(t, err)

	assert.False(t, envelope.Success)
	assert.Equal(t, "variation `sku-9` not found for `tmall`", envelope.ErrorMessage)
}

func TestCallMandatoryResultMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"StatusCode":200}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Get(context.Background(), "orders/ids", nil, true)

	assert.True(t, models.IsKind(err, models.ProtocolError))
}

func TestCallOptionalResultMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"StatusCode":200}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	envelope, err := client.Post(context.Background(), "fulfillments/complete", nil, false)
	require.NoError(t, err)

	assert.True(t, envelope.Success)
}

func TestCallUndecodableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway error</html>"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Get(context.Background(), "orders/ids", nil, true)

	assert.True(t, models.IsKind(err, models.ProtocolError))
}

func TestCallTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Get(context.Background(), "orders/ids", nil, true)

	assert.True(t, models.IsKind(err, models.TransportError))
}

func TestCallInvalidParameterKey(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Get(context.Background(), "orders/ids", map[string]interface{}{"bad key": 1}, false)

	assert.True(t, models.IsKind(err, models.ValidationError))
	assert.False(t, called)
}

func TestCallEscapesParameterValue(t *testing.T) {
	var rawQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		w.Write([]byte(`{"StatusCode":200,"Result":{}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Get(context.Background(), "variations/ids", map[string]interface{}{"sku": "a b"}, false)
	require.NoError(t, err)

	assert.Equal(t, "sku=a+b", rawQuery)
}

func TestCallPostSendsJSONBody(t *testing.T) {
	var body map[string]interface{}
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		w.Write([]byte(`{"StatusCode":200}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Post(context.Background(), "fulfillments/complete",
		map[string]interface{}{"order_id": 7}, false)
	require.NoError(t, err)

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, float64(7), body["order_id"])
}

func TestOrderIDsSinceMalformedListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"StatusCode":200,"Result":{"order_ids":[1,2]}}`))
	}))
	defer server.Close()

	api := NewAPI(newTestClient(t, server.URL), "tmall")
	_, err := api.OrderIDsSince(context.Background(), 1)

	assert.True(t, models.IsKind(err, models.ProtocolError))
}

func TestOrderIDsSinceEmptyListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"StatusCode":200,"Result":{"new_since_id":42,"order_ids":[]}}`))
	}))
	defer server.Close()

	api := NewAPI(newTestClient(t, server.URL), "tmall")
	listing, err := api.OrderIDsSince(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, int64(42), listing.NewSinceID)
	assert.Empty(t, listing.OrderIDs)
}
