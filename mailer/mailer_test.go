package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_PostsPayload(t *testing.T) {
	var gotAuth string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	log := zerolog.Nop()
	m := New(srv.URL, "Zoho-enczapikey test-key", "events@example.com", &log)
	require.True(t, m.Enabled())

	err := m.Send(context.Background(), "ada@example.com", "Ada", "Booking confirmed", "<p>See you there</p>")
	require.NoError(t, err)

	assert.Equal(t, "Zoho-enczapikey test-key", gotAuth)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "Booking confirmed", payload["subject"])
	assert.Equal(t, "<p>See you there</p>", payload["htmlbody"])

	from := payload["from"].(map[string]any)
	assert.Equal(t, "events@example.com", from["address"])

	to := payload["to"].([]any)
	require.Len(t, to, 1)
	addr := to[0].(map[string]any)["email_address"].(map[string]any)
	assert.Equal(t, "ada@example.com", addr["address"])
	assert.Equal(t, "Ada", addr["name"])
}

func TestSend_APIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	log := zerolog.Nop()
	m := New(srv.URL, "bad-key", "events@example.com", &log)

	err := m.Send(context.Background(), "ada@example.com", "Ada", "subject", "body")
	assert.Error(t, err)
}

func TestSend_UnconfiguredIsNoOp(t *testing.T) {
	log := zerolog.Nop()
	m := New("", "", "", &log)
	assert.False(t, m.Enabled())
	assert.NoError(t, m.Send(context.Background(), "ada@example.com", "Ada", "subject", "body"))
}
