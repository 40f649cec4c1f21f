package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hostbot/internal/resilience"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewaySender_SendText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/send", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "628123", body.To)
		assert.Equal(t, "hello", body.Text)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	sender := NewGatewaySender(ts.URL+"/", "secret", time.Second, zerolog.Nop())
	require.NoError(t, sender.SendText(context.Background(), "628123", "hello"))
}

func TestGatewaySender_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   resilience.Reason
	}{
		{"Rate limited", http.StatusTooManyRequests, resilience.ReasonRateLimit},
		{"Unauthorized", http.StatusUnauthorized, resilience.ReasonAuth},
		{"Unavailable", http.StatusServiceUnavailable, resilience.ReasonNetwork},
		{"Bad request", http.StatusBadRequest, resilience.ReasonCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("nope"))
			}))
			defer ts.Close()

			sender := NewGatewaySender(ts.URL, "", time.Second, zerolog.Nop())
			err := sender.SendText(context.Background(), "1", "x")

			var gwErr *GatewayError
			require.ErrorAs(t, err, &gwErr)
			assert.Equal(t, "nope", gwErr.Body)
			assert.Equal(t, tt.want, resilience.Classify(err))
		})
	}
}

func TestGatewaySender_NotConfigured(t *testing.T) {
	sender := NewGatewaySender("", "", time.Second, zerolog.Nop())
	assert.Error(t, sender.SendText(context.Background(), "1", "x"))
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, NewLogSender(zerolog.Nop()).SendText(context.Background(), "1", "x"))
}
