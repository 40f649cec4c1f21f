package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"hostbot/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		expectedStatus int
		expectHandler  bool
	}{
		{"Preflight request", http.MethodOptions, http.StatusNoContent, false},
		{"GET request", http.MethodGet, http.StatusOK, true},
		{"PUT request", http.MethodPut, http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			handler := CORS(okHandler(&handlerCalled))

			req := httptest.NewRequest(tt.method, "/api/orders", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectHandler, handlerCalled)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	validAPIKey := "test-api-key-123"

	tests := []struct {
		name           string
		path           string
		apiKey         string
		expectedStatus int
		expectHandler  bool
	}{
		{"Valid API key", "/api/orders", validAPIKey, http.StatusOK, true},
		{"Invalid API key", "/api/orders", "invalid-key", http.StatusUnauthorized, false},
		{"Missing API key", "/api/packages", "", http.StatusUnauthorized, false},
		{"Health check bypasses auth", "/health", "", http.StatusOK, true},
		{"Webhook bypasses auth", "/webhook/messages", "", http.StatusOK, true},
		{"Prefix lookalike is protected", "/healthz", "", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			handler := APIKeyAuth(validAPIKey, zerolog.Nop(), "/health", "/webhook")(okHandler(&handlerCalled))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectHandler, handlerCalled)

			if tt.expectedStatus == http.StatusUnauthorized {
				var body model.ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
				assert.Equal(t, model.ErrCodeUnauthorised, body.Error)
			}
		})
	}
}

func TestWebhookSecret(t *testing.T) {
	tests := []struct {
		name           string
		secret         string
		header         string
		expectedStatus int
	}{
		{"Matching secret", "s3cret", "s3cret", http.StatusOK},
		{"Wrong secret", "s3cret", "guess", http.StatusUnauthorized},
		{"Missing secret", "s3cret", "", http.StatusUnauthorized},
		{"Check disabled", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			handler := WebhookSecret(tt.secret, zerolog.Nop())(okHandler(&handlerCalled))

			req := httptest.NewRequest(http.MethodPost, "/webhook/messages", nil)
			if tt.header != "" {
				req.Header.Set("X-Webhook-Secret", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedStatus == http.StatusOK, handlerCalled)
		})
	}
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name          string
		handlerStatus int
	}{
		{"Successful request", http.StatusOK},
		{"Not found request", http.StatusNotFound},
		{"Server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.handlerStatus)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			w := httptest.NewRecorder()
			Logging(zerolog.Nop())(testHandler).ServeHTTP(w, req)

			assert.Equal(t, tt.handlerStatus, w.Code)
		})
	}
}

func TestRecovery(t *testing.T) {
	tests := []struct {
		name           string
		shouldPanic    bool
		panicValue     interface{}
		expectedStatus int
	}{
		{"No panic", false, nil, http.StatusOK},
		{"Panic with string", true, "something went wrong", http.StatusInternalServerError},
		{"Panic with error", true, assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.shouldPanic {
					panic(tt.panicValue)
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()
			Recovery(zerolog.Nop())(testHandler).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.shouldPanic {
				assert.Contains(t, w.Body.String(), "internal server error")
			}
		})
	}
}
