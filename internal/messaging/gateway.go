package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
)

// GatewaySender posts messages to a chat gateway over HTTP.
type GatewaySender struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// GatewayError is a non-2xx gateway response.
type GatewayError struct {
	Status int
	Body   string
}

func (e *GatewayError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway: status %d", e.Status)
	}
	return fmt.Sprintf("gateway: status %d: %s", e.Status, e.Body)
}

// StatusCode lets the error classifier map the failure by HTTP status.
func (e *GatewayError) StatusCode() int {
	return e.Status
}

type sendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// NewGatewaySender creates a sender for the gateway at baseURL.
func NewGatewaySender(baseURL, token string, timeout time.Duration, logger zerolog.Logger) *GatewaySender {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = timeout

	return &GatewaySender{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "gateway").Logger(),
	}
}

func (s *GatewaySender) SendText(ctx context.Context, to, text string) error {
	if s.baseURL == "" {
		return errors.New("gateway not configured")
	}

	payload, err := json.Marshal(sendRequest{To: to, Text: text})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &GatewayError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	s.logger.Debug().Str("to", to).Int("status", resp.StatusCode).Msg("message sent")
	return nil
}
