// Package notify relays messages from internal services to users through the
// Telegram Bot API. Callers authenticate with a shared secret.
package notify

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rentfleet/aigw/server/metrics"
)

// ErrUnauthorized means the caller's credential does not match the shared
// secret.
var ErrUnauthorized = errors.New("unauthorized")

// UpstreamError is returned when the Bot API refuses a message. Description
// is Telegram's own explanation, e.g. "Bad Request: chat not found".
type UpstreamError struct {
	StatusCode  int
	Description string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("telegram sendMessage failed (%d): %s", e.StatusCode, e.Description)
}

// Relay sends notifications through one bot.
type Relay struct {
	baseURL string
	token   string
	secret  []byte
	client  *http.Client
	metrics *metrics.Metrics
}

// Option configures a Relay.
type Option func(*Relay)

// WithHTTPClient replaces the HTTP client used for Bot API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Relay) { r.client = c }
}

// WithMetrics counts relay outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// NewRelay creates a relay for the bot token, accepting callers that present
// secret. baseURL is the Bot API root, normally https://api.telegram.org.
func NewRelay(baseURL, token, secret string, opts ...Option) *Relay {
	r := &Relay{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		secret:  []byte(secret),
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Authorize checks credential against the shared secret in constant time.
func (r *Relay) Authorize(credential string) error {
	if len(r.secret) == 0 || subtle.ConstantTimeCompare([]byte(credential), r.secret) != 1 {
		r.count("unauthorized")
		return ErrUnauthorized
	}
	return nil
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify sends text to the chat recipientID with a single sendMessage call.
// It returns *UpstreamError when Telegram answers with a failure.
func (r *Relay) Notify(ctx context.Context, recipientID int64, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: recipientID, Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+"/bot"+r.token+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.count("transport_error")
		// url.Error embeds the request URL, which carries the bot token
		return fmt.Errorf("telegram sendMessage: %w", unwrapURLError(err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var parsed apiResponse
	decodeErr := json.Unmarshal(respBody, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || decodeErr != nil || !parsed.OK {
		r.count("upstream_error")
		description := parsed.Description
		if description == "" {
			description = strings.TrimSpace(string(respBody))
		}
		if description == "" {
			description = resp.Status
		}
		return &UpstreamError{StatusCode: resp.StatusCode, Description: description}
	}

	r.count("sent")
	return nil
}

func (r *Relay) count(outcome string) {
	if r.metrics != nil {
		r.metrics.NotifyTotal.WithLabelValues(outcome).Inc()
	}
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
