// Package coreapi is the HTTP client for the platform core service. Every
// side effect a tool produces (payment links, followups, CRM changes) and all
// telemetry goes through this surface.
package coreapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	URL            string        `split_words:"true" required:"true"`
	InternalSecret string        `split_words:"true" required:"true"`
	Timeout        time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	baseURL        string
	internalSecret string
	httpClient     *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("core api url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		internalSecret: strings.TrimSpace(cfg.InternalSecret),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Secret", c.internalSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("core api %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// PaymentLinkRequest describes a checkout to generate for confirmed products.
type PaymentLinkRequest struct {
	BusinessID string        `json:"business_id"`
	LeadID     string        `json:"lead_id"`
	Items      []PaymentItem `json:"items"`
	Total      float64       `json:"total"`
	Currency   string        `json:"currency"`
}

type PaymentItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type PaymentLink struct {
	URL       string `json:"url"`
	PaymentID string `json:"payment_id"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

func (c *Client) CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (PaymentLink, error) {
	var link PaymentLink
	if err := c.post(ctx, "/internal/payments/link", req, &link); err != nil {
		return PaymentLink{}, err
	}
	return link, nil
}

// FollowupRequest schedules a future outbound message for a lead.
type FollowupRequest struct {
	BusinessID string `json:"business_id"`
	LeadID     string `json:"lead_id"`
	Message    string `json:"message"`
	DelayHours int    `json:"delay_hours"`
	Reason     string `json:"reason,omitempty"`
}

func (c *Client) ScheduleFollowup(ctx context.Context, req FollowupRequest) error {
	return c.post(ctx, "/internal/followups", req, nil)
}

// AssignTag attaches a CRM tag to the lead.
func (c *Client) AssignTag(ctx context.Context, businessID, leadID, tag string) error {
	payload := map[string]string{
		"business_id": businessID,
		"lead_id":     leadID,
		"tag":         tag,
	}
	return c.post(ctx, "/internal/crm/tags", payload, nil)
}

// UpdateStage mirrors the funnel stage into the CRM board.
func (c *Client) UpdateStage(ctx context.Context, businessID, leadID, stage string) error {
	payload := map[string]string{
		"business_id": businessID,
		"lead_id":     leadID,
		"stage":       stage,
	}
	return c.post(ctx, "/internal/crm/stage", payload, nil)
}

// SendMedia asks the platform to deliver a catalog image or document.
func (c *Client) SendMedia(ctx context.Context, businessID, leadID, mediaURL, caption string) error {
	payload := map[string]string{
		"business_id": businessID,
		"lead_id":     leadID,
		"media_url":   mediaURL,
		"caption":     caption,
	}
	return c.post(ctx, "/internal/media/send", payload, nil)
}

// SearchKnowledge queries the business knowledge base and returns the raw
// hits plus a pre-joined context block for prompt injection.
func (c *Client) SearchKnowledge(ctx context.Context, businessID, query string, max int) ([]map[string]any, string, error) {
	payload := map[string]any{
		"business_id": businessID,
		"query":       query,
		"max_results": max,
	}
	var out struct {
		Results []map[string]any `json:"results"`
		Context string           `json:"context"`
	}
	if err := c.post(ctx, "/internal/knowledge/search", payload, &out); err != nil {
		return nil, "", err
	}
	return out.Results, out.Context, nil
}

// toolExecutionPayload is the wire shape of one telemetry entry.
type toolExecutionPayload struct {
	BusinessID   string         `json:"business_id"`
	ToolName     string         `json:"tool_name"`
	ToolInput    map[string]any `json:"tool_input,omitempty"`
	Result       string         `json:"result,omitempty"`
	Success      bool           `json:"success"`
	Error        string         `json:"error,omitempty"`
	DurationMS   int64          `json:"duration_ms"`
	ContactPhone string         `json:"contact_phone,omitempty"`
}

// LogToolExecution ships one tool invocation record. Callers are expected to
// invoke it through FireAndForget.
func (c *Client) LogToolExecution(ctx context.Context, businessID, toolName string, input map[string]any, result string, success bool, errText string, duration time.Duration, contactPhone string) error {
	payload := toolExecutionPayload{
		BusinessID:   businessID,
		ToolName:     toolName,
		ToolInput:    input,
		Result:       result,
		Success:      success,
		Error:        errText,
		DurationMS:   duration.Milliseconds(),
		ContactPhone: contactPhone,
	}
	return c.post(ctx, "/internal/telemetry/tool-executions", payload, nil)
}

// FireAndForget runs fn on its own goroutine with a detached deadline and
// logs failures instead of surfacing them. Telemetry must never slow down or
// break a turn.
func FireAndForget(name string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Warn().Err(err).Str("op", name).Msg("background call failed")
		}
	}()
}
