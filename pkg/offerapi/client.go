package offerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrBadPriority is returned when a priority rating is outside the 1-5 scale.
var ErrBadPriority = errors.New("priority rating must be between 1 and 5")

// APIError carries a non-2xx upstream response. Body holds the raw response
// text so it can be surfaced to the user unchanged.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("offer api: status %d: %s", e.StatusCode, e.Body)
}

const maxResponseBytes = 4 * 1024 * 1024

// Client talks to the external offer evaluation service. Every request
// carries the fixed X-User-Id header and a fresh X-Request-Id.
type Client struct {
	BaseURL    string
	UserID     string
	HTTPClient *http.Client
}

// New returns a Client with a 60s timeout; evaluation runs are slow.
func New(baseURL, userID string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		UserID:     userID,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// IngestPDF uploads the current offer document plus the priority ratings and
// returns the server offer id with any structured fields it parsed.
func (c *Client) IngestPDF(ctx context.Context, filename string, data []byte, pr Priorities) (*IngestResponse, error) {
	if err := pr.Validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	fields := map[string]int{
		"priority_financial": pr.Financial,
		"priority_career":    pr.Career,
		"priority_lifestyle": pr.Lifestyle,
		"priority_alignment": pr.Alignment,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, strconv.Itoa(v)); err != nil {
			return nil, fmt.Errorf("build multipart: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}

	url := c.BaseURL + "/offers/ingest-pdf?create_records=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out IngestResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Evaluate runs the evaluation workflow for a previously ingested offer.
func (c *Client) Evaluate(ctx context.Context, offerID int64) (*Evaluation, error) {
	url := fmt.Sprintf("%s/offers/%d/evaluate?mode=workflow", c.BaseURL, offerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}
	var out Evaluation
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarketSnapshot fetches aggregate market figures. Callers treat failure as
// non-fatal.
func (c *Client) MarketSnapshot(ctx context.Context, offerID int64) (*MarketSnapshot, error) {
	url := fmt.Sprintf("%s/offers/%d/market-snapshot", c.BaseURL, offerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	var out MarketSnapshot
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat forwards a free-text question about the analyzed offer.
func (c *Client) Chat(ctx context.Context, offerID int64, message string) (*ChatResponse, error) {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/offers/%d/chat", c.BaseURL, offerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	var out ChatResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("X-User-Id", c.UserID)
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("offer api request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("offer api: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("offer api: decode response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}
