package productsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/productfeed/pkg/errors"
	"github.com/angelmondragon/productfeed/pkg/metrics"
)

const (
	KindPage = "page"
	KindAll  = "all"

	productsPath           = "products"
	maxBodyBytes     int64 = 32 << 20
	errorBodyPreview int64 = 1024
)

var errBaseURLRequired = errors.New("products api base url is required")

var statusMessages = map[int]string{
	http.StatusNotFound:            "Products not found",
	http.StatusInternalServerError: "Server error - please try again later",
	http.StatusServiceUnavailable:  "Service unavailable - please try again later",
}

// Payload is the undecoded listing body. Products are kept raw so callers can
// discard malformed entries one by one.
type Payload struct {
	Products []json.RawMessage `json:"products"`
	Total    json.RawMessage   `json:"total,omitempty"`
}

// Client issues bounded GET requests against the products listing endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *metrics.CatalogMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMetrics records request durations and failures.
func WithMetrics(m *metrics.CatalogMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds a products API client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL: trimmed,
		// Deadlines come from the per-call timeout.
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// FetchPage requests one window of the collection.
func (c *Client) FetchPage(ctx context.Context, offset, limit int, timeout time.Duration) (*Payload, error) {
	if offset < 0 || limit < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offset and limit must not be negative")
	}
	return c.get(ctx, KindPage, offset, limit, timeout)
}

// FetchAll requests the whole collection in one unbounded call (limit=0).
func (c *Client) FetchAll(ctx context.Context, timeout time.Duration) (*Payload, error) {
	return c.get(ctx, KindAll, 0, 0, timeout)
}

func (c *Client) get(ctx context.Context, kind string, offset, limit int, timeout time.Duration) (*Payload, error) {
	reqCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	start := time.Now()
	payload, err := c.do(reqCtx, offset, limit)
	c.metrics.ObserveRequest(kind, time.Since(start))
	if err != nil {
		c.metrics.IncFailure(kind, string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	return payload, nil
}

func (c *Client) do(ctx context.Context, offset, limit int) (*Payload, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("skip", strconv.Itoa(offset))
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, productsPath, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build products request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := contextFailure(ctx, err); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "network request failed: "+err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyPreview))
		return nil, statusError(resp.StatusCode, strings.TrimSpace(string(preview)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := contextFailure(ctx, err); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "network request failed: "+err.Error())
	}
	return decodePayload(body)
}

func statusError(code int, body string) *pkgerrors.Error {
	msg, ok := statusMessages[code]
	if !ok {
		msg = fmt.Sprintf("HTTP Error %d: %s", code, http.StatusText(code))
	}
	details := map[string]any{"status": code}
	if body != "" {
		details["body"] = body
	}
	return pkgerrors.New(pkgerrors.CodeHTTPStatus, msg).WithDetails(details)
}

// contextFailure maps a cancelled request context onto the timeout taxonomy.
func contextFailure(ctx context.Context, cause error) *pkgerrors.Error {
	switch ctxErr := ctx.Err(); {
	case ctxErr == nil:
		return nil
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, cause, "Request timed out")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeCanceled, cause, "request canceled")
	}
}

func decodePayload(body []byte) (*Payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedPayload, "Invalid response format")
	}

	var envelope struct {
		Products json.RawMessage `json:"products"`
		Total    json.RawMessage `json:"total"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedPayload, err, "Invalid response format")
	}

	products := bytes.TrimSpace(envelope.Products)
	if len(products) == 0 || products[0] != '[' {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedPayload, "No products found in response")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(products, &items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedPayload, err, "No products found in response")
	}
	if items == nil {
		items = []json.RawMessage{}
	}

	return &Payload{Products: items, Total: envelope.Total}, nil
}
