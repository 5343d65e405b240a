// Package forwarder relays converted documents to the processed files service.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"xmlrelay/internal/model"
)

const (
	// ReceivePath is the storage service endpoint accepting forwarded files.
	ReceivePath = "/api/ProcessedFiles/ReceiveProcessedFile"
	// APIKeyHeader carries the shared secret expected by the storage service.
	APIKeyHeader = "ApiKey"

	maxErrorBody = 4 << 10
)

// Kind separates failures where no response arrived from failures reported by the storage service.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindApplication
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindApplication:
		return "application"
	default:
		return "unknown"
	}
}

// ForwardingError describes a failed forward. StatusCode is zero for transport failures.
type ForwardingError struct {
	Kind       Kind
	StatusCode int
	Detail     string
}

func (e *ForwardingError) Error() string {
	if e.Kind == KindApplication {
		return fmt.Sprintf("storage service responded with status %d: %s", e.StatusCode, e.Detail)
	}
	return "storage service unreachable: " + e.Detail
}

// Receipt is the storage service acknowledgement of a stored file.
type Receipt struct {
	Message string `json:"message"`
	FileID  int64  `json:"fileId"`
}

// Forwarder sends one converted document to the storage service.
type Forwarder interface {
	Forward(ctx context.Context, fileName, content string) (*Receipt, error)
}

// Client is an HTTP Forwarder. It issues exactly one request per call and never retries.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	timeout  time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client. The client is
// not modified; a timeout set by WithTimeout applies to a copy.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds a single forward, including reading the response.
// It applies regardless of option order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New creates a Client posting to baseURL + ReceivePath with the given API key.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(baseURL, "/") + ReceivePath,
		apiKey:   apiKey,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

var _ Forwarder = (*Client)(nil)

// Forward posts {fileName, fileContent} to the storage service.
// Any failure is returned as *ForwardingError.
func (c *Client) Forward(ctx context.Context, fileName, content string) (*Receipt, error) {
	body, err := json.Marshal(model.ForwardedFile{FileName: fileName, FileContent: content})
	if err != nil {
		return nil, &ForwardingError{Kind: KindTransport, Detail: fmt.Sprintf("encode payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ForwardingError{Kind: KindTransport, Detail: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(APIKeyHeader, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ForwardingError{Kind: KindTransport, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ForwardingError{Kind: KindApplication, StatusCode: resp.StatusCode, Detail: replyDetail(resp.StatusCode, msg)}
	}

	// The file is stored at this point; an unreadable acknowledgement does not
	// undo that, so it yields a receipt without FileID.
	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return &Receipt{}, nil
	}
	return &receipt, nil
}

// replyDetail prefers the message of a storage error envelope, then the raw
// body, then the status text.
func replyDetail(status int, body []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return http.StatusText(status)
}
