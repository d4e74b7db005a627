package jsonrpc

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPClient is the client side of the HTTP transport: each Send POSTs one
// line to the server's /rpc endpoint, and the one-line response (if any)
// is queued for the next Receive. Notifications produce no response line.
type HTTPClient struct {
	url    string
	client *resty.Client

	mu      sync.Mutex
	pending []*Message
	closed  bool
}

// NewHTTPClient creates an HTTP transport targeting url.
func NewHTTPClient(url string) *HTTPClient {
	return &HTTPClient{
		url: url,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("Content-Type", "application/json"),
	}
}

// Send POSTs the message and queues the response line, if the server sent
// one, for Receive.
func (t *HTTPClient) Send(m *Message) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.mu.Unlock()

	data, err := Marshal(m)
	if err != nil {
		return fmt.Errorf("jsonrpc: marshal message: %w", err)
	}

	resp, err := t.client.R().SetBody(data).Post(t.url)
	if err != nil {
		return fmt.Errorf("jsonrpc: post: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("jsonrpc: server returned %s", resp.Status())
	}

	body := resp.Body()
	if len(body) == 0 {
		return nil
	}
	reply, err := Parse(body)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.pending = append(t.pending, reply)
	t.mu.Unlock()
	return nil
}

// Receive pops the next queued response, or (nil, nil) when none is
// pending. HTTP is request/response; there is no stream to block on.
func (t *HTTPClient) Receive() (*Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.pending) == 0 {
		return nil, nil
	}
	m := t.pending[0]
	t.pending = t.pending[1:]
	return m, nil
}

// Close releases the underlying HTTP client. Idempotent.
func (t *HTTPClient) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.pending = nil
	return nil
}
