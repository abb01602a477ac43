package beacon

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const randomnessSize = 32

// Client fetches randomness from a remote beacon at {addr}/raw_rand.
type Client struct {
	addr       string
	httpClient *http.Client
}

func New(addr string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		addr:       strings.TrimRight(addr, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) RawRand(ctx context.Context) ([]byte, error) {
	if c == nil {
		return nil, errors.New("beacon client is nil")
	}
	if c.addr == "" {
		return nil, errors.New("beacon addr missing")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.addr+"/raw_rand", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("beacon read failed: status %d", resp.StatusCode)
	}
	var envelope struct {
		Randomness []byte `json:"randomness"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode beacon response: %w", err)
	}
	if len(envelope.Randomness) < randomnessSize {
		return nil, fmt.Errorf("beacon returned %d bytes, want at least %d", len(envelope.Randomness), randomnessSize)
	}
	return envelope.Randomness, nil
}

// Local draws randomness from the operating system.
type Local struct {
	reader io.Reader
}

func NewLocal() *Local {
	return &Local{reader: rand.Reader}
}

func (l *Local) RawRand(context.Context) ([]byte, error) {
	out := make([]byte, randomnessSize)
	if _, err := io.ReadFull(l.reader, out); err != nil {
		return nil, fmt.Errorf("read randomness: %w", err)
	}
	return out, nil
}
