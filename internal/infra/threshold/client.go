package threshold

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

	"keyward/internal/domain"
)

// Client talks to a remote threshold-ECDSA service over JSON. Byte fields
// travel as base64 strings.
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

func (c *Client) PublicKey(ctx context.Context, req domain.ThresholdPublicKeyRequest) ([]byte, error) {
	var reply domain.ThresholdPublicKeyReply
	if err := c.post(ctx, "/ecdsa_public_key", req, &reply); err != nil {
		return nil, err
	}
	if len(reply.PublicKey) == 0 {
		return nil, errors.New("threshold response missing publicKey")
	}
	return reply.PublicKey, nil
}

func (c *Client) SignWithECDSA(ctx context.Context, req domain.ThresholdSignRequest) ([]byte, error) {
	if len(req.MessageHash) != domain.DigestSize {
		return nil, fmt.Errorf("%w: message hash must be %d bytes", domain.ErrInvalidDigestLength, domain.DigestSize)
	}
	var reply domain.ThresholdSignReply
	if err := c.post(ctx, "/sign_with_ecdsa", req, &reply); err != nil {
		return nil, err
	}
	if len(reply.Signature) == 0 {
		return nil, errors.New("threshold response missing signature")
	}
	return reply.Signature, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	if c == nil {
		return errors.New("threshold client is nil")
	}
	if c.addr == "" {
		return errors.New("threshold addr missing")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("threshold %s failed: status %d", strings.TrimPrefix(path, "/"), resp.StatusCode)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode threshold response: %w", err)
	}
	return nil
}
