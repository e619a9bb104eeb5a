package qstash

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SignatureHeader      = "Upstash-Signature"
	maxResponseSizeBytes = 1 << 20
)

var (
	ErrMissingSignature = errors.New("qstash signature is missing")
	ErrInvalidSignature = errors.New("qstash signature is invalid")
)

type Config struct {
	URL               string        `split_words:"true" default:"https://qstash.upstash.io"`
	Token             string        `split_words:"true" required:"true"`
	CurrentSigningKey string        `split_words:"true" required:"true"`
	NextSigningKey    string        `split_words:"true" required:"true"`
	Timeout           time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	baseURL           string
	token             string
	currentSigningKey string
	nextSigningKey    string
	httpClient        *http.Client
	now               func() time.Time
}

type PublishResponse struct {
	MessageID string `json:"messageId"`
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("qstash url is required")
	}

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		baseURL:           strings.TrimRight(baseURL, "/"),
		token:             strings.TrimSpace(cfg.Token),
		currentSigningKey: strings.TrimSpace(cfg.CurrentSigningKey),
		nextSigningKey:    strings.TrimSpace(cfg.NextSigningKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}

	return client, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// PublishJSON enqueues payload for delivery to destination. QStash retries
// delivery on its side until the destination answers 2xx.
func (c *Client) PublishJSON(ctx context.Context, destination string, payload any) (PublishResponse, error) {
	if _, err := url.ParseRequestURI(destination); err != nil {
		return PublishResponse{}, fmt.Errorf("invalid destination: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return PublishResponse{}, fmt.Errorf("marshal qstash payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/publish/"+destination, bytes.NewReader(body))
	if err != nil {
		return PublishResponse{}, fmt.Errorf("build qstash request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PublishResponse{}, fmt.Errorf("execute qstash request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return PublishResponse{}, fmt.Errorf("read qstash response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return PublishResponse{}, fmt.Errorf("qstash http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var out PublishResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return PublishResponse{}, fmt.Errorf("decode qstash response: %w", err)
	}
	return out, nil
}

// Verify checks a delivery signature against the current signing key and,
// during key rotation, the next one.
func (c *Client) Verify(signature string, body []byte, destination string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}

	err := c.verifyWithKey(signature, body, destination, c.currentSigningKey)
	if err == nil {
		return nil
	}
	if c.nextSigningKey == "" {
		return err
	}
	return c.verifyWithKey(signature, body, destination, c.nextSigningKey)
}

type signatureClaims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

func (c *Client) verifyWithKey(signature string, body []byte, destination, key string) error {
	if key == "" {
		return fmt.Errorf("%w: signing key is empty", ErrInvalidSignature)
	}

	claims := &signatureClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("Upstash"),
		jwt.WithTimeFunc(c.now),
		jwt.WithLeeway(time.Second),
	)
	if _, err := parser.ParseWithClaims(signature, claims, func(*jwt.Token) (any, error) {
		return []byte(key), nil
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if destination != "" && claims.Subject != destination {
		return fmt.Errorf("%w: subject=%q does not match %q", ErrInvalidSignature, claims.Subject, destination)
	}

	sum := sha256.Sum256(body)
	want := base64.RawURLEncoding.EncodeToString(sum[:])
	if strings.TrimRight(claims.Body, "=") != want {
		return fmt.Errorf("%w: body hash mismatch", ErrInvalidSignature)
	}
	return nil
}
