// Package uploadclient implements the end-to-end client workflow: scanning
// a local directory, building the local Merkle tree, driving the
// initiate/upload/complete session lifecycle against the upload server,
// persisting the agreed root, and later verifying individual files against
// it.
package uploadclient

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
	"time"

	"github.com/google/uuid"

	"vaultseal.dev/internal/auth"
	"vaultseal.dev/internal/merkle"
	"vaultseal.dev/internal/retry"
)

// Args configures an APIClient.
type Args struct {
	APIKey        string
	APISecret     string
	BaseURL       string
	CorrelationID uuid.UUID
}

// APIClient is a thin, authenticated, retrying wrapper around the upload
// server's HTTP API. It holds no upload-session state of its own.
type APIClient struct {
	args   Args
	client *retry.Client
}

// NewAPIClient builds an APIClient using retry.DefaultSettings and a
// 30-second per-attempt HTTP timeout.
func NewAPIClient(args Args) *APIClient {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	return &APIClient{
		args:   args,
		client: retry.New(httpClient, retry.DefaultSettings),
	}
}

func (c *APIClient) sign(req *http.Request) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("X-AUTH-KEY", c.args.APIKey)
	req.Header.Set("X-AUTH-TS", ts)
	req.Header.Set("X-AUTH-SIGNATURE", auth.Sign(c.args.APISecret, ts))
	req.Header.Set("X-CORRELATION-ID", c.args.CorrelationID.String())
}

// Initiate opens a new upload session and returns its ID.
func (c *APIClient) Initiate(ctx context.Context) (uuid.UUID, error) {
	resp, err := c.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.args.BaseURL+"api/v1/initiate", nil)
		if err != nil {
			return nil, err
		}
		c.sign(req)
		return req, nil
	})
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("uploadclient: initiate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return uuid.UUID{}, newAPIError(resp)
	}

	var body struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return uuid.UUID{}, fmt.Errorf("uploadclient: decode initiate response: %w", err)
	}
	return body.ID, nil
}

// UploadFile uploads content as name at index within session id, and
// returns the content's hex-encoded digest as reported by the server.
func (c *APIClient) UploadFile(ctx context.Context, id uuid.UUID, name string, index int, content []byte) (string, error) {
	query := url.Values{}
	query.Set("name", name)
	query.Set("index", strconv.Itoa(index))
	endpoint := fmt.Sprintf("%sapi/v1/%s/upload?%s", c.args.BaseURL, id, query.Encode())

	resp, err := c.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(content))
		if err != nil {
			return nil, err
		}
		c.sign(req)
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("uploadclient: upload %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newAPIError(resp)
	}

	var body struct {
		EncodedHash string `json:"encoded_hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("uploadclient: decode upload response: %w", err)
	}
	return body.EncodedHash, nil
}

// Complete closes session id on the server and returns its hex-encoded
// Merkle root.
func (c *APIClient) Complete(ctx context.Context, id uuid.UUID) (string, error) {
	endpoint := fmt.Sprintf("%sapi/v1/%s/complete", c.args.BaseURL, id)
	resp, err := c.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return nil, err
		}
		c.sign(req)
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("uploadclient: complete: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newAPIError(resp)
	}

	var body struct {
		RootHex string `json:"root_hex"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("uploadclient: decode complete response: %w", err)
	}
	return body.RootHex, nil
}

// GetProof fetches the inclusion proof for index within session id.
func (c *APIClient) GetProof(ctx context.Context, id uuid.UUID, index int) (merkle.InclusionProof, error) {
	endpoint := fmt.Sprintf("%sapi/v1/%s/proof/%d", c.args.BaseURL, id, index)
	resp, err := c.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		c.sign(req)
		return req, nil
	})
	if err != nil {
		return merkle.InclusionProof{}, fmt.Errorf("uploadclient: get proof: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return merkle.InclusionProof{}, newAPIError(resp)
	}

	var wire merkle.WireProof
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return merkle.InclusionProof{}, fmt.Errorf("uploadclient: decode proof response: %w", err)
	}
	return merkle.FromWire(wire)
}

// DownloadFile fetches the stored content for index within session id.
func (c *APIClient) DownloadFile(ctx context.Context, id uuid.UUID, index int) ([]byte, error) {
	endpoint := fmt.Sprintf("%sapi/v1/%s/file/%d", c.args.BaseURL, id, index)
	resp, err := c.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		c.sign(req)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("uploadclient: download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp)
	}
	return io.ReadAll(resp.Body)
}

// Kind enumerates the server error discriminants callers branch on, so
// they need not parse HTTP status codes themselves.
type Kind int

const (
	KindUnexpected Kind = iota
	KindNotFound
	KindConflict
	KindUnauthorized
	KindOther
)

// Sentinel errors matching each Kind. APIError.Unwrap returns the one
// matching its own Kind, so errors.Is(err, ErrConflict) works regardless
// of how deeply the *APIError is wrapped.
var (
	ErrNotFound     = errors.New("uploadclient: not found")
	ErrConflict     = errors.New("uploadclient: conflict")
	ErrUnauthorized = errors.New("uploadclient: unauthorized")
	ErrOther        = errors.New("uploadclient: other client error")
	ErrUnexpected   = errors.New("uploadclient: unexpected server error")
)

// APIError wraps a non-2xx response from the upload server, classified
// into a Kind the caller can match against with errors.Is.
type APIError struct {
	StatusCode int
	Body       string
	Kind       Kind
}

func (e *APIError) Error() string {
	return fmt.Sprintf("uploadclient: server responded %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	switch e.Kind {
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	case KindUnauthorized:
		return ErrUnauthorized
	case KindOther:
		return ErrOther
	default:
		return ErrUnexpected
	}
}

func newAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	kind := KindUnexpected
	switch {
	case resp.StatusCode == http.StatusNotFound:
		kind = KindNotFound
	case resp.StatusCode == http.StatusConflict:
		kind = KindConflict
	case resp.StatusCode == http.StatusUnauthorized:
		kind = KindUnauthorized
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		kind = KindOther
	}

	return &APIError{StatusCode: resp.StatusCode, Body: string(body), Kind: kind}
}
