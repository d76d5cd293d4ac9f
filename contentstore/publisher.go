// Package contentstore publishes proposal bodies to content-addressed
// storage and returns the reference embedded in the on-chain description.
package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Scheme is the URI scheme prefixed to content references in on-chain
// descriptions.
const Scheme = "ipfs"

// Ref formats a content reference as it appears on-chain.
func Ref(contentRef string) string {
	return fmt.Sprintf("%s://%s", Scheme, contentRef)
}

// Publisher stores a JSON document and returns its content-addressed
// reference.
type Publisher interface {
	Publish(ctx context.Context, doc any) (string, error)
}

// HTTPPublisher publishes documents through an IPFS-compatible HTTP API
// (POST /api/v0/add).
type HTTPPublisher struct {
	apiURL string
	client *http.Client
	logger zerolog.Logger
}

// NewHTTPPublisher creates a publisher against the given API endpoint.
func NewHTTPPublisher(apiURL string, timeout time.Duration, logger zerolog.Logger) *HTTPPublisher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPPublisher{
		apiURL: apiURL,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "content_publisher").Logger(),
	}
}

// Publish implements Publisher.
func (p *HTTPPublisher) Publish(ctx context.Context, doc any) (string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode document")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "proposal.json")
	if err != nil {
		return "", errors.Wrap(err, "failed to build upload form")
	}
	if _, err := part.Write(payload); err != nil {
		return "", errors.Wrap(err, "failed to write upload form")
	}
	if err := writer.Close(); err != nil {
		return "", errors.Wrap(err, "failed to finalize upload form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/api/v0/add?pin=true", &body)
	if err != nil {
		return "", errors.Wrap(err, "failed to build publish request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "content store unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read publish response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("content store returned status %d: %s", resp.StatusCode, string(raw))
	}

	var result struct {
		Hash string `json:"Hash"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", errors.Wrap(err, "failed to decode publish response")
	}
	if result.Hash == "" {
		return "", errors.New("content store returned empty reference")
	}

	p.logger.Debug().Str("ref", result.Hash).Msg("published proposal body")
	return result.Hash, nil
}

// MemoryPublisher keeps documents in memory and derives references from the
// keccak-256 of the encoded document. Used in tests and local development.
type MemoryPublisher struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryPublisher creates an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{docs: make(map[string][]byte)}
}

// Publish implements Publisher.
func (p *MemoryPublisher) Publish(_ context.Context, doc any) (string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode document")
	}
	ref := hexutil.Encode(crypto.Keccak256(payload))[2:]

	p.mu.Lock()
	p.docs[ref] = payload
	p.mu.Unlock()
	return ref, nil
}

// Get returns a previously published document.
func (p *MemoryPublisher) Get(ref string) ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	doc, ok := p.docs[ref]
	return doc, ok
}
