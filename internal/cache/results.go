package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/spherical/order-ocr/internal/domain"
)

// Results caches processed documents by upload content and recognizer
// variant, so offline and live results never mix.
type Results struct {
	client Client
	ttl    time.Duration
}

// NewResults wraps client with document encoding.
func NewResults(client Client, ttl time.Duration) *Results {
	return &Results{client: client, ttl: ttl}
}

// Key derives the cache key for content processed by variant.
func Key(sum []byte, variant domain.RecognizerVariant) string {
	return "result:" + string(variant) + ":" + hex.EncodeToString(sum)
}

// KeyForContent hashes data and derives its key.
func KeyForContent(data []byte, variant domain.RecognizerVariant) string {
	sum := sha256.Sum256(data)
	return Key(sum[:], variant)
}

// Get returns the cached document, or ErrCacheMiss.
func (r *Results) Get(ctx context.Context, key string) (*domain.ProcessedDocument, error) {
	data, err := r.client.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	tree, err := domain.UnmarshalTreeJSON(data)
	if err != nil {
		return nil, errors.Join(ErrCacheMiss, err)
	}
	return domain.FromTree(tree), nil
}

// Put stores doc under key.
func (r *Results) Put(ctx context.Context, key string, doc *domain.ProcessedDocument) error {
	data, err := doc.MarshalIndentJSON()
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, r.ttl)
}
