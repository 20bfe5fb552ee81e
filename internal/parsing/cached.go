package parsing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jonathan/resume-tailor/internal/types"
)

// CachedParser memoizes parse results. Entries are keyed by document name
// and a content digest, so a blob overwritten under the same key is reparsed.
// Cached documents are shared and must be treated as read-only.
type CachedParser struct {
	next  Parser
	cache *cache.Cache
}

// NewCachedParser wraps next with a cache whose entries expire after ttl
func NewCachedParser(next Parser, ttl time.Duration) *CachedParser {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedParser{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Parse returns the cached document for name and data, parsing on a miss
func (p *CachedParser) Parse(ctx context.Context, name string, data []byte) (*types.ParsedDocument, error) {
	key := cacheKey(name, data)
	if v, ok := p.cache.Get(key); ok {
		return v.(*types.ParsedDocument), nil
	}

	doc, err := p.next.Parse(ctx, name, data)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, doc, cache.DefaultExpiration)
	return doc, nil
}

// Len returns the number of live cache entries
func (p *CachedParser) Len() int {
	return p.cache.ItemCount()
}

func cacheKey(name string, data []byte) string {
	sum := sha256.Sum256(data)
	return name + "#" + hex.EncodeToString(sum[:8])
}
