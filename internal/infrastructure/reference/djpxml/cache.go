package djpxml

import (
	"context"
	"log/slog"
	"strings"
)

// ResponseCache stores raw DJP responses by QR URL.
type ResponseCache interface {
	Get(ctx context.Context, qrURL string) ([]byte, bool, error)
	Put(ctx context.Context, qrURL string, body []byte) error
}

// CachedFetcher is a read-through cache in front of another fetcher. Cache
// failures are logged and never fail the lookup.
type CachedFetcher struct {
	next   XMLFetcher
	cache  ResponseCache
	parser *Parser
	logger *slog.Logger
}

func NewCachedFetcher(next XMLFetcher, cache ResponseCache, logger *slog.Logger) *CachedFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedFetcher{next: next, cache: cache, parser: NewParser(nil), logger: logger}
}

func (f *CachedFetcher) FetchXML(ctx context.Context, qrURL string) ([]byte, error) {
	key := strings.TrimSpace(qrURL)
	if key == "" {
		return f.next.FetchXML(ctx, qrURL)
	}

	body, ok, err := f.cache.Get(ctx, key)
	switch {
	case err != nil:
		f.logger.WarnContext(ctx, "djp cache read failed", "error", err)
	case ok:
		return body, nil
	}

	body, err = f.next.FetchXML(ctx, qrURL)
	if err != nil {
		return nil, err
	}
	// Only well-formed responses are worth keeping.
	if _, parseErr := f.parser.Parse(body); parseErr == nil {
		if err := f.cache.Put(ctx, key, body); err != nil {
			f.logger.WarnContext(ctx, "djp cache write failed", "error", err)
		}
	}
	return body, nil
}
