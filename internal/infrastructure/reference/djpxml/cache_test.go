package djpxml

import (
	"context"
	"errors"
	"testing"
)

type responseCacheFake struct {
	entries map[string][]byte
	getErr  error
	putErr  error
	puts    int
}

func (c *responseCacheFake) Get(_ context.Context, key string) ([]byte, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	body, ok := c.entries[key]
	return body, ok, nil
}

func (c *responseCacheFake) Put(_ context.Context, key string, body []byte) error {
	c.puts++
	if c.putErr != nil {
		return c.putErr
	}
	if c.entries == nil {
		c.entries = map[string][]byte{}
	}
	c.entries[key] = body
	return nil
}

type countingFetcher struct {
	body  []byte
	err   error
	calls int
}

func (f *countingFetcher) FetchXML(context.Context, string) ([]byte, error) {
	f.calls++
	return f.body, f.err
}

func TestCachedFetcherReadsThrough(t *testing.T) {
	next := &countingFetcher{body: MockResponse()}
	cache := &responseCacheFake{}
	fetcher := NewCachedFetcher(next, cache, nil)
	key := "http://efaktur.pajak.go.id/a"

	for i := 0; i < 3; i++ {
		if _, err := fetcher.FetchXML(context.Background(), key); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if next.calls != 1 || cache.puts != 1 {
		t.Fatalf("expected one upstream call and one write, got %d/%d", next.calls, cache.puts)
	}
}

func TestCachedFetcherSkipsEmptyKeyAndBrokenBodies(t *testing.T) {
	next := &countingFetcher{body: []byte("<oops")}
	cache := &responseCacheFake{}
	fetcher := NewCachedFetcher(next, cache, nil)

	if _, err := fetcher.FetchXML(context.Background(), ""); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, err := fetcher.FetchXML(context.Background(), "http://efaktur.pajak.go.id/b"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if cache.puts != 0 {
		t.Fatalf("nothing should be cached, got %d writes", cache.puts)
	}
}

func TestCachedFetcherToleratesCacheFailures(t *testing.T) {
	next := &countingFetcher{body: MockResponse()}
	cache := &responseCacheFake{getErr: errors.New("db down"), putErr: errors.New("db down")}
	fetcher := NewCachedFetcher(next, cache, nil)

	body, err := fetcher.FetchXML(context.Background(), "http://efaktur.pajak.go.id/c")
	if err != nil || len(body) == 0 {
		t.Fatalf("expected upstream body despite cache errors, got %v", err)
	}
}

func TestCachedFetcherPropagatesUpstreamErrors(t *testing.T) {
	upstream := errors.New("djp down")
	fetcher := NewCachedFetcher(&countingFetcher{err: upstream}, &responseCacheFake{}, nil)

	if _, err := fetcher.FetchXML(context.Background(), "http://efaktur.pajak.go.id/d"); !errors.Is(err, upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
