package djpxml

import (
	"context"
	_ "embed"
)

//go:embed mock_djp.xml
var mockResponse []byte

// MockResponse returns a copy of the fixed DJP response served by
// StaticFetcher.
func MockResponse() []byte {
	return append([]byte(nil), mockResponse...)
}

// XMLFetcher returns the raw DJP validation response for a QR URL.
type XMLFetcher interface {
	FetchXML(ctx context.Context, qrURL string) ([]byte, error)
}

// StaticFetcher serves one fixed response regardless of the key.
type StaticFetcher struct {
	body []byte
}

// NewStaticFetcher serves body, or the built-in mock response when body is nil.
func NewStaticFetcher(body []byte) *StaticFetcher {
	if body == nil {
		body = mockResponse
	}
	return &StaticFetcher{body: body}
}

func (f *StaticFetcher) FetchXML(ctx context.Context, _ string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]byte(nil), f.body...), nil
}
