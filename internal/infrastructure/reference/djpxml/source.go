package djpxml

import (
	"context"
	"fmt"

	"github.com/kirillkom/efaktur-validator/internal/core/domain"
)

// Source implements ports.ReferenceSource on top of a raw XML fetcher.
type Source struct {
	fetcher XMLFetcher
	parser  *Parser
}

func NewSource(fetcher XMLFetcher, parser *Parser) *Source {
	if parser == nil {
		parser = NewParser(nil)
	}
	return &Source{fetcher: fetcher, parser: parser}
}

func (s *Source) Fetch(ctx context.Context, qrURL string) (*domain.ReferenceRecord, error) {
	body, err := s.fetcher.FetchXML(ctx, qrURL)
	if err != nil {
		return nil, fmt.Errorf("fetch djp response: %w", err)
	}
	return s.parser.Parse(body)
}
