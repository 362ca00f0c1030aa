package djpxml

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/kirillkom/efaktur-validator/internal/core/domain"
)

type Parser struct {
	mapping []FieldMapping
}

// NewParser uses DefaultFieldMapping when mapping is empty.
func NewParser(mapping []FieldMapping) *Parser {
	if len(mapping) == 0 {
		mapping = DefaultFieldMapping
	}
	return &Parser{mapping: mapping}
}

// Parse reads a DJP validation response. Elements that are missing or carry
// no text leave their field absent.
func (p *Parser) Parse(data []byte) (*domain.ReferenceRecord, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, domain.WrapError(domain.ErrReferenceParse, "parse djp xml", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, domain.WrapError(domain.ErrReferenceParse, "parse djp xml", errors.New("document has no root element"))
	}

	record := &domain.ReferenceRecord{
		Fields:         domain.NewFields(),
		ApprovalStatus: childText(root, elementApprovalStatus),
		InvoiceStatus:  childText(root, elementInvoiceStatus),
	}
	for _, m := range p.mapping {
		if !domain.IsKnownField(m.Field) {
			return nil, fmt.Errorf("parse djp xml: unknown field %q in mapping", m.Field)
		}
		if v := childText(root, m.Element); v != "" {
			record.Fields.Set(m.Field, v)
		}
	}
	return record, nil
}

func childText(root *etree.Element, tag string) string {
	el := root.SelectElement(tag)
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.Text())
}
