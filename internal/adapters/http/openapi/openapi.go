// Package openapi serves the HTTP API description.
package openapi

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var rawDocument []byte

var load = sync.OnceValues(func() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawDocument)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return doc, nil
})

// Document returns the parsed and validated API description.
func Document() (*openapi3.T, error) {
	return load()
}

// JSON renders the document for the /openapi.json endpoint.
func JSON() ([]byte, error) {
	doc, err := load()
	if err != nil {
		return nil, err
	}
	return doc.MarshalJSON()
}
