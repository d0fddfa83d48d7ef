package backend

import (
	"context"
	"fmt"
)

// MockName is the name of the backend in the default catalog.
const MockName = "mock"

// Mock is an in-process backend for development and tests. It does not
// translate; it appends a "[name;src->tgt]" marker so the route a text
// took is visible in the output.
type Mock struct {
	descriptor Descriptor
}

// NewMock creates a mock backend for the given declaration.
func NewMock(d Descriptor) *Mock {
	return &Mock{descriptor: d}
}

// Descriptor implements Backend.
func (m *Mock) Descriptor() Descriptor {
	return m.descriptor
}

// Translate implements Backend.
func (m *Mock) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkPair(m.descriptor, sourceLang, targetLang); err != nil {
		return "", err
	}
	observeHop(m.descriptor.Name, true, 0)
	return fmt.Sprintf("%s[%s;%s->%s]", text, m.descriptor.Name, sourceLang, targetLang), nil
}
