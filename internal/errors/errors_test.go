package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategories(t *testing.T) {
	// Test: constructors mark errors with their category and keep the message
	tests := []struct {
		name     string
		err      error
		sentinel error
		category string
	}{
		{"resolution", Resolutionf("model not found for %s", "X"), ErrResolution, "resolution"},
		{"configuration", Configurationf("unknown group %q", "g"), ErrConfiguration, "configuration"},
		{"rendering", Renderingf("unsupported key"), ErrRendering, "rendering"},
		{"io", WrapIO(stderrors.New("disk full"), "write %s", "a.ts"), ErrIO, "io"},
		{"wrapped configuration", WrapConfiguration(stderrors.New("bad"), "load"), ErrConfiguration, "configuration"},
		{"plain", New("boom"), nil, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.sentinel != nil {
				assert.True(t, Is(tt.err, tt.sentinel))
			}
			assert.Equal(t, tt.category, Category(tt.err))
		})
	}
}

func TestCategories_SurviveWrapping(t *testing.T) {
	// Test: the category is still visible after adding context
	err := Wrap(Resolutionf("model not found for Foo in Order.Items"), "solve")
	assert.True(t, Is(err, ErrResolution))
	assert.Contains(t, err.Error(), "Order.Items")
}

func TestWrapNil(t *testing.T) {
	// Test: wrapping nil yields nil
	assert.NoError(t, WrapIO(nil, "x"))
	assert.NoError(t, WrapConfiguration(nil, "x"))
}
