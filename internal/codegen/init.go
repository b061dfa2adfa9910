package codegen

import (
	"github.com/okra-platform/dtogen/internal/codegen/golang"
	"github.com/okra-platform/dtogen/internal/codegen/protobuf"
	"github.com/okra-platform/dtogen/internal/codegen/python"
	"github.com/okra-platform/dtogen/internal/codegen/typescript"
)

// DefaultRegistry is the global registry instance with pre-registered generators
var DefaultRegistry = NewRegistry()

var (
	_ Generator = (*typescript.Generator)(nil)
	_ Generator = (*python.Generator)(nil)
	_ Generator = (*golang.Generator)(nil)
	_ Generator = (*protobuf.Generator)(nil)
)

func init() {
	DefaultRegistry.Register("typescript", func(opts Options) Generator {
		return typescript.NewGenerator(opts)
	}, "ts")

	DefaultRegistry.Register("python", func(opts Options) Generator {
		return python.NewGenerator(opts)
	}, "py")

	DefaultRegistry.Register("go", func(opts Options) Generator {
		return golang.NewGenerator(opts)
	}, "golang")

	DefaultRegistry.Register("proto", func(opts Options) Generator {
		return protobuf.NewGenerator(opts)
	}, "protobuf")
}
