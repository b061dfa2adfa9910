package typegraph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/okra-platform/dtogen/internal/metadata"
)

func named(id string, args ...metadata.TypeRef) metadata.TypeRef {
	return metadata.Named(metadata.TypeID(id), args...)
}

func fld(name string, ref metadata.TypeRef, ann ...metadata.Annotations) metadata.FieldDecl {
	f := metadata.FieldDecl{Name: name, Type: ref}
	if len(ann) > 0 {
		f.Annotations = ann[0]
	}
	return f
}

func ann(pairs ...any) metadata.Annotations {
	a := metadata.Annotations{}
	for i := 0; i+1 < len(pairs); i += 2 {
		a[pairs[i].(metadata.AnnotationKind)] = pairs[i+1]
	}
	return a
}

func addModel(t *testing.T, c *metadata.Catalog, id, ns string, root bool, fields ...metadata.FieldDecl) {
	t.Helper()
	addModelInfo(t, c, metadata.TypeInfo{ID: metadata.TypeID(id), Namespace: ns}, root, fields...)
}

func addModelInfo(t *testing.T, c *metadata.Catalog, info metadata.TypeInfo, root bool, fields ...metadata.FieldDecl) {
	t.Helper()
	require.NoError(t, c.AddModel(info, fields...))
	if root {
		require.NoError(t, c.AddRoot(info.ID))
	}
}
