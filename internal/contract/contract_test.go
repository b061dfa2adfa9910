package contract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/metadata"
	"github.com/okra-platform/dtogen/internal/typegraph"
)

func billingGraph(t *testing.T) *typegraph.Graph {
	t.Helper()
	c := metadata.NewCatalog()
	for _, id := range []metadata.TypeID{"Billing.InvoiceQuery", "Billing.Invoice"} {
		require.NoError(t, c.AddModel(metadata.TypeInfo{ID: id, Namespace: "Billing"},
			metadata.FieldDecl{Name: "Id", Type: metadata.Named(metadata.BuiltinGUID)}))
		require.NoError(t, c.AddRoot(id))
	}
	g, err := typegraph.Build(context.Background(), c, typegraph.Options{})
	require.NoError(t, err)
	return g
}

func TestSubstitute(t *testing.T) {
	// Test: route placeholders are replaced with no residual tokens or empty segments
	tests := []struct {
		name     string
		template string
		area     string
		want     string
	}{
		{"full template", "[area]/[controller]/[action]", "Billing", "Billing/Invoice/Get"},
		{"missing area", "[area]/[controller]/[action]", "", "Invoice/Get"},
		{"prefix and case-insensitive tokens", "/api/[Controller]/[ACTION]/", "", "api/Invoice/Get"},
		{"literal route", "invoices/current", "Billing", "invoices/current"},
		{"length-changing case mapping", "İ[action]", "", "İGet"},
		{"token at the end after multi-byte text", "ß/ẞ/[AcTiOn]", "", "ß/ẞ/Get"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Substitute(tt.template, tt.area, "Invoice", "Get")
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "[")
			assert.NotContains(t, got, "//")
		})
	}
}

func TestExtract(t *testing.T) {
	// Test: wrappers are unwrapped and the handler is matched to query and response models
	g := billingGraph(t)
	decls := []metadata.HandlerDecl{
		{
			Controller: "InvoiceController",
			Action:     "Get",
			Area:       "Billing",
			Params:     []metadata.TypeRef{metadata.Named("Billing.InvoiceQuery")},
			Returns: metadata.Named(metadata.BuiltinTask,
				metadata.Named(metadata.BuiltinResult, metadata.Named("Billing.Invoice"))),
		},
		{
			Controller:    "Invoice",
			Action:        "Archive",
			Verb:          metadata.VerbPost,
			RouteTemplate: "[controller]/[action]",
			Params:        []metadata.TypeRef{metadata.Named("Billing.InvoiceQuery")},
			Returns:       metadata.Named("Billing.Invoice"),
		},
	}

	handlers, err := Extract(context.Background(), g, decls)
	require.NoError(t, err)
	require.Len(t, handlers, 2)

	archive, get := handlers[0], handlers[1]
	assert.Equal(t, "invoiceArchive", archive.Name.Camel())
	assert.Equal(t, metadata.VerbPost, archive.Verb)
	assert.Equal(t, "Invoice/Archive", archive.Route)

	assert.Equal(t, "invoiceGet", get.Name.Camel())
	assert.Equal(t, "Invoice.Get", get.ID())
	assert.Equal(t, metadata.VerbGet, get.Verb)
	assert.Equal(t, "Billing/Invoice/Get", get.Route)
	assert.Equal(t, "InvoiceQuery", get.Query.DisplayName)
	assert.Equal(t, "Invoice", get.Response.DisplayName)
	assert.Same(t, get.Response.Group, get.Group)
}

func TestExtract_RouteKeepsDeclaredSpelling(t *testing.T) {
	// Test: acronyms in controller and action names survive route substitution
	g := billingGraph(t)
	handlers, err := Extract(context.Background(), g, []metadata.HandlerDecl{{
		Controller: "HRReportsController",
		Action:     "GetPDF",
		Area:       "Billing",
		Params:     []metadata.TypeRef{metadata.Named("Billing.InvoiceQuery")},
		Returns:    metadata.Named("Billing.Invoice"),
	}})
	require.NoError(t, err)
	require.Len(t, handlers, 1)
	assert.Equal(t, "Billing/HRReports/GetPDF", handlers[0].Route)
	assert.Equal(t, "hrReportsGetPdf", handlers[0].Name.Camel())
}

func TestExtract_Errors(t *testing.T) {
	// Test: malformed handlers abort with the handler named
	query := metadata.Named("Billing.InvoiceQuery")
	invoice := metadata.Named("Billing.Invoice")

	tests := []struct {
		name     string
		decl     metadata.HandlerDecl
		sentinel error
		message  string
	}{
		{
			name:     "two parameters",
			decl:     metadata.HandlerDecl{Controller: "Invoice", Action: "Get", Params: []metadata.TypeRef{query, query}, Returns: invoice},
			sentinel: errors.ErrResolution,
			message:  "handler Invoice.Get must declare exactly one parameter, found 2",
		},
		{
			name:     "no parameters",
			decl:     metadata.HandlerDecl{Controller: "Invoice", Action: "List", Returns: invoice},
			sentinel: errors.ErrResolution,
			message:  "Invoice.List",
		},
		{
			name:     "unknown response",
			decl:     metadata.HandlerDecl{Controller: "Invoice", Action: "Get", Params: []metadata.TypeRef{query}, Returns: metadata.Named("Billing.Receipt")},
			sentinel: errors.ErrResolution,
			message:  "matches no known model",
		},
		{
			name:     "primitive parameter",
			decl:     metadata.HandlerDecl{Controller: "Invoice", Action: "Get", Params: []metadata.TypeRef{metadata.ListOf(query)}, Returns: invoice},
			sentinel: errors.ErrResolution,
			message:  "is not a model",
		},
		{
			name:     "unknown group hint",
			decl:     metadata.HandlerDecl{Controller: "Invoice", Action: "Get", Params: []metadata.TypeRef{query}, Returns: invoice, GroupHint: "Nowhere"},
			sentinel: errors.ErrConfiguration,
			message:  "Nowhere",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(context.Background(), billingGraph(t), []metadata.HandlerDecl{tt.decl})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestExtract_DuplicateNames(t *testing.T) {
	// Test: two handlers with the same contract method name are rejected
	decl := metadata.HandlerDecl{
		Controller: "Invoice",
		Action:     "Get",
		Params:     []metadata.TypeRef{metadata.Named("Billing.InvoiceQuery")},
		Returns:    metadata.Named("Billing.Invoice"),
	}
	other := decl
	other.Controller = "InvoiceController"

	_, err := Extract(context.Background(), billingGraph(t), []metadata.HandlerDecl{decl, other})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
