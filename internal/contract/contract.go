// Package contract derives request/response contracts from handler
// declarations.
package contract

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/metadata"
	"github.com/okra-platform/dtogen/internal/naming"
	"github.com/okra-platform/dtogen/internal/typegraph"
)

// DefaultRouteTemplate is used when a handler declares no route.
const DefaultRouteTemplate = "[area]/[controller]/[action]"

// HandlerSpec is a handler reduced to one query model and one response
// model.
type HandlerSpec struct {
	Name       naming.Name
	Controller naming.Name
	Action     naming.Name
	Area       string
	Verb       metadata.Verb
	Route      string
	Query      *typegraph.ModelSpec
	Response   *typegraph.ModelSpec
	// Group is the hinted group, or the group of the response model. It
	// decides which targets receive the handler.
	Group      *typegraph.DtoGroup
	Form       bool
	Deprecated bool
}

// ID names the handler as "Controller.Action" for diagnostics.
func (h *HandlerSpec) ID() string {
	return h.Controller.Capital() + "." + h.Action.Capital()
}

// Extract matches every handler declaration against the solved graph.
// Handlers come back sorted by name.
func Extract(ctx context.Context, g *typegraph.Graph, decls []metadata.HandlerDecl) ([]*HandlerSpec, error) {
	log := zerolog.Ctx(ctx).With().Str("component", "contract").Logger()
	seen := make(map[string]*HandlerSpec, len(decls))
	out := make([]*HandlerSpec, 0, len(decls))

	for _, decl := range decls {
		h, err := extractOne(g, decl)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(h.Name.Capital())
		if other, dup := seen[key]; dup {
			return nil, errors.Configurationf("handlers %s and %s both map to contract method %s", other.ID(), h.ID(), h.Name.Camel())
		}
		seen[key] = h
		out = append(out, h)
		log.Debug().Str("handler", h.ID()).Str("verb", h.Verb.String()).Str("route", h.Route).Msg("handler extracted")
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name.Capital() < out[j].Name.Capital()
	})
	return out, nil
}

func extractOne(g *typegraph.Graph, decl metadata.HandlerDecl) (*HandlerSpec, error) {
	controller := naming.Parse(decl.Controller)
	if trimmed, ok := controller.RemoveSuffix("Controller"); ok {
		controller = trimmed
	}
	action := naming.Parse(decl.Action)
	id := controller.Capital() + "." + action.Capital()

	if len(decl.Params) != 1 {
		return nil, errors.Resolutionf("handler %s must declare exactly one parameter, found %d", id, len(decl.Params))
	}

	query, err := matchModel(g, decl.Params[0], id, "parameter")
	if err != nil {
		return nil, err
	}
	response, err := matchModel(g, Unwrap(decl.Returns), id, "return type")
	if err != nil {
		return nil, err
	}

	group := response.Group
	if decl.GroupHint != "" {
		hinted, ok := g.Group(decl.GroupHint)
		if !ok {
			return nil, errors.Configurationf("handler %s names unknown group %q", id, decl.GroupHint)
		}
		group = hinted
	}

	template := decl.RouteTemplate
	if template == "" {
		template = DefaultRouteTemplate
	}

	return &HandlerSpec{
		Name:       controller.Append(action),
		Controller: controller,
		Action:     action,
		Area:       decl.Area,
		Verb:       decl.Verb,
		Route:      Substitute(template, decl.Area, controller.String(), action.String()),
		Query:      query,
		Response:   response,
		Group:      group,
		Form:       decl.Form,
		Deprecated: decl.Deprecated,
	}, nil
}

// Unwrap strips asynchronous and result wrappers from a return type.
func Unwrap(ref metadata.TypeRef) metadata.TypeRef {
	for ref.Kind == metadata.RefNamed &&
		(ref.ID == metadata.BuiltinTask || ref.ID == metadata.BuiltinResult || ref.ID == metadata.BuiltinNullable) &&
		len(ref.Args) == 1 {
		ref = ref.Args[0]
	}
	return ref
}

func matchModel(g *typegraph.Graph, ref metadata.TypeRef, handler, role string) (*typegraph.ModelSpec, error) {
	if ref.Kind != metadata.RefNamed || len(ref.Args) > 0 {
		return nil, errors.Resolutionf("handler %s %s %s is not a model", handler, role, ref)
	}
	m, ok := g.Model(ref.ID)
	if !ok {
		return nil, errors.Resolutionf("handler %s %s %s matches no known model", handler, role, ref)
	}
	return m, nil
}

// Substitute fills the [area], [controller] and [action] placeholders of a
// route template. Empty segments collapse, so a missing area leaves no
// double slash.
func Substitute(template, area, controller, action string) string {
	out := template
	out = replaceFold(out, "[area]", area)
	out = replaceFold(out, "[controller]", controller)
	out = replaceFold(out, "[action]", action)

	segments := strings.Split(out, "/")
	kept := segments[:0]
	for _, s := range segments {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "/")
}

// replaceFold replaces every case-insensitive occurrence of token. Matching
// walks s itself, so case mappings that change byte length cannot shift it.
func replaceFold(s, token, value string) string {
	var sb strings.Builder
	for i := 0; i < len(s); {
		if j := i + len(token); j <= len(s) && strings.EqualFold(s[i:j], token) {
			sb.WriteString(value)
			i = j
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		sb.WriteString(s[i : i+size])
		i += size
	}
	return sb.String()
}

// ForGroups returns the handlers whose group is in groups, keeping order.
func ForGroups(handlers []*HandlerSpec, groups []*typegraph.DtoGroup) []*HandlerSpec {
	in := make(map[*typegraph.DtoGroup]bool, len(groups))
	for _, g := range groups {
		in[g] = true
	}
	var out []*HandlerSpec
	for _, h := range handlers {
		if in[h.Group] {
			out = append(out, h)
		}
	}
	return out
}
