package typegraph

import (
	"sort"
	"strings"

	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/metadata"
)

// Graph is the solved, read-only type graph. It holds no LazyRef nodes and
// is safe to share between concurrent renderers.
type Graph struct {
	Groups []*DtoGroup
	// Enums are sorted by display name.
	Enums []*EnumSpec

	models map[metadata.TypeID]*ModelSpec
	byName map[string]*DtoGroup
}

func newGraph(groups []*DtoGroup, enums []*EnumSpec, models map[metadata.TypeID]*ModelSpec) (*Graph, error) {
	g := &Graph{
		Groups: groups,
		models: models,
		byName: make(map[string]*DtoGroup, len(groups)),
	}

	names := make(map[string]*ModelSpec)
	for _, group := range groups {
		g.byName[strings.ToLower(group.Name.String())] = group
		for _, m := range group.Models {
			key := strings.ToLower(m.DisplayName)
			if other, dup := names[key]; dup {
				return nil, errors.Configurationf("models %q and %q are both registered as %s", other.ID, m.ID, m.DisplayName)
			}
			names[key] = m
			for _, f := range m.Fields {
				f.Type = finalize(f.Type)
			}
		}
	}

	enumNames := make(map[string]*EnumSpec)
	for _, e := range enums {
		key := strings.ToLower(e.DisplayName)
		if other, dup := enumNames[key]; dup {
			return nil, errors.Configurationf("enums %q and %q are both registered as %s", other.ID, e.ID, e.DisplayName)
		}
		enumNames[key] = e
	}
	g.Enums = append([]*EnumSpec(nil), enums...)
	sort.SliceStable(g.Enums, func(i, j int) bool {
		return g.Enums[i].DisplayName < g.Enums[j].DisplayName
	})
	return g, nil
}

// finalize swaps every LazyRef for the ModelRef it resolved to. Refs that
// were never resolved belong to ignored fields and become opaque objects.
func finalize(n Node) Node {
	return replace(n, func(n Node) Node {
		if lazy, ok := n.(*LazyRef); ok {
			if lazy.Target != nil {
				return &ModelRef{Model: lazy.Target}
			}
			return &Primitive{Type: Object}
		}
		return n
	})
}

// Model returns the model registered for id.
func (g *Graph) Model(id metadata.TypeID) (*ModelSpec, bool) {
	m, ok := g.models[id]
	return m, ok
}

// Group finds a group by root name, ignoring case.
func (g *Graph) Group(name string) (*DtoGroup, bool) {
	group, ok := g.byName[strings.ToLower(name)]
	return group, ok
}

// Models returns every model, group by group in discovery order.
func (g *Graph) Models() []*ModelSpec {
	var out []*ModelSpec
	for _, group := range g.Groups {
		out = append(out, group.Models...)
	}
	return out
}

// References returns the models of other groups and the enums that the
// rendered fields of group reach, each in first-use order.
func (g *Graph) References(group *DtoGroup) (models []*ModelSpec, enums []*EnumSpec, opaque []*OpaqueRef) {
	seenModels := map[*ModelSpec]bool{}
	seenEnums := map[*EnumSpec]bool{}
	seenOpaque := map[string]bool{}
	for _, m := range group.Models {
		for _, f := range m.RenderedFields() {
			Walk(f.Type, func(n Node) bool {
				switch x := n.(type) {
				case *ModelRef:
					if x.Model.Group != group && !seenModels[x.Model] {
						seenModels[x.Model] = true
						models = append(models, x.Model)
					}
				case *EnumRef:
					if !seenEnums[x.Enum] {
						seenEnums[x.Enum] = true
						enums = append(enums, x.Enum)
					}
				case *OpaqueRef:
					key := x.ImportFrom + "\x00" + x.Name
					if !seenOpaque[key] {
						seenOpaque[key] = true
						opaque = append(opaque, x)
					}
				}
				return true
			})
		}
	}
	return models, enums, opaque
}
