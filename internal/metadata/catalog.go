package metadata

import (
	"sort"
	"strings"

	"github.com/okra-platform/dtogen/internal/errors"
)

type declKind int

const (
	declModel declKind = iota
	declEnum
	declOpaque
)

// Catalog is an in-memory Provider. Every front end fills one.
type Catalog struct {
	order    []TypeID
	roots    []TypeID
	rootSet  map[TypeID]bool
	kinds    map[TypeID]declKind
	types    map[TypeID]*TypeInfo
	fields   map[TypeID][]FieldDecl
	members  map[TypeID][]EnumMemberDecl
	opaque   map[TypeID]OpaqueRedirect
	handlers []HandlerDecl
}

var _ Provider = (*Catalog)(nil)

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		rootSet: make(map[TypeID]bool),
		kinds:   make(map[TypeID]declKind),
		types:   make(map[TypeID]*TypeInfo),
		fields:  make(map[TypeID][]FieldDecl),
		members: make(map[TypeID][]EnumMemberDecl),
		opaque:  make(map[TypeID]OpaqueRedirect),
	}
}

func (c *Catalog) declare(info TypeInfo, kind declKind) error {
	if info.ID == "" {
		return errors.Configurationf("type %q has no id", info.Name)
	}
	if info.ID.IsBuiltin() {
		return errors.Configurationf("type id %q is reserved", info.ID)
	}
	if _, exists := c.types[info.ID]; exists {
		return errors.Configurationf("type %q declared twice", info.ID)
	}
	if info.Name == "" {
		info.Name = info.ID.ShortName()
	}
	c.types[info.ID] = &info
	c.kinds[info.ID] = kind
	c.order = append(c.order, info.ID)
	return nil
}

// AddModel declares a model with its fields in declaration order.
func (c *Catalog) AddModel(info TypeInfo, fields ...FieldDecl) error {
	if err := c.declare(info, declModel); err != nil {
		return err
	}
	c.fields[info.ID] = fields
	return nil
}

// AddField appends a field to an already declared model.
func (c *Catalog) AddField(id TypeID, field FieldDecl) error {
	if c.kinds[id] != declModel || c.types[id] == nil {
		return errors.Configurationf("cannot add field %s to unknown model %q", field.Name, id)
	}
	c.fields[id] = append(c.fields[id], field)
	return nil
}

// AddEnum declares an enum with its members in declaration order.
func (c *Catalog) AddEnum(info TypeInfo, members ...EnumMemberDecl) error {
	if err := c.declare(info, declEnum); err != nil {
		return err
	}
	c.members[info.ID] = members
	return nil
}

// AddOpaque declares a type rendered as an externally imported name.
func (c *Catalog) AddOpaque(info TypeInfo, redirect OpaqueRedirect) error {
	if err := c.declare(info, declOpaque); err != nil {
		return err
	}
	if redirect.Name == "" {
		redirect.Name = c.types[info.ID].Name
	}
	c.opaque[info.ID] = redirect
	return nil
}

// AddRoot marks a declared model as a root declaration. Roots keep the
// order in which they are added.
func (c *Catalog) AddRoot(id TypeID) error {
	if c.rootSet[id] {
		return errors.Configurationf("root %q added twice", id)
	}
	c.rootSet[id] = true
	c.roots = append(c.roots, id)
	return nil
}

// AddHandler records a handler declaration.
func (c *Catalog) AddHandler(h HandlerDecl) {
	c.handlers = append(c.handlers, h)
}

// Validate checks that every root is a declared model.
func (c *Catalog) Validate() error {
	for _, id := range c.roots {
		if kind, ok := c.kinds[id]; !ok || kind != declModel {
			return errors.Configurationf("root %q is not a declared model", id)
		}
	}
	return nil
}

// Lookup finds the id a front end should use for name as written inside
// namespace ns. It tries the name as an id, then the name qualified by ns
// and each of its parents, then a unique short-name match.
func (c *Catalog) Lookup(name, ns string) (TypeID, bool) {
	if _, ok := c.types[TypeID(name)]; ok {
		return TypeID(name), true
	}
	for scope := ns; scope != ""; scope = parentScope(scope) {
		id := TypeID(scope + "." + name)
		if _, ok := c.types[id]; ok {
			return id, true
		}
	}
	var found []TypeID
	for _, id := range c.order {
		if c.types[id].Name == name {
			found = append(found, id)
		}
	}
	if len(found) == 1 {
		return found[0], true
	}
	return "", false
}

func parentScope(ns string) string {
	if i := strings.LastIndex(ns, "."); i >= 0 {
		return ns[:i]
	}
	return ""
}

// Types returns every declared id in declaration order.
func (c *Catalog) Types() []TypeID {
	return append([]TypeID(nil), c.order...)
}

// Namespaces returns the sorted set of namespaces in use.
func (c *Catalog) Namespaces() []string {
	seen := map[string]bool{}
	for _, info := range c.types {
		seen[info.Namespace] = true
	}
	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) ListRootDeclarations() []TypeID {
	return append([]TypeID(nil), c.roots...)
}

func (c *Catalog) Describe(id TypeID) (*TypeInfo, bool) {
	info, ok := c.types[id]
	return info, ok
}

func (c *Catalog) GetFields(id TypeID) []FieldDecl {
	return c.fields[id]
}

func (c *Catalog) IsEnum(id TypeID) bool {
	kind, ok := c.kinds[id]
	return ok && kind == declEnum
}

// IsModel reports whether id is a declared model.
func (c *Catalog) IsModel(id TypeID) bool {
	kind, ok := c.kinds[id]
	return ok && kind == declModel
}

func (c *Catalog) GetEnumMembers(id TypeID) []EnumMemberDecl {
	return c.members[id]
}

func (c *Catalog) GetOpaqueRedirect(id TypeID) (OpaqueRedirect, bool) {
	r, ok := c.opaque[id]
	return r, ok
}

func (c *Catalog) GetHandlerDeclarations() []HandlerDecl {
	return append([]HandlerDecl(nil), c.handlers...)
}
