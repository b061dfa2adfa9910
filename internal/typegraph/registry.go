package typegraph

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/metadata"
	"github.com/okra-platform/dtogen/internal/naming"
)

// DefaultMaxIdentifierLength is the longest generated display name accepted
// without an explicit override.
const DefaultMaxIdentifierLength = 63

// Options tunes the registry.
type Options struct {
	// MaxIdentifierLength bounds generated display names. Zero disables the
	// check.
	MaxIdentifierLength int
}

// Registry creates models on first use and drains the LazyRef worklist.
type Registry struct {
	provider metadata.Provider
	resolver *Resolver
	opts     Options

	models       map[metadata.TypeID]*ModelSpec
	enums        map[metadata.TypeID]*EnumSpec
	enumOrder    []*EnumSpec
	groups       []*DtoGroup
	groupsByRoot map[metadata.TypeID]*DtoGroup
	groupsByName map[string]*DtoGroup

	queue  []*LazyRef
	solved bool
}

// NewRegistry creates a registry over provider.
func NewRegistry(provider metadata.Provider, opts Options) *Registry {
	r := &Registry{
		provider:     provider,
		opts:         opts,
		models:       make(map[metadata.TypeID]*ModelSpec),
		enums:        make(map[metadata.TypeID]*EnumSpec),
		groupsByRoot: make(map[metadata.TypeID]*DtoGroup),
		groupsByName: make(map[string]*DtoGroup),
	}
	r.resolver = &Resolver{
		provider: provider,
		enqueue:  func(l *LazyRef) { r.queue = append(r.queue, l) },
		enum:     r.Enum,
	}
	return r
}

// Resolver exposes the resolver bound to this registry.
func (r *Registry) Resolver() *Resolver {
	return r.resolver
}

// Pending returns the number of queued LazyRefs.
func (r *Registry) Pending() int {
	return len(r.queue)
}

func logger(ctx context.Context, component string) *zerolog.Logger {
	l := zerolog.Ctx(ctx).With().Str("component", component).Logger()
	return &l
}

// AddRoots creates one group per top-level root declaration, in declaration
// order, then creates every root model. Nested roots (declared inside
// another root) join the enclosing root's group.
func (r *Registry) AddRoots(ctx context.Context) error {
	log := logger(ctx, "registry")
	roots := r.provider.ListRootDeclarations()
	infos := make(map[metadata.TypeID]*metadata.TypeInfo, len(roots))
	rootSet := make(map[metadata.TypeID]bool, len(roots))
	for _, id := range roots {
		info, ok := r.provider.Describe(id)
		if !ok {
			return errors.Configurationf("root declaration %q is not known to the metadata provider", id)
		}
		infos[id] = info
		rootSet[id] = true
	}

	var nested []metadata.TypeID
	paths := make(map[string]metadata.TypeID)
	for _, id := range roots {
		info := infos[id]
		if r.enclosingRoot(info, rootSet) != "" {
			nested = append(nested, id)
			continue
		}
		group := &DtoGroup{
			ID:        id,
			Name:      naming.Parse(info.Name),
			Namespace: naming.ParseNamespace(info.Namespace),
			Project:   info.Annotations.String(metadata.AnnProject),
		}
		if other, dup := paths[group.Path()]; dup {
			return errors.Configurationf("roots %q and %q both render to %s", other, id, group.Path())
		}
		paths[group.Path()] = id
		r.groups = append(r.groups, group)
		r.groupsByRoot[id] = group
		r.groupsByName[strings.ToLower(info.Name)] = group
		if _, dup := r.groupsByName[strings.ToLower(string(id))]; !dup {
			r.groupsByName[strings.ToLower(string(id))] = group
		}
	}

	for _, id := range roots {
		group, ok := r.groupsByRoot[id]
		if !ok || infos[id].Container {
			continue
		}
		if _, err := r.GetOrCreate(ctx, id, group); err != nil {
			return err
		}
	}
	for _, id := range nested {
		if infos[id].Container {
			return errors.Configurationf("container declaration %q cannot be nested inside another root", id)
		}
		if _, err := r.GetOrCreate(ctx, id, nil); err != nil {
			return err
		}
	}

	log.Debug().Int("groups", len(r.groups)).Int("pending", len(r.queue)).Msg("roots registered")
	return nil
}

// enclosingRoot walks the declaring-parent chain of info and returns the
// nearest root declaration above it.
func (r *Registry) enclosingRoot(info *metadata.TypeInfo, roots map[metadata.TypeID]bool) metadata.TypeID {
	seen := map[metadata.TypeID]bool{info.ID: true}
	for parent := info.Parent; parent != "" && !seen[parent]; {
		if roots[parent] {
			return parent
		}
		seen[parent] = true
		p, ok := r.provider.Describe(parent)
		if !ok {
			return ""
		}
		parent = p.Parent
	}
	return ""
}

// declaringGroup returns the group of the nearest root declaration that
// encloses info, if any.
func (r *Registry) declaringGroup(info *metadata.TypeInfo) *DtoGroup {
	seen := map[metadata.TypeID]bool{info.ID: true}
	for parent := info.Parent; parent != "" && !seen[parent]; {
		if g, ok := r.groupsByRoot[parent]; ok {
			return g
		}
		seen[parent] = true
		p, ok := r.provider.Describe(parent)
		if !ok {
			return nil
		}
		parent = p.Parent
	}
	return nil
}

// GroupByName finds a group by root name or root id, ignoring case.
func (r *Registry) GroupByName(name string) (*DtoGroup, bool) {
	g, ok := r.groupsByName[strings.ToLower(name)]
	return g, ok
}

func (r *Registry) ownerFor(info *metadata.TypeInfo, discovering *DtoGroup) (*DtoGroup, error) {
	explicit := info.Annotations.String(metadata.AnnGroup)
	own, isRoot := r.groupsByRoot[info.ID]
	declared := r.declaringGroup(info)

	if explicit != "" {
		target, ok := r.GroupByName(explicit)
		if !ok {
			return nil, errors.Configurationf("model %q names unknown group %q", info.ID, explicit)
		}
		if isRoot && target != own {
			return nil, errors.Configurationf("model %q is the root of group %s and cannot also be registered under group %s",
				info.ID, own.Name, target.Name)
		}
		return target, nil
	}
	switch {
	case isRoot:
		return own, nil
	case declared != nil:
		return declared, nil
	case discovering != nil:
		return discovering, nil
	}
	return nil, errors.Configurationf("model %q has no owning group", info.ID)
}

// GetOrCreate returns the model for id, creating it on first use. Creation
// assigns the owning group, registers the model before its fields are
// populated so that cycles terminate, and queues a LazyRef for every model
// its fields reference.
func (r *Registry) GetOrCreate(ctx context.Context, id metadata.TypeID, discovering *DtoGroup) (*ModelSpec, error) {
	if m, ok := r.models[id]; ok {
		return m, nil
	}
	info, ok := r.provider.Describe(id)
	if !ok {
		return nil, errors.Resolutionf("model %q is not known to the metadata provider", id)
	}
	if r.provider.IsEnum(id) {
		return nil, errors.Resolutionf("%q is an enum, not a model", id)
	}
	if _, opaque := r.provider.GetOpaqueRedirect(id); opaque {
		return nil, errors.Resolutionf("%q is an opaque type, not a model", id)
	}
	if info.Container {
		return nil, errors.Resolutionf("%q only groups declarations and cannot be used as a type", id)
	}
	if len(info.GenericParams) > 1 {
		return nil, errors.Resolutionf("model %q declares %d generic parameters; at most one is supported", id, len(info.GenericParams))
	}

	group, err := r.ownerFor(info, discovering)
	if err != nil {
		return nil, err
	}

	model := &ModelSpec{
		ID:           id,
		Name:         naming.Parse(info.Name),
		Group:        group,
		Override:     info.Annotations.String(metadata.AnnName),
		Doc:          info.Doc,
		Deprecated:   info.Annotations.Bool(metadata.AnnDeprecated),
		NullableBool: info.Annotations.Bool(metadata.AnnNullableBool),
	}
	if len(info.GenericParams) == 1 {
		model.GenericParam = info.GenericParams[0]
	}
	model.DisplayName = r.displayName(model, group)
	if max := r.opts.MaxIdentifierLength; max > 0 && model.Override == "" && len(model.DisplayName) > max {
		return nil, errors.WithHintf(
			errors.Resolutionf("display name %q of model %q exceeds %d characters", model.DisplayName, id, max),
			"supply a display-name override for %s", id)
	}

	r.models[id] = model
	group.Models = append(group.Models, model)
	if group.ID == id {
		group.Root = model
	}
	logger(ctx, "registry").Debug().
		Str("model", model.DisplayName).
		Str("group", group.Name.String()).
		Msg("model registered")

	for _, decl := range r.provider.GetFields(id) {
		field, err := r.newField(ctx, model, decl)
		if err != nil {
			return nil, err
		}
		model.Fields = append(model.Fields, field)
	}
	return model, nil
}

func (r *Registry) displayName(model *ModelSpec, group *DtoGroup) string {
	if model.Override != "" {
		return model.Override
	}
	if group.ID == model.ID {
		return group.Name.String()
	}
	return group.Name.String() + "_" + model.Name.String()
}

func (r *Registry) newField(ctx context.Context, model *ModelSpec, decl metadata.FieldDecl) (*FieldSpec, error) {
	ann := decl.Annotations
	name := naming.Parse(decl.Name)
	opts := FieldOptions{
		Key:        ann.Bool(metadata.AnnKey) || (!ann.Has(metadata.AnnKey) && name.Capital() == "Id"),
		Required:   ann.Bool(metadata.AnnRequired),
		Pattern:    ann.String(metadata.AnnPattern),
		Ignore:     ann.Ignore(),
		Deprecated: ann.Bool(metadata.AnnDeprecated),
		URL:        ann.Bool(metadata.AnnURL),
		Storage:    ann.String(metadata.AnnStorage),
		CustomName: ann.String(metadata.AnnName),
		Doc:        ann.String(metadata.AnnDoc),
	}
	if v, ok := ann.Int(metadata.AnnMinLength); ok {
		opts.MinLength = &v
	}
	if v, ok := ann.Int(metadata.AnnMaxLength); ok {
		opts.MaxLength = &v
	}
	if opts.Key {
		opts.Required = true
	}

	field := &FieldSpec{Name: name, Model: model, Options: opts}

	hint := ann.Bool(metadata.AnnNullable)
	if model.NullableBool && decl.Type.Kind == metadata.RefNamed && decl.Type.ID == metadata.BuiltinBool {
		hint = true
	}
	node, err := r.resolver.Resolve(ctx, decl.Type, hint, field)
	if err != nil {
		return nil, err
	}

	depth, shape, nullableElem, err := measure(node, field)
	if err != nil {
		return nil, err
	}
	if depth > 0 && !nullableElem && ann.Bool(metadata.AnnNullableElement) {
		node = markElementNullable(node)
		nullableElem = true
	}
	field.Type = node
	_, field.Options.Nullable = node.(*Nullable)
	field.Options.EnumerableDepth = depth
	field.Options.Shape = shape
	field.Options.NullableElement = nullableElem
	return field, nil
}

// Enum returns the enum for id, creating it on first use.
func (r *Registry) Enum(ctx context.Context, id metadata.TypeID) (*EnumSpec, error) {
	if e, ok := r.enums[id]; ok {
		return e, nil
	}
	info, ok := r.provider.Describe(id)
	if !ok {
		return nil, errors.Resolutionf("enum %q is not known to the metadata provider", id)
	}
	e := &EnumSpec{
		ID:          id,
		Name:        naming.Parse(info.Name),
		DisplayName: info.Name,
		StringKeyed: info.Annotations.Bool(metadata.AnnStringEnum),
		EmitValues:  info.Annotations.Bool(metadata.AnnEnumValues),
		Doc:         info.Doc,
		Deprecated:  info.Annotations.Bool(metadata.AnnDeprecated),
	}
	override := info.Annotations.String(metadata.AnnName)
	if override != "" {
		e.DisplayName = override
	}
	if max := r.opts.MaxIdentifierLength; max > 0 && override == "" && len(e.DisplayName) > max {
		return nil, errors.Resolutionf("display name %q of enum %q exceeds %d characters", e.DisplayName, id, max)
	}
	seen := make(map[string]bool)
	for _, m := range r.provider.GetEnumMembers(id) {
		key := strings.ToLower(m.Name)
		if seen[key] {
			return nil, errors.Resolutionf("enum %q declares member %s twice", id, m.Name)
		}
		seen[key] = true
		e.Members = append(e.Members, EnumMember{Name: naming.Parse(m.Name), Value: m.Value, Doc: m.Doc})
	}
	r.enums[id] = e
	r.enumOrder = append(r.enumOrder, e)
	logger(ctx, "registry").Debug().Str("enum", e.DisplayName).Msg("enum registered")
	return e, nil
}

// Solve drains the worklist. The queue grows while it is drained: creating
// a model appends the LazyRefs of its fields. The loop ends because every
// type id is created at most once.
func (r *Registry) Solve(ctx context.Context) (*Graph, error) {
	log := logger(ctx, "registry")
	for i := 0; i < len(r.queue); i++ {
		lazy := r.queue[i]
		if lazy.Target != nil {
			continue
		}
		if lazy.Field != nil && lazy.Field.Omitted() {
			log.Debug().Str("field", lazy.Field.Path()).Msg("skipping ignored field")
			continue
		}
		if _, ok := r.provider.Describe(lazy.Declared.ID); !ok {
			return nil, errors.Resolutionf("model not found for %s in %s", lazy.Declared.ID, fieldPath(lazy.Field))
		}
		var discovering *DtoGroup
		if lazy.Field != nil && lazy.Field.Model != nil {
			discovering = lazy.Field.Model.Group
		}
		model, err := r.GetOrCreate(ctx, lazy.Declared.ID, discovering)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving %s", fieldPath(lazy.Field))
		}
		lazy.Target = model
	}
	r.solved = true

	g, err := newGraph(r.groups, r.enumOrder, r.models)
	if err != nil {
		return nil, err
	}
	log.Info().
		Int("groups", len(g.Groups)).
		Int("models", len(r.models)).
		Int("enums", len(g.Enums)).
		Int("refs", len(r.queue)).
		Msg("type graph solved")
	return g, nil
}

// Build runs AddRoots and Solve over provider.
func Build(ctx context.Context, provider metadata.Provider, opts Options) (*Graph, error) {
	r := NewRegistry(provider, opts)
	if err := r.AddRoots(ctx); err != nil {
		return nil, err
	}
	return r.Solve(ctx)
}
