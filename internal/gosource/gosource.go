// Package gosource reads exported Go declarations into a metadata catalog.
//
// Exported structs become models, named basic types with constants become
// enums and interfaces marked //dtogen:handler become handlers. Doc-comment
// directives (//dtogen:root, //dtogen:group=Order, ...) and struct tags
// (json, validate, dto) carry the annotations.
package gosource

import (
	"context"
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/tools/go/packages"

	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/metadata"
)

// Package is one type-checked package.
type Package struct {
	Path  string
	Files []*ast.File
	Types *types.Package
}

// Load type-checks the packages under paths. A path ending in "/..."
// includes its subpackages.
func Load(ctx context.Context, paths []string) (*metadata.Catalog, error) {
	log := zerolog.Ctx(ctx).With().Str("component", "gosource").Logger()
	var pkgs []Package
	for _, p := range paths {
		dir, pattern := p, "."
		if strings.HasSuffix(p, "/...") {
			dir, pattern = strings.TrimSuffix(p, "/..."), "./..."
		}
		cfg := &packages.Config{
			Context: ctx,
			Dir:     filepath.Clean(dir),
			Mode:    packages.NeedName | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo,
		}
		loaded, err := packages.Load(cfg, pattern)
		if err != nil {
			return nil, errors.WrapIO(err, "failed to load packages in %s", dir)
		}
		for _, pkg := range loaded {
			if len(pkg.Errors) > 0 {
				return nil, errors.Configurationf("package %s has errors: %v", pkg.PkgPath, pkg.Errors)
			}
			log.Debug().Str("package", pkg.PkgPath).Int("files", len(pkg.Syntax)).Msg("package loaded")
			pkgs = append(pkgs, Package{Path: pkg.PkgPath, Files: pkg.Syntax, Types: pkg.Types})
		}
	}
	if len(pkgs) == 0 {
		return nil, errors.Configurationf("no Go packages found in %v", paths)
	}
	return Convert(pkgs...)
}

type declaration struct {
	pkg   *Package
	obj   *types.TypeName
	spec  *ast.TypeSpec
	dirs  Directives
	doc   string
	iface *ast.InterfaceType
}

type converter struct {
	catalog  *metadata.Catalog
	loaded   map[*types.Package]*Package
	decls    []*declaration
	byObj    map[*types.TypeName]*declaration
	enums    map[*types.TypeName][]*types.Const
	declared map[*types.TypeName]bool
	ns       map[*Package]string
}

// Convert declares the exported declarations of pkgs in a fresh catalog.
// When no declaration carries //dtogen:root, every exported struct is a
// root.
func Convert(pkgs ...Package) (*metadata.Catalog, error) {
	cv := &converter{
		catalog:  metadata.NewCatalog(),
		loaded:   make(map[*types.Package]*Package),
		byObj:    make(map[*types.TypeName]*declaration),
		enums:    make(map[*types.TypeName][]*types.Const),
		declared: make(map[*types.TypeName]bool),
		ns:       make(map[*Package]string),
	}
	for i := range pkgs {
		cv.loaded[pkgs[i].Types] = &pkgs[i]
	}
	for i := range pkgs {
		cv.collect(&pkgs[i])
	}
	if err := cv.declare(); err != nil {
		return nil, err
	}
	if err := cv.populate(); err != nil {
		return nil, err
	}
	if err := cv.catalog.Validate(); err != nil {
		return nil, err
	}
	return cv.catalog, nil
}

// collect finds type declarations, their docs and the constants typed by
// each named type.
func (cv *converter) collect(pkg *Package) {
	for _, file := range pkg.Files {
		if dirs, _ := parseDoc(file.Doc); dirs["namespace"] != "" {
			cv.ns[pkg] = dirs["namespace"]
		}
		for _, decl := range file.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts := spec.(*ast.TypeSpec)
				if !ts.Name.IsExported() {
					continue
				}
				obj, ok := pkg.Types.Scope().Lookup(ts.Name.Name).(*types.TypeName)
				if !ok {
					continue
				}
				docs := []*ast.CommentGroup{ts.Doc}
				if len(gd.Specs) == 1 {
					docs = append(docs, gd.Doc)
				}
				dirs, doc := parseDoc(docs...)
				d := &declaration{pkg: pkg, obj: obj, spec: ts, dirs: dirs, doc: doc}
				d.iface, _ = ts.Type.(*ast.InterfaceType)
				cv.decls = append(cv.decls, d)
				cv.byObj[obj] = d
			}
		}
	}

	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		c, ok := scope.Lookup(name).(*types.Const)
		if !ok {
			continue
		}
		if named, ok := c.Type().(*types.Named); ok && named.Obj().Pkg() == pkg.Types {
			cv.enums[named.Obj()] = append(cv.enums[named.Obj()], c)
		}
	}
	for _, consts := range cv.enums {
		sort.Slice(consts, func(i, j int) bool { return consts[i].Pos() < consts[j].Pos() })
	}
}

func (cv *converter) id(obj *types.TypeName) metadata.TypeID {
	return metadata.TypeID(obj.Pkg().Path() + "." + obj.Name())
}

func (cv *converter) isEnum(obj *types.TypeName) bool {
	_, isBasic := obj.Type().Underlying().(*types.Basic)
	return isBasic && len(cv.enums[obj]) > 0
}

func typeAnnotations(d *declaration) metadata.Annotations {
	ann := metadata.Annotations{}
	if v := d.dirs["group"]; v != "" {
		ann.Set(metadata.AnnGroup, v)
	}
	if v := d.dirs["project"]; v != "" {
		ann.Set(metadata.AnnProject, v)
	}
	if v := d.dirs["name"]; v != "" {
		ann.Set(metadata.AnnName, v)
	}
	if d.dirs.Has("deprecated") {
		ann.Set(metadata.AnnDeprecated, true)
	}
	if d.dirs.Has("nullableBool") {
		ann.Set(metadata.AnnNullableBool, true)
	}
	if d.dirs.Has("strings") {
		ann.Set(metadata.AnnStringEnum, true)
	}
	if d.dirs.Has("values") {
		ann.Set(metadata.AnnEnumValues, true)
	}
	return ann
}

func (cv *converter) declare() error {
	explicitRoots := false
	for _, d := range cv.decls {
		if d.dirs.Has("root") {
			explicitRoots = true
		}
	}

	for _, d := range cv.decls {
		info := metadata.TypeInfo{
			ID:          cv.id(d.obj),
			Name:        d.obj.Name(),
			Namespace:   cv.ns[d.pkg],
			Annotations: typeAnnotations(d),
			Doc:         d.doc,
		}
		switch {
		case d.dirs.Has("opaque"):
			redirect := metadata.OpaqueRedirect{Name: d.obj.Name(), ImportFrom: d.dirs["opaque"]}
			if err := cv.catalog.AddOpaque(info, redirect); err != nil {
				return err
			}
		case cv.isEnum(d.obj):
			if err := cv.declareEnum(d, info); err != nil {
				return err
			}
		default:
			st, isStruct := d.obj.Type().Underlying().(*types.Struct)
			if !isStruct || st == nil {
				continue
			}
			if named, ok := d.obj.Type().(*types.Named); ok {
				for i := 0; i < named.TypeParams().Len(); i++ {
					info.GenericParams = append(info.GenericParams, named.TypeParams().At(i).Obj().Name())
				}
			}
			if err := cv.catalog.AddModel(info); err != nil {
				return err
			}
			if !explicitRoots || d.dirs.Has("root") {
				if err := cv.catalog.AddRoot(info.ID); err != nil {
					return err
				}
			}
		}
		cv.declared[d.obj] = true
	}
	return nil
}

func (cv *converter) declareEnum(d *declaration, info metadata.TypeInfo) error {
	basic := d.obj.Type().Underlying().(*types.Basic)
	if basic.Info()&types.IsString != 0 {
		info.Annotations.Set(metadata.AnnStringEnum, true)
	}
	var members []metadata.EnumMemberDecl
	for _, c := range cv.enums[d.obj] {
		name := strings.TrimPrefix(c.Name(), d.obj.Name())
		if name == "" || !c.Exported() {
			continue
		}
		m := metadata.EnumMemberDecl{Name: name}
		if c.Val().Kind() == constant.Int {
			if v, exact := constant.Int64Val(c.Val()); exact {
				m.Value = &v
			}
		}
		members = append(members, m)
	}
	return cv.catalog.AddEnum(info, members...)
}

func (cv *converter) populate() error {
	for _, d := range cv.decls {
		if !cv.declared[d.obj] {
			continue
		}
		if cv.catalog.IsModel(cv.id(d.obj)) {
			st := d.obj.Type().Underlying().(*types.Struct)
			if err := cv.addFields(cv.id(d.obj), st, map[*types.Struct]bool{}); err != nil {
				return errors.Wrapf(err, "model %s", d.obj.Name())
			}
		}
	}
	for _, d := range cv.decls {
		if d.iface != nil && d.dirs.Has("handler") {
			if err := cv.declareHandlers(d); err != nil {
				return errors.Wrapf(err, "handler %s", d.obj.Name())
			}
		}
	}
	return nil
}

// addFields declares the exported fields of st in order. Embedded structs
// contribute their fields in place.
func (cv *converter) addFields(id metadata.TypeID, st *types.Struct, seen map[*types.Struct]bool) error {
	if seen[st] {
		return nil
	}
	seen[st] = true
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if f.Embedded() {
			if inner, ok := derefStruct(f.Type()); ok {
				if err := cv.addFields(id, inner, seen); err != nil {
					return err
				}
				continue
			}
		}
		if !f.Exported() {
			continue
		}
		tags, err := parseTags(st.Tag(i))
		if err != nil {
			return errors.Wrapf(err, "field %s", f.Name())
		}
		if tags.skip {
			continue
		}
		ref, err := cv.ref(f.Type())
		if err != nil {
			return errors.Wrapf(err, "field %s", f.Name())
		}
		decl := metadata.FieldDecl{Name: f.Name(), Type: ref, Annotations: tags.annotations}
		if err := cv.catalog.AddField(id, decl); err != nil {
			return err
		}
	}
	return nil
}

func derefStruct(t types.Type) (*types.Struct, bool) {
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	st, ok := types.Unalias(t).Underlying().(*types.Struct)
	return st, ok
}

var wellKnown = map[string]metadata.TypeID{
	"time.Time":                             metadata.BuiltinDateTime,
	"encoding/json.RawMessage":              metadata.BuiltinObject,
	"github.com/google/uuid.UUID":           metadata.BuiltinGUID,
	"github.com/shopspring/decimal.Decimal": metadata.BuiltinDecimal,
}

// ref maps a Go type onto a type descriptor.
func (cv *converter) ref(t types.Type) (metadata.TypeRef, error) {
	t = types.Unalias(t)
	switch x := t.(type) {
	case *types.Pointer:
		inner, err := cv.ref(x.Elem())
		if err != nil {
			return inner, err
		}
		return metadata.NullableOf(inner), nil
	case *types.Slice:
		if b, ok := x.Elem().(*types.Basic); ok && b.Kind() == types.Byte {
			return metadata.Named(metadata.BuiltinBlob), nil
		}
		elem, err := cv.ref(x.Elem())
		if err != nil {
			return elem, err
		}
		return metadata.ListOf(elem), nil
	case *types.Array:
		elem, err := cv.ref(x.Elem())
		if err != nil {
			return elem, err
		}
		return metadata.ArrayOf(elem, 1), nil
	case *types.Map:
		key, err := cv.ref(x.Key())
		if err != nil {
			return key, err
		}
		value, err := cv.ref(x.Elem())
		if err != nil {
			return value, err
		}
		return metadata.Named(metadata.BuiltinDictionary, key, value), nil
	case *types.TypeParam:
		return metadata.Param(x.Obj().Name()), nil
	case *types.Interface:
		if x.Empty() {
			return metadata.Named(metadata.BuiltinObject), nil
		}
	case *types.Basic:
		if id, ok := basicID(x); ok {
			return metadata.Named(id), nil
		}
	case *types.Named:
		return cv.named(x)
	}
	return metadata.TypeRef{}, errors.Configurationf("unsupported Go type %s", t)
}

func (cv *converter) named(x *types.Named) (metadata.TypeRef, error) {
	obj := x.Obj()
	qualified := obj.Name()
	if obj.Pkg() != nil {
		qualified = obj.Pkg().Path() + "." + obj.Name()
	}
	if id, ok := wellKnown[qualified]; ok {
		return metadata.Named(id), nil
	}

	var args []metadata.TypeRef
	for i := 0; i < x.TypeArgs().Len(); i++ {
		arg, err := cv.ref(x.TypeArgs().At(i))
		if err != nil {
			return arg, err
		}
		args = append(args, arg)
	}
	if qualified == "iter.Seq" && len(args) == 1 {
		return metadata.Named(metadata.BuiltinSequence, args...), nil
	}
	if qualified == "error" {
		return metadata.TypeRef{}, errors.Configurationf("error values cannot be serialized")
	}

	if cv.declared[obj] {
		return metadata.Named(cv.id(obj), args...), nil
	}
	// Named types that are not declarations of their own (type Email string)
	// take the shape of their underlying type.
	if _, isStruct := x.Underlying().(*types.Struct); !isStruct {
		return cv.ref(x.Underlying())
	}
	if obj.Pkg() != nil {
		if _, ok := cv.loaded[obj.Pkg()]; !ok {
			return metadata.TypeRef{}, errors.Configurationf("type %s is outside the loaded packages; mark a local declaration //dtogen:opaque", qualified)
		}
	}
	return metadata.TypeRef{}, errors.Configurationf("type %s is not exported", qualified)
}

func basicID(b *types.Basic) (metadata.TypeID, bool) {
	switch b.Kind() {
	case types.Bool:
		return metadata.BuiltinBool, true
	case types.String:
		return metadata.BuiltinString, true
	case types.Int8, types.Int16, types.Int32, types.Uint8, types.Uint16:
		return metadata.BuiltinInt32, true
	case types.Int, types.Int64, types.Uint, types.Uint32, types.Uint64:
		return metadata.BuiltinInt64, true
	case types.Float32:
		return metadata.BuiltinFloat32, true
	case types.Float64:
		return metadata.BuiltinFloat64, true
	}
	return "", false
}

// declareHandlers turns the methods of a handler interface into handler
// declarations. Methods look like Get(ctx context.Context, q *Q) (*R, error).
func (cv *converter) declareHandlers(d *declaration) error {
	iface, ok := d.obj.Type().Underlying().(*types.Interface)
	if !ok {
		return nil
	}
	docs := make(map[string]*ast.CommentGroup)
	for _, m := range d.iface.Methods.List {
		for _, n := range m.Names {
			docs[n.Name] = m.Doc
		}
	}

	controller := d.obj.Name()
	if v := d.dirs["controller"]; v != "" {
		controller = v
	}
	for i := 0; i < iface.NumExplicitMethods(); i++ {
		fn := iface.ExplicitMethod(i)
		if !fn.Exported() {
			continue
		}
		sig := fn.Type().(*types.Signature)
		dirs, _ := parseDoc(docs[fn.Name()])

		decl := metadata.HandlerDecl{
			Controller:    controller,
			Action:        fn.Name(),
			Area:          d.dirs["area"],
			RouteTemplate: d.dirs["route"],
			Verb:          metadata.VerbGet,
			Form:          dirs.Has("form"),
			Deprecated:    dirs.Has("deprecated"),
			GroupHint:     dirs["group"],
			Namespace:     cv.ns[d.pkg],
		}
		if v := dirs["route"]; v != "" {
			decl.RouteTemplate = v
		}
		if dirs.Has("post") || d.dirs.Has("post") {
			decl.Verb = metadata.VerbPost
		}

		for j := 0; j < sig.Params().Len(); j++ {
			p := sig.Params().At(j).Type()
			if isContext(p) {
				continue
			}
			ref, err := cv.handlerRef(p)
			if err != nil {
				return errors.Wrapf(err, "method %s", fn.Name())
			}
			decl.Params = append(decl.Params, ref)
		}
		for j := 0; j < sig.Results().Len(); j++ {
			r := sig.Results().At(j).Type()
			if isError(r) {
				continue
			}
			ref, err := cv.handlerRef(r)
			if err != nil {
				return errors.Wrapf(err, "method %s", fn.Name())
			}
			decl.Returns = ref
			break
		}
		if decl.Returns.ID == "" {
			return errors.Configurationf("method %s returns no model", fn.Name())
		}
		cv.catalog.AddHandler(decl)
	}
	return nil
}

func (cv *converter) handlerRef(t types.Type) (metadata.TypeRef, error) {
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	return cv.ref(t)
}

func isContext(t types.Type) bool {
	n, ok := t.(*types.Named)
	return ok && n.Obj().Pkg() != nil && n.Obj().Pkg().Path() == "context" && n.Obj().Name() == "Context"
}

func isError(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}
