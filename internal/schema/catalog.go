package schema

import (
	"context"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/metadata"
)

// Scalars maps GraphQL scalar names onto builtin identities. Custom scalars
// must appear here or carry @opaque.
var Scalars = map[string]metadata.TypeID{
	"Int":      metadata.BuiltinInt32,
	"Long":     metadata.BuiltinInt64,
	"Float":    metadata.BuiltinFloat64,
	"Decimal":  metadata.BuiltinDecimal,
	"String":   metadata.BuiltinString,
	"Boolean":  metadata.BuiltinBool,
	"ID":       metadata.BuiltinGUID,
	"UUID":     metadata.BuiltinGUID,
	"DateTime": metadata.BuiltinDateTime,
	"JSON":     metadata.BuiltinObject,
	"Bytes":    metadata.BuiltinBlob,
}

// Load parses every SDL file in paths into one catalog.
func Load(ctx context.Context, paths []string) (*metadata.Catalog, error) {
	log := zerolog.Ctx(ctx).With().Str("component", "schema").Logger()
	schemas := make([]*Schema, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapIO(err, "failed to read schema %s", path)
		}
		s, err := ParseSchema(string(data))
		if err != nil {
			return nil, errors.Wrapf(err, "%s", path)
		}
		log.Debug().Str("file", path).Int("types", len(s.Types)).Int("enums", len(s.Enums)).Msg("schema parsed")
		schemas = append(schemas, s)
	}
	return ToCatalog(schemas...)
}

// ToCatalog declares the parsed schemas in a fresh catalog. When no type
// carries @root, every object and input type is a root.
func ToCatalog(schemas ...*Schema) (*metadata.Catalog, error) {
	c := metadata.NewCatalog()

	explicitRoots := false
	for _, s := range schemas {
		for _, t := range s.Types {
			if Directives(t.Directives).Has("root") {
				explicitRoots = true
			}
		}
	}

	for _, s := range schemas {
		ns := s.Meta.Namespace
		for _, sc := range s.Scalars {
			if err := declareScalar(c, ns, sc); err != nil {
				return nil, err
			}
		}
		for _, e := range s.Enums {
			if err := declareEnum(c, ns, e); err != nil {
				return nil, err
			}
		}
		for _, t := range s.Types {
			ds := Directives(t.Directives)
			if op, ok := ds.Get("opaque"); ok {
				if err := declareOpaque(c, ns, t.Name, op); err != nil {
					return nil, err
				}
				continue
			}
			if err := c.AddModel(typeInfo(ns, t)); err != nil {
				return nil, err
			}
			if !explicitRoots || ds.Has("root") {
				if err := c.AddRoot(qualify(ns, t.Name)); err != nil {
					return nil, err
				}
			}
		}
	}

	for _, s := range schemas {
		ns := s.Meta.Namespace
		for _, t := range s.Types {
			if Directives(t.Directives).Has("opaque") {
				continue
			}
			id := qualify(ns, t.Name)
			for _, f := range t.Fields {
				decl, err := fieldDecl(c, ns, f)
				if err != nil {
					return nil, errors.Wrapf(err, "field %s.%s", t.Name, f.Name)
				}
				if err := c.AddField(id, decl); err != nil {
					return nil, err
				}
			}
		}
		for _, svc := range s.Services {
			if err := declareService(c, ns, svc); err != nil {
				return nil, err
			}
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func qualify(ns, name string) metadata.TypeID {
	if ns == "" {
		return metadata.TypeID(name)
	}
	return metadata.TypeID(ns + "." + name)
}

func typeInfo(ns string, t ObjectType) metadata.TypeInfo {
	ds := Directives(t.Directives)
	ann := metadata.Annotations{}
	if d, ok := ds.Get("group"); ok {
		ann.Set(metadata.AnnGroup, d.Args["name"])
	}
	if d, ok := ds.Get("project"); ok {
		ann.Set(metadata.AnnProject, d.Args["name"])
	}
	if d, ok := ds.Get("name"); ok {
		ann.Set(metadata.AnnName, d.Args["display"])
	}
	if ds.Has("deprecated") {
		ann.Set(metadata.AnnDeprecated, true)
	}
	if ds.Has("nullableBool") {
		ann.Set(metadata.AnnNullableBool, true)
	}
	return metadata.TypeInfo{ID: qualify(ns, t.Name), Name: t.Name, Namespace: ns, Annotations: ann, Doc: t.Doc}
}

func declareScalar(c *metadata.Catalog, ns string, sc ScalarType) error {
	op, ok := Directives(sc.Directives).Get("opaque")
	if !ok {
		if _, known := Scalars[sc.Name]; known {
			return nil
		}
		return errors.Configurationf("scalar %s has no builtin mapping; mark it @opaque", sc.Name)
	}
	return declareOpaque(c, ns, sc.Name, op)
}

func declareOpaque(c *metadata.Catalog, ns, name string, d Directive) error {
	as := d.Args["name"]
	if as == "" {
		as = name
	}
	info := metadata.TypeInfo{ID: qualify(ns, name), Name: name, Namespace: ns}
	return c.AddOpaque(info, metadata.OpaqueRedirect{Name: as, ImportFrom: d.Args["from"]})
}

func declareEnum(c *metadata.Catalog, ns string, e EnumType) error {
	ds := Directives(e.Directives)
	ann := metadata.Annotations{}
	if d, ok := ds.Get("enum"); ok {
		if d.Args["values"] == "true" {
			ann.Set(metadata.AnnEnumValues, true)
		}
		if d.Args["strings"] == "true" {
			ann.Set(metadata.AnnStringEnum, true)
		}
	}
	if ds.Has("deprecated") {
		ann.Set(metadata.AnnDeprecated, true)
	}
	if d, ok := ds.Get("name"); ok {
		ann.Set(metadata.AnnName, d.Args["display"])
	}

	members := make([]metadata.EnumMemberDecl, 0, len(e.Values))
	for _, v := range e.Values {
		m := metadata.EnumMemberDecl{Name: v.Name, Doc: v.Doc}
		if d, ok := Directives(v.Directives).Get("value"); ok {
			n, err := strconv.ParseInt(d.Args["is"], 10, 64)
			if err != nil {
				return errors.Configurationf("enum %s.%s: @value(is:) must be an integer", e.Name, v.Name)
			}
			m.Value = &n
		}
		members = append(members, m)
	}
	info := metadata.TypeInfo{ID: qualify(ns, e.Name), Name: e.Name, Namespace: ns, Annotations: ann, Doc: e.Doc}
	return c.AddEnum(info, members...)
}

// ref binds a SDL type reference. A missing '!' means nullable.
func ref(c *metadata.Catalog, ns string, t *TypeExpr) (metadata.TypeRef, error) {
	var out metadata.TypeRef
	if t.Elem != nil {
		elem, err := ref(c, ns, t.Elem)
		if err != nil {
			return out, err
		}
		out = metadata.ListOf(elem)
	} else {
		named, err := lookup(c, ns, t.Name)
		if err != nil {
			return out, err
		}
		out = named
	}
	if !t.NonNull {
		out = metadata.NullableOf(out)
	}
	return out, nil
}

func lookup(c *metadata.Catalog, ns, name string) (metadata.TypeRef, error) {
	if id, ok := Scalars[name]; ok {
		return metadata.Named(id), nil
	}
	id, ok := c.Lookup(name, ns)
	if !ok {
		return metadata.TypeRef{}, errors.Configurationf("unknown type %s", name)
	}
	return metadata.Named(id), nil
}

// parseNamed reads a directive argument such as "Int!" or "Item".
func parseNamed(c *metadata.Catalog, ns, s string) (metadata.TypeRef, error) {
	s = strings.TrimSpace(s)
	nonNull := strings.HasSuffix(s, "!")
	r, err := lookup(c, ns, strings.TrimSuffix(s, "!"))
	if err != nil {
		return r, err
	}
	if !nonNull {
		r = metadata.NullableOf(r)
	}
	return r, nil
}

func fieldDecl(c *metadata.Catalog, ns string, f Field) (metadata.FieldDecl, error) {
	ds := Directives(f.Directives)
	decl := metadata.FieldDecl{Name: f.Name, Annotations: metadata.Annotations{}}

	if d, ok := ds.Get("dictionary"); ok {
		key, err := parseNamed(c, ns, d.Args["key"]+"!")
		if err != nil {
			return decl, err
		}
		value, err := parseNamed(c, ns, d.Args["value"])
		if err != nil {
			return decl, err
		}
		decl.Type = metadata.Named(metadata.BuiltinDictionary, key, value)
		if !f.Type.NonNull {
			decl.Type = metadata.NullableOf(decl.Type)
		}
	} else {
		t, err := ref(c, ns, f.Type)
		if err != nil {
			return decl, err
		}
		decl.Type = t
	}

	ann := decl.Annotations
	if ds.Has("key") {
		ann.Set(metadata.AnnKey, true)
	}
	if ds.Has("required") {
		ann.Set(metadata.AnnRequired, true)
	}
	for _, lim := range []struct {
		directive string
		kind      metadata.AnnotationKind
	}{{"maxLength", metadata.AnnMaxLength}, {"minLength", metadata.AnnMinLength}} {
		d, ok := ds.Get(lim.directive)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(d.Args["n"])
		if err != nil {
			return decl, errors.Configurationf("@%s(n:) must be an integer", lim.directive)
		}
		ann.Set(lim.kind, n)
	}
	if d, ok := ds.Get("pattern"); ok {
		ann.Set(metadata.AnnPattern, d.Args["regex"])
	}
	if d, ok := ds.Get("ignore"); ok {
		cond, valid := metadata.ParseIgnoreCondition(d.Args["when"])
		if !valid {
			return decl, errors.Configurationf("unknown ignore condition %q", d.Args["when"])
		}
		ann.Set(metadata.AnnIgnore, cond)
	}
	if ds.Has("deprecated") {
		ann.Set(metadata.AnnDeprecated, true)
	}
	if ds.Has("url") {
		ann.Set(metadata.AnnURL, true)
	}
	if d, ok := ds.Get("name"); ok {
		ann.Set(metadata.AnnName, d.Args["display"])
	}
	if d, ok := ds.Get("storage"); ok {
		ann.Set(metadata.AnnStorage, d.Args["hint"])
	}
	if f.Doc != "" {
		ann.Set(metadata.AnnDoc, f.Doc)
	}
	return decl, nil
}

func declareService(c *metadata.Catalog, ns string, svc Service) error {
	ds := Directives(svc.Directives)
	controller := svc.Name
	if d, ok := ds.Get("controller"); ok && d.Args["name"] != "" {
		controller = d.Args["name"]
	}
	area := ""
	if d, ok := ds.Get("area"); ok {
		area = d.Args["name"]
	}

	for _, m := range svc.Methods {
		mds := Directives(m.Directives)
		decl := metadata.HandlerDecl{
			Controller: controller,
			Action:     actionName(m.Name),
			Area:       area,
			Verb:       metadata.VerbGet,
			Form:       mds.Has("form"),
			Deprecated: mds.Has("deprecated"),
			Namespace:  ns,
		}
		if mds.Has("post") {
			decl.Verb = metadata.VerbPost
		}
		if d, ok := mds.Get("route"); ok {
			decl.RouteTemplate = d.Args["template"]
		} else if d, ok := ds.Get("route"); ok {
			decl.RouteTemplate = d.Args["template"]
		}
		if d, ok := mds.Get("group"); ok {
			decl.GroupHint = d.Args["name"]
		}
		for _, in := range m.Inputs {
			p, err := handlerRef(c, ns, in)
			if err != nil {
				return errors.Wrapf(err, "service %s.%s", svc.Name, m.Name)
			}
			decl.Params = append(decl.Params, p)
		}
		out, err := handlerRef(c, ns, m.OutputType)
		if err != nil {
			return errors.Wrapf(err, "service %s.%s", svc.Name, m.Name)
		}
		decl.Returns = out
		c.AddHandler(decl)
	}
	return nil
}

// actionName turns a GraphQL field name into an action name: "getPDF"
// becomes "GetPDF". The rest of the spelling is kept.
func actionName(field string) string {
	r, size := utf8.DecodeRuneInString(field)
	if size == 0 {
		return field
	}
	return string(unicode.ToUpper(r)) + field[size:]
}

// handlerRef binds a handler parameter or result; nullability is irrelevant
// for contracts.
func handlerRef(c *metadata.Catalog, ns string, t *TypeExpr) (metadata.TypeRef, error) {
	if t.Elem != nil {
		elem, err := handlerRef(c, ns, t.Elem)
		if err != nil {
			return elem, err
		}
		return metadata.ListOf(elem), nil
	}
	return lookup(c, ns, t.Name)
}
