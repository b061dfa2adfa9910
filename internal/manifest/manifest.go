// Package manifest reads YAML model manifests (*.dtogen.yaml) into a
// metadata catalog.
package manifest

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/metadata"
)

// FileSuffix marks manifest files inside a directory.
const FileSuffix = ".dtogen.yaml"

// Document is one manifest file.
type Document struct {
	Namespace string       `yaml:"namespace"`
	Models    []ModelDoc   `yaml:"models"`
	Enums     []EnumDoc    `yaml:"enums"`
	Opaque    []OpaqueDoc  `yaml:"opaque"`
	Handlers  []HandlerDoc `yaml:"handlers"`
}

// ModelDoc declares a model. Nested models use the same shape.
type ModelDoc struct {
	Name         string     `yaml:"name"`
	Root         *bool      `yaml:"root"`
	Container    bool       `yaml:"container"`
	Generic      []string   `yaml:"generic"`
	Group        string     `yaml:"group"`
	Project      string     `yaml:"project"`
	DisplayName  string     `yaml:"displayName"`
	NullableBool bool       `yaml:"nullableBool"`
	Deprecated   bool       `yaml:"deprecated"`
	Doc          string     `yaml:"doc"`
	Fields       []FieldDoc `yaml:"fields"`
	Nested       []ModelDoc `yaml:"nested"`
}

// FieldDoc declares a field; every key besides name and type is an
// annotation.
type FieldDoc struct {
	Name            string `yaml:"name"`
	Type            string `yaml:"type"`
	Required        bool   `yaml:"required"`
	Key             *bool  `yaml:"key"`
	Nullable        bool   `yaml:"nullable"`
	NullableElement bool   `yaml:"nullableElement"`
	MinLength       *int   `yaml:"minLength"`
	MaxLength       *int   `yaml:"maxLength"`
	Pattern         string `yaml:"pattern"`
	Ignore          any    `yaml:"ignore"`
	Deprecated      bool   `yaml:"deprecated"`
	URL             bool   `yaml:"url"`
	Storage         string `yaml:"storage"`
	JSON            string `yaml:"json"`
	Doc             string `yaml:"doc"`
}

// EnumDoc declares an enum.
type EnumDoc struct {
	Name        string      `yaml:"name"`
	Strings     bool        `yaml:"strings"`
	Values      bool        `yaml:"values"`
	DisplayName string      `yaml:"displayName"`
	Deprecated  bool        `yaml:"deprecated"`
	Doc         string      `yaml:"doc"`
	Members     []MemberDoc `yaml:"members"`
}

// MemberDoc is an enum member, written either as a bare name or as a map
// with name, value and doc.
type MemberDoc struct {
	Name  string `yaml:"name"`
	Value *int64 `yaml:"value"`
	Doc   string `yaml:"doc"`
}

// UnmarshalYAML accepts the bare-name form.
func (m *MemberDoc) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		m.Name = value.Value
		return nil
	}
	type plain MemberDoc
	return value.Decode((*plain)(m))
}

// OpaqueDoc redirects a type name to an externally supplied type.
type OpaqueDoc struct {
	Name string `yaml:"name"`
	As   string `yaml:"as"`
	From string `yaml:"from"`
}

// HandlerDoc declares a request handler.
type HandlerDoc struct {
	Controller string   `yaml:"controller"`
	Action     string   `yaml:"action"`
	Area       string   `yaml:"area"`
	Route      string   `yaml:"route"`
	Verb       string   `yaml:"verb"`
	Form       bool     `yaml:"form"`
	Deprecated bool     `yaml:"deprecated"`
	Params     []string `yaml:"params"`
	Returns    string   `yaml:"returns"`
	Group      string   `yaml:"group"`
}

// Parse decodes one manifest. Unknown keys are rejected.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, errors.WrapConfiguration(err, "invalid manifest")
	}
	return &doc, nil
}

// Load reads every manifest under paths (files, or directories searched for
// *.dtogen.yaml) into one catalog.
func Load(ctx context.Context, paths []string) (*metadata.Catalog, error) {
	log := zerolog.Ctx(ctx).With().Str("component", "manifest").Logger()
	files, err := collect(paths)
	if err != nil {
		return nil, err
	}

	docs := make([]*Document, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.WrapIO(err, "failed to read manifest %s", file)
		}
		doc, err := Parse(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrapf(err, "%s", file)
		}
		log.Debug().Str("file", file).Int("models", len(doc.Models)).Int("enums", len(doc.Enums)).Msg("manifest parsed")
		docs = append(docs, doc)
	}
	return Build(docs...)
}

func collect(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, errors.WrapIO(err, "failed to read source %s", p)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), FileSuffix) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.WrapIO(err, "failed to scan %s", p)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

type pendingModel struct {
	id     metadata.TypeID
	ns     string
	params []string
	fields []FieldDoc
}

// Build declares the documents in a fresh catalog. Types are declared first
// so that fields may refer to types of any document.
func Build(docs ...*Document) (*metadata.Catalog, error) {
	c := metadata.NewCatalog()
	var models []pendingModel

	for _, doc := range docs {
		for _, e := range doc.Enums {
			if err := declareEnum(c, doc.Namespace, e); err != nil {
				return nil, err
			}
		}
		for _, o := range doc.Opaque {
			if o.Name == "" {
				return nil, errors.Configurationf("opaque type in namespace %q has no name", doc.Namespace)
			}
			as := o.As
			if as == "" {
				as = o.Name
			}
			info := metadata.TypeInfo{ID: qualify(doc.Namespace, o.Name), Name: o.Name, Namespace: doc.Namespace}
			if err := c.AddOpaque(info, metadata.OpaqueRedirect{Name: as, ImportFrom: o.From}); err != nil {
				return nil, err
			}
		}
		for _, m := range doc.Models {
			declared, err := declareModel(c, doc.Namespace, "", m, true)
			if err != nil {
				return nil, err
			}
			models = append(models, declared...)
		}
	}

	for _, m := range models {
		b := &binder{catalog: c, namespace: m.ns, params: make(map[string]bool)}
		for _, p := range m.params {
			b.params[p] = true
		}
		for _, f := range m.fields {
			decl, err := fieldDecl(b, f)
			if err != nil {
				return nil, errors.Wrapf(err, "field %s.%s", m.id, f.Name)
			}
			if err := c.AddField(m.id, decl); err != nil {
				return nil, err
			}
		}
	}

	for _, doc := range docs {
		b := &binder{catalog: c, namespace: doc.Namespace}
		for _, h := range doc.Handlers {
			decl, err := handlerDecl(b, h)
			if err != nil {
				return nil, errors.Wrapf(err, "handler %s.%s", h.Controller, h.Action)
			}
			c.AddHandler(decl)
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

func declareEnum(c *metadata.Catalog, ns string, e EnumDoc) error {
	if e.Name == "" {
		return errors.Configurationf("enum in namespace %q has no name", ns)
	}
	ann := metadata.Annotations{}
	if e.Strings {
		ann.Set(metadata.AnnStringEnum, true)
	}
	if e.Values {
		ann.Set(metadata.AnnEnumValues, true)
	}
	if e.Deprecated {
		ann.Set(metadata.AnnDeprecated, true)
	}
	if e.DisplayName != "" {
		ann.Set(metadata.AnnName, e.DisplayName)
	}
	members := make([]metadata.EnumMemberDecl, len(e.Members))
	for i, m := range e.Members {
		members[i] = metadata.EnumMemberDecl{Name: m.Name, Value: m.Value, Doc: m.Doc}
	}
	info := metadata.TypeInfo{ID: qualify(ns, e.Name), Name: e.Name, Namespace: ns, Annotations: ann, Doc: e.Doc}
	return c.AddEnum(info, members...)
}

func declareModel(c *metadata.Catalog, ns string, parent metadata.TypeID, m ModelDoc, topLevel bool) ([]pendingModel, error) {
	if m.Name == "" {
		return nil, errors.Configurationf("model in namespace %q has no name", ns)
	}
	id := qualify(ns, m.Name)
	if parent != "" {
		id = metadata.TypeID(string(parent) + "." + m.Name)
	}

	ann := metadata.Annotations{}
	if m.Group != "" {
		ann.Set(metadata.AnnGroup, m.Group)
	}
	if m.Project != "" {
		ann.Set(metadata.AnnProject, m.Project)
	}
	if m.DisplayName != "" {
		ann.Set(metadata.AnnName, m.DisplayName)
	}
	if m.NullableBool {
		ann.Set(metadata.AnnNullableBool, true)
	}
	if m.Deprecated {
		ann.Set(metadata.AnnDeprecated, true)
	}
	if len(m.Generic) > 1 {
		return nil, errors.Configurationf("model %s declares %d generic parameters; at most one is supported", id, len(m.Generic))
	}

	info := metadata.TypeInfo{
		ID:            id,
		Name:          m.Name,
		Namespace:     ns,
		Parent:        parent,
		Container:     m.Container,
		GenericParams: m.Generic,
		Annotations:   ann,
		Doc:           m.Doc,
	}
	if err := c.AddModel(info); err != nil {
		return nil, err
	}
	root := topLevel
	if m.Root != nil {
		root = *m.Root
	}
	if root || m.Container {
		if err := c.AddRoot(id); err != nil {
			return nil, err
		}
	}

	out := []pendingModel{{id: id, ns: ns, params: m.Generic, fields: m.Fields}}
	for _, nested := range m.Nested {
		children, err := declareModel(c, ns, id, nested, false)
		if err != nil {
			return nil, err
		}
		out = append(out, children...)
	}
	return out, nil
}

func fieldDecl(b *binder, f FieldDoc) (metadata.FieldDecl, error) {
	if f.Name == "" || f.Type == "" {
		return metadata.FieldDecl{}, errors.Configurationf("field needs a name and a type")
	}
	expr, err := ParseExpr(f.Type)
	if err != nil {
		return metadata.FieldDecl{}, err
	}
	ref, err := b.bind(expr)
	if err != nil {
		return metadata.FieldDecl{}, err
	}

	ann := metadata.Annotations{}
	if f.Required {
		ann.Set(metadata.AnnRequired, true)
	}
	if f.Key != nil {
		ann.Set(metadata.AnnKey, *f.Key)
	}
	if f.Nullable {
		ann.Set(metadata.AnnNullable, true)
	}
	if f.NullableElement {
		ann.Set(metadata.AnnNullableElement, true)
	}
	if f.MinLength != nil {
		ann.Set(metadata.AnnMinLength, *f.MinLength)
	}
	if f.MaxLength != nil {
		ann.Set(metadata.AnnMaxLength, *f.MaxLength)
	}
	if f.Pattern != "" {
		ann.Set(metadata.AnnPattern, f.Pattern)
	}
	switch v := f.Ignore.(type) {
	case nil:
	case bool:
		ann.Set(metadata.AnnIgnore, v)
	case string:
		cond, ok := metadata.ParseIgnoreCondition(v)
		if !ok {
			return metadata.FieldDecl{}, errors.Configurationf("unknown ignore condition %q", v)
		}
		ann.Set(metadata.AnnIgnore, cond)
	default:
		return metadata.FieldDecl{}, errors.Configurationf("ignore must be a string or a boolean")
	}
	if f.Deprecated {
		ann.Set(metadata.AnnDeprecated, true)
	}
	if f.URL {
		ann.Set(metadata.AnnURL, true)
	}
	if f.Storage != "" {
		ann.Set(metadata.AnnStorage, f.Storage)
	}
	if f.JSON != "" {
		ann.Set(metadata.AnnName, f.JSON)
	}
	if f.Doc != "" {
		ann.Set(metadata.AnnDoc, f.Doc)
	}
	return metadata.FieldDecl{Name: f.Name, Type: ref, Annotations: ann}, nil
}

func handlerDecl(b *binder, h HandlerDoc) (metadata.HandlerDecl, error) {
	decl := metadata.HandlerDecl{
		Controller:    h.Controller,
		Action:        h.Action,
		Area:          h.Area,
		RouteTemplate: h.Route,
		Form:          h.Form,
		Deprecated:    h.Deprecated,
		GroupHint:     h.Group,
		Namespace:     b.namespace,
	}
	switch strings.ToUpper(h.Verb) {
	case "", "GET":
		decl.Verb = metadata.VerbGet
	case "POST":
		decl.Verb = metadata.VerbPost
	default:
		return decl, errors.Configurationf("unsupported verb %q", h.Verb)
	}
	for _, p := range h.Params {
		expr, err := ParseExpr(p)
		if err != nil {
			return decl, err
		}
		ref, err := b.bind(expr)
		if err != nil {
			return decl, err
		}
		decl.Params = append(decl.Params, ref)
	}
	if h.Returns == "" {
		return decl, errors.Configurationf("handler has no return type")
	}
	expr, err := ParseExpr(h.Returns)
	if err != nil {
		return decl, err
	}
	if decl.Returns, err = b.bind(expr); err != nil {
		return decl, err
	}
	return decl, nil
}
