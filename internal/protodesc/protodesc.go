// Package protodesc reads compiled protobuf descriptor sets into a metadata
// catalog. Produce the input with
//
//	protoc --include_imports --include_source_info -o api.pb.desc api.proto
package protodesc

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/metadata"
	"github.com/okra-platform/dtogen/internal/naming"
)

// RouteTemplate is the route every service method is declared with.
const RouteTemplate = "[controller]/[action]"

var (
	timestampName = (&timestamppb.Timestamp{}).ProtoReflect().Descriptor().FullName()

	// wrapper messages are nullable scalars
	wrappers = map[protoreflect.FullName]metadata.TypeID{
		(&wrapperspb.BoolValue{}).ProtoReflect().Descriptor().FullName():   metadata.BuiltinBool,
		(&wrapperspb.StringValue{}).ProtoReflect().Descriptor().FullName(): metadata.BuiltinString,
		(&wrapperspb.BytesValue{}).ProtoReflect().Descriptor().FullName():  metadata.BuiltinBlob,
		(&wrapperspb.Int32Value{}).ProtoReflect().Descriptor().FullName():  metadata.BuiltinInt32,
		(&wrapperspb.UInt32Value{}).ProtoReflect().Descriptor().FullName(): metadata.BuiltinInt64,
		(&wrapperspb.Int64Value{}).ProtoReflect().Descriptor().FullName():  metadata.BuiltinInt64,
		(&wrapperspb.UInt64Value{}).ProtoReflect().Descriptor().FullName(): metadata.BuiltinInt64,
		(&wrapperspb.FloatValue{}).ProtoReflect().Descriptor().FullName():  metadata.BuiltinFloat32,
		(&wrapperspb.DoubleValue{}).ProtoReflect().Descriptor().FullName(): metadata.BuiltinFloat64,
	}

	// untyped JSON payloads
	objects = map[protoreflect.FullName]bool{
		"google.protobuf.Struct": true,
		"google.protobuf.Value":  true,
		"google.protobuf.Any":    true,
	}
)

// LoadFileDescriptors reads a binary FileDescriptorSet.
func LoadFileDescriptors(path string) (*descriptorpb.FileDescriptorSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO(err, "failed to read descriptor set %s", path)
	}
	fds := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(data, fds); err != nil {
		return nil, errors.WrapConfiguration(err, "invalid descriptor set %s", path)
	}
	return fds, nil
}

// Load reads every descriptor set in paths and converts them together.
func Load(ctx context.Context, paths []string) (*metadata.Catalog, error) {
	log := zerolog.Ctx(ctx).With().Str("component", "protodesc").Logger()
	merged := &descriptorpb.FileDescriptorSet{}
	seen := make(map[string]bool)
	for _, p := range paths {
		fds, err := LoadFileDescriptors(p)
		if err != nil {
			return nil, err
		}
		for _, f := range fds.GetFile() {
			if seen[f.GetName()] {
				continue
			}
			seen[f.GetName()] = true
			merged.File = append(merged.File, f)
		}
		log.Debug().Str("path", p).Int("files", len(fds.GetFile())).Msg("descriptor set loaded")
	}
	return Convert(merged)
}

// resolver finds imports in the set being built, then among the well-known
// types linked into the binary.
type resolver struct {
	local *protoregistry.Files
}

func (r resolver) FindFileByPath(path string) (protoreflect.FileDescriptor, error) {
	if fd, err := r.local.FindFileByPath(path); err == nil {
		return fd, nil
	}
	return protoregistry.GlobalFiles.FindFileByPath(path)
}

func (r resolver) FindDescriptorByName(name protoreflect.FullName) (protoreflect.Descriptor, error) {
	if d, err := r.local.FindDescriptorByName(name); err == nil {
		return d, nil
	}
	return protoregistry.GlobalFiles.FindDescriptorByName(name)
}

// Files links the descriptor protos of fds. Files must be ordered with
// their dependencies first, as protoc writes them.
func Files(fds *descriptorpb.FileDescriptorSet) (*protoregistry.Files, error) {
	files := new(protoregistry.Files)
	for _, fdProto := range fds.GetFile() {
		fd, err := protodesc.NewFile(fdProto, resolver{local: files})
		if err != nil {
			return nil, errors.WrapConfiguration(err, "failed to link %s", fdProto.GetName())
		}
		if err := files.RegisterFile(fd); err != nil {
			return nil, errors.WrapConfiguration(err, "failed to register %s", fdProto.GetName())
		}
	}
	return files, nil
}

type converter struct {
	catalog *metadata.Catalog
}

// Convert declares the messages, enums and services of fds in a fresh
// catalog. Files of the google.protobuf package are only used for linking.
// Every top-level message is a root.
func Convert(fds *descriptorpb.FileDescriptorSet) (*metadata.Catalog, error) {
	files, err := Files(fds)
	if err != nil {
		return nil, err
	}
	cv := &converter{catalog: metadata.NewCatalog()}

	var sources []protoreflect.FileDescriptor
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		if fd.Package() != "google.protobuf" {
			sources = append(sources, fd)
		}
		return true
	})
	// RangeFiles has no defined order
	order := make(map[string]int)
	for i, f := range fds.GetFile() {
		order[f.GetName()] = i
	}
	sort.SliceStable(sources, func(i, j int) bool {
		return order[sources[i].Path()] < order[sources[j].Path()]
	})

	for _, fd := range sources {
		if err := cv.declareEnums(fd.Enums(), ""); err != nil {
			return nil, err
		}
		if err := cv.declareMessages(fd.Messages(), ""); err != nil {
			return nil, err
		}
	}
	for _, fd := range sources {
		if err := cv.populateMessages(fd.Messages()); err != nil {
			return nil, err
		}
		if err := cv.declareServices(fd); err != nil {
			return nil, err
		}
	}
	if err := cv.catalog.Validate(); err != nil {
		return nil, err
	}
	return cv.catalog, nil
}

func typeID(d protoreflect.Descriptor) metadata.TypeID {
	return metadata.TypeID(d.FullName())
}

func leadingDoc(d protoreflect.Descriptor) string {
	loc := d.ParentFile().SourceLocations().ByDescriptor(d)
	return strings.TrimSpace(loc.LeadingComments)
}

func isDeprecated(opts proto.Message) bool {
	switch o := opts.(type) {
	case *descriptorpb.MessageOptions:
		return o.GetDeprecated()
	case *descriptorpb.FieldOptions:
		return o.GetDeprecated()
	case *descriptorpb.EnumOptions:
		return o.GetDeprecated()
	case *descriptorpb.MethodOptions:
		return o.GetDeprecated()
	}
	return false
}

func (cv *converter) info(d protoreflect.Descriptor, name string) metadata.TypeInfo {
	info := metadata.TypeInfo{
		ID:          typeID(d),
		Name:        name,
		Namespace:   string(d.ParentFile().Package()),
		Annotations: metadata.Annotations{},
		Doc:         leadingDoc(d),
	}
	if isDeprecated(d.Options()) {
		info.Annotations.Set(metadata.AnnDeprecated, true)
	}
	return info
}

// declareEnums declares enums. Nested enums are prefixed with the names of
// their enclosing messages, so Order.Status becomes OrderStatus.
func (cv *converter) declareEnums(enums protoreflect.EnumDescriptors, prefix string) error {
	for i := 0; i < enums.Len(); i++ {
		ed := enums.Get(i)
		name := prefix + string(ed.Name())
		info := cv.info(ed, name)
		info.Annotations.Set(metadata.AnnEnumValues, true)

		// ORDER_STATUS_OPEN in enum OrderStatus is member Open
		trim := naming.Parse(string(ed.Name())).ScreamingSnake() + "_"
		var members []metadata.EnumMemberDecl
		for j := 0; j < ed.Values().Len(); j++ {
			v := ed.Values().Get(j)
			raw := strings.TrimPrefix(string(v.Name()), trim)
			number := int64(v.Number())
			members = append(members, metadata.EnumMemberDecl{
				Name:  naming.Parse(raw).Capital(),
				Value: &number,
				Doc:   leadingDoc(v),
			})
		}
		if err := cv.catalog.AddEnum(info, members...); err != nil {
			return err
		}
	}
	return nil
}

func (cv *converter) declareMessages(msgs protoreflect.MessageDescriptors, parent metadata.TypeID) error {
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		if md.IsMapEntry() {
			continue
		}
		info := cv.info(md, string(md.Name()))
		info.Parent = parent
		if err := cv.catalog.AddModel(info); err != nil {
			return err
		}
		if parent == "" {
			if err := cv.catalog.AddRoot(info.ID); err != nil {
				return err
			}
		}
		if err := cv.declareEnums(md.Enums(), enumPrefix(md)); err != nil {
			return err
		}
		if err := cv.declareMessages(md.Messages(), info.ID); err != nil {
			return err
		}
	}
	return nil
}

func enumPrefix(md protoreflect.MessageDescriptor) string {
	pkg := string(md.ParentFile().Package())
	rel := strings.TrimPrefix(string(md.FullName()), pkg+".")
	return strings.ReplaceAll(rel, ".", "")
}

func (cv *converter) populateMessages(msgs protoreflect.MessageDescriptors) error {
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		if md.IsMapEntry() {
			continue
		}
		for j := 0; j < md.Fields().Len(); j++ {
			fd := md.Fields().Get(j)
			ref, err := cv.fieldRef(fd)
			if err != nil {
				return errors.Wrapf(err, "field %s", fd.FullName())
			}
			decl := metadata.FieldDecl{
				Name:        string(fd.Name()),
				Type:        ref,
				Annotations: metadata.Annotations{},
			}
			if doc := leadingDoc(fd); doc != "" {
				decl.Annotations.Set(metadata.AnnDoc, doc)
			}
			if isDeprecated(fd.Options()) {
				decl.Annotations.Set(metadata.AnnDeprecated, true)
			}
			if fd.Cardinality() == protoreflect.Required {
				decl.Annotations.Set(metadata.AnnRequired, true)
			}
			if err := cv.catalog.AddField(typeID(md), decl); err != nil {
				return err
			}
		}
		if err := cv.populateMessages(md.Messages()); err != nil {
			return err
		}
	}
	return nil
}

// fieldRef maps a field. Singular fields with explicit presence (proto3
// optional, messages, oneof members) are nullable.
func (cv *converter) fieldRef(fd protoreflect.FieldDescriptor) (metadata.TypeRef, error) {
	if fd.IsMap() {
		key, err := cv.kindRef(fd.MapKey())
		if err != nil {
			return key, err
		}
		value, err := cv.kindRef(fd.MapValue())
		if err != nil {
			return value, err
		}
		return metadata.Named(metadata.BuiltinDictionary, key, value), nil
	}
	ref, err := cv.kindRef(fd)
	if err != nil {
		return ref, err
	}
	if fd.IsList() {
		return metadata.ListOf(ref), nil
	}
	if fd.HasPresence() && ref.ID != metadata.BuiltinNullable {
		return metadata.NullableOf(ref), nil
	}
	return ref, nil
}

func (cv *converter) kindRef(fd protoreflect.FieldDescriptor) (metadata.TypeRef, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return metadata.Named(metadata.BuiltinBool), nil
	case protoreflect.StringKind:
		return metadata.Named(metadata.BuiltinString), nil
	case protoreflect.BytesKind:
		return metadata.Named(metadata.BuiltinBlob), nil
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return metadata.Named(metadata.BuiltinInt32), nil
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return metadata.Named(metadata.BuiltinInt64), nil
	case protoreflect.FloatKind:
		return metadata.Named(metadata.BuiltinFloat32), nil
	case protoreflect.DoubleKind:
		return metadata.Named(metadata.BuiltinFloat64), nil
	case protoreflect.EnumKind:
		return metadata.Named(typeID(fd.Enum())), nil
	case protoreflect.MessageKind:
		return cv.messageRef(fd.Message())
	}
	return metadata.TypeRef{}, errors.Configurationf("unsupported field kind %s", fd.Kind())
}

func (cv *converter) messageRef(md protoreflect.MessageDescriptor) (metadata.TypeRef, error) {
	name := md.FullName()
	switch {
	case name == timestampName:
		return metadata.Named(metadata.BuiltinDateTime), nil
	case objects[name]:
		return metadata.Named(metadata.BuiltinObject), nil
	}
	if id, ok := wrappers[name]; ok {
		return metadata.NullableOf(metadata.Named(id)), nil
	}
	if md.ParentFile().Package() == "google.protobuf" {
		return metadata.TypeRef{}, errors.Configurationf("unsupported well-known type %s", name)
	}
	return metadata.Named(typeID(md)), nil
}

// declareServices turns every unary method into a POST handler. The
// "Service" suffix of the service name is dropped from the controller.
func (cv *converter) declareServices(fd protoreflect.FileDescriptor) error {
	for i := 0; i < fd.Services().Len(); i++ {
		sd := fd.Services().Get(i)
		controller := strings.TrimSuffix(string(sd.Name()), "Service")
		if controller == "" {
			controller = string(sd.Name())
		}
		for j := 0; j < sd.Methods().Len(); j++ {
			m := sd.Methods().Get(j)
			if m.IsStreamingClient() || m.IsStreamingServer() {
				return errors.Configurationf("streaming method %s is not supported", m.FullName())
			}
			cv.catalog.AddHandler(metadata.HandlerDecl{
				Controller:    controller,
				Action:        string(m.Name()),
				RouteTemplate: RouteTemplate,
				Verb:          metadata.VerbPost,
				Deprecated:    isDeprecated(m.Options()),
				Params:        []metadata.TypeRef{metadata.Named(typeID(m.Input()))},
				Returns:       metadata.Named(typeID(m.Output())),
				Namespace:     string(fd.Package()),
			})
		}
	}
	return nil
}
