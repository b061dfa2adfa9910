package metadata

// TypeInfo describes a declared model or enum.
type TypeInfo struct {
	ID        TypeID
	Name      string
	Namespace string
	// Parent is the declaring type for nested declarations.
	Parent TypeID
	// Container declarations only group nested declarations; they are not
	// models themselves.
	Container     bool
	GenericParams []string
	Annotations   Annotations
	Doc           string
}

// FieldDecl is one declared field of a model, in declaration order.
type FieldDecl struct {
	Name        string
	Type        TypeRef
	Annotations Annotations
}

// EnumMemberDecl is one declared enum member. Value is nil when the member
// has no explicit ordinal.
type EnumMemberDecl struct {
	Name  string
	Value *int64
	Doc   string
}

// OpaqueRedirect replaces a source type with an externally supplied name.
type OpaqueRedirect struct {
	Name       string
	ImportFrom string
}

// Verb is the HTTP verb a handler answers.
type Verb int

const (
	VerbGet Verb = iota
	VerbPost
)

func (v Verb) String() string {
	if v == VerbPost {
		return "POST"
	}
	return "GET"
}

// HandlerDecl is an externally declared request handler.
type HandlerDecl struct {
	Controller    string
	Action        string
	Area          string
	RouteTemplate string
	Verb          Verb
	Form          bool
	Deprecated    bool
	Params        []TypeRef
	Returns       TypeRef
	// GroupHint names a group or target project the handler belongs to.
	GroupHint string
	Namespace string
}

// Provider exposes the declared object model to the resolver. The core never
// inspects source types by any other means.
type Provider interface {
	ListRootDeclarations() []TypeID
	Describe(id TypeID) (*TypeInfo, bool)
	GetFields(id TypeID) []FieldDecl
	IsEnum(id TypeID) bool
	GetEnumMembers(id TypeID) []EnumMemberDecl
	GetOpaqueRedirect(id TypeID) (OpaqueRedirect, bool)
	GetHandlerDeclarations() []HandlerDecl
}
