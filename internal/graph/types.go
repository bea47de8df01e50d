package graph

import (
	"encoding/json"
	"fmt"
)

// ValueKind discriminates the shapes an annotation argument can take in
// source: a plain string literal, an array of literals, or an arbitrary
// expression we keep as raw text.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueStringList
	ValueRaw
)

// Value is an annotation argument value. Callers that only want "the"
// value use First; callers that care about arrays check Kind.
type Value struct {
	Kind ValueKind
	Str  string
	List []string
}

func StringValue(s string) Value  { return Value{Kind: ValueString, Str: s} }
func ListValue(vs []string) Value { return Value{Kind: ValueStringList, List: vs} }
func RawValue(expr string) Value  { return Value{Kind: ValueRaw, Str: expr} }

// First returns the single string form of the value: the string itself,
// the first array element, or the raw expression text.
func (v Value) First() string {
	if v.Kind == ValueStringList {
		if len(v.List) == 0 {
			return ""
		}
		return v.List[0]
	}
	return v.Str
}

func (v Value) IsZero() bool {
	return v.Str == "" && len(v.List) == 0
}

// MarshalJSON keeps the persisted form close to the source shape:
// strings and raw expressions as JSON strings, arrays as JSON arrays.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == ValueStringList {
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Str)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Value{Kind: ValueString, Str: s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = Value{Kind: ValueStringList, List: list}
		return nil
	}
	return fmt.Errorf("annotation value is neither string nor string array: %s", data)
}

// Annotation is one annotation occurrence. Name holds the resolved FQN
// when resolution succeeded and the simple name otherwise. Args is nil
// for marker annotations.
type Annotation struct {
	Name string           `json:"name"`
	Args map[string]Value `json:"arguments,omitempty"`
}

// Arg returns the named argument, or a zero Value when absent.
func (a Annotation) Arg(key string) Value {
	if a.Args == nil {
		return Value{}
	}
	return a.Args[key]
}

// FindAnnotation returns the first annotation whose name matches any of
// the given FQNs, or nil.
func FindAnnotation(anns []Annotation, fqns ...string) *Annotation {
	for i := range anns {
		for _, fqn := range fqns {
			if anns[i].Name == fqn {
				return &anns[i]
			}
		}
	}
	return nil
}

// Invocation is a raw call site recorded inside a method body. Receiver
// is the textual receiver expression; empty for implicit-receiver calls.
type Invocation struct {
	Name     string
	Receiver string
}

// Method is a declared (or synthesized) method of a class.
type Method struct {
	Name        string
	FullName    string // <class full name>.<method name>
	ReturnType  string
	Parameters  string // textual signature, e.g. "String name, int age"
	Static      bool
	Abstract    bool
	Visibility  string
	StartLine   int
	EndLine     int
	Annotations []Annotation
	Synthetic   bool

	// Invocations is extractor output only; it is never persisted.
	Invocations []Invocation
}

// Class is one extracted type declaration: class, interface, enum or
// record. Nested types are separate Class records with a dotted
// FullName.
type Class struct {
	Name          string
	FullName      string
	Package       string
	Kind          string // class | interface | enum | record
	Abstract      bool
	Test          bool
	FilePath      string
	Visibility    string
	Source        string
	Imports       []string
	StarImports   []string
	StaticImports map[string]string // member name -> declaring class FQN
	Supertypes    []string          // raw simple names from extends/implements
	Annotations   []Annotation
	Fields        map[string]string // field name -> raw declared type (generics erased)
	Methods       []*Method
}

// RESTInterface and the other Arch structs mirror the overlay node
// schema. Each carries the full name of the metamodel node it is
// derived from, which becomes the IMPLEMENTED_BY edge.

type RESTInterface struct {
	Name     string
	BasePath string
	Class    string // implementing class full name
}

type RESTEndpoint struct {
	Path       string
	HTTPMethod string
	Produces   string
	Consumes   string
	Interface  string // owning RESTInterface name
	Class      string // owning interface's class full name
	Method     string // implementing method full name
}

type FeignClient struct {
	Name      string
	URL       string
	Path      string
	ServiceID string
	Class     string
}

type FeignEndpoint struct {
	Path       string
	HTTPMethod string
	Client     string // owning client's class full name
	Method     string // implementing method full name
}

type HTTPClient struct {
	Name       string
	ClientType string // RestTemplate | WebClient
	Class      string
}

type JMSListener struct {
	Destination      string
	Selector         string
	Concurrency      string
	ContainerFactory string
	Method           string
}

type JMSProducer struct {
	Name         string
	Class        string
	Destinations []string
}

type ScheduledTask struct {
	Cron         string
	FixedDelay   string
	FixedRate    string
	InitialDelay string
	Zone         string
	Method       string
}

// Microservice is the repository-level overlay node. Technologies is
// the union of the technologies detected across the repository's
// modules.
type Microservice struct {
	Name         string
	RepoPath     string
	Technologies []string
}

type DataRepository struct {
	Name       string
	EntityType string
	RepoType   string // JPA | CRUD | Mongo | Reactive | Elasticsearch | Redis
	Class      string
}

// ModuleSummary reports node/edge counts for one module's subtree. Used
// by the API and by idempotence checks.
type ModuleSummary struct {
	Packages    int `json:"packages"`
	Classes     int `json:"classes"`
	Methods     int `json:"methods"`
	Calls       int `json:"calls"`
	ArchNodes   int `json:"arch_nodes"`
	ParseErrors int `json:"parse_errors,omitempty"`
}

// MarshalAnnotations encodes annotations the way they are stored on a
// graph node property. Empty slices encode as "[]" so readers never see
// null.
func MarshalAnnotations(anns []Annotation) string {
	if len(anns) == 0 {
		return "[]"
	}
	data, err := json.Marshal(anns)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// UnmarshalAnnotations is the tolerant inverse of MarshalAnnotations:
// malformed input yields an empty list, never an error.
func UnmarshalAnnotations(s string) []Annotation {
	if s == "" {
		return nil
	}
	var anns []Annotation
	if err := json.Unmarshal([]byte(s), &anns); err != nil {
		return nil
	}
	return anns
}
