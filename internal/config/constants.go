package config

// Manifest file names, searched in this order
var ManifestFileNames = []string{"typebind.manifest.yaml", "typebind.manifest.yml", "typebind.manifest.jsonc"}

// ConfigFileNames are the recognized tool configuration files
var ConfigFileNames = []string{"typebind.yaml", "typebind.yml"}

// DirectivePrefix marks scan directives in Go doc comments.
const DirectivePrefix = "//typebind:"

// ProvidedDirective registers a type with the container during scanning.
const ProvidedDirective = "provided"

// DefaultMaxDepth bounds inheritance recursion. Zero disables the limit.
const DefaultMaxDepth = 256

// Environment overrides
const (
	EnvLogLevel = "TYPEBIND_LOG_LEVEL"
	EnvCatalog  = "TYPEBIND_CATALOG"
)

// Built-in type names
const (
	NoneTypeName      = "None"
	AnyTypeName       = "Any"
	NeverTypeName     = "Never"
	ListTypeName      = "list"
	SetTypeName       = "set"
	DictTypeName      = "dict"
	TupleTypeName     = "tuple"
	UnionTypeName     = "Union"
	OptionalTypeName  = "Optional"
	AnnotatedTypeName = "Annotated"
)

// PrimitiveTypeNames are builtin leaf types with no structure.
var PrimitiveTypeNames = []string{"str", "int", "float", "bool", "bytes"}

// Container scopes
const (
	ScopeTransient = "transient"
	ScopeSingleton = "singleton"
	ScopeRequest   = "request"
)
