package config

// Compiler defaults.
const (
	DefaultSourceDir           = "src"
	DefaultOutDir              = "build"
	DefaultExtension           = ".js"
	DefaultWorkers             = 0
	DefaultFailFast            = false
	DefaultMaxSourceSize       = "4MB"
	DefaultMaxAggregationDepth = 64
)

// Runtime defaults.
const (
	DefaultRuntimeModuleID = "esmlink.runtime"
	DefaultRuntimeEmit     = true
)

// Manifest formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Manifest defaults.
const (
	DefaultManifestPath   = ""
	DefaultManifestFormat = FormatJSON
)

// Cache defaults.
const (
	DefaultParseCacheSize = "64MB"
)

// Logging formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = LogFormatText
)
