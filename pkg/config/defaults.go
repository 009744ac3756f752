package config

// Scan defaults.
const (
	DefaultScanWorkers     = 0
	DefaultScanMaxFileSize = "1MB"
	DefaultScanLanguage    = ""
)

// Rule defaults.
const (
	DefaultRulesPath = "rules"
)

// Output defaults.
const (
	DefaultOutputFormat = FormatText
	DefaultOutputColor  = true
)

// Logging defaults.
const (
	DefaultLoggingLevel = "info"
	DefaultLoggingJSON  = false
)

// Telemetry defaults.
const (
	DefaultTelemetryEndpoint    = ""
	DefaultTelemetryInsecure    = false
	DefaultTelemetrySampleRatio = 1.0
)
