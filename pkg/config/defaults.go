// Package config provides YAML-based project configuration for textdedup.
package config

// Pipeline default values, re-exported as named constants so callers (and
// tests) can assert against them without hardcoding magic values.
const (
	DefaultPipelineDedupMode       = defaultDedupMode
	DefaultPipelineMaxLength       = defaultMaxLength
	DefaultPipelineWorkers         = defaultWorkers
	DefaultPipelineWriteDuplicates = defaultWriteDuplicates
	DefaultPipelineMemoryBudget    = ""
)

// Logging default values.
const (
	DefaultLoggingLevel  = defaultLogLevel
	DefaultLoggingFormat = defaultLogFormat
)

// Observability default values.
const (
	DefaultObservabilityOTLPEndpoint = ""
	DefaultObservabilityOTLPInsecure = false
	DefaultObservabilitySampleRatio  = 0.0
)
