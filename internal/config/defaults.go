package config

// Parser defaults.
const (
	DefaultLanguage     = ""
	DefaultMaxRootPaths = 1000
)

// Snapshot cache defaults.
const (
	DefaultCacheDirectory    = "/tmp/ccr-cache"
	DefaultCacheMemoryBudget = "256MB"
	DefaultCacheDiskEnabled  = true
)

// Dataset defaults. The seed keeps splits and samples reproducible across
// runs; changing it invalidates any previously published split.
const (
	DefaultDatasetSeed       = 1234
	DefaultDatasetTrainRatio = 0.8
	DefaultDatasetPNRatio    = 0.2
)

// Vocabulary defaults. A no-below of 0 means 1% of the corpus documents,
// resolved once the corpus size is known.
const (
	DefaultVocabKeep    = 500
	DefaultVocabNoBelow = 0
	DefaultVocabNoAbove = 1.0
)

// Pipeline defaults. Zero workers means one worker per CPU.
const (
	DefaultPipelineWorkers      = 0
	DefaultPipelineReposDir     = ""
	DefaultPipelineOutDir       = "."
	DefaultPipelineFetchRetries = 5
	DefaultPipelineFetchTimeout = "30s"
)

// Telemetry defaults.
const (
	DefaultLogLevel     = "info"
	DefaultLogJSON      = false
	DefaultOTLPEndpoint = ""
	DefaultMetricsAddr  = ""
)
