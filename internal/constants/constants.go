package constants

import "time"

const (
	DefaultPollInterval  = 500 * time.Millisecond
	DefaultBufferSize    = 4096
	DefaultQueueCapacity = 500
	EnqueueTimeout       = time.Minute
)

const (
	DefaultRepetitionWindow = 2 * time.Minute
)

const (
	DefaultFlushInterval = time.Minute
	DefaultMaxActions    = 1000
	DefaultMaxConcurrent = 4
	DefaultDestination   = "logalike"
	DefaultDocumentType  = "logalike"
	ConnectTimeout       = 10 * time.Second
	DispatchTimeout      = 30 * time.Second
)

const (
	StoreDirectoryName = ".logalike_store"
)

const (
	ShutdownTimeout = 5 * time.Second
)
