package collector

import "errors"

var (
	// ErrAlreadyRunning is returned when another collection holds the single-flight flag.
	ErrAlreadyRunning = errors.New("collection already running")
	// ErrCollectionFailed wraps any failure that aborts a run.
	ErrCollectionFailed = errors.New("collection failed")
)

// Kinds of absorbed failures, used as log messages and metric labels.
const (
	degradedStoreRead = "store_read_degraded"
	degradedPersist   = "record_persist_failure"
	degradedPublish   = "event_publish_failure"
)

// ErrEmptyQuery is returned when neither the request nor the config names a search query.
var ErrEmptyQuery = errors.New("search query is empty")
