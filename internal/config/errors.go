package config

import "errors"

// Validation errors returned when required configuration groups are
// incomplete or invalid.
var (
	// ErrInvalidReplicationConfigs indicates invalid replication settings
	// (for example, no table or a non-positive batch size).
	ErrInvalidReplicationConfigs = errors.New("invalid replication configuration")
	// ErrInvalidAdapterConfigs indicates invalid remote backend settings
	// (for example, a postgrest adapter without a URL).
	ErrInvalidAdapterConfigs = errors.New("invalid adapter configuration")
	// ErrInvalidStorageConfigs indicates invalid local storage settings
	// (for example, an empty DSN).
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
)
