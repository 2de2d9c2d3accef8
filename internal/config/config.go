// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the
// replicator. It aggregates all sub-configurations and is populated by
// merging values from environment variables, command-line flags, and an
// optional JSON or YAML file.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env      : direct environment variable name for scalar fields.
//
// Boolean switches are pointers so that an explicit "false" can be told apart
// from "not set" when sources are merged.
type StructuredConfig struct {
	// Replication describes the replicated table and the session behaviour.
	Replication Replication `envPrefix:"REPLICATION_"`

	// Adapter selects and configures the remote backend.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Storage holds the local document store settings.
	Storage Storage `envPrefix:"STORAGE_"`

	// Server holds the status API listen address and timeouts.
	Server Server `envPrefix:"SERVER_"`

	// JSONFilePath is the optional path to a JSON or YAML configuration file.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Replication holds the settings of one replication session.
type Replication struct {
	// Identifier names the persisted checkpoint. Two sessions with the same
	// identifier share a cursor.
	// Env: REPLICATION_IDENTIFIER
	Identifier string `env:"IDENTIFIER"`

	// Collection is the local collection name. Defaults to Table.
	// Env: REPLICATION_COLLECTION
	Collection string `env:"COLLECTION"`

	// Table is the remote table name. Defaults to Collection.
	// Env: REPLICATION_TABLE
	Table string `env:"TABLE"`

	// PrimaryKey is the single primary key column.
	// Env: REPLICATION_PRIMARY_KEY
	PrimaryKey string `env:"PRIMARY_KEY"`

	// ModifiedField is the server-maintained modification timestamp column.
	// Env: REPLICATION_MODIFIED_FIELD
	ModifiedField string `env:"MODIFIED_FIELD"`

	// DeletedField is the boolean soft-delete column.
	// Env: REPLICATION_DELETED_FIELD
	DeletedField string `env:"DELETED_FIELD"`

	// KeepModifiedField keeps the modification timestamp in local documents.
	// Env: REPLICATION_KEEP_MODIFIED_FIELD
	KeepModifiedField *bool `env:"KEEP_MODIFIED_FIELD"`

	// BatchSize is the pull page size.
	// Env: REPLICATION_BATCH_SIZE
	BatchSize int `env:"BATCH_SIZE"`

	// Live keeps the session running after the initial replication.
	// Env: REPLICATION_LIVE
	Live *bool `env:"LIVE"`

	// Realtime subscribes to the remote change feed while live.
	// Env: REPLICATION_REALTIME
	Realtime *bool `env:"REALTIME"`

	// Pull enables remote-to-local replication.
	// Env: REPLICATION_PULL
	Pull *bool `env:"PULL"`

	// Push enables local-to-remote replication.
	// Env: REPLICATION_PUSH
	Push *bool `env:"PUSH"`

	// RetryTime is the delay before a failed pull or push is replayed.
	// Env: REPLICATION_RETRY_TIME
	RetryTime time.Duration `env:"RETRY_TIME"`

	// ResyncInterval triggers a catch-up pull periodically. Zero disables it.
	// Env: REPLICATION_RESYNC_INTERVAL
	ResyncInterval time.Duration `env:"RESYNC_INTERVAL"`
}

// Adapter selects the remote backend.
type Adapter struct {
	// Kind is one of "postgrest", "postgres" or "memory".
	// Env: ADAPTER_KIND
	Kind string `env:"KIND"`

	// RESTURL is the PostgREST / Supabase project URL
	// (e.g. "https://xyz.supabase.co").
	// Env: ADAPTER_REST_URL
	RESTURL string `env:"REST_URL"`

	// APIKey is sent as the apikey header and, when no JWT secret is set,
	// as the bearer token.
	// Env: ADAPTER_API_KEY
	APIKey string `env:"API_KEY"`

	// JWTSecret signs role tokens for PostgREST. Optional.
	// Env: ADAPTER_JWT_SECRET
	JWTSecret string `env:"JWT_SECRET"`

	// JWTRole is the database role claimed by minted tokens.
	// Env: ADAPTER_JWT_ROLE
	JWTRole string `env:"JWT_ROLE"`

	// JWTDuration is the lifetime of a minted token.
	// Env: ADAPTER_JWT_DURATION
	JWTDuration time.Duration `env:"JWT_DURATION"`

	// RequestTimeout bounds a single remote request.
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// DSN is the remote PostgreSQL connection string. Required for the
	// "postgres" kind, optional for "postgrest" where it enables the
	// LISTEN/NOTIFY change feed.
	// Env: ADAPTER_DATABASE_URI
	DSN string `env:"DATABASE_URI"`

	// NotifyChannel is the LISTEN/NOTIFY channel carrying row changes.
	// Env: ADAPTER_NOTIFY_CHANNEL
	NotifyChannel string `env:"NOTIFY_CHANNEL"`

	// InstallTriggers installs the modification and notification triggers
	// on the remote table at startup. Requires DSN.
	// Env: ADAPTER_INSTALL_TRIGGERS
	InstallTriggers *bool `env:"INSTALL_TRIGGERS"`
}

// Storage groups the local storage settings.
type Storage struct {
	// DB holds the local SQLite settings.
	DB DB `envPrefix:"DB_"`
}

// DB holds connection settings for the local SQLite document store.
type DB struct {
	// DSN is the SQLite file path or DSN (e.g. "replica.db").
	// Env: STORAGE_DB_DATABASE_URI
	DSN string `env:"DATABASE_URI"`
}

// Server holds network and timeout settings for the status API.
type Server struct {
	// HTTPAddress is the TCP address on which the HTTP server listens,
	// in "host:port" format (e.g. "0.0.0.0:8080"). Empty disables the API.
	// Env: SERVER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout is the maximum duration allowed for a single inbound
	// request.
	// Env: SERVER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// GetStructuredConfig loads and merges the configuration from all available
// sources. For every field the first source that sets it wins:
//  1. Environment variables
//  2. Command-line flags
//  3. JSON / YAML file (path resolved from sources 1 and 2)
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withFile().
		build()
}
