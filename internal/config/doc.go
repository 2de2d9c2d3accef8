// Package config provides configuration loading, merging, and validation
// facilities for the replicator.
//
// Configuration is assembled from multiple sources; for every field the
// first source that sets it wins:
//  1. Environment variables
//  2. Command-line flags
//  3. JSON or YAML config file
//
// The main entry points are [GetStructuredConfig] for the raw merged
// configuration and [GetReplicatorConfig] for the resolved runtime view
// with defaults applied.
package config
