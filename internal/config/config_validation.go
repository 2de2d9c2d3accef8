// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"net/url"
)

// validate checks the merged [StructuredConfig] for values that can never be
// valid regardless of defaults.
func (cfg *StructuredConfig) validate() error {
	if cfg.Replication.BatchSize < 0 {
		return fmt.Errorf("%w: batch size must not be negative", ErrInvalidReplicationConfigs)
	}
	if cfg.Replication.RetryTime < 0 || cfg.Replication.ResyncInterval < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidReplicationConfigs)
	}

	return nil
}

func (cfg *ReplicatorConfig) validate() error {
	r := cfg.Replication
	if r.Table == "" {
		return fmt.Errorf("%w: table or collection is required", ErrInvalidReplicationConfigs)
	}
	if r.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidReplicationConfigs)
	}
	if r.PrimaryKey == r.ModifiedField || r.PrimaryKey == r.DeletedField || r.ModifiedField == r.DeletedField {
		return fmt.Errorf("%w: primary key, modified and deleted fields must differ", ErrInvalidReplicationConfigs)
	}
	if !r.Pull && !r.Push {
		return fmt.Errorf("%w: at least one of pull and push must be enabled", ErrInvalidReplicationConfigs)
	}

	a := cfg.Adapter
	switch a.Kind {
	case AdapterPostgREST:
		u, err := url.Parse(a.RESTURL)
		if a.RESTURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: postgrest adapter needs an absolute rest url", ErrInvalidAdapterConfigs)
		}
		if a.JWTSecret != "" && a.JWTRole == "" {
			return fmt.Errorf("%w: jwt role is required with a jwt secret", ErrInvalidAdapterConfigs)
		}
	case AdapterPostgres:
		if a.DSN == "" {
			return fmt.Errorf("%w: postgres adapter needs a dsn", ErrInvalidAdapterConfigs)
		}
	case AdapterMemory:
	default:
		return fmt.Errorf("%w: unknown adapter kind %q", ErrInvalidAdapterConfigs, a.Kind)
	}
	if a.InstallTriggers && a.DSN == "" {
		return fmt.Errorf("%w: installing triggers needs a dsn", ErrInvalidAdapterConfigs)
	}

	if cfg.Storage.DB.DSN == "" {
		return ErrInvalidStorageConfigs
	}

	return nil
}
