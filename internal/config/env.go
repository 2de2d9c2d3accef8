// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// parseEnv fills cfg from REPLICATION_*, ADAPTER_*, STORAGE_DB_* and SERVER_*
// variables. Durations use Go syntax ("5s", "1m"); unset variables leave the
// field untouched so that file values survive the merge.
func parseEnv(cfg any) error {
	if err := env.ParseWithOptions(cfg, env.Options{}); err != nil {
		return fmt.Errorf("error getting env configs: %w", err)
	}

	return nil
}
