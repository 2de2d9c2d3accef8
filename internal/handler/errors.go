// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package handler

import "errors"

// errNoHandlersAreCreated is returned by NewHandlers when no HTTP address is
// configured. The replicator then runs without its API.
var errNoHandlersAreCreated = errors.New("no handlers are created")

// IsNoHandlers reports whether err means the API is disabled by configuration.
func IsNoHandlers(err error) bool {
	return errors.Is(err, errNoHandlersAreCreated)
}
