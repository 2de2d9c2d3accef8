package server

import (
	"net/http"

	"github.com/MKhiriev/go-table-replicator/internal/config"
	"github.com/MKhiriev/go-table-replicator/internal/logger"
)

// NewServer builds the HTTP API server. It fails when no address is
// configured, so callers can skip the API altogether.
func NewServer(handler http.Handler, cfg config.ReplicatorServer, logger *logger.Logger) (Server, error) {
	if cfg.HTTPAddress == "" {
		return nil, errNoServersAreCreated
	}

	logger.Info().Msg("creating new server...")
	return newHTTPServer(handler, cfg, logger), nil
}
