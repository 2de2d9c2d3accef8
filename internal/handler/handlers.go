package handler

import (
	"github.com/MKhiriev/go-table-replicator/internal/config"
	"github.com/MKhiriev/go-table-replicator/internal/handler/http"
	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/internal/service"
	"github.com/MKhiriev/go-table-replicator/models"
)

type Handlers struct {
	HTTP *http.Handler
}

func NewHandlers(services *service.Services, buildInfo models.AppBuildInfo, cfg config.ReplicatorServer, logger *logger.Logger) (*Handlers, error) {
	if cfg.HTTPAddress == "" {
		return nil, errNoHandlersAreCreated
	}

	logger.Info().Msg("creating new handlers...")
	return &Handlers{HTTP: http.NewHandler(services, buildInfo, logger)}, nil
}
