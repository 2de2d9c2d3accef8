package http

import (
	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/internal/service"
	"github.com/MKhiriev/go-table-replicator/internal/utils"
	"github.com/MKhiriev/go-table-replicator/models"
)

type Handler struct {
	replication service.ReplicationService
	documents   service.DocumentService
	buildInfo   models.AppBuildInfo
	traceIDs    *utils.UUIDGenerator

	logger *logger.Logger
}

func NewHandler(services *service.Services, buildInfo models.AppBuildInfo, logger *logger.Logger) *Handler {
	logger.Info().Msg("http handler created")
	return &Handler{
		replication: services.Replication,
		documents:   services.Documents,
		buildInfo:   buildInfo,
		traceIDs:    utils.NewUUIDGenerator(),
		logger:      logger,
	}
}
