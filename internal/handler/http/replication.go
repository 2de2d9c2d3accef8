package http

import (
	"net/http"

	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/internal/utils"
)

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	_, _ = utils.WriteJSON(w, h.replication.Status(), http.StatusOK)
}

// resync only schedules a catch-up pull; the result shows up in the status.
func (h *Handler) resync(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	h.replication.ReSync()
	log.Info().Str("func", "*Handler.resync").Msg("resync requested")

	w.WriteHeader(http.StatusAccepted)
}
