package http

import (
	"errors"
	"net/http"

	"github.com/MKhiriev/go-table-replicator/internal/service"
	"github.com/MKhiriev/go-table-replicator/internal/store"
)

var errorStatusMap = map[error]int{
	service.ErrInvalidDocument:   http.StatusBadRequest,
	service.ErrMissingPrimaryKey: http.StatusBadRequest,

	store.ErrDocumentNotFound:  http.StatusNotFound,
	store.ErrMissingPrimaryKey: http.StatusBadRequest,

	store.ErrExecutingQuery:       http.StatusInternalServerError,
	store.ErrBeginningTransaction: http.StatusInternalServerError,
	store.ErrCommitingTransaction: http.StatusInternalServerError,
	store.ErrExecutingStatement:   http.StatusInternalServerError,
	store.ErrScanningRow:          http.StatusInternalServerError,
	store.ErrScanningRows:         http.StatusInternalServerError,
	store.ErrEncodingDocument:     http.StatusInternalServerError,
}

func statusFromError(err error) int {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}
