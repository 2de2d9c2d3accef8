// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/internal/utils"
	"github.com/MKhiriev/go-table-replicator/models"
)

const maxDocumentSize = 1 << 20

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	docs, err := h.documents.List(r.Context())
	if err != nil {
		log.Err(err).Str("func", "*Handler.listDocuments").Msg("error listing documents")
		utils.WriteError(w, err.Error(), statusFromError(err))
		return
	}

	_, _ = utils.WriteJSON(w, docs, http.StatusOK)
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)
	id := chi.URLParam(r, "id")

	doc, err := h.documents.Get(r.Context(), id)
	if err != nil {
		log.Err(err).Str("func", "*Handler.getDocument").Str("id", id).Msg("error getting document")
		utils.WriteError(w, err.Error(), statusFromError(err))
		return
	}

	_, _ = utils.WriteJSON(w, doc, http.StatusOK)
}

func (h *Handler) putDocument(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)
	id := chi.URLParam(r, "id")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentSize))
	if err != nil {
		log.Err(err).Str("func", "*Handler.putDocument").Msg("error reading request body")
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := models.DecodeDocument(body)
	if err != nil || doc == nil {
		log.Debug().Err(err).Str("func", "*Handler.putDocument").Msg("invalid JSON document")
		utils.WriteError(w, "request body must be a JSON object", http.StatusBadRequest)
		return
	}

	stored, err := h.documents.Put(r.Context(), id, doc)
	if err != nil {
		log.Err(err).Str("func", "*Handler.putDocument").Str("id", id).Msg("error writing document")
		utils.WriteError(w, err.Error(), statusFromError(err))
		return
	}

	_, _ = utils.WriteJSON(w, stored, http.StatusOK)
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)
	id := chi.URLParam(r, "id")

	if err := h.documents.Delete(r.Context(), id); err != nil {
		log.Err(err).Str("func", "*Handler.deleteDocument").Str("id", id).Msg("error deleting document")
		utils.WriteError(w, err.Error(), statusFromError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
