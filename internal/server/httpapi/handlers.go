package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/invoicer/internal/common"
	"github.com/dmitrijs2005/invoicer/internal/logging"
	"github.com/dmitrijs2005/invoicer/internal/server/models"
	"github.com/dmitrijs2005/invoicer/internal/server/repositories/invoices"
	"github.com/dmitrijs2005/invoicer/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type handler struct {
	store  InvoiceStore
	logger logging.Logger
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	docs := make([]json.RawMessage, 0, len(items))
	for _, inv := range items {
		docs = append(docs, inv.Document)
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.store.Get(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeDocument(w, http.StatusOK, inv)
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	inv, err := h.store.Create(r.Context(), UserIDFromContext(r.Context()), r.Header.Get(HeaderRequestID), body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/invoices/"+inv.ID)
	writeDocument(w, http.StatusCreated, inv)
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	inv, err := h.store.Update(r.Context(), UserIDFromContext(r.Context()), r.Header.Get(HeaderRequestID),
		chi.URLParam(r, "id"), body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeDocument(w, http.StatusOK, inv)
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	err := h.store.Delete(r.Context(), UserIDFromContext(r.Context()), r.Header.Get(HeaderRequestID),
		chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if !json.Valid(b) {
		writeError(w, http.StatusBadRequest, common.ErrorInvalidPayload.Error())
		return nil, false
	}
	return b, true
}

// fail maps service errors to statuses. A replayed write is acknowledged
// with 200 and an empty body.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrAlreadyApplied):
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, common.ErrorInvalidPayload):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, invoices.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, common.ErrorInternal.Error())
	}
}

func writeDocument(w http.ResponseWriter, status int, inv *models.Invoice) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(inv.Document)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
