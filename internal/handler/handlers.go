// Package handler provides the HTTP handlers implementing the sync
// protocol's REST contract.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	apierrors "github.com/synceddb/syncstore/internal/errors"
	"github.com/synceddb/syncstore/internal/model"
	"github.com/synceddb/syncstore/internal/store"
	"go.uber.org/zap"
)

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	svc          *store.Service
	errorHandler *apierrors.Handler
	logger       *zap.Logger
	defaultStore string
}

// NewHandlers creates a new Handlers instance. defaultStore is the
// collection used when a request names no store.
func NewHandlers(svc *store.Service, errorHandler *apierrors.Handler, logger *zap.Logger, defaultStore string) *Handlers {
	return &Handlers{
		svc:          svc,
		errorHandler: errorHandler,
		logger:       logger,
		defaultStore: defaultStore,
	}
}

// List handles GET /{store}?size=N&after=T&after_id=I requests.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	q := r.URL.Query()

	size := 0
	if s := q.Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			h.errorHandler.WriteValidationError(w, "size must be an integer", requestID)
			return
		}
		size = n
	}

	cursor, err := model.ParseCursor(q.Get("after"), q.Get("after_id"))
	if err != nil {
		h.errorHandler.WriteValidationError(w, err.Error(), requestID)
		return
	}

	page, err := h.svc.List(r.Context(), h.storeName(r), cursor, size)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, page)
}

// Create handles POST /{store} requests.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}

	if err := h.svc.Create(r.Context(), h.storeName(r), rec); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Get handles GET /{store}/{id} requests.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), h.storeName(r), mux.Vars(r)["id"])
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, rec)
}

// Update handles PUT /{store}/{id} requests. A stale version yields 409
// with the authoritative current record as the body, so the client can
// re-read and retry without another round trip.
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}

	err := h.svc.Update(r.Context(), h.storeName(r), mux.Vars(r)["id"], rec)
	if err != nil {
		if se, ok := apierrors.AsStoreError(err); ok && se.Code == apierrors.ErrCodeVersionConflict && se.Current != nil {
			h.writeJSONResponse(w, http.StatusConflict, se.Current)
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /{store}/{id} requests.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), h.storeName(r), mux.Vars(r)["id"]); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) storeName(r *http.Request) string {
	if name := mux.Vars(r)["store"]; name != "" {
		return name
	}
	return h.defaultStore
}

func (h *Handlers) decodeRecord(w http.ResponseWriter, r *http.Request) (*model.Record, bool) {
	requestID := r.Header.Get("X-Request-ID")

	var rec model.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		h.errorHandler.WriteValidationError(w, "malformed record body: "+err.Error(), requestID)
		return nil, false
	}
	return &rec, true
}

func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
