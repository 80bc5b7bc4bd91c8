package nextdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mpapenbr/telemetry-replay/log"
	"github.com/mpapenbr/telemetry-replay/pkg/model"
	"github.com/mpapenbr/telemetry-replay/pkg/replay"
)

const Path = "/next_data"

// Source provides the emissions served by the handler
type Source interface {
	Next(ctx context.Context) (*model.Emission, error)
}

type handler struct {
	source Source
	log    *log.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHandler(src Source, l *log.Logger) http.Handler {
	return &handler{source: src, log: l}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		h.write(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	e, err := h.source.Next(r.Context())
	switch {
	case err == nil:
		h.write(w, http.StatusOK, e.ToJSONValue())
	case errors.Is(err, replay.ErrExhausted):
		h.write(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.write(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		h.log.Error("could not provide next sample", log.ErrorField(err))
		h.write(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (h *handler) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Debug("could not write response", log.ErrorField(err))
	}
}
