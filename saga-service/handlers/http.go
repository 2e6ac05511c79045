package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/draftea/saga-orchestrator/saga-service/application"
	"github.com/draftea/saga-orchestrator/shared/logger"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// SagaHandlers contains saga HTTP handlers
type SagaHandlers struct {
	startOrderSaga *application.StartOrderSaga
	advanceSaga    *application.AdvanceSaga
	compensateSaga *application.CompensateSaga
	failSaga       *application.FailSaga
	getSaga        *application.GetSaga
	listSagas      *application.ListSagas
	getHistory     *application.GetSagaHistory
	log            *logger.Logger
}

func NewSagaHandlers(
	startOrderSaga *application.StartOrderSaga,
	advanceSaga *application.AdvanceSaga,
	compensateSaga *application.CompensateSaga,
	failSaga *application.FailSaga,
	getSaga *application.GetSaga,
	listSagas *application.ListSagas,
	getHistory *application.GetSagaHistory,
	log *logger.Logger,
) *SagaHandlers {
	if log == nil {
		log = logger.Nop()
	}
	return &SagaHandlers{
		startOrderSaga: startOrderSaga,
		advanceSaga:    advanceSaga,
		compensateSaga: compensateSaga,
		failSaga:       failSaga,
		getSaga:        getSaga,
		listSagas:      listSagas,
		getHistory:     getHistory,
		log:            log,
	}
}

type errorResponse struct {
	Error string                    `json:"error"`
	Saga  *application.SagaResponse `json:"saga,omitempty"`
}

// StartSaga handles order saga creation requests
func (h *SagaHandlers) StartSaga(w http.ResponseWriter, r *http.Request) {
	var cmd application.StartOrderSagaCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	response, err := h.startOrderSaga.Execute(r.Context(), &cmd)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}

	h.writeJSON(w, http.StatusCreated, response)
}

// ListSagas handles saga listing, optionally filtered by ?status=
func (h *SagaHandlers) ListSagas(w http.ResponseWriter, r *http.Request) {
	response, err := h.listSagas.Execute(r.Context(), &application.ListSagasQuery{
		Status: r.URL.Query().Get("status"),
	})
	if err != nil {
		h.writeError(w, err, nil)
		return
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *SagaHandlers) GetSaga(w http.ResponseWriter, r *http.Request) {
	response, err := h.getSaga.Execute(r.Context(), &application.GetSagaQuery{
		SagaID: chi.URLParam(r, "id"),
	})
	if err != nil {
		h.writeError(w, err, nil)
		return
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *SagaHandlers) GetOrderSaga(w http.ResponseWriter, r *http.Request) {
	response, err := h.getSaga.Execute(r.Context(), &application.GetSagaQuery{
		OrderID: chi.URLParam(r, "orderID"),
	})
	if err != nil {
		h.writeError(w, err, nil)
		return
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *SagaHandlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	response, err := h.getHistory.Execute(r.Context(), &application.GetSagaQuery{
		SagaID: chi.URLParam(r, "id"),
	})
	if err != nil {
		h.writeError(w, err, nil)
		return
	}

	h.writeJSON(w, http.StatusOK, response)
}

// AdvanceSaga runs the next step. A failed step answers 422 with the saga.
func (h *SagaHandlers) AdvanceSaga(w http.ResponseWriter, r *http.Request) {
	response, err := h.advanceSaga.Execute(r.Context(), &application.SagaCommand{
		SagaID: chi.URLParam(r, "id"),
	})
	if err != nil {
		h.writeError(w, err, response)
		return
	}

	h.writeJSON(w, http.StatusOK, response)
}

// CompensateSaga undoes completed steps. A failed compensation answers 503
// with the saga, which stays COMPENSATING.
func (h *SagaHandlers) CompensateSaga(w http.ResponseWriter, r *http.Request) {
	response, err := h.compensateSaga.Execute(r.Context(), &application.SagaCommand{
		SagaID: chi.URLParam(r, "id"),
	})
	if err != nil {
		h.writeError(w, err, response)
		return
	}

	h.writeJSON(w, http.StatusOK, response)
}

type failSagaRequest struct {
	Reason string `json:"reason"`
}

func (h *SagaHandlers) FailSaga(w http.ResponseWriter, r *http.Request) {
	var req failSagaRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
			return
		}
	}

	response, err := h.failSaga.Execute(r.Context(), &application.FailSagaCommand{
		SagaID: chi.URLParam(r, "id"),
		Reason: req.Reason,
	})
	if err != nil {
		h.writeError(w, err, response)
		return
	}

	h.writeJSON(w, http.StatusOK, response)
}

// RegisterRoutes registers saga routes
func (h *SagaHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/sagas", func(r chi.Router) {
		r.Post("/", h.StartSaga)
		r.Get("/", h.ListSagas)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSaga)
			r.Get("/history", h.GetHistory)
			r.Post("/advance", h.AdvanceSaga)
			r.Post("/compensate", h.CompensateSaga)
			r.Post("/fail", h.FailSaga)
		})
	})
	r.Get("/orders/{orderID}/saga", h.GetOrderSaga)
}

// StatusFor maps use case errors to HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, application.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, saga.ErrSagaNotFound):
		return http.StatusNotFound
	case errors.Is(err, saga.ErrDuplicateSaga),
		errors.Is(err, saga.ErrInvalidState),
		errors.Is(err, saga.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, saga.ErrStepFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, saga.ErrCompensationFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *SagaHandlers) writeError(w http.ResponseWriter, err error, sagaView *application.SagaResponse) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "error", err)
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error(), Saga: sagaView})
}

func (h *SagaHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn("failed to write response", "error", err)
	}
}
