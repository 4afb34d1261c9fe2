package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/MS-092/DS-RM-FP/internal/utils"
)

// RESTHandler exposes the controller service as JSON over HTTP.
type RESTHandler struct {
	service ControllerServer
	logger  *slog.Logger
}

// NewRESTHandler creates a REST handler in front of service.
func NewRESTHandler(service ControllerServer, logger *slog.Logger) *RESTHandler {
	return &RESTHandler{service: service, logger: utils.Component(logger, "rest")}
}

// Router builds the HTTP routes. metrics may be nil.
func (h *RESTHandler) Router(metrics http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/view", h.GetView).Methods(http.MethodGet)
	v1.HandleFunc("/draft", h.UpdateDraft).Methods(http.MethodPatch)
	v1.HandleFunc("/experiments", h.RunExperiment).Methods(http.MethodPost)
	v1.HandleFunc("/faults", h.InjectFault).Methods(http.MethodPost)
	v1.HandleFunc("/strategy", h.ConfigureStrategy).Methods(http.MethodPost)
	v1.HandleFunc("/presets", h.ListPresets).Methods(http.MethodGet)
	v1.HandleFunc("/presets/{name}/apply", h.ApplyPreset).Methods(http.MethodPost)
	v1.HandleFunc("/history", h.ListHistory).Methods(http.MethodGet)
	return r
}

// Healthz reports process liveness. Backend health is part of the view.
func (h *RESTHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *RESTHandler) GetView(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK)(h.service.GetView(r.Context(), &Empty{}))
}

func (h *RESTHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req UpdateDraftRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, http.StatusOK)(h.service.UpdateDraft(r.Context(), &req))
}

func (h *RESTHandler) RunExperiment(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusAccepted)(h.service.RunExperiment(r.Context(), &Empty{}))
}

func (h *RESTHandler) InjectFault(w http.ResponseWriter, r *http.Request) {
	var req InjectFaultRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, http.StatusOK)(h.service.InjectFault(r.Context(), &req))
}

func (h *RESTHandler) ConfigureStrategy(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK)(h.service.ConfigureStrategy(r.Context(), &Empty{}))
}

func (h *RESTHandler) ListPresets(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK)(h.service.ListPresets(r.Context(), &Empty{}))
}

func (h *RESTHandler) ApplyPreset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	h.respond(w, http.StatusOK)(h.service.ApplyPreset(r.Context(), &ApplyPresetRequest{Name: name}))
}

func (h *RESTHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeErrorResponse(w, http.StatusBadRequest, utils.KindValidation, false, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	h.respond(w, http.StatusOK)(h.service.ListHistory(r.Context(), &HistoryRequest{Limit: limit}))
}

func (h *RESTHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, utils.KindValidation, false, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// respond writes either the payload with okStatus or the mapped error.
func (h *RESTHandler) respond(w http.ResponseWriter, okStatus int) func(any, error) {
	return func(payload any, err error) {
		if err != nil {
			st := status.Convert(err)
			code := HTTPStatus(st.Code())
			if code >= http.StatusInternalServerError {
				h.logger.Warn("request failed", slog.String("code", st.Code().String()), slog.String("error", st.Message()))
			}
			kind, retryable := ErrorKind(st)
			h.writeErrorResponse(w, code, kind, retryable, st.Message())
			return
		}
		h.writeJSONResponse(w, okStatus, payload)
	}
}

// HTTPStatus maps a gRPC status code onto the REST status the API documents.
func HTTPStatus(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Aborted:
		return http.StatusConflict
	case codes.Unavailable, codes.DeadlineExceeded:
		return http.StatusServiceUnavailable
	case codes.FailedPrecondition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *RESTHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("encode JSON response", slog.Any("error", err))
	}
}

func (h *RESTHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, kind utils.ErrorKind, retryable bool, message string) {
	h.writeJSONResponse(w, statusCode, ErrorResponse{
		Error:     message,
		Kind:      string(kind),
		Retryable: retryable,
		Code:      statusCode,
	})
}
