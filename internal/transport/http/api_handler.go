package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"live-test-service/internal/app"
	"live-test-service/internal/domain"
)

// APIHandler exposes the polling-friendly REST surface: session creation,
// offline join/answer/finish, and snapshot queries. Online-mode pacing
// stays on the websocket.
type APIHandler struct {
	service  *app.Service
	validate *validator.Validate
}

func NewAPIHandler(service *app.Service) *APIHandler {
	return &APIHandler{service: service, validate: validator.New()}
}

// Register mounts the API routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.createSession)
	mux.HandleFunc("GET /api/sessions/{code}", h.getSnapshot)
	mux.HandleFunc("POST /api/sessions/{code}/join", h.join)
	mux.HandleFunc("POST /api/sessions/{code}/answers", h.submitAnswer)
	mux.HandleFunc("POST /api/sessions/{code}/finish", h.finish)
}

type schedulePayload struct {
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required,gtfield=StartTime"`
}

type createSessionRequest struct {
	QuizID   string           `json:"quizId" validate:"required"`
	Mode     string           `json:"mode" validate:"required,oneof=online offline"`
	Capacity int              `json:"capacity" validate:"required,min=1,max=1000"`
	Schedule *schedulePayload `json:"schedule" validate:"required_if=Mode offline,omitempty"`
}

type createSessionResponse struct {
	Code    string              `json:"code"`
	Session app.SessionSnapshot `json:"session"`
}

func (h *APIHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "validation")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "validation")
		return
	}

	var schedule *domain.Schedule
	if req.Schedule != nil {
		schedule = &domain.Schedule{StartTime: req.Schedule.StartTime, EndTime: req.Schedule.EndTime}
	}
	session, err := h.service.CreateSession(r.Context(), req.QuizID, domain.Mode(req.Mode), req.Capacity, schedule)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	snap, err := h.service.GetSnapshot(r.Context(), session.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{Code: session.Code, Session: snap})
}

func (h *APIHandler) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.GetSnapshot(r.Context(), r.PathValue("code"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type joinRequest struct {
	Name string `json:"name" validate:"required,min=2,max=50"`
}

func (h *APIHandler) join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "validation")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "validation")
		return
	}

	connRef := "offline_" + uuid.NewString()
	participant, _, err := h.service.Join(r.Context(), r.PathValue("code"), req.Name, connRef)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	snap, err := h.service.GetSnapshot(r.Context(), r.PathValue("code"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, joinedPayload{Participant: participant, Session: snap})
}

type restAnswerRequest struct {
	Name          string `json:"name" validate:"required"`
	QuestionIndex int    `json:"questionIndex" validate:"min=0"`
	Option        string `json:"option" validate:"required"`
	TimeRemaining int    `json:"timeRemaining" validate:"min=0"`
}

func (h *APIHandler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req restAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "validation")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "validation")
		return
	}

	result, err := h.service.SubmitAnswer(r.Context(), r.PathValue("code"), req.Name, req.QuestionIndex, req.Option, req.TimeRemaining)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type finishRequest struct {
	Name string `json:"name" validate:"required"`
}

func (h *APIHandler) finish(w http.ResponseWriter, r *http.Request) {
	var req finishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "validation")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "validation")
		return
	}

	session, err := h.service.FinishParticipant(r.Context(), r.PathValue("code"), req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	snap, err := h.service.GetSnapshot(r.Context(), session.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, kind string) {
	writeJSON(w, status, errorPayload{Message: message, Kind: kind})
}

func writeServiceError(w http.ResponseWriter, err error) {
	kind := errorKind(err)
	status := http.StatusInternalServerError
	switch kind {
	case "validation", "schedule":
		status = http.StatusBadRequest
	case "precondition":
		status = http.StatusConflict
	case "not_found":
		status = http.StatusNotFound
	case "unauthorized":
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		writeError(w, status, "internal error", kind)
		return
	}
	writeError(w, status, err.Error(), kind)
}
