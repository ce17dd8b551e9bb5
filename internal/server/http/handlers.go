package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trialkit/recruitment-service/internal/domain"
	"github.com/trialkit/recruitment-service/internal/waitlist"
)

// maxRequestBodySize bounds command request bodies.
const maxRequestBodySize = 1 << 20

// initializeStudyRequest is the JSON request body for initializing
// recruitment. All fields are optional: a zero target is resolved from the
// study catalogue when one is configured.
type initializeStudyRequest struct {
	TargetParticipants int `json:"target_participants" validate:"gte=0"`
	WaitlistSeed       int `json:"waitlist_seed" validate:"gte=0"`
	EnrolledSeed       int `json:"enrolled_seed" validate:"gte=0"`
}

// trackingRequest is the JSON request body for entering a tracking code.
type trackingRequest struct {
	ParticipantID  string `json:"participant_id" validate:"required"`
	TrackingNumber string `json:"tracking_number" validate:"required"`
}

// addressRequest is the JSON request body for recording a shipping address.
type addressRequest struct {
	Street1 string `json:"street1" validate:"required"`
	Street2 string `json:"street2"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code" validate:"required"`
	Phone   string `json:"phone"`
}

// countRequest is the JSON request body for the simulation commands.
type countRequest struct {
	Count int `json:"count" validate:"required,gt=0"`
}

// decodeBody parses and validates a JSON request body into v. An empty body
// leaves v at its zero value when allowEmpty is set. Returns false after
// writing the error response.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if allowEmpty {
			return true
		}
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid field %s", verrs[0].Field()))
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// initializeStudy handles POST /studies/{studyID}/recruitment.
func (s *Server) initializeStudy(w http.ResponseWriter, r *http.Request) {
	studyID := chi.URLParam(r, "studyID")

	var req initializeStudyRequest
	if !s.decodeBody(w, r, &req, true) {
		return
	}

	state, err := s.engine.InitializeStudy(r.Context(), studyID, req.TargetParticipants, req.WaitlistSeed, req.EnrolledSeed)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stateToResponse(state, time.Now().UTC()))
}

// getRecruitmentState handles GET /studies/{studyID}/recruitment.
func (s *Server) getRecruitmentState(w http.ResponseWriter, r *http.Request) {
	state, err := s.engine.GetState(r.Context(), chi.URLParam(r, "studyID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(state, time.Now().UTC()))
}

// listStudies handles GET /studies.
func (s *Server) listStudies(w http.ResponseWriter, r *http.Request) {
	states, err := s.engine.ListStates(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	now := time.Now().UTC()
	resp := listStudiesResponse{
		Studies:    make([]stateResponse, len(states)),
		TotalCount: len(states),
	}
	for i, state := range states {
		resp.Studies[i] = stateToResponse(state, now)
	}
	writeJSON(w, http.StatusOK, resp)
}

// goLive handles POST /studies/{studyID}/recruitment/go-live.
func (s *Server) goLive(w http.ResponseWriter, r *http.Request) {
	state, err := s.engine.GoLive(r.Context(), chi.URLParam(r, "studyID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(state, time.Now().UTC()))
}

// openWindow handles POST /studies/{studyID}/recruitment/open-window.
func (s *Server) openWindow(w http.ResponseWriter, r *http.Request) {
	state, err := s.engine.OpenWindow(r.Context(), chi.URLParam(r, "studyID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(state, time.Now().UTC()))
}

// closeWindow handles POST /studies/{studyID}/recruitment/close-window.
func (s *Server) closeWindow(w http.ResponseWriter, r *http.Request) {
	state, err := s.engine.CloseWindow(r.Context(), chi.URLParam(r, "studyID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(state, time.Now().UTC()))
}

// enterTrackingCode handles POST /studies/{studyID}/cohorts/current/tracking.
func (s *Server) enterTrackingCode(w http.ResponseWriter, r *http.Request) {
	studyID := chi.URLParam(r, "studyID")

	var req trackingRequest
	if !s.decodeBody(w, r, &req, false) {
		return
	}

	state, err := s.engine.EnterTrackingCode(r.Context(), studyID, req.ParticipantID, req.TrackingNumber)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(state, time.Now().UTC()))
}

// updateAddress handles POST .../cohorts/{cohortID}/participants/{participantID}/address.
func (s *Server) updateAddress(w http.ResponseWriter, r *http.Request) {
	studyID := chi.URLParam(r, "studyID")
	cohortID, ok := parseCohortID(w, r)
	if !ok {
		return
	}
	participantID := chi.URLParam(r, "participantID")

	var req addressRequest
	if !s.decodeBody(w, r, &req, false) {
		return
	}

	address := domain.Address{
		Street1: req.Street1,
		Street2: req.Street2,
		City:    req.City,
		State:   req.State,
		ZipCode: req.ZipCode,
		Phone:   req.Phone,
	}

	state, err := s.engine.UpdateAddress(r.Context(), studyID, cohortID, participantID, address)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(state, time.Now().UTC()))
}

// markDelivered handles POST .../cohorts/{cohortID}/participants/{participantID}/delivered.
func (s *Server) markDelivered(w http.ResponseWriter, r *http.Request) {
	studyID := chi.URLParam(r, "studyID")
	cohortID, ok := parseCohortID(w, r)
	if !ok {
		return
	}

	state, err := s.engine.MarkDelivered(r.Context(), studyID, cohortID, chi.URLParam(r, "participantID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(state, time.Now().UTC()))
}

// getCohortParticipants handles GET .../cohorts/{cohortID}/participants.
func (s *Server) getCohortParticipants(w http.ResponseWriter, r *http.Request) {
	studyID := chi.URLParam(r, "studyID")
	cohortID, ok := parseCohortID(w, r)
	if !ok {
		return
	}

	participants, err := s.engine.CohortParticipants(r.Context(), studyID, cohortID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := listParticipantsResponse{
		CohortID:     cohortID.String(),
		Participants: make([]participantResponse, len(participants)),
		TotalCount:   len(participants),
	}
	for i, p := range participants {
		resp.Participants[i] = participantToResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// exportManifest handles GET .../cohorts/{cohortID}/manifest.csv.
func (s *Server) exportManifest(w http.ResponseWriter, r *http.Request) {
	studyID := chi.URLParam(r, "studyID")
	cohortID, ok := parseCohortID(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := s.engine.ExportManifest(r.Context(), studyID, cohortID, &buf); err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "cohort-"+cohortID.String()+"-manifest.csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// getWaitlistStats handles GET /studies/{studyID}/waitlist-stats.
func (s *Server) getWaitlistStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.WaitlistStats(r.Context(), chi.URLParam(r, "studyID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, waitlistStatsResponse{
		Stats:                    stats,
		MinWaitlistToRecruit:     waitlist.MinWaitlistToRecruit,
		MinRecommendedCohortSize: waitlist.MinRecommendedCohortSize,
	})
}

// simulateEnrollment handles POST /sim/studies/{studyID}/enrollment.
func (s *Server) simulateEnrollment(w http.ResponseWriter, r *http.Request) {
	studyID := chi.URLParam(r, "studyID")

	var req countRequest
	if !s.decodeBody(w, r, &req, false) {
		return
	}

	state, err := s.sim.SimulateEnrollment(r.Context(), studyID, req.Count)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(state, time.Now().UTC()))
}

// simulateWaitlistGrowth handles POST /sim/studies/{studyID}/waitlist-growth.
func (s *Server) simulateWaitlistGrowth(w http.ResponseWriter, r *http.Request) {
	studyID := chi.URLParam(r, "studyID")

	var req countRequest
	if !s.decodeBody(w, r, &req, false) {
		return
	}

	state, err := s.sim.SimulateWaitlistGrowth(r.Context(), studyID, req.Count)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateToResponse(state, time.Now().UTC()))
}

// resetStore handles POST /sim/reset.
func (s *Server) resetStore(w http.ResponseWriter, r *http.Request) {
	if err := s.sim.ResetStore(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func parseCohortID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	cohortID, err := uuid.Parse(chi.URLParam(r, "cohortID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cohort_id")
		return uuid.Nil, false
	}
	return cohortID, true
}

// writeDomainError maps a domain error to an HTTP status code.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrStudyNotFound):
		writeError(w, http.StatusNotFound, "study not found")
	case errors.Is(err, domain.ErrCohortNotFound):
		writeError(w, http.StatusNotFound, "cohort not found")
	case errors.Is(err, domain.ErrUnknownParticipant):
		writeError(w, http.StatusNotFound, "participant not in cohort")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrCapacityExceeded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
