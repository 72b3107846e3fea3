package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/codeclinic/codeclinic/pkg/database"
	"github.com/codeclinic/codeclinic/pkg/finding"
	"github.com/codeclinic/codeclinic/pkg/job"
	"github.com/codeclinic/codeclinic/pkg/jobstore"
	"github.com/codeclinic/codeclinic/pkg/quiz"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "CodeClinic API is running!",
		"status":  "healthy",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":            "healthy",
		"scanner_available": s.orch.ScannerAvailable(r.Context()),
		"quiz_available":    s.quizzes.Available(r.Context()),
		"time":              time.Now().UTC().Format(time.RFC3339),
	}
	if s.db != nil {
		body["database_available"] = s.db.Ping(r.Context()) == nil
	}
	respondJSON(w, http.StatusOK, body)
}

type scanStartRequest struct {
	URL      string       `json:"url"`
	ScanType job.ScanType `json:"scan_type,omitempty"`
}

type scanStartResponse struct {
	ScanID  string     `json:"scan_id"`
	Status  job.Status `json:"status"`
	Message string     `json:"message"`
}

func (s *Server) handleScanStart(w http.ResponseWriter, r *http.Request) {
	var req scanStartRequest
	if !decodeBody(w, r, &req) {
		return
	}

	j, err := s.orch.StartScan(r.Context(), req.URL, req.ScanType)
	if err != nil {
		if errors.Is(err, finding.ErrTargetUnreachable) {
			respondError(w, http.StatusBadRequest, "target is not reachable")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, scanStartResponse{
		ScanID:  j.ID,
		Status:  j.Status,
		Message: "scan started",
	})
}

func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, j)
}

func (s *Server) handleScanPages(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	if len(j.Pages) == 0 {
		respondError(w, http.StatusBadRequest, "pages not discovered yet")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"scan_id": j.ID,
		"status":  j.Status,
		"pages":   j.Pages,
	})
}

type selectPagesRequest struct {
	Pages []string `json:"pages"`
}

func (s *Server) handleSelectPages(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	var req selectPagesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.orch.SelectPages(r.Context(), j.ID, req.Pages); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"scan_id": j.ID,
		"status":  job.StatusScanning,
		"message": "scan resumed with selected pages",
	})
}

func (s *Server) handleScanResults(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	if !j.Status.IsTerminal() {
		respondError(w, http.StatusBadRequest, "scan is still "+string(j.Status))
		return
	}

	res, err := s.store.GetResult(r.Context(), j.ID)
	if errors.Is(err, jobstore.ErrNotFound) {
		// Failed without partial findings.
		respondJSON(w, http.StatusOK, map[string]any{
			"scan_id": j.ID,
			"status":  j.Status,
			"error":   j.Error,
		})
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "loading results failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"scan_id": j.ID,
		"status":  j.Status,
		"error":   j.Error,
		"result":  res,
	})
}

func (s *Server) handleScanCancel(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	if err := s.orch.Cancel(r.Context(), j.ID); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"scan_id": j.ID,
		"status":  job.StatusCancelled,
	})
}

func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (*job.Job, bool) {
	id := chi.URLParam(r, "scanID")
	j, err := s.store.Get(r.Context(), id)
	if errors.Is(err, jobstore.ErrNotFound) {
		respondError(w, http.StatusNotFound, "unknown scan id")
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "loading scan failed")
		return nil, false
	}
	return j, true
}

type generateGameRequest struct {
	ZapData      string `json:"zap_data"`
	NumQuestions int    `json:"num_questions,omitempty"`

	// Optional persistence context forwarded by the frontend.
	UserID     string               `json:"user_id,omitempty"`
	WebsiteURL string               `json:"website_url,omitempty"`
	Profile    database.UserProfile `json:"profile,omitempty"`
}

func (s *Server) handleGenerateGame(w http.ResponseWriter, r *http.Request) {
	var req generateGameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ZapData == "" {
		respondError(w, http.StatusBadRequest, "zap_data is required")
		return
	}
	if req.NumQuestions < 0 || req.NumQuestions > 50 {
		respondError(w, http.StatusBadRequest, "num_questions must be 1-50")
		return
	}

	set, err := s.quizzes.Generate(r.Context(), req.ZapData, req.NumQuestions)
	if err != nil {
		if s.metrics != nil {
			s.metrics.QuizFailed.Inc()
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.QuizGenerated.Inc()
	}

	if s.db != nil && req.UserID != "" && req.WebsiteURL != "" {
		s.persistGame(r.Context(), req, set.Exercises)
	}
	respondJSON(w, http.StatusOK, set)
}

// persistGame saves the generated questions under the user's scan.
// Failures are logged but never fail the generation response.
func (s *Server) persistGame(ctx context.Context, req generateGameRequest, exercises []quiz.Exercise) {
	userID, err := s.db.GetOrCreateUser(ctx, req.UserID, req.Profile)
	if err != nil {
		s.log.Error().Err(err).Msg("resolving user failed")
		return
	}

	scanID, err := s.db.GetExistingScan(ctx, req.WebsiteURL, userID)
	if err != nil {
		s.log.Error().Err(err).Msg("scan lookup failed")
		return
	}
	if scanID == "" {
		scanID, err = s.db.SaveScan(ctx, req.WebsiteURL, userID, true)
		if err != nil {
			s.log.Error().Err(err).Msg("saving scan failed")
			return
		}
	}

	if err := s.db.SaveQuestions(ctx, scanID, userID, exercises); err != nil {
		s.log.Error().Err(err).Msg("saving questions failed")
	}
}

func (s *Server) handleQuizAttempt(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		respondError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}
	var req database.AttemptInput
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ExternalUserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if len(req.Responses) == 0 {
		respondError(w, http.StatusBadRequest, "responses are required")
		return
	}

	userID, err := s.db.GetOrCreateUser(r.Context(), req.ExternalUserID, database.UserProfile{})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "resolving user failed")
		return
	}
	attemptID, err := s.db.SaveAttempt(r.Context(), userID, req)
	if err != nil {
		s.log.Error().Err(err).Msg("saving attempt failed")
		respondError(w, http.StatusInternalServerError, "saving attempt failed")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"attempt_id": attemptID})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		respondError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			respondError(w, http.StatusBadRequest, "limit must be 1-100")
			return
		}
		limit = n
	}

	entries, err := s.db.Leaderboard(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("leaderboard query failed")
		respondError(w, http.StatusInternalServerError, "leaderboard unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

func (s *Server) handlePublicScans(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		respondError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}
	q := r.URL.Query()
	f := database.PublicScansFilter{
		Difficulty:   q.Get("difficulty"),
		ExerciseType: q.Get("exercise_type"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			f.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			f.Offset = n
		}
	}

	scans, err := s.db.PublicScans(r.Context(), f)
	if err != nil {
		s.log.Error().Err(err).Msg("public scans query failed")
		respondError(w, http.StatusInternalServerError, "public scans unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"scans": scans})
}
