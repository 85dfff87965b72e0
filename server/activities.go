package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ecoledger/activity"
	"ecoledger/auth"
	"ecoledger/ledger"
	"ecoledger/models"
	"ecoledger/validate"
)

type evidenceResponse struct {
	ObjectKey string `json:"object_key"`
	URL       string `json:"url"`
	Position  int    `json:"position"`
}

type activityResponse struct {
	ID          uuid.UUID             `json:"id"`
	UserID      uuid.UUID             `json:"user_id"`
	Title       string                `json:"title"`
	Description string                `json:"description,omitempty"`
	Type        models.ActivityType   `json:"type"`
	Quantity    float64               `json:"quantity"`
	Unit        string                `json:"unit"`
	Date        string                `json:"date"`
	Status      models.ActivityStatus `json:"status"`
	Points      int64                 `json:"points"`
	ReviewedAt  *time.Time            `json:"reviewed_at,omitempty"`
	Evidence    []evidenceResponse    `json:"evidence"`
}

func (s *Server) activityResponse(act *models.Activity) activityResponse {
	resp := activityResponse{
		ID:          act.ID,
		UserID:      act.UserID,
		Title:       act.Title,
		Description: act.Description,
		Type:        act.Type,
		Quantity:    act.Quantity,
		Unit:        act.Unit,
		Date:        act.Date.Format("2006-01-02"),
		Status:      act.Status,
		Points:      act.Points,
		ReviewedAt:  act.ReviewedAt,
		Evidence:    make([]evidenceResponse, 0, len(act.Evidence)),
	}
	for _, ev := range act.Evidence {
		url := ""
		if s.Files != nil {
			url = s.Files.ResolveURL(ev.ObjectKey)
		}
		resp.Evidence = append(resp.Evidence, evidenceResponse{ObjectKey: ev.ObjectKey, URL: url, Position: ev.Position})
	}
	return resp
}

// CreateActivity handles member activity submission.
func (s *Server) CreateActivity(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	ownerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		http.Error(w, "invalid subject", http.StatusUnauthorized)
		return
	}

	var req struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Type        string   `json:"type"`
		Quantity    float64  `json:"quantity"`
		Unit        string   `json:"unit"`
		Date        string   `json:"date"`
		Evidence    []string `json:"evidence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		var c validate.Collector
		c.Add("date", "must be YYYY-MM-DD or an RFC 3339 timestamp")
		s.writeError(w, c.Err())
		return
	}

	act, err := s.Activities.Submit(r.Context(), activity.SubmitInput{
		UserID:       ownerID,
		Title:        req.Title,
		Description:  req.Description,
		Type:         models.ActivityType(req.Type),
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		Date:         date,
		EvidenceKeys: req.Evidence,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.activityResponse(act))
}

// GetActivity returns one activity. Members can only read their own.
func (s *Server) GetActivity(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	activityID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid activity id", http.StatusBadRequest)
		return
	}

	act, err := s.Activities.Get(r.Context(), activityID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if claims.Role != auth.RoleAdmin && act.UserID.String() != claims.Subject {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	s.writeJSON(w, http.StatusOK, s.activityResponse(act))
}

// ListUserActivities returns a member's activities. Members can only
// list their own; admins can list anyone's.
func (s *Server) ListUserActivities(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	if claims.Role != auth.RoleAdmin && userID.String() != claims.Subject {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	acts, err := s.Activities.ListByUser(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]activityResponse, 0, len(acts))
	for i := range acts {
		out = append(out, s.activityResponse(&acts[i]))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GetBalance returns a member's point total and derived level.
func (s *Server) GetBalance(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	if claims.Role != auth.RoleAdmin && userID.String() != claims.Subject {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	balance, err := ledger.BalanceOf(r.Context(), s.DB, userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balance)
}

// AwardActivity applies an admin point award or re-award.
func (s *Server) AwardActivity(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	adminID, err := uuid.Parse(claims.Subject)
	if err != nil {
		http.Error(w, "invalid subject", http.StatusUnauthorized)
		return
	}
	activityID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid activity id", http.StatusBadRequest)
		return
	}

	var req struct {
		Points int64 `json:"points"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	act, err := s.Activities.Award(r.Context(), activityID, adminID, req.Points)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.activityResponse(act))
}

// UpdateActivity corrects descriptive fields; status and points are
// untouched.
func (s *Server) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	adminID, err := uuid.Parse(claims.Subject)
	if err != nil {
		http.Error(w, "invalid subject", http.StatusUnauthorized)
		return
	}
	activityID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid activity id", http.StatusBadRequest)
		return
	}

	var req struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Type        string  `json:"type"`
		Quantity    float64 `json:"quantity"`
		Unit        string  `json:"unit"`
		Date        string  `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		var c validate.Collector
		c.Add("date", "must be YYYY-MM-DD or an RFC 3339 timestamp")
		s.writeError(w, c.Err())
		return
	}

	act, err := s.Activities.EditDetails(r.Context(), activityID, adminID, activity.EditInput{
		Title:       req.Title,
		Description: req.Description,
		Type:        models.ActivityType(req.Type),
		Quantity:    req.Quantity,
		Unit:        req.Unit,
		Date:        date,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.activityResponse(act))
}

// DeleteActivity destroys the record and reverses any awarded points.
func (s *Server) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	adminID, err := uuid.Parse(claims.Subject)
	if err != nil {
		http.Error(w, "invalid subject", http.StatusUnauthorized)
		return
	}
	activityID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid activity id", http.StatusBadRequest)
		return
	}

	if err := s.Activities.Delete(r.Context(), activityID, adminID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// NotifyActivity sends an ad hoc admin message to the activity owner.
func (s *Server) NotifyActivity(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	adminID, err := uuid.Parse(claims.Subject)
	if err != nil {
		http.Error(w, "invalid subject", http.StatusUnauthorized)
		return
	}
	activityID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid activity id", http.StatusBadRequest)
		return
	}

	var req struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := s.Activities.Notify(r.Context(), activityID, adminID, req.Title, req.Message); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// parseDate accepts a bare date or a full RFC 3339 timestamp. A zero
// time flows into service validation, which reports the field.
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
