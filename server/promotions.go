package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ecoledger/auth"
	"ecoledger/models"
	"ecoledger/promotion"
)

type promotionImageResponse struct {
	ObjectKey string `json:"object_key"`
	URL       string `json:"url"`
	Position  int    `json:"position"`
}

type promotionResponse struct {
	ID            uuid.UUID                `json:"id"`
	SubmitterID   uuid.UUID                `json:"submitter_id"`
	Kind          models.PromotionKind     `json:"kind"`
	Name          string                   `json:"name"`
	Description   string                   `json:"description,omitempty"`
	Website       string                   `json:"website,omitempty"`
	Contact       string                   `json:"contact,omitempty"`
	LogoURL       string                   `json:"logo_url"`
	Status        models.PromotionStatus   `json:"status"`
	ReviewerNotes string                   `json:"reviewer_notes,omitempty"`
	SubmittedAt   time.Time                `json:"submitted_at"`
	ReviewedAt    *time.Time               `json:"reviewed_at,omitempty"`
	Images        []promotionImageResponse `json:"images,omitempty"`
}

func (s *Server) promotionResponse(req *models.PromotionRequest) promotionResponse {
	logoURL := ""
	if s.Files != nil {
		logoURL = s.Files.ResolveURL(req.LogoKey)
	}
	resp := promotionResponse{
		ID:            req.ID,
		SubmitterID:   req.SubmitterID,
		Kind:          req.Kind,
		Name:          req.Name,
		Description:   req.Description,
		Website:       req.Website,
		Contact:       req.Contact,
		LogoURL:       logoURL,
		Status:        req.Status,
		ReviewerNotes: req.ReviewerNotes,
		SubmittedAt:   req.SubmittedAt,
		ReviewedAt:    req.ReviewedAt,
	}
	for _, img := range req.Images {
		url := ""
		if s.Files != nil {
			url = s.Files.ResolveURL(img.ObjectKey)
		}
		resp.Images = append(resp.Images, promotionImageResponse{ObjectKey: img.ObjectKey, URL: url, Position: img.Position})
	}
	return resp
}

// CreatePromotion handles a paid listing submission. Payment must have
// cleared before this call.
func (s *Server) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	submitterID, err := uuid.Parse(claims.Subject)
	if err != nil {
		http.Error(w, "invalid subject", http.StatusUnauthorized)
		return
	}

	var req struct {
		Kind             string   `json:"kind"`
		Name             string   `json:"name"`
		Description      string   `json:"description"`
		Website          string   `json:"website"`
		Contact          string   `json:"contact"`
		Logo             string   `json:"logo"`
		Images           []string `json:"images"`
		PaymentReference string   `json:"payment_reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	created, err := s.Promotions.Create(r.Context(), promotion.CreateInput{
		SubmitterID:      submitterID,
		Kind:             models.PromotionKind(req.Kind),
		Name:             req.Name,
		Description:      req.Description,
		Website:          req.Website,
		Contact:          req.Contact,
		LogoKey:          req.Logo,
		ImageKeys:        req.Images,
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.promotionResponse(created))
}

// ReviewPromotion applies an admin moderation decision.
func (s *Server) ReviewPromotion(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	reviewerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		http.Error(w, "invalid subject", http.StatusUnauthorized)
		return
	}
	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid promotion id", http.StatusBadRequest)
		return
	}

	var req struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	reviewed, err := s.Promotions.Review(r.Context(), requestID, reviewerID, models.PromotionStatus(req.Status), req.Notes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.promotionResponse(reviewed))
}

// GetPromotion returns one request. Members can only read their own.
func (s *Server) GetPromotion(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromContext(r.Context())
	if err != nil {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid promotion id", http.StatusBadRequest)
		return
	}

	req, err := s.Promotions.Get(r.Context(), requestID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if claims.Role != auth.RoleAdmin && req.SubmitterID.String() != claims.Subject {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	s.writeJSON(w, http.StatusOK, s.promotionResponse(req))
}

// ListPendingPromotions returns the admin review queue.
func (s *Server) ListPendingPromotions(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.Promotions.ListPending(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]promotionResponse, 0, len(reqs))
	for i := range reqs {
		out = append(out, s.promotionResponse(&reqs[i]))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// PublicPromotions is the public listing read path. Only APPROVED
// requests are ever returned here.
func (s *Server) PublicPromotions(w http.ResponseWriter, r *http.Request) {
	kind := models.PromotionKind(r.URL.Query().Get("kind"))
	if kind != "" && kind != models.KindBusiness && kind != models.KindProduct {
		http.Error(w, "invalid kind", http.StatusBadRequest)
		return
	}

	reqs, err := s.Promotions.PublicList(r.Context(), kind)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]promotionResponse, 0, len(reqs))
	for i := range reqs {
		out = append(out, s.promotionResponse(&reqs[i]))
	}
	s.writeJSON(w, http.StatusOK, out)
}
