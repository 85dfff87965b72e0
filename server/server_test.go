package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"ecoledger/filestore"
	"ecoledger/models"
	"ecoledger/notify"
	"ecoledger/payment"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

type harness struct {
	srv      *Server
	handler  http.Handler
	db       *gorm.DB
	notifier *notify.Recorder
	member   models.User
	admin    models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := setupTestDB(t)
	notifier := &notify.Recorder{}
	srv := New(Config{
		DB:       db,
		Payments: payment.Static{"pay-ok": payment.StatusSucceeded, "pay-pending": payment.StatusPending},
		Notifier: notifier,
		Files:    filestore.NewMemory(),
	})

	member := models.User{ID: uuid.New(), Email: "member@example.com", Role: models.RoleMember}
	admin := models.User{ID: uuid.New(), Email: "admin@example.com", Role: models.RoleAdmin}
	if err := db.Create(&member).Error; err != nil {
		t.Fatalf("create member: %v", err)
	}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return &harness{srv: srv, handler: srv.Handler(), db: db, notifier: notifier, member: member, admin: admin}
}

func (h *harness) do(t *testing.T, method, path, body string, as *models.User, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+as.ID.String()+"|"+as.Role)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) submitActivity(t *testing.T) uuid.UUID {
	t.Helper()
	date := time.Now().Add(-24 * time.Hour).Format("2006-01-02")
	body := fmt.Sprintf(`{"title":"Recycling run","type":"RECYCLING","quantity":5,"unit":"kg","date":"%s","evidence":["uploads/a.jpg","uploads/b.jpg"]}`, date)
	rec := h.do(t, http.MethodPost, "/api/v1/activities", body, &h.member, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp activityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return resp.ID
}

func TestActivityLifecycleHTTP(t *testing.T) {
	h := newHarness(t)
	activityID := h.submitActivity(t)

	// Admin awards 50 points.
	rec := h.do(t, http.MethodPost, "/api/v1/activities/"+activityID.String()+"/award", `{"points":50}`, &h.admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("award: expected 200 got %d body=%s", rec.Code, rec.Body.String())
	}
	var awarded activityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &awarded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if awarded.Status != models.ActivityReviewed || awarded.Points != 50 {
		t.Fatalf("expected REVIEWED/50 got %s/%d", awarded.Status, awarded.Points)
	}
	if len(awarded.Evidence) != 2 {
		t.Fatalf("award response should list evidence, got %d entries", len(awarded.Evidence))
	}

	// Member reads their balance.
	rec = h.do(t, http.MethodGet, "/api/v1/users/"+h.member.ID.String()+"/balance", "", &h.member, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance: expected 200 got %d", rec.Code)
	}
	var balance struct {
		TotalPoints int64 `json:"total_points"`
		Level       int64 `json:"level"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &balance); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if balance.TotalPoints != 50 || balance.Level != 1 {
		t.Fatalf("expected 50 points level 1 got %+v", balance)
	}

	// Admin deletes; the award reverses.
	rec = h.do(t, http.MethodDelete, "/api/v1/activities/"+activityID.String(), "", &h.admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200 got %d", rec.Code)
	}
	rec = h.do(t, http.MethodGet, "/api/v1/users/"+h.member.ID.String()+"/balance", "", &h.member, nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &balance); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if balance.TotalPoints != 0 {
		t.Fatalf("expected 0 points after delete got %d", balance.TotalPoints)
	}

	// Audit trail covers submission, award, and deletion.
	var count int64
	if err := h.db.Model(&models.Event{}).Where("subject_id = ?", activityID).Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count < 3 {
		t.Fatalf("expected at least 3 audit events got %d", count)
	}
}

func TestAuthBoundaries(t *testing.T) {
	h := newHarness(t)
	activityID := h.submitActivity(t)

	// No credentials.
	rec := h.do(t, http.MethodPost, "/api/v1/activities", "", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	// Members cannot award points.
	rec = h.do(t, http.MethodPost, "/api/v1/activities/"+activityID.String()+"/award", `{"points":10}`, &h.member, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}

	// Members cannot read someone else's activity.
	other := models.User{ID: uuid.New(), Email: "other@example.com", Role: models.RoleMember}
	if err := h.db.Create(&other).Error; err != nil {
		t.Fatalf("create other: %v", err)
	}
	rec = h.do(t, http.MethodGet, "/api/v1/activities/"+activityID.String(), "", &other, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}

func TestSubmitValidationPayload(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/v1/activities", `{"title":"","type":"BAD","quantity":-1,"unit":"","evidence":[]}`, &h.member, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Fields) < 5 {
		t.Fatalf("expected every violated field reported, got %v", resp.Fields)
	}
}

func TestSubmitMalformedDate(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/v1/activities",
		`{"title":"Recycling run","type":"RECYCLING","quantity":5,"unit":"kg","date":"banana","evidence":["uploads/a.jpg"]}`, &h.member, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Fields) != 1 || resp.Fields[0].Field != "date" {
		t.Fatalf("expected a date violation got %v", resp.Fields)
	}
	if !strings.Contains(resp.Fields[0].Message, "YYYY-MM-DD") {
		t.Fatalf("message should name the accepted formats, got %q", resp.Fields[0].Message)
	}
}

func TestBalanceUnknownUser(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/v1/users/"+uuid.NewString()+"/balance", "", &h.admin, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestIdempotentDeleteReplay(t *testing.T) {
	h := newHarness(t)
	activityID := h.submitActivity(t)
	key := map[string]string{"Idempotency-Key": uuid.NewString()}

	rec := h.do(t, http.MethodDelete, "/api/v1/activities/"+activityID.String(), "", &h.admin, key)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	first := rec.Body.String()

	// Same key replays the stored response instead of hitting a 404.
	rec = h.do(t, http.MethodDelete, "/api/v1/activities/"+activityID.String(), "", &h.admin, key)
	if rec.Code != http.StatusOK {
		t.Fatalf("replay: expected 200 got %d", rec.Code)
	}
	if rec.Body.String() != first {
		t.Fatalf("replayed response differs: %q vs %q", rec.Body.String(), first)
	}

	// A fresh key reaches the handler and reports the record gone.
	rec = h.do(t, http.MethodDelete, "/api/v1/activities/"+activityID.String(), "", &h.admin, map[string]string{"Idempotency-Key": uuid.NewString()})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}

	// Knowing the key is not a credential: unauthenticated replays fail.
	rec = h.do(t, http.MethodDelete, "/api/v1/activities/"+activityID.String(), "", nil, key)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated replay got %d", rec.Code)
	}
}

func TestPromotionFlowHTTP(t *testing.T) {
	h := newHarness(t)

	// Unconfirmed payment is a hard precondition failure.
	rec := h.do(t, http.MethodPost, "/api/v1/promotions",
		`{"kind":"business","name":"Green Goods","logo":"uploads/logo.png","payment_reference":"pay-pending"}`, &h.member, nil)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = h.do(t, http.MethodPost, "/api/v1/promotions",
		`{"kind":"business","name":"Green Goods","logo":"uploads/logo.png","payment_reference":"pay-ok"}`, &h.member, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", rec.Code, rec.Body.String())
	}
	var created promotionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// Not publicly listed while pending.
	rec = h.do(t, http.MethodGet, "/public/promotions", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("public list: expected 200 got %d", rec.Code)
	}
	var listed []promotionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("pending request leaked into public listing: %v", listed)
	}

	// Rejection without notes fails.
	rec = h.do(t, http.MethodPost, "/api/v1/promotions/"+created.ID.String()+"/review", `{"status":"REJECTED"}`, &h.admin, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	// Approval flips public visibility.
	rec = h.do(t, http.MethodPost, "/api/v1/promotions/"+created.ID.String()+"/review", `{"status":"APPROVED"}`, &h.admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: expected 200 got %d body=%s", rec.Code, rec.Body.String())
	}
	rec = h.do(t, http.MethodGet, "/public/promotions?kind=business", "", nil, nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(listed) != 1 || listed[0].Status != models.PromotionApproved {
		t.Fatalf("expected one approved listing, got %v", listed)
	}

	// Reconsideration hides it again.
	rec = h.do(t, http.MethodPost, "/api/v1/promotions/"+created.ID.String()+"/review", `{"status":"PENDING_APPROVAL","notes":"complaint received"}`, &h.admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reconsider: expected 200 got %d", rec.Code)
	}
	rec = h.do(t, http.MethodGet, "/public/promotions", "", nil, nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("reconsidered request still publicly listed: %v", listed)
	}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/healthz", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}
