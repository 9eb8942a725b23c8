package web

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jredmond/openhouse/internal/auth"
	"github.com/jredmond/openhouse/internal/db"
	"github.com/jredmond/openhouse/internal/enrollment"
	"github.com/jredmond/openhouse/internal/generate"
	"github.com/jredmond/openhouse/internal/notify"
	"github.com/jredmond/openhouse/internal/sequence"
	"github.com/jredmond/openhouse/internal/session"
	"github.com/jredmond/openhouse/internal/visitor"
)

func newTestServer(t *testing.T) (*Server, *sql.DB) {
	t.Helper()

	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})

	tokens := auth.NewTokenStore(d)
	apiKeys := auth.NewAPIKeyStore(d)
	sink := notify.LogSink{}

	sessRepo := session.NewRepository(d)
	visRepo := visitor.NewRepository(d)
	seqRepo := sequence.NewRepository(d)
	enrRepo := enrollment.NewRepository(d)

	sessSvc := session.NewService(sessRepo, tokens, sink, "http://localhost:8080")
	seqSvc := sequence.NewService(seqRepo)
	enrSvc := enrollment.NewService(enrRepo, seqRepo, visRepo, sessRepo, &generate.Stub{}, nil, notify.LogSMS{})
	visSvc := visitor.NewService(visRepo, sessRepo, enrSvc, sink)

	srv := NewServer(sessSvc, visSvc, seqSvc, enrSvc, tokens, apiKeys, "default", "http://localhost:8080")
	return srv, d
}

// doJSON runs one request against the server and decodes the response into
// out (when non-nil).
func doJSON(t *testing.T, srv http.Handler, method, path string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s response: %v\nbody: %s", method, path, err, rec.Body.String())
		}
	}

	return rec
}

func createSessionViaAPI(t *testing.T, srv *Server) session.Created {
	t.Helper()
	start := time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC)
	var created session.Created
	rec := doJSON(t, srv, http.MethodPost, "/api/sessions", session.CreateInput{
		AgentID:        "agent-1",
		Address:        "123 Main St",
		ScheduledStart: start,
		ScheduledEnd:   start.Add(2 * time.Hour),
	}, &created)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", rec.Code, rec.Body.String())
	}
	return created
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCreateSessionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	created := createSessionViaAPI(t, srv)
	if created.Session.Status != session.StatusScheduled {
		t.Errorf("status = %q", created.Session.Status)
	}
	if len(created.CheckinToken) != 64 {
		t.Errorf("token length = %d", len(created.CheckinToken))
	}
	if created.QRPayload == "" {
		t.Error("missing qr payload")
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions", session.CreateInput{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty create status = %d, want 400", rec.Code)
	}
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createSessionViaAPI(t, srv)
	base := "/api/sessions/" + created.Session.ID

	rec := doJSON(t, srv, http.MethodPost, base+"/start", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d %s", rec.Code, rec.Body.String())
	}

	// Starting twice is a lifecycle violation, not a conflict.
	rec = doJSON(t, srv, http.MethodPost, base+"/start", nil, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("double start status = %d, want 422", rec.Code)
	}

	var ended struct {
		Session         session.Session `json:"session"`
		DurationMinutes int             `json:"duration_minutes"`
	}
	rec = doJSON(t, srv, http.MethodPost, base+"/end", nil, &ended)
	if rec.Code != http.StatusOK {
		t.Fatalf("end status = %d %s", rec.Code, rec.Body.String())
	}
	if ended.Session.Status != session.StatusCompleted {
		t.Errorf("status = %q", ended.Session.Status)
	}

	rec = doJSON(t, srv, http.MethodPost, base+"/cancel", nil, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("cancel completed status = %d, want 422", rec.Code)
	}
}

func TestSessionNotFoundStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/sessions/missing", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCheckinEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createSessionViaAPI(t, srv)
	checkinPath := "/api/checkin/" + created.CheckinToken

	// Before the session starts, check-in is refused.
	rec := doJSON(t, srv, http.MethodPost, checkinPath, visitor.CheckInInput{
		Name: "Pat Lee", Email: "pat@example.com", InterestLevel: "high",
	}, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("early check-in status = %d, want 422", rec.Code)
	}

	doJSON(t, srv, http.MethodPost, "/api/sessions/"+created.Session.ID+"/start", nil, nil)

	var info struct {
		SessionID string `json:"session_id"`
		Address   string `json:"address"`
	}
	rec = doJSON(t, srv, http.MethodGet, checkinPath, nil, &info)
	if rec.Code != http.StatusOK || info.SessionID != created.Session.ID {
		t.Errorf("info = %d %+v", rec.Code, info)
	}

	var v visitor.Visitor
	rec = doJSON(t, srv, http.MethodPost, checkinPath, visitor.CheckInInput{
		Name: "Pat Lee", Email: "pat@example.com", InterestLevel: "high",
	}, &v)
	if rec.Code != http.StatusCreated {
		t.Fatalf("check-in status = %d %s", rec.Code, rec.Body.String())
	}
	if v.Source != "qr" {
		t.Errorf("source = %q, want qr", v.Source)
	}

	rec = doJSON(t, srv, http.MethodPost, checkinPath, visitor.CheckInInput{
		Name: "Pat Again", Email: "PAT@example.com", InterestLevel: "low",
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/checkin/bogus-token", visitor.CheckInInput{
		Name: "X", Email: "x@example.com", InterestLevel: "low",
	}, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("bogus token status = %d, want 404", rec.Code)
	}
}

func TestManualCheckinAndVisitorRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createSessionViaAPI(t, srv)
	base := "/api/sessions/" + created.Session.ID
	doJSON(t, srv, http.MethodPost, base+"/start", nil, nil)

	var v visitor.Visitor
	rec := doJSON(t, srv, http.MethodPost, base+"/visitors", visitor.CheckInInput{
		Name: "Sam Kim", Email: "sam@example.com", InterestLevel: "medium",
	}, &v)
	if rec.Code != http.StatusCreated {
		t.Fatalf("check-in status = %d %s", rec.Code, rec.Body.String())
	}
	if v.Source != "manual" {
		t.Errorf("source = %q, want manual", v.Source)
	}

	var visitors []visitor.Visitor
	rec = doJSON(t, srv, http.MethodGet, base+"/visitors", nil, &visitors)
	if rec.Code != http.StatusOK || len(visitors) != 1 {
		t.Errorf("list = %d, %d visitors", rec.Code, len(visitors))
	}

	level := "high"
	var updated visitor.Visitor
	rec = doJSON(t, srv, http.MethodPatch, "/api/visitors/"+v.ID,
		visitor.UpdateInput{InterestLevel: &level}, &updated)
	if rec.Code != http.StatusOK || updated.InterestLevel != session.InterestHigh {
		t.Errorf("update = %d %+v", rec.Code, updated)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/visitors/"+v.ID+"/notes",
		map[string]string{"text": "asked about the roof"}, &updated)
	if rec.Code != http.StatusOK {
		t.Errorf("notes status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/visitors/"+v.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/visitors/"+v.ID, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted visitor status = %d, want 404", rec.Code)
	}
}

func TestSequenceEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	var seq sequence.Sequence
	rec := doJSON(t, srv, http.MethodPost, "/api/sequences", sequence.Input{
		Name:   "High interest",
		Target: "high",
		Touchpoints: []sequence.TouchpointInput{
			{DelayMinutes: 60, Channel: "email", TemplatePrompt: "thank them"},
		},
	}, &seq)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d %s", rec.Code, rec.Body.String())
	}
	if seq.AgentID != "default" {
		t.Errorf("agent = %q, want server default", seq.AgentID)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/sequences", sequence.Input{Name: "empty"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid create status = %d, want 400", rec.Code)
	}

	var listed []sequence.Sequence
	rec = doJSON(t, srv, http.MethodGet, "/api/sequences", nil, &listed)
	if rec.Code != http.StatusOK || len(listed) != 1 {
		t.Errorf("list = %d, %d sequences", rec.Code, len(listed))
	}

	var toggled sequence.Sequence
	rec = doJSON(t, srv, http.MethodPost, "/api/sequences/"+seq.ID+"/deactivate", nil, &toggled)
	if rec.Code != http.StatusOK || toggled.Active {
		t.Errorf("deactivate = %d active=%v", rec.Code, toggled.Active)
	}
}

func TestEnrollmentSchedulerEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	// A sequence with an immediate email step, then a started session and a
	// check-in that auto-enrolls.
	var seq sequence.Sequence
	doJSON(t, srv, http.MethodPost, "/api/sequences", sequence.Input{
		Name:   "Everyone",
		Target: "all",
		Touchpoints: []sequence.TouchpointInput{
			{DelayMinutes: 0, Channel: "sms", TemplatePrompt: "quick thanks"},
		},
	}, &seq)

	created := createSessionViaAPI(t, srv)
	base := "/api/sessions/" + created.Session.ID
	doJSON(t, srv, http.MethodPost, base+"/start", nil, nil)

	var v visitor.Visitor
	rec := doJSON(t, srv, http.MethodPost, base+"/visitors", visitor.CheckInInput{
		Name: "Pat Lee", Email: "pat@example.com", Phone: "555-0100", InterestLevel: "high",
	}, &v)
	if rec.Code != http.StatusCreated {
		t.Fatalf("check-in: %d %s", rec.Code, rec.Body.String())
	}
	if v.EnrollmentID == nil {
		t.Fatal("check-in did not auto-enroll")
	}

	var due []enrollment.Enrollment
	rec = doJSON(t, srv, http.MethodGet, "/api/enrollments/due", nil, &due)
	if rec.Code != http.StatusOK || len(due) != 1 {
		t.Fatalf("due = %d, %d enrollments", rec.Code, len(due))
	}

	var run struct {
		Executed int `json:"executed"`
		Failed   int `json:"failed"`
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/enrollments/run", nil, &run)
	if rec.Code != http.StatusOK || run.Executed != 1 || run.Failed != 0 {
		t.Errorf("run = %d %+v", rec.Code, run)
	}

	var e enrollment.Enrollment
	rec = doJSON(t, srv, http.MethodGet, "/api/enrollments/"+*v.EnrollmentID, nil, &e)
	if rec.Code != http.StatusOK || !e.Completed() {
		t.Errorf("enrollment = %d %+v, want completed", rec.Code, e)
	}

	// Pausing a completed enrollment is a lifecycle violation.
	rec = doJSON(t, srv, http.MethodPost, "/api/enrollments/"+e.ID+"/pause", nil, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("pause completed status = %d, want 422", rec.Code)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", rec.Code)
	}

	raw, _, err := srv.apiKeys.Create("test")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authed status = %d, want 200", rec.Code)
	}

	// Check-in endpoints stay public for QR visitors.
	created := createSessionViaAPI(t, srv)
	req = httptest.NewRequest(http.MethodGet, "/api/checkin/"+created.CheckinToken, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("public check-in status = %d, want 200", rec.Code)
	}
}

func TestManualEnrollEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createSessionViaAPI(t, srv)
	id := created.Session.ID

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions/"+id+"/start?early=1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("early start: %d %s", rec.Code, rec.Body.String())
	}

	// Sequence for another agent so check-in does not auto-enroll.
	var seq sequence.Sequence
	rec = doJSON(t, srv, http.MethodPost, "/api/sequences", sequence.Input{
		AgentID: "agent-2",
		Name:    "manual follow-up",
		Target:  "all",
		Touchpoints: []sequence.TouchpointInput{
			{DelayMinutes: 60, Channel: "email", TemplatePrompt: "thank them"},
		},
	}, &seq)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sequence: %d %s", rec.Code, rec.Body.String())
	}

	var v visitor.Visitor
	rec = doJSON(t, srv, http.MethodPost, "/api/sessions/"+id+"/visitors", visitor.CheckInInput{
		Name:          "Dana",
		Email:         "dana@example.com",
		InterestLevel: "medium",
	}, &v)
	if rec.Code != http.StatusCreated {
		t.Fatalf("check in: %d %s", rec.Code, rec.Body.String())
	}
	if v.EnrollmentID != nil {
		t.Fatalf("expected no auto-enrollment, got %s", *v.EnrollmentID)
	}

	var e enrollment.Enrollment
	rec = doJSON(t, srv, http.MethodPost, "/api/enrollments", map[string]string{
		"visitor_id":  v.ID,
		"session_id":  id,
		"sequence_id": seq.ID,
	}, &e)
	if rec.Code != http.StatusCreated {
		t.Fatalf("enroll: %d %s", rec.Code, rec.Body.String())
	}
	if e.SequenceID != seq.ID || e.CurrentIndex != 0 {
		t.Errorf("unexpected enrollment: %+v", e)
	}
	if e.NextTouchpointAt == nil {
		t.Error("missing next touchpoint time")
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/enrollments", map[string]string{
		"visitor_id":  v.ID,
		"session_id":  id,
		"sequence_id": seq.ID,
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("re-enroll status = %d, want 409", rec.Code)
	}
}
