package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/byteness/trustgate/approval"
	"github.com/byteness/trustgate/credential"
	"github.com/byteness/trustgate/policy"
	"github.com/byteness/trustgate/proxy"
	"github.com/byteness/trustgate/session"
)

func newTestServer(t *testing.T, mode policy.Mode, upstreamURL string) *Server {
	t.Helper()

	mgr, err := session.NewManager(map[string]string{
		"default": "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08", // sha256("test")
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	engine, err := policy.NewEngine(nil, policy.Policy{Mode: mode})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	orch := approval.New(nil, 100*time.Millisecond)

	p := proxy.New(5 * time.Second)
	if upstreamURL != "" {
		p.BaseURLs = map[string]string{"github": upstreamURL}
	}

	return NewServer(Config{
		Sessions:            mgr,
		Credentials:         credential.NewBroker(),
		Policies:            engine,
		Approvals:           orch,
		Forward:             p,
		ApprovalWaitTimeout: 50 * time.Millisecond,
	})
}

func newSession(t *testing.T, s *Server) string {
	t.Helper()
	sess, err := s.sessions.CreateSession("default", 0)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess.Token
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, policy.ModeStrict, "")
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSessionNew_Success(t *testing.T) {
	s := newTestServer(t, policy.ModeStrict, "")

	body := `{"tenant_id":"default","enrollment_secret":"test"}`
	r := httptest.NewRequest(http.MethodPost, "/session/new", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp sessionNewResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.SessionToken) < 32 {
		t.Errorf("session_token too short: %q", resp.SessionToken)
	}
	if resp.TTLSeconds != 3600 {
		t.Errorf("ttl_seconds = %d, want 3600", resp.TTLSeconds)
	}
}

func TestSessionNew_BadSecret(t *testing.T) {
	s := newTestServer(t, policy.ModeStrict, "")

	body := `{"tenant_id":"default","enrollment_secret":"wrong"}`
	r := httptest.NewRequest(http.MethodPost, "/session/new", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestProxy_ReadPassesThroughGithub(t *testing.T) {
	var gotAuth, gotCreds string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCreds = r.Header.Get("X-Creds")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"login":"octocat"}`))
	}))
	defer upstream.Close()

	s := newTestServer(t, policy.ModeStrict, upstream.URL)
	token := newSession(t, s)
	s.credentials = credential.NewBroker()
	t.Setenv("CRED_DEFAULT_GITHUB_PERSONAL", "ghs_test_token_12345")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/proxy/user", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	r.Header.Set("X-Provider", "github")
	r.Header.Set("X-Creds", "default:github:personal")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotAuth != "token ghs_test_token_12345" {
		t.Errorf("upstream Authorization = %q", gotAuth)
	}
	if gotCreds != "" {
		t.Errorf("X-Creds leaked upstream: %q", gotCreds)
	}
}

func TestProxy_StrictModeWriteDeniedWithoutApproval(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	s := newTestServer(t, policy.ModeStrict, upstream.URL)
	token := newSession(t, s)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/proxy/repos/o/r/issues", strings.NewReader("{}"))
	r.Header.Set("Authorization", "Bearer "+token)
	r.Header.Set("X-Provider", "github")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body = %s", w.Code, w.Body.String())
	}
}

func TestProxy_StrictModeWriteApprovedInTime(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer upstream.Close()

	s := newTestServer(t, policy.ModeStrict, upstream.URL)
	s.approvalWaitTimeout = 2 * time.Second
	token := newSession(t, s)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/proxy/repos/o/r/issues", strings.NewReader("{}"))
		r.Header.Set("Authorization", "Bearer "+token)
		r.Header.Set("X-Provider", "github")
		w := httptest.NewRecorder()
		s.Router.ServeHTTP(w, r)
		done <- w
	}()

	var id string
	for i := 0; i < 50; i++ {
		time.Sleep(10 * time.Millisecond)
		if recs := s.approvals.List(); len(recs) > 0 {
			id = recs[0].ID
			break
		}
	}
	if id == "" {
		t.Fatal("approval record was never created")
	}
	if _, err := s.approvals.Decide(id, approval.StatusApproved, "oncall-human"); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	w := <-done
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestApprovalLifecycle_ConcurrentWaitersThenDeny(t *testing.T) {
	s := newTestServer(t, policy.ModeStrict, "")
	token := newSession(t, s)

	body := `{"source_request_id":"req-1","provider":"github","method":"POST"}`
	r := httptest.NewRequest(http.MethodPost, "/approvals/request", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var rec approval.Record
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	denyBody := httptest.NewRequest(http.MethodPost, "/approvals/"+rec.ID+"/deny", nil)
	denyBody.Header.Set("Authorization", "Bearer "+token)
	denyW := httptest.NewRecorder()
	s.Router.ServeHTTP(denyW, denyBody)
	if denyW.Code != http.StatusOK {
		t.Fatalf("deny status = %d, body = %s", denyW.Code, denyW.Body.String())
	}

	statusReq := httptest.NewRequest(http.MethodGet, "/approvals/"+rec.ID+"/status", nil)
	statusReq.Header.Set("Authorization", "Bearer "+token)
	statusW := httptest.NewRecorder()
	s.Router.ServeHTTP(statusW, statusReq)
	var status approval.Record
	json.Unmarshal(statusW.Body.Bytes(), &status)
	if status.Status != approval.StatusDenied {
		t.Fatalf("status = %q, want denied", status.Status)
	}
}

func TestCredentialsFetch_TenantMismatchRejected(t *testing.T) {
	s := newTestServer(t, policy.ModeStrict, "")
	token := newSession(t, s)

	body := `{"selector":"other-tenant:github:personal"}`
	r := httptest.NewRequest(http.MethodPost, "/credentials/fetch", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401, body = %s", w.Code, w.Body.String())
	}
}

func TestApprovalList_ScopedToCallerTenant(t *testing.T) {
	s := newTestServer(t, policy.ModeStrict, "")
	token := newSession(t, s)

	s.approvals.Request("default", "r1", approval.Details{Provider: "github"})
	s.approvals.Request("another-tenant", "r2", approval.Details{Provider: "slack"})

	r := httptest.NewRequest(http.MethodGet, "/approvals", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var recs []approval.Record
	if err := json.Unmarshal(w.Body.Bytes(), &recs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(recs) != 1 || recs[0].SourceRequestID != "r1" {
		t.Fatalf("recs = %+v, want only the default-tenant record", recs)
	}
}

func TestPendingApprovalsGauge_TracksRequestAndDecide(t *testing.T) {
	s := newTestServer(t, policy.ModeStrict, "")
	token := newSession(t, s)

	body := `{"source_request_id":"req-1","provider":"github","method":"POST"}`
	r := httptest.NewRequest(http.MethodPost, "/approvals/request", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var rec approval.Record
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got := testutil.ToFloat64(s.metrics.PendingApprovals); got != 1 {
		t.Fatalf("PendingApprovals = %v, want 1", got)
	}

	denyReq := httptest.NewRequest(http.MethodPost, "/approvals/"+rec.ID+"/deny", nil)
	denyReq.Header.Set("Authorization", "Bearer "+token)
	denyW := httptest.NewRecorder()
	s.Router.ServeHTTP(denyW, denyReq)
	if denyW.Code != http.StatusOK {
		t.Fatalf("deny status = %d, body = %s", denyW.Code, denyW.Body.String())
	}

	if got := testutil.ToFloat64(s.metrics.PendingApprovals); got != 0 {
		t.Fatalf("PendingApprovals after deny = %v, want 0", got)
	}
}

func TestAuthenticated_MissingBearer(t *testing.T) {
	s := newTestServer(t, policy.ModeStrict, "")

	r := httptest.NewRequest(http.MethodPost, "/session/revoke", nil)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
