package wrapper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWrapper_ReadCommandRunsWithoutApproval(t *testing.T) {
	var approvalHit bool
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/approvals/request" {
			approvalHit = true
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	w := &Wrapper{
		Client:   NewClient(gw.URL, "tok"),
		Provider: "kubectl",
	}
	code := w.Run(context.Background(), "/bin/echo", []string{"pods"})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if approvalHit {
		t.Error("a read command should never hit /approvals/request")
	}
}

func TestWrapper_WriteCommandDeniedExitsNonZero(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/approvals/request":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": "abc123", "status": "pending"})
		case "/approvals/abc123/status":
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"id": "abc123", "status": "denied"})
		}
	}))
	defer gw.Close()

	w := &Wrapper{
		Client:   NewClient(gw.URL, "tok"),
		Provider: "kubectl",
	}
	code := w.Run(context.Background(), "/bin/echo", []string{"apply", "-f", "x.yaml"})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestWrapper_WriteCommandApprovedRunsAndInjectsCreds(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/approvals/request":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": "xyz789", "status": "pending"})
		case "/approvals/xyz789/status":
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"id": "xyz789", "status": "approved"})
		case "/credentials/fetch":
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]any{"Fields": map[string]string{"access_key": "AKIA1", "secret_key": "s3cr3t"}})
		}
	}))
	defer gw.Close()

	w := &Wrapper{
		Client:       NewClient(gw.URL, "tok"),
		Provider:     "aws",
		CredSelector: "default:aws:prod",
	}
	code := w.Run(context.Background(), "/bin/echo", []string{"put-object"})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
}

func TestClient_PollApproval_Expires(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"id": "e1", "status": "expired"})
	}))
	defer gw.Close()

	c := NewClient(gw.URL, "tok")
	approved, err := c.PollApproval(context.Background(), "e1", time.Millisecond)
	if err != nil {
		t.Fatalf("PollApproval: %v", err)
	}
	if approved {
		t.Error("expired approval should not report approved")
	}
}
