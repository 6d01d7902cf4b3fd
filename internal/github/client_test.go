package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/freighter-dev/freighter/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithBase(srv.URL, srv.URL, "acme", "widgets", "tok-123")
}

func TestCreateRelease(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widgets/releases" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["tag_name"] != "v1.2.0" {
			t.Errorf("tag_name = %v", body["tag_name"])
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 42})
	})

	id, err := c.CreateRelease(context.Background(), "v1.2.0", "v1.2.0", "notes")
	if err != nil {
		t.Fatalf("CreateRelease: %v", err)
	}
	if id != 42 {
		t.Errorf("id = %d, want 42", id)
	}
}

func TestCreateReleaseRateLimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.CreateRelease(context.Background(), "v1.2.0", "v1.2.0", "")
	if !errors.Is(err, errors.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if !errors.IsRetryable(err) {
		t.Error("rate limit errors must be retryable")
	}
}

func TestCreateReleaseServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.CreateRelease(context.Background(), "v1.2.0", "v1.2.0", "")
	if !errors.IsRetryable(err) {
		t.Fatalf("5xx should be retryable, got %v", err)
	}
}

func TestCreateReleaseClientErrorIsFatal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	_, err := c.CreateRelease(context.Background(), "v1.2.0", "v1.2.0", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.IsRetryable(err) {
		t.Error("422 must not be retried")
	}
	var he *errors.ReleaseHostError
	if !errors.As(err, &he) || he.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected status in error context, got %v", err)
	}
}

func TestUploadArtifact(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "widgets_1.2.0_amd64.deb")
	if err := os.WriteFile(artifact, []byte("deb-bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	var gotName string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotName = r.URL.Query().Get("name")
		w.WriteHeader(http.StatusCreated)
	})

	if err := c.UploadArtifact(context.Background(), 42, artifact); err != nil {
		t.Fatalf("UploadArtifact: %v", err)
	}
	if gotName != "widgets_1.2.0_amd64.deb" {
		t.Errorf("asset name = %q", gotName)
	}
}

func TestDeleteReleaseTreats404AsSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	if err := c.DeleteRelease(context.Background(), 42); err != nil {
		t.Errorf("deleting an already-deleted release should succeed: %v", err)
	}
}

func TestTokenPrecedence(t *testing.T) {
	t.Setenv(EnvToken, "primary")
	t.Setenv(EnvTokenAlt, "fallback")
	if got := Token(); got != "primary" {
		t.Errorf("Token() = %q, want primary", got)
	}

	t.Setenv(EnvToken, "")
	if got := Token(); got != "fallback" {
		t.Errorf("Token() = %q, want fallback", got)
	}
}
