package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, nil)
	// single attempt keeps failure tests fast
	c.retryCfg.MaxAttempts = 1
	return c, srv
}

func TestListMergesPaginatedValues(t *testing.T) {
	var srv *httptest.Server
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		switch r.URL.Path {
		case "/users":
			fmt.Fprintf(w, `{"value":[{"id":"u1"},{"id":"u2"}],"@odata.nextLink":"%s/users-page2"}`, srv.URL)
		case "/users-page2":
			fmt.Fprint(w, `{"value":[{"id":"u3"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))

	items, err := c.List(context.Background(), "/users", "tok")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 merged items, got %d", len(items))
	}
	var last struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(items[2], &last); err != nil || last.ID != "u3" {
		t.Fatalf("expected u3 from second page, got %s (err %v)", last.ID, err)
	}
}

func TestListEmptyCollection(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	items, err := c.List(context.Background(), "/groups", "tok")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", items)
	}
}

func TestForbiddenBecomesTypedError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":"Authorization_RequestDenied","message":"Insufficient privileges"}}`)
	}))

	_, err := c.Get(context.Background(), "/users", "tok")
	if !IsForbidden(err) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
	var ge *Error
	if !errors.As(err, &ge) || ge.Code != "Authorization_RequestDenied" {
		t.Fatalf("expected decoded OData error code, got %+v", ge)
	}
}

func TestBadRequestNotRetried(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":"Request_BadRequest","message":"invalid filter"}}`)
	}))
	c.retryCfg.MaxAttempts = 3

	_, err := c.Get(context.Background(), "/users", "tok")
	if !IsBadRequest(err) {
		t.Fatalf("expected bad request error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 4xx to not be retried, got %d calls", calls)
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"id":"ok"}`)
	}))
	c.retryCfg.MaxAttempts = 3
	c.retryCfg.InitialBackoff = 0

	body, err := c.Get(context.Background(), "/organization", "tok")
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(body) == 0 {
		t.Fatalf("expected body on success")
	}
}

func TestPostNoContentIsSuccess(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	body, err := c.Post(context.Background(), "/groups/g1/owners/$ref", "tok", map[string]string{"@odata.id": "x"})
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	if body != nil {
		t.Fatalf("expected nil payload on 204, got %s", body)
	}
}

func TestDelete(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	if err := c.Delete(context.Background(), "/users/u1", "tok"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}

func TestActivateDirectoryRoleImplicitVariant(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":"Request_BadRequest","message":"The implicit user role cannot be activated"}}`)
	}))

	err := c.ActivateDirectoryRole(context.Background(), "tok", "tmpl-1")
	var ire *ImplicitRoleError
	if !errors.As(err, &ire) {
		t.Fatalf("expected ImplicitRoleError, got %v", err)
	}
	if ire.RoleTemplateID != "tmpl-1" {
		t.Fatalf("expected template id carried, got %s", ire.RoleTemplateID)
	}
	// the underlying Graph error stays reachable
	if !IsBadRequest(err) {
		t.Fatalf("expected underlying 400 to unwrap")
	}
}

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	for i := 0; i < 5; i++ {
		if _, err := c.Get(context.Background(), "/users", "tok"); err == nil {
			t.Fatalf("expected failure")
		}
	}
	_, err := c.Get(context.Background(), "/users", "tok")
	if err == nil {
		t.Fatalf("expected breaker to reject")
	}
	var ge *Error
	if errors.As(err, &ge) {
		t.Fatalf("expected fast-fail without reaching graph, got graph error %v", ge)
	}
}
