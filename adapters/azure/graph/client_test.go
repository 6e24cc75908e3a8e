package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/fake"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// fakeGraph is an in-memory directory served over TLS.
type fakeGraph struct {
	mu        sync.Mutex
	apps      map[string]application // by object id
	sps       map[string]servicePrincipal
	seq       int
	lastQuery string
}

func (g *fakeGraph) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s-%d", prefix, g.seq)
}

func (g *fakeGraph) counts() (apps, sps int, filter string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.apps), len(g.sps), g.lastQuery
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (g *fakeGraph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"code": "Unauthorized"}})
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1.0")
	g.lastQuery = r.URL.Query().Get("$filter")

	switch {
	case r.Method == http.MethodGet && path == "/applications":
		var out []application
		for _, a := range g.apps {
			if g.lastQuery == "displayName eq '"+a.DisplayName+"'" {
				out = append(out, a)
			}
		}
		writeJSON(w, http.StatusOK, applicationList{Value: out})
	case r.Method == http.MethodPost && path == "/applications":
		var in application
		_ = json.NewDecoder(r.Body).Decode(&in)
		in.ID = g.nextID("app-obj")
		in.AppID = g.nextID("app-id")
		g.apps[in.ID] = in
		writeJSON(w, http.StatusCreated, in)
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/applications/"):
		id := strings.TrimPrefix(path, "/applications/")
		if _, ok := g.apps[id]; !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"code": "Request_ResourceNotFound"}})
			return
		}
		delete(g.apps, id)
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && path == "/servicePrincipals":
		var out []servicePrincipal
		for _, sp := range g.sps {
			if g.lastQuery == "appId eq '"+sp.AppID+"'" {
				out = append(out, sp)
			}
		}
		writeJSON(w, http.StatusOK, servicePrincipalList{Value: out})
	case r.Method == http.MethodPost && path == "/servicePrincipals":
		var in servicePrincipal
		_ = json.NewDecoder(r.Body).Decode(&in)
		in.ID = g.nextID("sp-obj")
		g.sps[in.ID] = in
		writeJSON(w, http.StatusCreated, in)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/addPassword"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/servicePrincipals/"), "/addPassword")
		sp, ok := g.sps[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"code": "Request_ResourceNotFound"}})
			return
		}
		var in struct {
			PasswordCredential passwordCredential `json:"passwordCredential"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		pc := in.PasswordCredential
		pc.KeyID = g.nextID("key")
		pc.SecretText = "generated-secret"
		sp.PasswordCredentials = append(sp.PasswordCredentials, passwordCredential{KeyID: pc.KeyID, EndDateTime: pc.EndDateTime})
		g.sps[id] = sp
		writeJSON(w, http.StatusOK, pc)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/servicePrincipals/"):
		sp, ok := g.sps[strings.TrimPrefix(path, "/servicePrincipals/")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"code": "Request_ResourceNotFound"}})
			return
		}
		writeJSON(w, http.StatusOK, sp)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"code": "BadRequest"}})
	}
}

func newTestClient(t *testing.T) (*Client, *fakeGraph) {
	t.Helper()
	g := &fakeGraph{apps: map[string]application{}, sps: map[string]servicePrincipal{}}
	srv := httptest.NewTLSServer(g)
	t.Cleanup(srv.Close)

	c, err := NewClient(&fake.TokenCredential{}, &Options{
		ClientOptions: policy.ClientOptions{
			Transport: srv.Client(),
			Retry:     policy.RetryOptions{MaxRetries: -1},
		},
		Endpoint: srv.URL + "/v1.0",
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c, g
}

func TestClient_EnsureIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, g := newTestClient(t)

	app1, err := c.EnsureApplication(ctx, "kanebernetes")
	if err != nil {
		t.Fatalf("EnsureApplication() error = %v", err)
	}
	app2, err := c.EnsureApplication(ctx, "kanebernetes")
	if err != nil {
		t.Fatalf("EnsureApplication() second error = %v", err)
	}
	if n, _, _ := g.counts(); app1.ObjectID != app2.ObjectID || n != 1 {
		t.Fatalf("application not reused: %+v vs %+v (%d apps)", app1, app2, n)
	}

	sp1, err := c.EnsureServicePrincipal(ctx, app1.AppID)
	if err != nil {
		t.Fatalf("EnsureServicePrincipal() error = %v", err)
	}
	sp2, err := c.EnsureServicePrincipal(ctx, app1.AppID)
	if err != nil {
		t.Fatalf("EnsureServicePrincipal() second error = %v", err)
	}
	_, n, filter := g.counts()
	if sp1.ObjectID != sp2.ObjectID || n != 1 {
		t.Fatalf("service principal not reused")
	}
	if filter != "appId eq '"+app1.AppID+"'" {
		t.Errorf("last filter = %q", filter)
	}
}

func TestClient_Passwords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newTestClient(t)

	app, err := c.EnsureApplication(ctx, "kanebernetes")
	if err != nil {
		t.Fatal(err)
	}
	sp, err := c.EnsureServicePrincipal(ctx, app.AppID)
	if err != nil {
		t.Fatal(err)
	}

	pc, err := c.AddPassword(ctx, sp.ObjectID, "aksstack", time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("AddPassword() error = %v", err)
	}
	if pc.Secret.Reveal() != "generated-secret" || pc.KeyID == "" {
		t.Errorf("unexpected credential: key=%q", pc.KeyID)
	}

	ok, err := c.HasPassword(ctx, sp.ObjectID, pc.KeyID)
	if err != nil || !ok {
		t.Errorf("HasPassword(issued) = %v, %v", ok, err)
	}
	ok, err = c.HasPassword(ctx, sp.ObjectID, "unknown")
	if err != nil || ok {
		t.Errorf("HasPassword(unknown) = %v, %v", ok, err)
	}
	ok, err = c.HasPassword(ctx, "missing-sp", pc.KeyID)
	if err != nil || ok {
		t.Errorf("HasPassword(missing sp) = %v, %v", ok, err)
	}

	if _, err := c.AddPassword(ctx, "missing-sp", "x", time.Now()); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("AddPassword(missing) error = %v", err)
	}
}

func TestClient_DeleteApplication(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, g := newTestClient(t)

	app, err := c.EnsureApplication(ctx, "kanebernetes")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteApplication(ctx, app.ObjectID); err != nil {
		t.Fatalf("DeleteApplication() error = %v", err)
	}
	if n, _, _ := g.counts(); n != 0 {
		t.Errorf("application still present")
	}
	if err := c.DeleteApplication(ctx, app.ObjectID); err != nil {
		t.Errorf("DeleteApplication(missing) error = %v, want nil", err)
	}
}

func TestFilterQuery_EscapesQuotes(t *testing.T) {
	t.Parallel()
	if got := filterQuery("displayName", "o'brien").Get("$filter"); got != "displayName eq 'o''brien'" {
		t.Errorf("filter = %q", got)
	}
}
