package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shoplist/shoplist/internal/auth"
	"github.com/shoplist/shoplist/internal/classify"
	"github.com/shoplist/shoplist/internal/database"
	"github.com/shoplist/shoplist/internal/jobs"
	"github.com/shoplist/shoplist/internal/models"
	"github.com/shoplist/shoplist/internal/service"
)

type classifierFunc func(ctx context.Context, items, sections []classify.Candidate) ([]classify.Assignment, error)

func (f classifierFunc) Classify(ctx context.Context, items, sections []classify.Candidate) ([]classify.Assignment, error) {
	return f(ctx, items, sections)
}

type testEnv struct {
	t         *testing.T
	db        *database.SQLiteDB
	server    *Server
	queue     *jobs.Queue
	organizer *service.OrganizeService
	token     string
}

const (
	testUsername = "alice"
	testPassword = "correct horse battery staple"
)

func setupTestServer(t *testing.T, classifier classify.Classifier) *testEnv {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	authSvc := auth.NewService("test-secret", time.Hour)
	hash, err := authSvc.HashPassword(testPassword)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.CreateUser(ctx, &models.User{Username: testUsername, PasswordHash: hash}); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	organizer := service.NewOrganizeService(db, classifier, service.OrganizeOptions{
		Timeout:    time.Second,
		Logger:     logger,
		Registerer: reg,
	})
	queue := jobs.NewQueue(db, jobs.QueueOptions{RetryDelay: time.Second, MaxAttempts: 2})
	server := NewServer(db, authSvc, ServerOptions{
		Organizer:     organizer,
		OrganizeQueue: queue,
		Registerer:    reg,
		Gatherer:      reg,
		Logger:        logger,
	})
	env := &testEnv{t: t, db: db, server: server, queue: queue, organizer: organizer}
	env.token = env.login(testUsername, testPassword).Token
	return env
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(username, password string) tokenResponse {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/auth/login", loginRequest{Username: username, Password: password})
	if rec.Code != http.StatusOK {
		e.t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp tokenResponse
	decodeBody(e.t, rec, &resp)
	return resp
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func (e *testEnv) createStore(name string) models.Store {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/stores", nameRequest{Name: name})
	expectStatus(e.t, rec, http.StatusCreated)
	var st models.Store
	decodeBody(e.t, rec, &st)
	return st
}

func (e *testEnv) createSection(storeID int64, name string) models.Section {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/stores/"+itoa(storeID)+"/sections", nameRequest{Name: name})
	expectStatus(e.t, rec, http.StatusCreated)
	var sec models.Section
	decodeBody(e.t, rec, &sec)
	return sec
}

func (e *testEnv) createItem(name string, storeID, sectionID *int64) models.Item {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/items", createItemRequest{Name: name, StoreID: storeID, SectionID: sectionID})
	expectStatus(e.t, rec, http.StatusCreated)
	var it models.Item
	decodeBody(e.t, rec, &it)
	return it
}

func (e *testEnv) list() models.ItemList {
	e.t.Helper()
	rec := e.do(http.MethodGet, "/api/items", nil)
	expectStatus(e.t, rec, http.StatusOK)
	var list models.ItemList
	decodeBody(e.t, rec, &list)
	return list
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func names(items []models.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func assertNames(t *testing.T, label string, items []models.Item, want ...string) {
	t.Helper()
	got := names(items)
	if len(got) != len(want) {
		t.Fatalf("%s: expected %v, got %v", label, want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s: expected %v, got %v", label, want, got)
		}
	}
}

func TestLoginAndSessionLifecycle(t *testing.T) {
	env := setupTestServer(t, nil)

	rec := env.do(http.MethodGet, "/api/auth/me", nil)
	expectStatus(t, rec, http.StatusOK)
	var me models.User
	decodeBody(t, rec, &me)
	if me.Username != testUsername {
		t.Fatalf("expected user %q, got %q", testUsername, me.Username)
	}

	login := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"username":"alice","password":"correct horse battery staple"}`))
	env.server.ServeHTTP(login, req)
	expectStatus(t, login, http.StatusOK)
	var cookie *http.Cookie
	for _, c := range login.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("expected http-only session cookie, got %+v", cookie)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)

	expectStatus(t, env.do(http.MethodPost, "/api/auth/logout", nil), http.StatusNoContent)
	assertJSONError(t, env.do(http.MethodGet, "/api/items", nil), http.StatusUnauthorized, "invalid credentials")

	env.token = ""
	assertJSONError(t, env.do(http.MethodGet, "/api/items", nil), http.StatusUnauthorized, "missing credentials")
	assertJSONError(t, env.do(http.MethodPost, "/api/auth/login", loginRequest{Username: testUsername, Password: "wrong"}), http.StatusUnauthorized, "invalid credentials")
	assertJSONError(t, env.do(http.MethodPost, "/api/auth/login", loginRequest{Username: "mallory", Password: "x"}), http.StatusUnauthorized, "invalid credentials")
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	env := setupTestServer(t, nil)
	env.token = ""

	rec := env.do(http.MethodGet, "/healthz", nil)
	expectStatus(t, rec, http.StatusOK)
	var health healthResponse
	decodeBody(t, rec, &health)
	if health.Status != "ok" || !health.Queue.Enabled {
		t.Fatalf("unexpected health body: %+v", health)
	}

	expectStatus(t, env.do(http.MethodGet, "/metrics", nil), http.StatusOK)
}

func TestMetricsLabelMatchedRoute(t *testing.T) {
	env := setupTestServer(t, nil)
	store := env.createStore("Grocery")
	item := env.createItem("Milk", &store.ID, nil)

	rec := env.do(http.MethodPut, "/api/items/"+itoa(item.ID)+"/move", moveItemRequest{StoreID: &store.ID})
	expectStatus(t, rec, http.StatusOK)

	scrape := env.do(http.MethodGet, "/metrics", nil)
	expectStatus(t, scrape, http.StatusOK)
	body := scrape.Body.String()
	want := `shoplist_http_requests_total{method="PUT",route="/api/items/{id}/move",status_class="2xx"} 1`
	if !strings.Contains(body, want) {
		t.Fatalf("scrape missing %s\n%s", want, body)
	}
	if strings.Contains(body, `method="PUT",route="/api/*"`) {
		t.Fatalf("move request fell back to the /api/* bucket:\n%s", body)
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := setupTestServer(t, nil)

	rec := env.do(http.MethodGet, "/api/items", nil)
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected a generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "trace-me")
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "trace-me" {
		t.Fatalf("expected propagated request id, got %q", got)
	}
}

func TestShoppingListFlow(t *testing.T) {
	env := setupTestServer(t, nil)

	costco := env.createStore("Costco")
	produce := env.createSection(costco.ID, "Produce")
	dairy := env.createSection(costco.ID, "Dairy")

	milk := env.createItem("milk", &costco.ID, &dairy.ID)
	cheese := env.createItem("cheese", &costco.ID, &dairy.ID)
	env.createItem("batteries", &costco.ID, nil)
	env.createItem("stamps", nil, nil)
	env.createItem("apple", &costco.ID, &produce.ID)

	list := env.list()
	assertNames(t, "global", list.Unassigned, "stamps")
	if len(list.Stores) != 1 || len(list.Stores[0].Sections) != 2 {
		t.Fatalf("unexpected list shape: %+v", list)
	}
	assertNames(t, "store unassigned", list.Stores[0].Unassigned, "batteries")
	assertNames(t, "produce", list.Stores[0].Sections[0].Items, "apple")
	assertNames(t, "dairy", list.Stores[0].Sections[1].Items, "milk", "cheese")

	rec := env.do(http.MethodPut, "/api/items/"+itoa(cheese.ID)+"/move", moveItemRequest{StoreID: &costco.ID, SectionID: &dairy.ID, Index: 0})
	expectStatus(t, rec, http.StatusOK)
	assertNames(t, "dairy after move", env.list().Stores[0].Sections[1].Items, "cheese", "milk")

	rec = env.do(http.MethodPut, "/api/items/"+itoa(milk.ID)+"/move", moveItemRequest{Index: 5})
	expectStatus(t, rec, http.StatusOK)
	assertNames(t, "global after move", env.list().Unassigned, "stamps", "milk")

	expectStatus(t, env.do(http.MethodPut, "/api/items/"+itoa(cheese.ID)+"/checked", nil), http.StatusOK)
	assertNames(t, "dairy after check", env.list().Stores[0].Sections[1].Items)
	rec = env.do(http.MethodPut, "/api/items/"+itoa(cheese.ID)+"/checked", map[string]bool{"checked": false})
	expectStatus(t, rec, http.StatusOK)
	assertNames(t, "dairy after uncheck", env.list().Stores[0].Sections[1].Items, "cheese")

	rec = env.do(http.MethodPut, "/api/items/"+itoa(cheese.ID), nameRequest{Name: "brie"})
	expectStatus(t, rec, http.StatusOK)
	expectStatus(t, env.do(http.MethodDelete, "/api/items/"+itoa(milk.ID), nil), http.StatusNoContent)
	assertNames(t, "global after delete", env.list().Unassigned, "stamps")

	rec = env.do(http.MethodPut, "/api/stores/"+itoa(costco.ID)+"/sections/reorder", reorderSectionsRequest{SectionIDs: []int64{dairy.ID, produce.ID}})
	expectStatus(t, rec, http.StatusOK)
	if got := env.list().Stores[0].Sections[0].Name; got != "Dairy" {
		t.Fatalf("expected Dairy first after reorder, got %q", got)
	}

	rec = env.do(http.MethodPut, "/api/sections/"+itoa(dairy.ID)+"/move", indexRequest{Index: 1})
	expectStatus(t, rec, http.StatusOK)
	if got := env.list().Stores[0].Sections[0].Name; got != "Produce" {
		t.Fatalf("expected Produce first after section move, got %q", got)
	}

	expectStatus(t, env.do(http.MethodDelete, "/api/sections/"+itoa(produce.ID), nil), http.StatusNoContent)
	assertNames(t, "store unassigned after section delete", env.list().Stores[0].Unassigned, "batteries", "apple")

	expectStatus(t, env.do(http.MethodDelete, "/api/stores/"+itoa(costco.ID), nil), http.StatusNoContent)
	list = env.list()
	if len(list.Stores) != 0 {
		t.Fatalf("expected store to be gone, got %+v", list.Stores)
	}
	assertNames(t, "global after store delete", list.Unassigned, "stamps")
}

func TestErrorMapping(t *testing.T) {
	env := setupTestServer(t, nil)
	costco := env.createStore("Costco")
	safeway := env.createStore("Safeway")
	dairy := env.createSection(costco.ID, "Dairy")
	it := env.createItem("milk", nil, nil)

	assertJSONError(t, env.do(http.MethodPost, "/api/items", createItemRequest{Name: "eggs", StoreID: &safeway.ID, SectionID: &dairy.ID}),
		http.StatusConflict, "section doesn't belong to the given store")
	assertJSONError(t, env.do(http.MethodPut, "/api/items/"+itoa(it.ID)+"/move", moveItemRequest{StoreID: &safeway.ID, SectionID: &dairy.ID}),
		http.StatusConflict, "section doesn't belong to the given store")
	assertJSONError(t, env.do(http.MethodPut, "/api/items/999/move", moveItemRequest{}), http.StatusNotFound, "item not found")
	assertJSONError(t, env.do(http.MethodDelete, "/api/stores/999", nil), http.StatusNotFound, "store not found")
	assertJSONError(t, env.do(http.MethodPut, "/api/items/abc", nameRequest{Name: "x"}), http.StatusBadRequest, "invalid item id")
	assertJSONError(t, env.do(http.MethodPost, "/api/stores", map[string]int{"name": 3}), http.StatusBadRequest, "invalid request body")

	rec := env.do(http.MethodPost, "/api/stores", nameRequest{Name: "   "})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestOrganizeEndpoint(t *testing.T) {
	var calls int
	env := setupTestServer(t, classifierFunc(func(ctx context.Context, items, sections []classify.Candidate) ([]classify.Assignment, error) {
		calls++
		byName := map[string]int64{}
		for _, sec := range sections {
			byName[sec.Name] = sec.ID
		}
		var out []classify.Assignment
		for _, it := range items {
			switch it.Name {
			case "milk", "cheese":
				out = append(out, classify.Assignment{ItemID: it.ID, SectionID: byName["Dairy"]})
			case "banana":
				out = append(out, classify.Assignment{ItemID: it.ID, SectionID: byName["Produce"]})
			}
		}
		out = append(out, classify.Assignment{ItemID: 9999, SectionID: byName["Dairy"]})
		return out, nil
	}))

	costco := env.createStore("Costco")
	produce := env.createSection(costco.ID, "Produce")
	env.createSection(costco.ID, "Dairy")
	env.createItem("apple", &costco.ID, &produce.ID)
	env.createItem("milk", &costco.ID, nil)
	env.createItem("banana", &costco.ID, nil)
	env.createItem("cheese", &costco.ID, nil)
	env.createItem("batteries", &costco.ID, nil)

	expectStatus(t, env.do(http.MethodPost, "/api/stores/"+itoa(costco.ID)+"/organize", nil), http.StatusNoContent)
	if calls != 1 {
		t.Fatalf("expected one classifier call, got %d", calls)
	}
	store := env.list().Stores[0]
	assertNames(t, "store unassigned", store.Unassigned, "batteries")
	assertNames(t, "produce", store.Sections[0].Items, "apple", "banana")
	assertNames(t, "dairy", store.Sections[1].Items, "milk", "cheese")

	assertJSONError(t, env.do(http.MethodPost, "/api/stores/999/organize", nil), http.StatusNotFound, "store not found")
	assertJSONError(t, env.do(http.MethodPost, "/api/stores/999/organize?async=true", nil), http.StatusNotFound, "store not found")
	assertJSONError(t, env.do(http.MethodPost, "/api/stores/1/organize?async=maybe", nil), http.StatusBadRequest, "invalid async query parameter")
}

func TestOrganizeWithoutClassifierFails(t *testing.T) {
	env := setupTestServer(t, nil)
	costco := env.createStore("Costco")
	env.createSection(costco.ID, "Dairy")
	env.createItem("milk", &costco.ID, nil)

	assertJSONError(t, env.do(http.MethodPost, "/api/stores/"+itoa(costco.ID)+"/organize", nil), http.StatusInternalServerError, "internal error")
	assertNames(t, "store unassigned", env.list().Stores[0].Unassigned, "milk")
}

func TestAsyncOrganizeJob(t *testing.T) {
	env := setupTestServer(t, classifierFunc(func(ctx context.Context, items, sections []classify.Candidate) ([]classify.Assignment, error) {
		return []classify.Assignment{{ItemID: items[0].ID, SectionID: sections[0].ID}}, nil
	}))
	costco := env.createStore("Costco")
	env.createSection(costco.ID, "Dairy")
	env.createItem("milk", &costco.ID, nil)

	rec := env.do(http.MethodPost, "/api/stores/"+itoa(costco.ID)+"/organize?async=true", nil)
	expectStatus(t, rec, http.StatusAccepted)
	var job models.OrganizeJob
	decodeBody(t, rec, &job)
	if job.Status != models.OrganizeJobQueued || job.StoreID != costco.ID {
		t.Fatalf("unexpected enqueued job: %+v", job)
	}

	ctx := context.Background()
	claimed, err := env.queue.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim job: %v (job %v)", err, claimed)
	}
	process := jobs.OrganizeProcessor(env.organizer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := process(ctx, claimed); err != nil {
		t.Fatal(err)
	}
	if err := env.queue.Complete(ctx, claimed.ID); err != nil {
		t.Fatal(err)
	}

	rec = env.do(http.MethodGet, "/api/organize-jobs/"+itoa(job.ID), nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &job)
	if job.Status != models.OrganizeJobCompleted {
		t.Fatalf("expected completed job, got %q", job.Status)
	}
	assertNames(t, "dairy", env.list().Stores[0].Sections[0].Items, "milk")

	assertJSONError(t, env.do(http.MethodGet, "/api/organize-jobs/999", nil), http.StatusNotFound, "organize job not found")
}

func TestBodyLimit(t *testing.T) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "limit.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	reg := prometheus.NewRegistry()
	server := NewServer(db, auth.NewService("test-secret", time.Hour), ServerOptions{
		MaxBodyBytes: 32,
		Registerer:   reg,
		Gatherer:     reg,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"username":"alice","password":"a very long password indeed"}`))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assertJSONError(t, rec, http.StatusRequestEntityTooLarge, "request body too large")
}
