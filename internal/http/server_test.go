package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"traffic/internal/cache"
	"traffic/internal/core"
	applog "traffic/internal/log"
	"traffic/internal/metrics"
	"traffic/internal/middleware/trace"
	"traffic/internal/services"
	"traffic/internal/storage/memory"
)

type testServer struct {
	srv   *Server
	store *memory.Store
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	store := memory.New()
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Output: io.Discard})
	}
	rollups := services.NewRollupService(store, opts.Metrics, cache.NewLRUCache[services.Dashboard](16, time.Minute))
	entries := services.NewEntryService(store, nil, opts.Metrics)
	entries.OnChange(rollups)
	clients := services.NewClientService(store)
	clients.OnChange(rollups)

	srv := NewServer(":0", Services{Entries: entries, Rollups: rollups, Clients: clients, Store: store}, opts)
	srv.now = func() time.Time { return time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return &testServer{srv: srv, store: store}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "192.0.2.1:1234"
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func (ts *testServer) seedClient(t *testing.T, name, budget string) int64 {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/clients", fmt.Sprintf(`{"name":%q,"monthly_budget":%s}`, name, budget))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create client status=%d body=%s", rr.Code, rr.Body)
	}
	return decode[clientView](t, rr).ID
}

func (ts *testServer) seedProduct(t *testing.T, clientID int64, name string) int64 {
	t.Helper()
	rr := ts.do(t, http.MethodPost, fmt.Sprintf("/clients/%d/products", clientID), productRequest{Name: name})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create product status=%d body=%s", rr.Code, rr.Body)
	}
	return decode[productView](t, rr).ID
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := ts.do(t, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get(trace.HeaderRequestID) == "" {
			t.Errorf("%s missing request id header", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing security headers", path)
		}
	}
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("database is locked") }

func TestReadyReportsUnavailableStore(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.srv.store = downStore{}
	rr := ts.do(t, http.MethodGet, "/readyz", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestClientLifecycle(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.seedClient(t, "  Acme ", `"1000,00"`)

	rr := ts.do(t, http.MethodGet, fmt.Sprintf("/clients/%d", id), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}
	c := decode[clientView](t, rr)
	if c.Name != "Acme" || c.MonthlyBudget.Cents != 1000_00 || !c.Active {
		t.Fatalf("client = %+v", c)
	}

	rr = ts.do(t, http.MethodPost, "/clients", `{"name":"Acme","monthly_budget":0}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate status=%d body=%s", rr.Code, rr.Body)
	}

	rr = ts.do(t, http.MethodPut, fmt.Sprintf("/clients/%d", id), clientRequest{Name: "Acme Srl", MonthlyBudget: core.Money{Cents: 500_00}})
	if rr.Code != http.StatusOK || decode[clientView](t, rr).Name != "Acme Srl" {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body)
	}

	rr = ts.do(t, http.MethodDelete, fmt.Sprintf("/clients/%d", id), nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("deactivate status=%d", rr.Code)
	}
	if got := decode[[]clientView](t, ts.do(t, http.MethodGet, "/clients", nil)); len(got) != 0 {
		t.Fatalf("active clients = %+v", got)
	}
	if got := decode[[]clientView](t, ts.do(t, http.MethodGet, "/clients?active=false", nil)); len(got) != 1 {
		t.Fatalf("all clients = %+v", got)
	}
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.seedClient(t, "Acme", "0")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown client", http.MethodGet, "/clients/999", nil, http.StatusNotFound},
		{"non numeric id", http.MethodGet, "/clients/abc", nil, http.StatusBadRequest},
		{"empty name", http.MethodPost, "/clients", `{"name":"  "}`, http.StatusUnprocessableEntity},
		{"negative budget", http.MethodPost, "/clients", `{"name":"B","monthly_budget":-5}`, http.StatusUnprocessableEntity},
		{"malformed json", http.MethodPost, "/clients", `{"name":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/clients", `{"nome":"B"}`, http.StatusBadRequest},
		{"bad date", http.MethodPut, fmt.Sprintf("/clients/%d/entries/2024-13-01", id), `{}`, http.StatusUnprocessableEntity},
		{"bad month", http.MethodGet, fmt.Sprintf("/clients/%d/summary?year=2024&month=13", id), nil, http.StatusUnprocessableEntity},
		{"month not a number", http.MethodGet, fmt.Sprintf("/clients/%d/summary?month=march", id), nil, http.StatusBadRequest},
		{"foreign product", http.MethodPut, fmt.Sprintf("/clients/%d/entries/2024-03-05", id), `{"products":[{"product_id":42,"leads":1}]}`, http.StatusConflict},
		{"missing entry", http.MethodDelete, "/entries/77", nil, http.StatusNotFound},
		{"unknown route", http.MethodGet, "/nope", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, tt.method, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body)
			}
			if msg := decode[errorBody](t, rr).Error; msg == "" {
				t.Error("error body missing message")
			}
		})
	}
}

func TestSaveEntryProductsPreservesRows(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.seedClient(t, "Acme", "1000")
	a := ts.seedProduct(t, id, "Funnel A")
	b := ts.seedProduct(t, id, "Funnel B")
	path := fmt.Sprintf("/clients/%d/entries/2024-03-05", id)

	first := fmt.Sprintf(`{"products":[
		{"product_id":%d,"investment":200,"leads":5},
		{"product_id":%d,"investment":100,"leads":3,"sales":1,"revenue":"300.00"}]}`, a, b)
	rr := ts.do(t, http.MethodPut, path, first)
	if rr.Code != http.StatusOK {
		t.Fatalf("first save status=%d body=%s", rr.Code, rr.Body)
	}

	second := fmt.Sprintf(`{"note":"resubmitted","products":[
		{"product_id":%d},
		{"product_id":%d,"investment":120,"leads":4,"sales":2,"revenue":400}]}`, a, b)
	rr = ts.do(t, http.MethodPut, path, second)
	if rr.Code != http.StatusOK {
		t.Fatalf("second save status=%d body=%s", rr.Code, rr.Body)
	}
	got := decode[saveView](t, rr)
	if got.Mode != services.ModeProducts {
		t.Errorf("mode = %s", got.Mode)
	}
	if len(got.Preserved) != 1 || got.Preserved[0] != a {
		t.Errorf("preserved = %v, want [%d]", got.Preserved, a)
	}
	e := got.Entry
	if e.Investment.Cents != 320_00 || e.Leads != 9 || e.Sales != 2 || e.Revenue.Cents != 400_00 {
		t.Fatalf("entry totals = %+v", e.totalsView)
	}
	if e.Note != "resubmitted" {
		t.Errorf("note = %q", e.Note)
	}
	for _, row := range e.Products {
		if row.ProductID == a && (row.Investment.Cents != 200_00 || row.Leads != 5) {
			t.Errorf("funnel A row not preserved: %+v", row)
		}
	}

	rr = ts.do(t, http.MethodGet, path, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get entry status=%d", rr.Code)
	}
	view := decode[entryView](t, rr)
	if len(view.Products) != 2 || view.ID != e.ID {
		t.Fatalf("entry view = %+v", view)
	}
	if view.Derived.CPL == nil || *view.Derived.CPL != 35.56 {
		t.Errorf("cpl = %v, want 35.56", view.Derived.CPL)
	}
}

func TestSaveEntryAggregate(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.seedClient(t, "Solo", "0")
	path := fmt.Sprintf("/clients/%d/entries/2024-03-05", id)

	ts.do(t, http.MethodPut, path, `{"investment":"150.00","note":"first"}`)
	rr := ts.do(t, http.MethodPut, path, `{"investment":"150.00","note":"second"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	got := decode[saveView](t, rr)
	if got.Mode != services.ModeAggregate || got.Entry.Investment.Cents != 150_00 || got.Entry.Note != "second" {
		t.Fatalf("save = %+v", got)
	}
	if got.Entry.Derived.CPL != nil || got.Entry.Derived.ROAS == nil || *got.Entry.Derived.ROAS != 0 {
		t.Errorf("derived = %+v", got.Entry.Derived)
	}

	rr = ts.do(t, http.MethodDelete, fmt.Sprintf("/entries/%d", got.Entry.ID), nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr = ts.do(t, http.MethodGet, path, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rr.Code)
	}
}

func TestMonthViews(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.seedClient(t, "Acme", "1000")
	a := ts.seedProduct(t, id, "A")
	for _, day := range []struct {
		date string
		body string
	}{
		{"2024-02-10", fmt.Sprintf(`{"products":[{"product_id":%d,"investment":100,"leads":2}]}`, a)},
		{"2024-03-01", fmt.Sprintf(`{"products":[{"product_id":%d,"investment":300,"leads":3,"sales":1,"revenue":900}]}`, a)},
		{"2024-03-02", fmt.Sprintf(`{"products":[{"product_id":%d,"investment":500,"leads":5}]}`, a)},
	} {
		if rr := ts.do(t, http.MethodPut, fmt.Sprintf("/clients/%d/entries/%s", id, day.date), day.body); rr.Code != http.StatusOK {
			t.Fatalf("save %s status=%d body=%s", day.date, rr.Code, rr.Body)
		}
	}

	base := fmt.Sprintf("/clients/%d", id)

	entries := decode[[]entryView](t, ts.do(t, http.MethodGet, base+"/entries?year=2024&month=3", nil))
	if len(entries) != 2 || entries[0].Date != "2024-03-01" {
		t.Fatalf("entries = %+v", entries)
	}

	// defaults to the current month
	sum := decode[summaryView](t, ts.do(t, http.MethodGet, base+"/summary", nil))
	if sum.Month != "2024-03" || sum.DayCount != 2 || sum.Totals.Investment.Cents != 800_00 || sum.Totals.Leads != 8 {
		t.Fatalf("summary = %+v", sum)
	}

	empty := decode[summaryView](t, ts.do(t, http.MethodGet, base+"/summary?year=2023&month=1", nil))
	if empty.DayCount != 0 || empty.Totals.Investment.Cents != 0 || empty.Derived.CPL != nil {
		t.Fatalf("empty summary = %+v", empty)
	}

	products := decode[[]productSummaryView](t, ts.do(t, http.MethodGet, base+"/summary/products?year=2024&month=3", nil))
	if len(products) != 1 || products[0].Totals.Leads != 8 {
		t.Fatalf("products = %+v", products)
	}

	daily := decode[[]dailyView](t, ts.do(t, http.MethodGet, base+"/summary/daily?year=2024&month=3", nil))
	if len(daily) != 2 || daily[1].Date != "2024-03-02" {
		t.Fatalf("daily = %+v", daily)
	}

	dash := decode[dashboardView](t, ts.do(t, http.MethodGet, base+"/dashboard?year=2024&month=3", nil))
	if dash.Budget.Band != core.BandWarning {
		t.Errorf("band = %s, want warning", dash.Budget.Band)
	}
	if dash.Budget.Ratio == nil || *dash.Budget.Ratio != 0.8 {
		t.Errorf("ratio = %v", dash.Budget.Ratio)
	}
	if dash.Previous.Totals.Investment.Cents != 100_00 {
		t.Errorf("previous = %+v", dash.Previous)
	}
	if dash.Deltas.Investment == nil || *dash.Deltas.Investment != 700 {
		t.Errorf("investment delta = %v, want 700", dash.Deltas.Investment)
	}
}

func TestDashboardInvalidatedOnSave(t *testing.T) {
	ts := newTestServer(t, Options{})
	id := ts.seedClient(t, "Acme", "1000")
	dashPath := fmt.Sprintf("/clients/%d/dashboard?year=2024&month=3", id)

	if d := decode[dashboardView](t, ts.do(t, http.MethodGet, dashPath, nil)); d.Current.DayCount != 0 {
		t.Fatalf("initial dashboard = %+v", d.Current)
	}
	ts.do(t, http.MethodPut, fmt.Sprintf("/clients/%d/entries/2024-03-05", id), `{"investment":900}`)

	d := decode[dashboardView](t, ts.do(t, http.MethodGet, dashPath, nil))
	if d.Current.DayCount != 1 || d.Budget.Band != core.BandCritical {
		t.Fatalf("dashboard after save = %+v", d)
	}
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	ts := newTestServer(t, Options{RateLimitPerMinute: 2})
	for i := range 2 {
		if rr := ts.do(t, http.MethodPost, "/clients", fmt.Sprintf(`{"name":"C%d"}`, i)); rr.Code != http.StatusCreated {
			t.Fatalf("create %d status=%d", i, rr.Code)
		}
	}
	rr := ts.do(t, http.MethodPost, "/clients", `{"name":"C3"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if rr := ts.do(t, http.MethodGet, "/clients", nil); rr.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, status=%d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{Metrics: metrics.New()})
	ts.do(t, http.MethodGet, "/healthz", nil)
	rr := ts.do(t, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "traffic_http_request_duration_seconds") {
		t.Errorf("metrics output missing request histogram")
	}
}

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		query   string
		want    core.YearMonth
		wantErr error
	}{
		{"", core.YearMonth{Year: 2024, Month: 7}, nil},
		{"year=2023", core.YearMonth{Year: 2023, Month: 7}, nil},
		{"year=2023&month=2", core.YearMonth{Year: 2023, Month: 2}, nil},
		{"month=0", core.YearMonth{}, core.ErrValidation},
		{"year=abc", core.YearMonth{}, errMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			got, err := ParseMonthParams(req.URL.Query(), now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %+v, %v", got, err)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  Acme\x00\x07 Srl\n "); got != "Acme Srl" {
		t.Errorf("sanitizeInput = %q", got)
	}
}
