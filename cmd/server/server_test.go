package main

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/dealplanner/internal/catalog"
	"github.com/Simplici0/dealplanner/internal/db"
	"github.com/Simplici0/dealplanner/internal/draft"
	"github.com/Simplici0/dealplanner/internal/export"
	"github.com/Simplici0/dealplanner/internal/migrations"
	"github.com/Simplici0/dealplanner/internal/planner"
	"github.com/Simplici0/dealplanner/internal/store"
)

const testDraftKey = "dealplanner.draft.v2"

type testEnv struct {
	srv     *server
	handler http.Handler
	redis   *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "server-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	drafts := draft.New(client, testDraftKey, time.Hour, zerolog.Nop())

	p := planner.New(planner.Options{Logger: zerolog.Nop(), Persister: drafts})
	srv := &server{
		planner: p,
		store:   store.New(database),
		drafts:  drafts,
		catalog: catalog.NewIndex(
			[]catalog.Product{
				{Program: "Vega", RAM: "8GB", ROM: "256GB"},
				{Program: "Vega", RAM: "8GB", ROM: "128GB"},
				{Program: "Vega", RAM: "16GB", ROM: "512GB"},
				{Program: "Nova", RAM: "4GB", ROM: "64GB"},
			},
			[]catalog.Customer{{Name: "Fnac"}, {Name: "Darty"}},
		),
		log: zerolog.Nop(),
	}
	return &testEnv{
		srv:     srv,
		handler: srv.routes(routerConfig{Registry: prometheus.NewRegistry()}),
		redis:   mr,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
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
		t.Fatalf("expected status %d, got %d (body=%s)", want, rec.Code, rec.Body.String())
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

// buildScenario creates one fully populated bundle through the API.
func buildScenario(t *testing.T, e *testEnv) string {
	t.Helper()

	expectStatus(t, e.do(t, http.MethodPatch, "/api/customer", `{"name":"Fnac","frontEndPct":10,"distributorFeePct":5}`), http.StatusOK)

	rec := e.do(t, http.MethodPost, "/api/bundles", "")
	expectStatus(t, rec, http.StatusCreated)
	var created bundleView
	decodeBody(t, rec, &created)
	if created.ID == "" {
		t.Fatalf("expected bundle id in %s", rec.Body.String())
	}

	expectStatus(t, e.do(t, http.MethodPatch, "/api/bundles/"+created.ID+"/technical",
		`{"program":"Vega","tmcUsd":200,"xRate":0.92,"copyLevy":1,"deee":0.5}`), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodPatch, "/api/bundles/"+created.ID+"/pricing",
		`{"rrp":120,"vatPct":21}`), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodPatch, "/api/bundles/"+created.ID+"/promotions",
		`{"promo1Rrp":100,"promo1Units":50}`), http.StatusOK)
	return created.ID
}

func TestBundleLifecycleThroughAPI(t *testing.T) {
	e := newTestEnv(t)
	id := buildScenario(t, e)

	rec := e.do(t, http.MethodGet, "/api/bundles/"+id, "")
	expectStatus(t, rec, http.StatusOK)
	var got bundleView
	decodeBody(t, rec, &got)
	if got.Product.Program != "Vega" || !almostEqual(got.Product.TmcEUR, 184) {
		t.Fatalf("unexpected technical group: %+v", got.Product)
	}
	if !almostEqual(got.Pricing.CustomerInvoice, 87.90) || !almostEqual(got.Pricing.GPPct, -63.60) {
		t.Fatalf("unexpected pricing group: %+v", got.Pricing)
	}
	if !almostEqual(got.Promotions.Promo1Soa, 16.53) || got.Promotions.TotalUnits != 50 {
		t.Fatalf("unexpected promotions group: %+v", got.Promotions)
	}

	rec = e.do(t, http.MethodGet, "/api/totals", "")
	expectStatus(t, rec, http.StatusOK)
	var summary planner.Summary
	decodeBody(t, rec, &summary)
	if summary.Bundles != 1 || summary.TotalPromotedUnits != 50 {
		t.Fatalf("unexpected summary counts: %+v", summary)
	}
	if !almostEqual(summary.NetRevenue.USD, 3721.5) || !almostEqual(summary.GrossProfit.EUR, -5776.22) {
		t.Fatalf("unexpected summary amounts: %+v", summary)
	}

	rec = e.do(t, http.MethodGet, "/api/bundles/"+id+"/totals", "")
	expectStatus(t, rec, http.StatusOK)
	var line planner.LineTotals
	decodeBody(t, rec, &line)
	if line.Units != 50 || !almostEqual(line.NetRevenue.EUR, 3423.78) {
		t.Fatalf("unexpected line totals: %+v", line)
	}

	rec = e.do(t, http.MethodGet, "/api/bundles", "")
	expectStatus(t, rec, http.StatusOK)
	var list []bundleView
	decodeBody(t, rec, &list)
	if len(list) != 1 || list[0].ID != id {
		t.Fatalf("unexpected bundle list: %+v", list)
	}

	expectStatus(t, e.do(t, http.MethodDelete, "/api/bundles/"+id, ""), http.StatusNoContent)
	expectStatus(t, e.do(t, http.MethodDelete, "/api/bundles/"+id, ""), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodGet, "/api/bundles/"+id, ""), http.StatusNotFound)
}

func TestPatchBundleRejectsBadRequests(t *testing.T) {
	e := newTestEnv(t)
	id := buildScenario(t, e)

	rec := e.do(t, http.MethodPatch, "/api/bundles/"+id+"/shipping", `{"rrp":1}`)
	expectStatus(t, rec, http.StatusBadRequest)
	var body map[string]errorBody
	decodeBody(t, rec, &body)
	if body["error"].Code != codeBadRequest {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}

	expectStatus(t, e.do(t, http.MethodPatch, "/api/bundles/missing/pricing", `{"rrp":1}`), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodPatch, "/api/bundles/"+id+"/pricing", `[1,2]`), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodPatch, "/api/bundles/"+id+"/pricing", ``), http.StatusBadRequest)
}

func TestPatchBundleAcceptsProductAlias(t *testing.T) {
	e := newTestEnv(t)
	id := buildScenario(t, e)

	rec := e.do(t, http.MethodPatch, "/api/bundles/"+id+"/product", `{"ram":"8GB","tmcEur":1}`)
	expectStatus(t, rec, http.StatusOK)
	var got bundleView
	decodeBody(t, rec, &got)
	if got.Product.RAM != "8GB" || !almostEqual(got.Product.TmcEUR, 184) {
		t.Fatalf("derived tmcEur must not be patchable: %+v", got.Product)
	}
}

func TestCustomerPatchFansOutAndResets(t *testing.T) {
	e := newTestEnv(t)
	id := buildScenario(t, e)

	rec := e.do(t, http.MethodPatch, "/api/customer", `{"frontEndPct":150}`)
	expectStatus(t, rec, http.StatusOK)
	var customer planner.CustomerSnapshot
	decodeBody(t, rec, &customer)
	if customer.FrontEnd != 100 || customer.Name != "Fnac" {
		t.Fatalf("unexpected customer after patch: %+v", customer)
	}

	b, _ := e.srv.planner.Bundle(id)
	if b.Pricing.CustomerInvoice != 0 {
		t.Fatalf("expected customer invoice 0 at 100%% front end, got %v", b.Pricing.CustomerInvoice)
	}

	rec = e.do(t, http.MethodDelete, "/api/customer", "")
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &customer)
	if customer != (planner.CustomerSnapshot{}) {
		t.Fatalf("expected reset customer, got %+v", customer)
	}
	b, _ = e.srv.planner.Bundle(id)
	if !almostEqual(b.Pricing.CustomerInvoice, 97.67) {
		t.Fatalf("expected invoice without front-end margin after reset: %+v", b.Pricing)
	}
}

func TestSnapshotRoundTripAndDraft(t *testing.T) {
	e := newTestEnv(t)
	buildScenario(t, e)

	if !e.redis.Exists(testDraftKey) {
		t.Fatalf("expected working draft to be persisted")
	}

	rec := e.do(t, http.MethodGet, "/api/snapshot", "")
	expectStatus(t, rec, http.StatusOK)
	saved := rec.Body.String()

	expectStatus(t, e.do(t, http.MethodDelete, "/api/draft", ""), http.StatusNoContent)
	if e.redis.Exists(testDraftKey) {
		t.Fatalf("expected working draft to be removed")
	}
	if e.srv.planner.Len() != 0 {
		t.Fatalf("expected empty planner after clearing the draft")
	}

	rec = e.do(t, http.MethodPut, "/api/snapshot", saved)
	expectStatus(t, rec, http.StatusOK)
	if got := e.srv.planner.Summary(); got.Bundles != 1 || !almostEqual(got.NetRevenue.USD, 3721.5) {
		t.Fatalf("unexpected summary after restore: %+v", got)
	}

	expectStatus(t, e.do(t, http.MethodPut, "/api/snapshot", `{"customer":`), http.StatusBadRequest)
}

func TestSavedDealsThroughAPI(t *testing.T) {
	e := newTestEnv(t)
	buildScenario(t, e)

	rec := e.do(t, http.MethodPost, "/api/deals", `{"notes":"missing title"}`)
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	if !strings.Contains(rec.Body.String(), "title failed on required") {
		t.Fatalf("unexpected validation body: %s", rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/api/deals", `{"title":"Q4 Fnac","notes":"black friday"}`)
	expectStatus(t, rec, http.StatusCreated)
	var deal store.Deal
	decodeBody(t, rec, &deal)
	if deal.CustomerName != "Fnac" || deal.BundleCount != 1 || !almostEqual(deal.Totals.NetRevenue.USD, 3721.5) {
		t.Fatalf("unexpected saved deal: %+v", deal)
	}

	rec = e.do(t, http.MethodGet, "/api/deals?q=friday", "")
	expectStatus(t, rec, http.StatusOK)
	var items []store.DealListItem
	decodeBody(t, rec, &items)
	if len(items) != 1 || items[0].ID != deal.ID {
		t.Fatalf("unexpected search result: %+v", items)
	}

	rec = e.do(t, http.MethodGet, "/api/deals?q=nothing-matches", "")
	expectStatus(t, rec, http.StatusOK)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %s", rec.Body.String())
	}

	e.srv.planner.Reset()
	expectStatus(t, e.do(t, http.MethodPost, "/api/deals/"+deal.ID+"/load", ""), http.StatusOK)
	if got := e.srv.planner.Summary(); got.Bundles != 1 || !almostEqual(got.GrossProfit.USD, -6278.5) {
		t.Fatalf("unexpected summary after loading deal: %+v", got)
	}
	if e.srv.planner.CustomerTerms().Name != "Fnac" {
		t.Fatalf("expected customer to be restored")
	}

	expectStatus(t, e.do(t, http.MethodGet, "/api/deals/"+deal.ID, ""), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodDelete, "/api/deals/"+deal.ID, ""), http.StatusNoContent)
	expectStatus(t, e.do(t, http.MethodGet, "/api/deals/"+deal.ID, ""), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodPost, "/api/deals/"+deal.ID+"/load", ""), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodDelete, "/api/deals/"+deal.ID, ""), http.StatusNotFound)
}

func TestCatalogLookups(t *testing.T) {
	e := newTestEnv(t)

	cases := []struct {
		path string
		want []string
	}{
		{"/api/catalog/programs", []string{"Nova", "Vega"}},
		{"/api/catalog/rams?program=Vega", []string{"8GB", "16GB"}},
		{"/api/catalog/roms?program=Vega", []string{"128GB", "256GB", "512GB"}},
		{"/api/catalog/roms?program=Vega&ram=8GB", []string{"128GB", "256GB"}},
		{"/api/catalog/rams?program=Unknown", []string{}},
		{"/api/catalog/customers", []string{"Darty", "Fnac"}},
	}
	for _, tc := range cases {
		rec := e.do(t, http.MethodGet, tc.path, "")
		expectStatus(t, rec, http.StatusOK)
		var got []string
		decodeBody(t, rec, &got)
		if strings.Join(got, ",") != strings.Join(tc.want, ",") || got == nil {
			t.Fatalf("%s: expected %v, got %v", tc.path, tc.want, got)
		}
	}
}

func TestExportWorkbook(t *testing.T) {
	e := newTestEnv(t)
	buildScenario(t, e)

	rec := e.do(t, http.MethodGet, "/api/export.xlsx", "")
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != export.ContentType {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "dealplanner_export.xlsx") {
		t.Fatalf("unexpected content disposition %q", cd)
	}

	f, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("open exported workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header, one bundle and totals rows, got %d", len(rows))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/healthz", "")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health body: %s", rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, "/metrics", "")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "dealplanner_http_requests_total") {
		t.Fatalf("expected http metrics in scrape output")
	}
}

func TestRoutesWithoutRegistry(t *testing.T) {
	srv := &server{planner: planner.New(planner.Options{}), log: zerolog.Nop()}
	handler := srv.routes(routerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/totals", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestRestoreDraftOnStartup(t *testing.T) {
	e := newTestEnv(t)
	buildScenario(t, e)

	client := redis.NewClient(&redis.Options{Addr: e.redis.Addr()})
	defer client.Close()
	drafts := draft.New(client, testDraftKey, time.Hour, zerolog.Nop())

	fresh := planner.New(planner.Options{Logger: zerolog.Nop()})
	restoreDraft(zerolog.Nop(), fresh, drafts)
	if fresh.Len() != 1 || fresh.CustomerTerms().Name != "Fnac" {
		t.Fatalf("expected draft to be restored, got %d bundles", fresh.Len())
	}

	if err := drafts.Clear(context.Background()); err != nil {
		t.Fatalf("clear draft: %v", err)
	}
	empty := planner.New(planner.Options{Logger: zerolog.Nop()})
	restoreDraft(zerolog.Nop(), empty, drafts)
	if empty.Len() != 0 {
		t.Fatalf("expected no bundles without a draft")
	}
}
