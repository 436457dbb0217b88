package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"signalis/internal/config"
	"signalis/internal/db"
	"signalis/internal/domain"
	"signalis/internal/engine"
	"signalis/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{Engine: e, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func mustCreate(t *testing.T, client *http.Client, url string, body any) []byte {
	t.Helper()
	res, data := doJSON(t, client, http.MethodPost, url, body)
	if res.StatusCode != http.StatusCreated && res.StatusCode != http.StatusOK {
		t.Fatalf("POST %s: %d %s", url, res.StatusCode, string(data))
	}
	return data
}

func seedTerritoryHTTP(t *testing.T, srv *testServer) {
	t.Helper()
	client := srv.Client()
	mustCreate(t, client, srv.URL+"/v0/collectivities", map[string]any{"id": "col-1", "name": "CC du Causse"})
	for code, dept := range map[string]string{"12001": "12", "30001": "30"} {
		res, body := doJSON(t, client, http.MethodPut, srv.URL+"/v0/communes/"+code, map[string]any{
			"name":             "Commune " + code,
			"departement_code": dept,
		})
		if res.StatusCode != http.StatusOK {
			t.Fatalf("upsert commune: %d %s", res.StatusCode, string(body))
		}
	}
	mustCreate(t, client, srv.URL+"/v0/authorities", map[string]any{
		"id":        "aut-a",
		"name":      "DDFIP Aveyron",
		"districts": []string{"12"},
	})
	mustCreate(t, client, srv.URL+"/v0/authorities/aut-a/offices", map[string]any{
		"id":       "off-a1",
		"name":     "SIP Rodez",
		"communes": []string{"12001"},
	})
}

func TestTransmissionLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	seedTerritoryHTTP(t, srv)
	client := srv.Client()

	var rp domain.Report
	data := mustCreate(t, client, srv.URL+"/v0/reports", map[string]any{
		"collectivity_id": "col-1",
		"commune_code":    "12001",
		"anomaly":         "construction",
		"completed":       true,
	})
	if err := json.Unmarshal(data, &rp); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}

	var tr domain.Transmission
	data = mustCreate(t, client, srv.URL+"/v0/transmissions", map[string]any{"collectivity_id": "col-1"})
	if err := json.Unmarshal(data, &tr); err != nil {
		t.Fatalf("unmarshal transmission: %v", err)
	}

	addRes, addBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/transmissions/"+tr.ID+"/reports", map[string]any{
		"report_ids": []string{rp.ID},
	})
	if addRes.StatusCode != http.StatusOK {
		t.Fatalf("add reports: %d %s", addRes.StatusCode, string(addBody))
	}
	var pool engine.PoolChangeResult
	if err := json.Unmarshal(addBody, &pool); err != nil {
		t.Fatalf("unmarshal pool result: %v", err)
	}
	if pool.Added != 1 || pool.After != 1 {
		t.Fatalf("expected one report added, got %+v", pool)
	}

	finRes, finBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/transmissions/"+tr.ID+"/complete", nil)
	if finRes.StatusCode != http.StatusOK {
		t.Fatalf("complete transmission: %d %s", finRes.StatusCode, string(finBody))
	}
	var fin engine.FinalizeResult
	if err := json.Unmarshal(finBody, &fin); err != nil {
		t.Fatalf("unmarshal finalize result: %v", err)
	}
	if !fin.OK || len(fin.Packages) != 1 {
		t.Fatalf("expected one package, got %+v", fin)
	}
	if fin.Packages[0].AuthorityID != "aut-a" {
		t.Fatalf("expected routing to aut-a, got %s", fin.Packages[0].AuthorityID)
	}

	pkgRes, pkgBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/packages/"+fin.Packages[0].ID+"/reports", nil)
	if pkgRes.StatusCode != http.StatusOK {
		t.Fatalf("list package reports: %d %s", pkgRes.StatusCode, string(pkgBody))
	}
	var reports []domain.Report
	if err := json.Unmarshal(pkgBody, &reports); err != nil {
		t.Fatalf("unmarshal reports: %v", err)
	}
	if len(reports) != 1 || reports[0].Reference == nil {
		t.Fatalf("expected one referenced report, got %+v", reports)
	}
}

func TestCompleteTransmissionValidationFailureOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	seedTerritoryHTTP(t, srv)
	client := srv.Client()

	var tr domain.Transmission
	data := mustCreate(t, client, srv.URL+"/v0/transmissions", map[string]any{"collectivity_id": "col-1"})
	if err := json.Unmarshal(data, &tr); err != nil {
		t.Fatalf("unmarshal transmission: %v", err)
	}

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/transmissions/"+tr.ID+"/complete", nil)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on empty pool, got %d %s", res.StatusCode, string(body))
	}
	var envelope struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Code != "validation_failed" {
		t.Fatalf("expected validation_failed, got %s (%s)", envelope.Code, string(body))
	}
}

func TestPoolMutationOnCompletedTransmissionConflicts(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	seedTerritoryHTTP(t, srv)
	client := srv.Client()

	var rp domain.Report
	data := mustCreate(t, client, srv.URL+"/v0/reports", map[string]any{
		"collectivity_id": "col-1",
		"commune_code":    "12001",
		"completed":       true,
	})
	if err := json.Unmarshal(data, &rp); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	var tr domain.Transmission
	data = mustCreate(t, client, srv.URL+"/v0/transmissions", map[string]any{"collectivity_id": "col-1"})
	if err := json.Unmarshal(data, &tr); err != nil {
		t.Fatalf("unmarshal transmission: %v", err)
	}
	mustCreate(t, client, srv.URL+"/v0/transmissions/"+tr.ID+"/reports", map[string]any{"report_ids": []string{rp.ID}})
	mustCreate(t, client, srv.URL+"/v0/transmissions/"+tr.ID+"/complete", nil)

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/transmissions/"+tr.ID+"/reports", map[string]any{
		"report_ids": []string{rp.ID},
	})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict on completed transmission, got %d %s", res.StatusCode, string(body))
	}
}

func TestGetMissingReportReturnsNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/reports/nope", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(body))
	}
}
