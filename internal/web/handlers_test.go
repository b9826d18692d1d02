package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/labdigest/internal/app"
	"github.com/JonMunkholm/labdigest/internal/config"
	"github.com/JonMunkholm/labdigest/internal/core"
	"github.com/JonMunkholm/labdigest/internal/source"
	"github.com/JonMunkholm/labdigest/internal/store"
)

type testServer struct {
	*Server
	store *store.MemStore
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Server:   config.ServerConfig{RequestTimeout: 10 * time.Second},
		Store:    config.StoreConfig{Backend: store.BackendMemory},
		Pipeline: config.PipelineConfig{RunWait: time.Second},
		Upload:   config.UploadConfig{MaxFileSize: 1 << 20},
		Security: config.SecurityConfig{EnableCSP: true},
		Dictionary: config.DictionaryConfig{
			EIDPath:        filepath.Join(dir, "eid.json"),
			DepartmentPath: filepath.Join(dir, "department.json"),
		},
	}
	if err := os.WriteFile(cfg.Dictionary.EIDPath, []byte(`{"Smith, John": "js001"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Dictionary.DepartmentPath, []byte(`{"Doe, Jane": "Chemistry"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func newTestServer(t *testing.T, mutate func(*config.Config)) testServer {
	t.Helper()
	cfg := testConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	s := store.NewMemStore()
	return testServer{Server: NewServer(app.New(s, cfg, config.DefaultLayouts()), cfg), store: s}
}

func (ts testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	return rec
}

func (ts testServer) upload(t *testing.T, kind, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/artifacts/"+kind, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return ts.do(t, req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func rawExport(rows ...[]string) []byte {
	all := [][]string{
		{"Lab Access Report"},
		{"", "Account", "", "", "Advisor", "User", "Hours"},
	}
	return source.WriteTSV(append(all, rows...))
}

func exportRow(account, advisor, name string) []string {
	row := make([]string, 18)
	row[1] = account
	row[4] = advisor
	row[5] = name
	row[6] = "1.5"
	row[8] = "Confocal"
	row[10] = "Door Opened at 09:15"
	row[11] = "03/04/2024"
	row[13] = "45.00"
	return row
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Security-Policy"); got == "" {
		t.Error("missing Content-Security-Policy header")
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestUpload_AndList(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.upload(t, "raw", "2024-03 raw.tsv", rawExport(exportRow("A-1", "jane doe", "john smith")))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body)
	}
	a := decode[core.Artifact](t, rec)
	if a.Name != "2024-03 raw" || a.Kind != core.KindRaw || !a.Flags.Has(core.FlagConverted) {
		t.Errorf("uploaded artifact = %+v", a)
	}

	if rec := ts.upload(t, "stats-monthly", "2024-03 monthly.txt", []byte("Multistat Summary")); rec.Code != http.StatusCreated {
		t.Fatalf("stats upload status = %d, body %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/artifacts", nil))
	if all := decode[[]core.Artifact](t, rec); len(all) != 2 {
		t.Errorf("listed %d artifacts, want 2", len(all))
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/artifacts?kind=raw", nil))
	raws := decode[[]artifactView](t, rec)
	if len(raws) != 1 || raws[0].ID != a.ID || raws[0].State != core.StateConverted {
		t.Errorf("raw artifacts = %+v, want only %s in state converted", raws, a.ID)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/artifacts?kind=digest", nil))
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("empty listing body = %s, want []", body)
	}
}

func TestUpload_Errors(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name       string
		kind       string
		content    []byte
		wantStatus int
		wantCode   string
	}{
		{name: "unknown kind", kind: "spreadsheet", content: []byte("x"), wantStatus: http.StatusBadRequest, wantCode: "REQ001"},
		{name: "digest kind", kind: "digest", content: []byte("x"), wantStatus: http.StatusBadRequest, wantCode: "REQ001"},
		{name: "empty file", kind: "raw", content: nil, wantStatus: http.StatusBadRequest, wantCode: "FILE004"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.upload(t, tt.kind, "export.tsv", tt.content)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if got := decode[ErrorResponse](t, rec); got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}

	t.Run("missing file field", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		_ = mw.WriteField("note", "no file here")
		_ = mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/api/artifacts/raw", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		rec := ts.do(t, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if got := decode[ErrorResponse](t, rec); got.Code != "FILE004" {
			t.Errorf("code = %q, want FILE004", got.Code)
		}
	})

	t.Run("too large", func(t *testing.T) {
		small := newTestServer(t, func(c *config.Config) { c.Upload.MaxFileSize = 64 })
		rec := small.upload(t, "raw", "big.tsv", bytes.Repeat([]byte("a\tb\n"), 100))
		if rec.Code < 400 || rec.Code == http.StatusCreated {
			t.Errorf("status = %d, want a rejection", rec.Code)
		}
	})
}

func TestDigestFlow_QuarantineFixExport(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.upload(t, "raw", "2024-03 raw.tsv", rawExport(
		exportRow("A-1", "jane doe", "john smith"),
		exportRow("A-1", "jane doe", "madonna"),
	))
	raw := decode[core.Artifact](t, rec)

	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/sanitize", nil))
	if run := decode[core.RunReport](t, rec); run.Count(core.OutcomeSanitized) != 1 {
		t.Fatalf("sanitize results = %+v, want one sanitized", run.Results)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/digest", nil))
	if run := decode[core.RunReport](t, rec); run.Count(core.OutcomeQuarantined) != 1 {
		t.Fatalf("first digest results = %+v, want one quarantined", run.Results)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/artifacts/"+raw.ID+"/quarantine", nil))
	held := decode[[]core.QuarantineRecord](t, rec)
	if len(held) != 1 || held[0].Value != "madonna" || held[0].RowNumber != 4 {
		t.Fatalf("quarantine = %+v, want madonna at row 4", held)
	}

	fix := `{"row": 4, "field": "full_name", "value": "Madonna Ciccone"}`
	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/artifacts/"+raw.ID+"/fix", strings.NewReader(fix)))
	if rec.Code != http.StatusOK {
		t.Fatalf("fix status = %d, body %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/digest", nil))
	run := decode[core.RunReport](t, rec)
	if len(run.Results) != 1 || run.Results[0].Outcome != core.OutcomeDigested {
		t.Fatalf("second digest results = %+v, want one digested", run.Results)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/digests/"+run.Results[0].DigestID+"/billcodes", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("billcodes status = %d, body %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "TMI_2024-03_bill-code.txt") {
		t.Errorf("Content-Disposition = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "Ciccone, Madonna") {
		t.Errorf("bill codes missing corrected name:\n%s", rec.Body)
	}

	// A digested artifact cannot be fixed again.
	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/artifacts/"+raw.ID+"/fix", strings.NewReader(fix)))
	if rec.Code != http.StatusConflict {
		t.Errorf("fix after digest status = %d, want 409", rec.Code)
	}
}

func TestNotFoundAndBadRequests(t *testing.T) {
	ts := newTestServer(t, nil)
	raw := decode[core.Artifact](t, ts.upload(t, "raw", "2024-03 raw.tsv", rawExport(exportRow("A-1", "jane doe", "john smith"))))

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "quarantine of unknown artifact", method: http.MethodGet, path: "/api/artifacts/nope/quarantine", wantStatus: http.StatusNotFound, wantCode: "STO001"},
		{name: "bill codes of a raw artifact", method: http.MethodGet, path: "/api/digests/" + raw.ID + "/billcodes", wantStatus: http.StatusNotFound, wantCode: "STO001"},
		{name: "fix with bad json", method: http.MethodPost, path: "/api/artifacts/" + raw.ID + "/fix", body: "{", wantStatus: http.StatusBadRequest, wantCode: "REQ001"},
		{name: "fix of unknown field", method: http.MethodPost, path: "/api/artifacts/" + raw.ID + "/fix", body: `{"row": 3, "field": "badge", "value": "x"}`, wantStatus: http.StatusBadRequest, wantCode: "ROW003"},
		{name: "bad kind filter", method: http.MethodGet, path: "/api/artifacts?kind=pdf", wantStatus: http.StatusBadRequest, wantCode: "REQ001"},
		{name: "stats into unknown report", method: http.MethodPost, path: "/api/reports/nope/stats", wantStatus: http.StatusNotFound, wantCode: "STO001"},
		{name: "init without year", method: http.MethodPost, path: "/api/reports/nope/init", wantStatus: http.StatusBadRequest, wantCode: "REQ001"},
		{name: "init of a raw artifact", method: http.MethodPost, path: "/api/reports/" + raw.ID + "/init?year=2024", wantStatus: http.StatusNotFound, wantCode: "STO001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if got := decode[ErrorResponse](t, rec); got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestReports_InitAndInsertStats(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()

	report := decode[core.Artifact](t, ts.upload(t, "report", "FY24 report.txt", []byte("report")))
	stats := strings.Join([]string{
		"Multistat Summary",
		"Period: 03/01/2024 - 03/31/2024",
		"Facility: Nanofab",
		"",
		"Generated by LabSentry",
		"Units: hours",
		"==========",
		"------ Lab Time ------",
		"Lab Time (By Affiliation)",
		"Internal\t10.5",
	}, "\n")
	if rec := ts.upload(t, "stats-monthly", "2024-03 monthly.txt", []byte(stats)); rec.Code != http.StatusCreated {
		t.Fatalf("stats upload status = %d, body %s", rec.Code, rec.Body)
	}

	rec := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/reports/"+report.ID+"/init?year=2024", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("init status = %d, body %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/reports/"+report.ID+"/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d, body %s", rec.Code, rec.Body)
	}
	type result struct {
		Name       string `json:"name"`
		Month      string `json:"month"`
		Placements int    `json:"placements"`
	}
	results := decode[[]result](t, rec)
	if len(results) != 1 || results[0].Month != "Mar" || results[0].Placements != 1 {
		t.Fatalf("insert results = %+v, want one March placement", results)
	}

	layout := config.DefaultLayouts().Report
	cells, err := ts.store.ReadCells(ctx, report.ID, layout.Sheet)
	if err != nil {
		t.Fatalf("ReadCells() error: %v", err)
	}
	var title, labTime string
	for _, c := range cells {
		switch {
		case c.Row == 1 && c.Column == 1:
			title = c.Value
		case c.Row == 8 && c.Column == layout.MonthColumns["Mar"]:
			labTime = c.Value
		}
	}
	if title != "Financial Report 10/1/2024 - 09/30/2025" {
		t.Errorf("title = %q", title)
	}
	if labTime != "10.5" {
		t.Errorf("lab time cell = %q, want 10.5", labTime)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.Security.RequireAPIKey = true
		c.Security.APIKeys = []string{"secret"}
	})

	if rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/artifacts", nil)); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/artifacts", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if rec := ts.do(t, req); rec.Code != http.StatusOK {
		t.Errorf("bearer key status = %d, want 200", rec.Code)
	}

	// Health checks stay open.
	if rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}
