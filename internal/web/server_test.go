package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/cpleditor/internal/audit"
	"github.com/JonMunkholm/cpleditor/internal/codec"
	"github.com/JonMunkholm/cpleditor/internal/codec/binlist"
	"github.com/JonMunkholm/cpleditor/internal/config"
	"github.com/JonMunkholm/cpleditor/internal/core"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 10 * time.Second},
		Session: config.SessionConfig{
			CookieName:    "cpl_session",
			IdleTimeout:   time.Minute,
			MaxSessions:   10,
			PageSize:      50,
			ViewCacheSize: 4,
		},
		Upload: config.UploadConfig{
			MaxFileSize:   64 << 10,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			Timeout:       5 * time.Second,
			DefaultPreset: "2021",
		},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

type testClient struct {
	t      *testing.T
	srv    *Server
	base   string
	client *http.Client
}

func newTestClient(t *testing.T, cfg *config.Config) *testClient {
	t.Helper()
	srv := NewServer(cfg, audit.NewMemoryStore(100))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &testClient{
		t:    t,
		srv:  srv,
		base: ts.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type response struct {
	status int
	header http.Header
	body   string
}

func (c *testClient) do(method, path, contentType string, body io.Reader) response {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		c.t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return response{status: resp.StatusCode, header: resp.Header, body: string(data)}
}

func (c *testClient) get(path string) response {
	return c.do(http.MethodGet, path, "", nil)
}

func (c *testClient) postForm(path string, form url.Values) response {
	return c.do(http.MethodPost, path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

func (c *testClient) sendJSON(method, path string, v any) response {
	var buf bytes.Buffer
	if s, ok := v.(string); ok {
		buf.WriteString(s)
	} else if err := json.NewEncoder(&buf).Encode(v); err != nil {
		c.t.Fatal(err)
	}
	return c.do(method, path, "application/json", &buf)
}

func (c *testClient) upload(path, preset, fileName string, data []byte) response {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if preset != "" {
		_ = mw.WriteField("preset", preset)
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			c.t.Fatal(err)
		}
		_, _ = fw.Write(data)
	}
	_ = mw.Close()
	return c.do(http.MethodPost, path, mw.FormDataContentType(), &buf)
}

func encodeList(t *testing.T, records ...codec.Record) []byte {
	t.Helper()
	data, err := binlist.Encode(binlist.PES2021, records)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func sampleFile(t *testing.T) []byte {
	return encodeList(t,
		codec.Record{CommentaryName: "cmt_pl_000001", PlayerName: "Amy"},
		codec.Record{CommentaryName: "cmt_pl_000002", PlayerName: "Bob"},
	)
}

func wantStatus(t *testing.T, got response, want int) {
	t.Helper()
	if got.status != want {
		t.Fatalf("status = %d, want %d (body %q)", got.status, want, got.body)
	}
}

func wantCode(t *testing.T, got response, code string) {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal([]byte(got.body), &er); err != nil {
		t.Fatalf("body %q is not an error response: %v", got.body, err)
	}
	if er.Code != code {
		t.Errorf("code = %s, want %s", er.Code, code)
	}
}

func TestEditorFlow(t *testing.T) {
	c := newTestClient(t, testConfig())

	resp := c.get("/")
	wantStatus(t, resp, http.StatusOK)
	if !strings.Contains(resp.body, "PES 2021") {
		t.Error("upload page does not list presets")
	}

	resp = c.upload("/load", "2021", "list.bin", sampleFile(t))
	wantStatus(t, resp, http.StatusSeeOther)
	if loc := resp.header.Get("Location"); loc != "/editor" {
		t.Fatalf("Location = %q, want /editor", loc)
	}

	resp = c.get("/editor")
	wantStatus(t, resp, http.StatusOK)
	if !strings.Contains(resp.body, "Amy") || !strings.Contains(resp.body, "Bob") {
		t.Fatal("editor does not show both players")
	}

	c.postForm("/view/filter", url.Values{"field": {"playerName"}, "term": {"am"}})
	resp = c.get("/editor")
	if !strings.Contains(resp.body, "Amy") || strings.Contains(resp.body, "Bob") {
		t.Error("filter did not narrow the page to Amy")
	}

	resp = c.postForm("/records/2/delete", nil)
	wantStatus(t, resp, http.StatusSeeOther)
	resp = c.get("/editor")
	if !strings.Contains(resp.body, "Unsaved changes") {
		t.Error("editor does not flag unsaved changes")
	}

	resp = c.postForm("/save", nil)
	wantStatus(t, resp, http.StatusOK)
	if cd := resp.header.Get("Content-Disposition"); !strings.Contains(cd, "list.bin") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	store, err := binlist.Decode(binlist.PES2021, []byte(resp.body))
	if err != nil {
		t.Fatalf("saved file does not decode: %v", err)
	}
	if got := store.Records(); len(got) != 1 || got[0].PlayerName != "Amy" {
		t.Errorf("saved records = %+v, want only Amy", got)
	}

	resp = c.get("/history")
	for _, action := range []string{"load", "delete", "save"} {
		if !strings.Contains(resp.body, "<td>"+action+"</td>") {
			t.Errorf("history missing %s", action)
		}
	}

	resp = c.get("/history.csv")
	wantStatus(t, resp, http.StatusOK)
	if lines := strings.Count(resp.body, "\n"); lines != 4 {
		t.Errorf("csv has %d lines, want header + 3", lines)
	}
}

func TestLoad_Errors(t *testing.T) {
	big := bytes.Repeat([]byte{0}, 128<<10)

	tests := []struct {
		name   string
		preset string
		file   string
		data   []byte
		status int
		code   string
	}{
		{name: "no file", preset: "2021", status: http.StatusBadRequest, code: "FILE003"},
		{name: "unknown preset", preset: "1999", file: "a.bin", data: []byte("x"), status: http.StatusBadRequest, code: "FILE004"},
		{name: "undecodable", preset: "2021", file: "a.bin", data: []byte("garbage"), status: http.StatusUnprocessableEntity, code: "FILE001"},
		{name: "wrong preset", preset: "2017", file: "a.bin", data: nil, status: http.StatusUnprocessableEntity, code: "FILE001"},
		{name: "too large", preset: "2021", file: "a.bin", data: big, status: http.StatusRequestEntityTooLarge, code: "FILE002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.data
			if tt.name == "wrong preset" {
				data = sampleFile(t)
			}

			api := newTestClient(t, testConfig())
			resp := api.upload("/api/load", tt.preset, tt.file, data)
			wantStatus(t, resp, tt.status)
			wantCode(t, resp, tt.code)

			browser := newTestClient(t, testConfig())
			resp = browser.upload("/load", tt.preset, tt.file, data)
			wantStatus(t, resp, http.StatusSeeOther)
			page := browser.get("/")
			if !strings.Contains(page.body, "Error code: "+tt.code) {
				t.Errorf("upload page does not show %s", tt.code)
			}
			if again := browser.get("/"); strings.Contains(again.body, "Error code:") {
				t.Error("flash shown twice")
			}
		})
	}
}

func TestAPI_CreateMultibyteName(t *testing.T) {
	c := newTestClient(t, testConfig())
	data, err := binlist.Encode(binlist.PES2017, []codec.Record{{CommentaryName: "cmt_000001", PlayerName: "Amy"}})
	if err != nil {
		t.Fatal(err)
	}
	wantStatus(t, c.upload("/api/load", "2017", "list.bin", data), http.StatusOK)

	name := strings.Repeat("é", core.MaxPlayerNameLength)
	resp := c.sendJSON(http.MethodPost, "/api/records", core.UpsertInput{CommentaryID: 5, PlayerName: name})
	wantStatus(t, resp, http.StatusCreated)

	resp = c.sendJSON(http.MethodPut, "/api/records/1", map[string]string{"playerName": strings.Repeat("\U0001F3C6", core.MaxPlayerNameLength)})
	wantStatus(t, resp, http.StatusOK)

	resp = c.sendJSON(http.MethodPost, "/api/records", core.UpsertInput{CommentaryID: 6, PlayerName: name + "é"})
	wantStatus(t, resp, http.StatusUnprocessableEntity)
	wantCode(t, resp, "VAL002")

	wantStatus(t, c.do(http.MethodPost, "/api/save", "", nil), http.StatusOK)
}

func TestAPI_RecordLifecycle(t *testing.T) {
	c := newTestClient(t, testConfig())

	resp := c.sendJSON(http.MethodPost, "/api/records", core.UpsertInput{CommentaryID: 5, PlayerName: "Cy"})
	wantStatus(t, resp, http.StatusConflict)
	wantCode(t, resp, "SES001")

	wantStatus(t, c.upload("/api/load", "2021", "list.bin", sampleFile(t)), http.StatusOK)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{name: "create", method: http.MethodPost, path: "/api/records", body: core.UpsertInput{CommentaryID: 5, PlayerName: "Cy"}, status: http.StatusCreated},
		{name: "duplicate", method: http.MethodPost, path: "/api/records", body: core.UpsertInput{CommentaryID: 5, PlayerName: "Di"}, status: http.StatusConflict, code: "REC001"},
		{name: "invalid name", method: http.MethodPost, path: "/api/records", body: core.UpsertInput{CommentaryID: 6}, status: http.StatusUnprocessableEntity, code: "VAL002"},
		{name: "bad json", method: http.MethodPost, path: "/api/records", body: `{"commentaryId":"x"}`, status: http.StatusBadRequest, code: "VAL006"},
		{name: "unknown json field", method: http.MethodPost, path: "/api/records", body: `{"id":1}`, status: http.StatusBadRequest, code: "VAL006"},
		{name: "update", method: http.MethodPut, path: "/api/records/5", body: map[string]string{"playerName": "Cyd"}, status: http.StatusOK},
		{name: "update missing", method: http.MethodPut, path: "/api/records/99", body: map[string]string{"playerName": "X"}, status: http.StatusNotFound, code: "REC002"},
		{name: "delete non-numeric", method: http.MethodDelete, path: "/api/records/abc", status: http.StatusNotFound, code: "REC002"},
		{name: "delete", method: http.MethodDelete, path: "/api/records/1", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp response
			if tt.body == nil {
				resp = c.do(tt.method, tt.path, "", nil)
			} else {
				resp = c.sendJSON(tt.method, tt.path, tt.body)
			}
			wantStatus(t, resp, tt.status)
			if tt.code != "" {
				wantCode(t, resp, tt.code)
			}
		})
	}

	var got recordsResponse
	resp = c.get("/api/records")
	if err := json.Unmarshal([]byte(resp.body), &got); err != nil {
		t.Fatal(err)
	}
	names := make([]string, len(got.Records))
	for i, r := range got.Records {
		names[i] = r.PlayerName
	}
	if strings.Join(names, ",") != "Bob,Cyd" {
		t.Errorf("records = %v, want [Bob Cyd]", names)
	}

	var st core.State
	_ = json.Unmarshal([]byte(c.get("/api/state").body), &st)
	if !st.Dirty || !st.Unsaved || st.Records != 2 {
		t.Errorf("state = %+v", st)
	}
}

func TestAPI_ViewState(t *testing.T) {
	c := newTestClient(t, testConfig())
	wantStatus(t, c.upload("/api/load", "2021", "list.bin", sampleFile(t)), http.StatusOK)

	resp := c.sendJSON(http.MethodPut, "/api/view/filters", `[{"id":"bogus","value":"x"}]`)
	wantStatus(t, resp, http.StatusBadRequest)
	wantCode(t, resp, "VAL004")

	resp = c.sendJSON(http.MethodPut, "/api/view/pagination", core.PaginationState{PageIndex: -1, PageSize: 10})
	wantStatus(t, resp, http.StatusBadRequest)
	wantCode(t, resp, "VAL005")

	resp = c.sendJSON(http.MethodPut, "/api/view/sorting", core.SortSpec{{Field: core.FieldPlayerName, Descending: true}})
	wantStatus(t, resp, http.StatusOK)

	resp = c.sendJSON(http.MethodPut, "/api/view/pagination", core.PaginationState{PageIndex: 0, PageSize: 1})
	wantStatus(t, resp, http.StatusOK)
	var view core.View
	if err := json.Unmarshal([]byte(resp.body), &view); err != nil {
		t.Fatal(err)
	}
	if view.Page.PageCount != 2 || len(view.Page.Items) != 1 || view.Page.Items[0].PlayerName != "Bob" {
		t.Errorf("page = %+v, want Bob on page 1 of 2", view.Page)
	}
}

func TestAPI_ViewState_PageIndexBeyondEnd(t *testing.T) {
	c := newTestClient(t, testConfig())
	wantStatus(t, c.upload("/api/load", "2021", "list.bin", sampleFile(t)), http.StatusOK)

	// Large enough that index*size wraps around int.
	resp := c.sendJSON(http.MethodPut, "/api/view/pagination", core.PaginationState{PageIndex: 1<<62 + 1, PageSize: 2})
	wantStatus(t, resp, http.StatusOK)
	var view core.View
	if err := json.Unmarshal([]byte(resp.body), &view); err != nil {
		t.Fatal(err)
	}
	if len(view.Page.Items) != 0 || view.Page.PageCount != 1 {
		t.Errorf("page = %+v, want empty page of 1", view.Page)
	}

	wantStatus(t, c.get("/api/view"), http.StatusOK)
	wantStatus(t, c.get("/editor"), http.StatusOK)
}

func TestClose_RequiresConfirmWithUnsavedChanges(t *testing.T) {
	c := newTestClient(t, testConfig())
	wantStatus(t, c.upload("/load", "2021", "list.bin", sampleFile(t)), http.StatusSeeOther)

	// Nothing changed yet: close goes straight through.
	resp := c.postForm("/close", nil)
	wantStatus(t, resp, http.StatusSeeOther)

	c.upload("/load", "2021", "list.bin", sampleFile(t))
	c.postForm("/records/1/delete", nil)

	resp = c.postForm("/close", nil)
	wantStatus(t, resp, http.StatusOK)
	if !strings.Contains(resp.body, "Discard unsaved changes?") {
		t.Error("close did not ask for confirmation")
	}

	resp = c.do(http.MethodPost, "/api/close", "", nil)
	wantStatus(t, resp, http.StatusConflict)
	wantCode(t, resp, "SES004")

	resp = c.postForm("/close", url.Values{"confirm": {"yes"}})
	wantStatus(t, resp, http.StatusSeeOther)

	var st core.State
	_ = json.Unmarshal([]byte(c.get("/api/state").body), &st)
	if st.Records != 0 || st.FileName != "" || st.Dirty {
		t.Errorf("state after close = %+v", st)
	}
}

func TestSave_WithoutFile(t *testing.T) {
	c := newTestClient(t, testConfig())
	resp := c.do(http.MethodPost, "/api/save", "", nil)
	wantStatus(t, resp, http.StatusConflict)
	wantCode(t, resp, "SES001")
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	c := newTestClient(t, cfg)

	wantStatus(t, c.get("/api/state"), http.StatusUnauthorized)
	// Browser pages are not behind the key.
	wantStatus(t, c.get("/"), http.StatusOK)

	req, _ := http.NewRequest(http.MethodGet, c.base+"/api/state", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status with key = %d, want 200", resp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, UploadLimit: 1}
	c := newTestClient(t, cfg)

	wantStatus(t, c.get("/api/presets"), http.StatusOK)
	wantStatus(t, c.get("/api/presets"), http.StatusOK)
	resp := c.get("/api/presets")
	wantStatus(t, resp, http.StatusTooManyRequests)
	wantCode(t, resp, "RATE001")
	if resp.header.Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	c := newTestClient(t, testConfig())
	c.get("/")

	resp := c.get("/metrics")
	wantStatus(t, resp, http.StatusOK)
	for _, want := range []string{"cpleditor_sessions_active 1", "cpleditor_http_requests_total", "cpleditor_loads_in_flight 0"} {
		if !strings.Contains(resp.body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestAPI_LoadStatus(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxConcurrent = 1
	cfg.Upload.MaxWaitTime = 20 * time.Millisecond
	c := newTestClient(t, cfg)

	release, err := c.srv.loads.Acquire(context.Background(), core.LoadInfo{SessionID: "other", Preset: "2017", FileName: "busy.bin", Bytes: 10})
	if err != nil {
		t.Fatal(err)
	}

	var st core.LoadStatus
	if err := json.Unmarshal([]byte(c.get("/api/loads").body), &st); err != nil {
		t.Fatal(err)
	}
	if st.InFlight != 1 || len(st.Loads) != 1 || st.Loads[0].FileName != "busy.bin" || st.Loads[0].Preset != "2017" {
		t.Errorf("load status = %+v, want busy.bin in flight", st)
	}

	resp := c.upload("/api/load", "2021", "list.bin", sampleFile(t))
	wantStatus(t, resp, http.StatusServiceUnavailable)
	wantCode(t, resp, "RATE002")

	release()
	wantStatus(t, c.upload("/api/load", "2021", "list.bin", sampleFile(t)), http.StatusOK)
	_ = json.Unmarshal([]byte(c.get("/api/loads").body), &st)
	if st.InFlight != 0 || len(st.Loads) != 0 {
		t.Errorf("load status after release = %+v", st)
	}
}

func TestSecurityHeaders(t *testing.T) {
	c := newTestClient(t, testConfig())
	resp := c.get("/healthz")
	wantStatus(t, resp, http.StatusOK)
	if resp.header.Get("X-Frame-Options") != "DENY" || resp.header.Get("Content-Security-Policy") == "" {
		t.Errorf("headers = %v", resp.header)
	}
}
