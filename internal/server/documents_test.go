package server

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/54b3r/docrag-go/internal/catalog"
	"github.com/54b3r/docrag-go/internal/ingestion"
)

// newUploadRequest builds a multipart POST /api/documents request carrying
// files under the "files" field. force is sent only when non-empty.
func newUploadRequest(t *testing.T, files map[string]string, force string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		part, err := mw.CreateFormFile(uploadField, name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write([]byte(files[name])); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if force != "" {
		if err := mw.WriteField("force", force); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandleUpload_IngestsEachFile(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	req := newUploadRequest(t, map[string]string{"notes.md": "# hi", "report.txt": "numbers"}, "")
	w := h.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decodeJSON[uploadResponse](t, w)
	if len(resp.Results) != 2 {
		t.Fatalf("results = %+v", resp.Results)
	}
	if resp.Results[0].Name != "notes.md" || resp.Results[1].Name != "report.txt" {
		t.Errorf("names = %q, %q", resp.Results[0].Name, resp.Results[1].Name)
	}
	if string(h.ingester.uploads[1].Data) != "numbers" {
		t.Errorf("data = %q", h.ingester.uploads[1].Data)
	}
	if h.ingester.opts.Force {
		t.Error("force should default to false")
	}
}

func TestHandleUpload_StripsClientPath(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	w := h.do(newUploadRequest(t, map[string]string{"../../etc/passwd": "x"}, ""))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := h.ingester.uploads[0].Name; got != "passwd" {
		t.Errorf("name = %q, want passwd", got)
	}
}

func TestHandleUpload_Force(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	if w := h.do(newUploadRequest(t, map[string]string{"a.txt": "a"}, "true")); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !h.ingester.opts.Force {
		t.Error("expected force=true to reach the pipeline")
	}

	if w := h.do(newUploadRequest(t, map[string]string{"a.txt": "a"}, "maybe")); w.Code != http.StatusBadRequest {
		t.Errorf("invalid force: expected 400, got %d", w.Code)
	}
}

func TestHandleUpload_BadRequests(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	notMultipart := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(`{}`))
	notMultipart.Header.Set("Content-Type", "application/json")
	if w := h.do(notMultipart); w.Code != http.StatusBadRequest {
		t.Errorf("json body: expected 400, got %d", w.Code)
	}

	if w := h.do(newUploadRequest(t, nil, "true")); w.Code != http.StatusBadRequest {
		t.Errorf("no files: expected 400, got %d", w.Code)
	}
	if len(h.ingester.uploads) != 0 {
		t.Error("pipeline should not be called")
	}
}

func TestHandleUpload_TooLarge(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(c *Config) { c.MaxUploadBytes = 512 })

	w := h.do(newUploadRequest(t, map[string]string{"big.txt": strings.Repeat("x", 4096)}, ""))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

func TestHandleUpload_ReportsDuplicates(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.ingester.status = ingestion.StatusAlreadyIndexed

	w := h.do(newUploadRequest(t, map[string]string{"a.txt": "a"}, ""))
	resp := decodeJSON[uploadResponse](t, w)
	if resp.Results[0].Status != ingestion.StatusAlreadyIndexed || resp.Results[0].Chunks != 0 {
		t.Errorf("result = %+v", resp.Results[0])
	}
}

func TestHandleListDocuments(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.catalog.listing = catalog.Listing{
		Documents:  []catalog.Document{{Hash: "abc", Name: "a.pdf", Chunks: 3}},
		Embeddings: 3,
	}

	w := h.do(httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	got := decodeJSON[catalog.Listing](t, w)
	if got.Embeddings != 3 || len(got.Documents) != 1 || got.Documents[0].Name != "a.pdf" {
		t.Errorf("listing = %+v", got)
	}

	h.catalog.err = errors.New("index offline")
	if w := h.do(httptest.NewRequest(http.MethodGet, "/api/documents", nil)); w.Code != http.StatusInternalServerError {
		t.Errorf("failing catalog: expected 500, got %d", w.Code)
	}
}

func TestHandleDeleteDocument(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	hash := strings.Repeat("AB", 32)

	w := h.do(httptest.NewRequest(http.MethodDelete, "/api/documents/"+hash, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(h.catalog.deleted) != 1 || h.catalog.deleted[0] != strings.ToLower(hash) {
		t.Errorf("deleted = %v", h.catalog.deleted)
	}
	if got := decodeJSON[map[string]string](t, w); got["deleted"] != strings.ToLower(hash) {
		t.Errorf("body = %v", got)
	}
}

func TestHandleDeleteDocument_RejectsBadHash(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	for _, hash := range []string{"short", strings.Repeat("z", 64), strings.Repeat("a", 65)} {
		w := h.do(httptest.NewRequest(http.MethodDelete, "/api/documents/"+hash, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%q: expected 400, got %d", hash, w.Code)
		}
	}
	if len(h.catalog.deleted) != 0 {
		t.Errorf("catalog should not be called, got %v", h.catalog.deleted)
	}
}

func TestHandleDeleteDocument_StoreError(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.catalog.err = errors.New("boom")

	w := h.do(httptest.NewRequest(http.MethodDelete, "/api/documents/"+strings.Repeat("0", 64), nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestValidFingerprint(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want bool
	}{
		{strings.Repeat("f", 64), true},
		{strings.Repeat("0", 64), true},
		{strings.Repeat("F", 64), false},
		{strings.Repeat("g", 64), false},
		{"", false},
	}
	for _, tt := range tests {
		if got := validFingerprint(tt.in); got != tt.want {
			t.Errorf("validFingerprint(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
