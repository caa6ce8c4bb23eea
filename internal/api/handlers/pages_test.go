package handlers

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-chi/chi/v5"

	"github.com/Fantasim/svgpages/internal/config"
	"github.com/Fantasim/svgpages/internal/db"
	"github.com/Fantasim/svgpages/internal/pages"
	"github.com/Fantasim/svgpages/internal/render"
	"github.com/Fantasim/svgpages/internal/svg"
)

const homeSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="640" height="480" viewBox="0 0 640 480"><circle r="10"/></svg>`

type fakeRecorder struct {
	mu      sync.Mutex
	renders []db.Render
	err     error
}

func (f *fakeRecorder) RecordRender(_ context.Context, r db.Render) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renders = append(f.renders, r)
	return f.err
}

// setupPages writes files (relative path -> content) into a fresh asset root.
func setupPages(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func newPageDeps(t *testing.T, root string, engine render.Engine) PageDeps {
	t.Helper()
	if engine == nil {
		tmpl, err := render.LoadTemplates("")
		if err != nil {
			t.Fatalf("LoadTemplates() error = %v", err)
		}
		engine = tmpl
	}
	return PageDeps{
		Resolver: pages.NewResolver(root),
		Rewriter: svg.TagRewriter{},
		Binder:   render.NewBinder(engine),
	}
}

func servePage(t *testing.T, deps PageDeps, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/{page}", PageHandler(deps))

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseHTML(t *testing.T, body []byte) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestPageHandler_Success(t *testing.T) {
	root := setupPages(t, map[string]string{"home.svg": homeSVG})
	rec := servePage(t, newPageDeps(t, root, nil), "/home")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/html; charset=utf-8", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `width="100%"`) {
		t.Errorf("body missing width=\"100%%\": %s", body)
	}

	doc := parseHTML(t, rec.Body.Bytes())
	if title := doc.Find("title").Text(); title != "home" {
		t.Errorf("title = %q, want home", title)
	}

	rootSVG := doc.Find("svg").First()
	if _, ok := rootSVG.Attr("height"); ok {
		t.Error("root svg still has a height attribute")
	}
	if w, _ := rootSVG.Attr("width"); w != "100%" {
		t.Errorf("root svg width = %q, want 100%%", w)
	}
	if doc.Find("svg circle").Length() != 1 {
		t.Error("svg children were not preserved")
	}
}

func TestPageHandler_HierarchicalName(t *testing.T) {
	root := setupPages(t, map[string]string{
		"icons/arrow.svg": `<svg height="16" width="16"><path d="M0 0"/></svg>`,
	})
	rec := servePage(t, newPageDeps(t, root, nil), "/Icons:Arrow")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	doc := parseHTML(t, rec.Body.Bytes())
	if title := doc.Find("title").Text(); title != "icons/arrow" {
		t.Errorf("title = %q, want icons/arrow", title)
	}
}

func TestPageHandler_PercentEncodedSeparator(t *testing.T) {
	root := setupPages(t, map[string]string{
		"icons/arrow.svg": `<svg height="16" width="16"><path d="M0 0"/></svg>`,
	})
	rec := servePage(t, newPageDeps(t, root, nil), "/Icons%3AArrow")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	doc := parseHTML(t, rec.Body.Bytes())
	if title := doc.Find("title").Text(); title != "icons/arrow" {
		t.Errorf("title = %q, want icons/arrow", title)
	}
}

func TestRenderPage_UndecodableSegment(t *testing.T) {
	root := setupPages(t, map[string]string{"home.svg": homeSVG})

	_, html, err := renderPage(context.Background(), newPageDeps(t, root, nil), "home%zz")
	if !errors.Is(err, config.ErrAssetNotFound) {
		t.Fatalf("renderPage() error = %v, want ErrAssetNotFound", err)
	}
	if html != "" {
		t.Errorf("html = %q, want empty", html)
	}
}

func TestPageHandler_UndecodableSegmentIs500(t *testing.T) {
	root := setupPages(t, map[string]string{"home.svg": homeSVG})
	r := chi.NewRouter()
	r.Get("/{page}", PageHandler(newPageDeps(t, root, nil)))

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.URL.RawPath = "/home%zz"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if rec.Body.String() != config.PageFailureBody {
		t.Errorf("body = %q, want %q", rec.Body.String(), config.PageFailureBody)
	}
}

func TestPageHandler_NoWidthNotSynthesized(t *testing.T) {
	root := setupPages(t, map[string]string{"plain.svg": `<svg height="5" viewBox="0 0 5 5"></svg>`})
	rec := servePage(t, newPageDeps(t, root, nil), "/plain")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	doc := parseHTML(t, rec.Body.Bytes())
	svgEl := doc.Find("svg").First()
	if _, ok := svgEl.Attr("width"); ok {
		t.Error("width attribute was synthesized")
	}
	if _, ok := svgEl.Attr("height"); ok {
		t.Error("height attribute was kept")
	}
}

func TestPageHandler_MissingFile(t *testing.T) {
	root := setupPages(t, nil)
	rec := servePage(t, newPageDeps(t, root, nil), "/home")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := rec.Body.String()
	if body != config.PageFailureBody {
		t.Errorf("body = %q, want %q", body, config.PageFailureBody)
	}
	if strings.Contains(body, root) || strings.Contains(body, "home.svg") {
		t.Errorf("body leaks file path: %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
}

func TestPageHandler_MalformedSVG(t *testing.T) {
	root := setupPages(t, map[string]string{"bad.svg": "not an svg at all"})
	rec := servePage(t, newPageDeps(t, root, nil), "/bad")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if rec.Body.String() != config.PageFailureBody {
		t.Errorf("body = %q, want %q", rec.Body.String(), config.PageFailureBody)
	}
}

func TestPageHandler_RenderFailureSameBody(t *testing.T) {
	root := setupPages(t, map[string]string{"home.svg": homeSVG})
	broken := template.Must(template.New("x").Parse(`{{define "other"}}{{end}}`))

	renderRec := servePage(t, newPageDeps(t, root, broken), "/home")
	missingRec := servePage(t, newPageDeps(t, root, nil), "/missing")

	if renderRec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", renderRec.Code)
	}
	if renderRec.Body.String() != missingRec.Body.String() {
		t.Errorf("render failure body %q differs from missing-file body %q",
			renderRec.Body.String(), missingRec.Body.String())
	}
}

func TestPageHandler_PathEscapeRefused(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "assets")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(parent, "secret.svg"), []byte(homeSVG), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := servePage(t, newPageDeps(t, root, nil), "/..:secret")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if rec.Body.String() != config.PageFailureBody {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestPageHandler_RecordsOutcomes(t *testing.T) {
	root := setupPages(t, map[string]string{"home.svg": homeSVG})
	rec := &fakeRecorder{}
	deps := newPageDeps(t, root, nil)
	deps.Recorder = rec

	servePage(t, deps, "/home")
	servePage(t, deps, "/Missing")

	if len(rec.renders) != 2 {
		t.Fatalf("recorded %d renders, want 2", len(rec.renders))
	}
	if rec.renders[0].Page != "home" || rec.renders[0].ErrorKind != "" {
		t.Errorf("first render = %+v, want ok for home", rec.renders[0])
	}
	if rec.renders[1].Page != "missing" || rec.renders[1].ErrorKind != config.ErrorAssetNotFound {
		t.Errorf("second render = %+v, want asset-not-found for missing", rec.renders[1])
	}
	if rec.renders[1].Error == "" {
		t.Error("expected error detail to be recorded")
	}
}

func TestPageHandler_RecorderErrorIgnored(t *testing.T) {
	root := setupPages(t, map[string]string{"home.svg": homeSVG})
	deps := newPageDeps(t, root, nil)
	deps.Recorder = &fakeRecorder{err: errors.New("disk full")}

	rec := servePage(t, deps, "/home")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestPageHandler_ConcurrentRequests(t *testing.T) {
	root := setupPages(t, map[string]string{
		"home.svg":        homeSVG,
		"icons/arrow.svg": `<svg height="16" width="16"><path d="M0 0"/></svg>`,
	})
	recorder := &fakeRecorder{}
	deps := newPageDeps(t, root, nil)
	deps.Recorder = recorder

	r := chi.NewRouter()
	r.Get("/{page}", PageHandler(deps))

	paths := []struct {
		path  string
		code  int
		title string
	}{
		{"/home", http.StatusOK, "home"},
		{"/icons:arrow", http.StatusOK, "icons/arrow"},
		{"/missing", http.StatusInternalServerError, ""},
	}

	const workers = 8
	const perWorker = 10

	var wg sync.WaitGroup
	errs := make(chan string, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				tc := paths[(w+i)%len(paths)]
				rec := httptest.NewRecorder()
				r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))

				if rec.Code != tc.code {
					errs <- tc.path + ": unexpected status " + http.StatusText(rec.Code)
					continue
				}
				body := rec.Body.String()
				if tc.code != http.StatusOK {
					if body != config.PageFailureBody {
						errs <- tc.path + ": unexpected failure body " + body
					}
					continue
				}
				if !strings.Contains(body, "<title>"+tc.title+"</title>") {
					errs <- tc.path + ": title " + tc.title + " missing"
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.renders) != workers*perWorker {
		t.Errorf("recorded %d renders, want %d", len(recorder.renders), workers*perWorker)
	}
}

func TestRootRedirectHandler(t *testing.T) {
	tests := []struct {
		name      string
		permanent bool
		want      int
	}{
		{"temporary", false, http.StatusTemporaryRedirect},
		{"permanent", true, http.StatusPermanentRedirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			RootRedirectHandler("/home", tt.permanent).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if loc := rec.Header().Get("Location"); loc != "/home" {
				t.Errorf("Location = %q, want /home", loc)
			}
			if rec.Body.Len() != 0 {
				t.Errorf("expected empty body, got %q", rec.Body.String())
			}
		})
	}
}
