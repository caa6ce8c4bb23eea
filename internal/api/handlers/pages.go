package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Fantasim/svgpages/internal/config"
	"github.com/Fantasim/svgpages/internal/db"
	"github.com/Fantasim/svgpages/internal/pages"
	"github.com/Fantasim/svgpages/internal/render"
	"github.com/Fantasim/svgpages/internal/svg"
)

// RenderRecorder stores page render outcomes. *db.DB satisfies it.
type RenderRecorder interface {
	RecordRender(ctx context.Context, r db.Render) error
}

// PageDeps holds the read-only collaborators shared by every page request.
type PageDeps struct {
	Resolver *pages.Resolver
	Rewriter svg.Rewriter
	Binder   *render.Binder
	Recorder RenderRecorder // optional
}

// RootRedirectHandler returns a handler for GET / that redirects to target.
// Redirects are temporary (307) unless permanent is set (308).
func RootRedirectHandler(target string, permanent bool) http.HandlerFunc {
	code := http.StatusTemporaryRedirect
	if permanent {
		code = http.StatusPermanentRedirect
	}

	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("redirecting root", "target", target, "status", code)

		w.Header().Set("Location", target)
		w.WriteHeader(code)
	}
}

// PageHandler returns a handler for GET /{page}. It loads the page's SVG,
// rewrites its root tag and renders it into the layout. Every failure is
// answered with the same 500 body; the cause is only logged.
func PageHandler(deps PageDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		segment := chi.URLParam(r, "page")

		name, html, err := renderPage(r.Context(), deps, segment)
		deps.record(r.Context(), name, err, time.Since(start))

		if err != nil {
			slog.Error("page render failed",
				"page", name,
				"segment", segment,
				"kind", config.Kind(err),
				"error", err,
			)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(config.PageFailureBody))
			return
		}

		w.Header().Set("Content-Type", config.HTMLContentType)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(html))
	}
}

// renderPage takes the raw route segment. chi matches on RawPath when one is
// set, so the segment may still be percent-encoded.
func renderPage(ctx context.Context, deps PageDeps, raw string) (string, string, error) {
	segment, err := url.PathUnescape(raw)
	if err != nil {
		return pages.Normalize(raw), "", fmt.Errorf("%w: page segment %q: %v", config.ErrAssetNotFound, raw, err)
	}

	page, err := deps.Resolver.Load(ctx, segment)
	if err != nil {
		return pages.Normalize(segment), "", err
	}

	slog.Debug("svg loaded", "page", page.Name, "path", page.Path, "bytes", len(page.Content))

	content, err := deps.Rewriter.Rewrite(page.Content)
	if err != nil {
		return page.Name, "", err
	}

	html, err := deps.Binder.Render(page.Name, content)
	if err != nil {
		return page.Name, "", err
	}
	return page.Name, html, nil
}

// record stores the outcome when a recorder is configured. A failing
// recorder never affects the response.
func (d PageDeps) record(ctx context.Context, page string, err error, elapsed time.Duration) {
	if d.Recorder == nil {
		return
	}

	entry := db.Render{
		Page:      page,
		ErrorKind: config.Kind(err),
		Duration:  elapsed,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	if recErr := d.Recorder.RecordRender(context.WithoutCancel(ctx), entry); recErr != nil {
		slog.Warn("failed to record render", "page", page, "error", recErr)
	}
}
