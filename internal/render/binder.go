// Package render binds a rewritten SVG document into the page layout.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/Fantasim/svgpages/internal/config"
	"github.com/Fantasim/svgpages/web"
)

// Engine executes a named template. *html/template.Template satisfies it.
type Engine interface {
	ExecuteTemplate(w io.Writer, name string, data any) error
}

// RenderContext is the data handed to the layout template. Templates see it
// as {{.title}} and {{.svg_content}}.
type RenderContext struct {
	Title      string
	SVGContent string
}

// fields exposes the context under the template field names. The SVG is
// marked safe so html/template inserts it verbatim.
func (c RenderContext) fields() map[string]any {
	return map[string]any{
		"title":       c.Title,
		"svg_content": template.HTML(c.SVGContent),
	}
}

// Binder renders pages with a shared, read-only template engine.
type Binder struct {
	engine Engine
}

// NewBinder returns a Binder backed by engine.
func NewBinder(engine Engine) *Binder {
	return &Binder{engine: engine}
}

// Render executes the layout template for a page. Output is buffered so a
// failing template never produces a partial page. Errors wrap
// config.ErrRenderFailure.
func (b *Binder) Render(title, svgContent string) (string, error) {
	ctx := RenderContext{Title: title, SVGContent: svgContent}

	var buf bytes.Buffer
	if err := b.engine.ExecuteTemplate(&buf, config.LayoutTemplate, ctx.fields()); err != nil {
		return "", fmt.Errorf("%w: %w", config.ErrRenderFailure, err)
	}
	return buf.String(), nil
}

// LoadTemplates parses every *.html template in dir, or the embedded default
// set when dir is empty. It fails when no "layout" template is defined.
func LoadTemplates(dir string) (*template.Template, error) {
	var src fs.FS
	source := "embedded"
	if dir != "" {
		src = os.DirFS(dir)
		source = dir
	} else {
		sub, err := fs.Sub(web.Templates, "templates")
		if err != nil {
			return nil, fmt.Errorf("failed to access embedded templates: %w", err)
		}
		src = sub
	}

	tmpl, err := template.ParseFS(src, "*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates from %s: %w", source, err)
	}
	if tmpl.Lookup(config.LayoutTemplate) == nil {
		return nil, fmt.Errorf("templates from %s define no %q template", source, config.LayoutTemplate)
	}

	slog.Info("templates loaded",
		"source", source,
		"templates", tmpl.DefinedTemplates(),
	)

	return tmpl, nil
}
