// Package pages maps page names taken from request paths to SVG files under
// a fixed asset root and loads them.
package pages

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Fantasim/svgpages/internal/config"
)

// Page is an SVG document loaded for a single request.
type Page struct {
	Name    string // normalized page name, used as the page title
	Path    string
	Content string
}

// Normalize turns a URL path segment into a page name: lowercase, with every
// ":" replaced by "/" so "Icons:Arrow" names the page "icons/arrow".
func Normalize(segment string) string {
	return strings.ReplaceAll(strings.ToLower(segment), ":", "/")
}

// Resolver looks up page files under an asset root. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	root string
}

// NewResolver returns a Resolver rooted at dir. The directory is checked by
// config.Validate at startup, not here.
func NewResolver(dir string) *Resolver {
	return &Resolver{root: filepath.Clean(dir)}
}

// Root returns the asset root directory.
func (r *Resolver) Root() string {
	return r.root
}

// Path returns the file path for a normalized page name. Names that would
// resolve outside the asset root are refused.
func (r *Resolver) Path(name string) (string, error) {
	full := filepath.Join(r.root, filepath.FromSlash(name)+config.SVGExtension)

	rel, err := filepath.Rel(r.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: page %q resolves outside asset root", config.ErrAssetNotFound, name)
	}
	return full, nil
}

// Load normalizes segment, reads the matching SVG file and checks it is valid
// UTF-8 text. Every failure wraps config.ErrAssetNotFound.
func (r *Resolver) Load(ctx context.Context, segment string) (*Page, error) {
	name := Normalize(segment)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: page %q: %w", config.ErrAssetNotFound, name, err)
	}

	path, err := r.Path(name)
	if err != nil {
		return nil, err
	}

	slog.Debug("loading svg", "page", name, "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrAssetNotFound, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8 text", config.ErrAssetNotFound, path)
	}

	return &Page{
		Name:    name,
		Path:    path,
		Content: string(data),
	}, nil
}
