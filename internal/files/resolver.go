// Package files maps request paths onto the served directory and describes
// the files it finds there.
//
// Resolution is re-done for every request: nothing is cached, so edits on disk
// are visible to the very next request.
package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	srverrors "github.com/conneroisu/hrserve/internal/errors"
)

// IndexFiles lists the directory index candidates in lookup order.
var IndexFiles = []string{
	"index.html",
	"index.htm",
	"default.html",
	"default.htm",
}

// ErrNotFound is returned when no file or index file matches a request path.
// Paths that would leave the root also yield ErrNotFound.
var ErrNotFound = errors.New("file not found")

// ResolvedFile describes a file selected to answer a request.
type ResolvedFile struct {
	Path     string
	Size     int64
	ModTime  time.Time
	MimeType string
	// Charset is nil for binary content.
	Charset *Charset
}

// Resolver maps request paths to files under a root directory.
type Resolver struct {
	root string
	// realRoot is root with symlinks evaluated; served files must live
	// under it once their own links are followed.
	realRoot string
	typer    *ContentTyper
}

// NewResolver creates a resolver for root. The root must exist and be a
// directory.
func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, srverrors.ErrRootMissing(root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, srverrors.ErrRootMissing(root, err)
	}
	if !info.IsDir() {
		return nil, srverrors.ErrRootMissing(root, fmt.Errorf("%s is not a directory", abs))
	}

	evaluated, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, srverrors.ErrRootMissing(root, err)
	}

	return &Resolver{
		root:     abs,
		realRoot: evaluated,
		typer:    NewContentTyper(),
	}, nil
}

// Root returns the absolute served directory.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve finds the file answering requestPath.
func (r *Resolver) Resolve(requestPath string) (*ResolvedFile, error) {
	joined, ok := r.join(requestPath)
	if !ok {
		return nil, ErrNotFound
	}

	if info, ok := r.regularFile(joined); ok {
		return r.describe(joined, info)
	}

	for _, index := range IndexFiles {
		candidate := filepath.Join(joined, index)
		if info, ok := r.regularFile(candidate); ok {
			return r.describe(candidate, info)
		}
	}

	return nil, ErrNotFound
}

// join cleans requestPath and joins it with the root. It reports false for
// paths that do not stay inside the root.
func (r *Resolver) join(requestPath string) (string, bool) {
	if strings.ContainsRune(requestPath, 0) {
		return "", false
	}

	rel := strings.TrimLeft(requestPath, "/")
	joined := filepath.Join(r.root, filepath.FromSlash(rel))

	if !within(r.root, joined) {
		return "", false
	}

	return joined, true
}

// within reports whether path is root or lies below it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (r *Resolver) describe(path string, info os.FileInfo) (*ResolvedFile, error) {
	mimeType, charset, err := r.typer.TypeOf(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect content type of %s: %w", path, err)
	}

	return &ResolvedFile{
		Path:     path,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		MimeType: mimeType,
		Charset:  charset,
	}, nil
}

// regularFile stats path after following its symlinks. Links that lead
// outside the root are treated as missing.
func (r *Resolver) regularFile(path string) (os.FileInfo, bool) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil || !within(r.realRoot, target) {
		return nil, false
	}

	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}

	return info, true
}
