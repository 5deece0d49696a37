//go:build property

package files

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestResolverProperties checks that resolution never escapes the root.
func TestResolverProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	outer := t.TempDir()
	root := filepath.Join(outer, "site")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outer, "secret.txt"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("index"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := NewResolver(root)
	if err != nil {
		t.Fatal(err)
	}

	segments := []string{"..", ".", "site", "secret.txt", "index.html", "", "a", "%2e%2e"}
	requestPath := gen.SliceOfN(6, gen.IntRange(0, len(segments)-1)).Map(func(idx []int) string {
		parts := make([]string, len(idx))
		for i, n := range idx {
			parts[i] = segments[n]
		}
		return "/" + strings.Join(parts, "/")
	})

	properties := gopter.NewProperties(parameters)

	properties.Property("resolved files stay inside the root", prop.ForAll(
		func(p string) bool {
			f, err := r.Resolve(p)
			if err != nil {
				return err == ErrNotFound
			}
			rel, err := filepath.Rel(r.Root(), f.Path)
			if err != nil {
				return false
			}
			return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
		},
		requestPath,
	))

	properties.Property("the parent directory's file is never served", prop.ForAll(
		func(p string) bool {
			f, err := r.Resolve(p)
			return err != nil || filepath.Base(f.Path) != "secret.txt"
		},
		requestPath,
	))

	properties.Property("any leading bytes yield a usable charset", prop.ForAll(
		func(head []byte) bool {
			cs := DetectCharset(head)
			return cs != nil && cs.Encoding != nil
		},
		gen.SliceOfN(4, gen.UInt8()),
	))

	properties.TestingRun(t)
}
