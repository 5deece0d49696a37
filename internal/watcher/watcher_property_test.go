//go:build property

package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDedupeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	// Each event is built from an index into a small path set so bursts
	// repeat paths.
	paths := []string{"a.html", "b.css", "c/d.js", "c/e.html", "f.txt"}
	burst := gen.SliceOf(gen.IntRange(0, len(paths)*4-1))

	toEvents := func(idx []int) []ChangeEvent {
		events := make([]ChangeEvent, len(idx))
		for i, n := range idx {
			events[i] = ChangeEvent{
				Type:    EventType(n % 4),
				Path:    paths[n/4],
				ModTime: time.Unix(int64(i), 0),
			}
		}
		return events
	}

	properties.Property("one event per distinct path", prop.ForAll(
		func(idx []int) bool {
			events := toEvents(idx)
			distinct := map[string]bool{}
			for _, e := range events {
				distinct[e.Path] = true
			}
			return len(dedupe(events)) == len(distinct)
		},
		burst,
	))

	properties.Property("the last event per path wins", prop.ForAll(
		func(idx []int) bool {
			events := toEvents(idx)
			last := map[string]ChangeEvent{}
			for _, e := range events {
				last[e.Path] = e
			}
			for _, e := range dedupe(events) {
				if last[e.Path] != e {
					return false
				}
			}
			return true
		},
		burst,
	))

	properties.Property("output is sorted by path", prop.ForAll(
		func(idx []int) bool {
			out := dedupe(toEvents(idx))
			for i := 1; i < len(out); i++ {
				if out[i-1].Path >= out[i].Path {
					return false
				}
			}
			return true
		},
		burst,
	))

	properties.TestingRun(t)
}

func TestIgnoreFilterProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	segments := []string{"src", "node_modules", "pages", ".git", "assets", "dist"}
	segmentPath := gen.SliceOfN(4, gen.IntRange(0, len(segments)-1))

	filter := IgnoreFilter([]string{"node_modules", ".git"})

	properties.Property("a path is rejected iff a component is ignored", prop.ForAll(
		func(idx []int) bool {
			parts := make([]string, len(idx))
			ignored := false
			for i, n := range idx {
				parts[i] = segments[n]
				if parts[i] == "node_modules" || parts[i] == ".git" {
					ignored = true
				}
			}
			path := filepath.Join(append([]string{"/site"}, parts...)...)
			return filter(path) != ignored
		},
		segmentPath,
	))

	properties.Property("unrelated names pass", prop.ForAll(
		func(n int) bool {
			name := fmt.Sprintf("file%d.html", n)
			return filter(filepath.Join("site", name)) && !strings.Contains(name, "/")
		},
		gen.IntRange(0, 10000),
	))

	properties.TestingRun(t)
}
