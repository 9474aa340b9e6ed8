// Package testsupport holds golden-file and render-driving helpers shared by
// the package tests.
package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-views/pkg/chunk"
	"github.com/goliatone/go-views/pkg/render"
	"github.com/goliatone/go-views/pkg/render/template"
)

// UpdateEnv, when set, makes Golden rewrite golden files with the output.
const UpdateEnv = "UPDATE_GOLDENS"

// Golden compares got with the golden file at path, rewriting the file first
// when UpdateEnv is set.
func Golden(t *testing.T, path, got string) {
	t.Helper()
	if os.Getenv(UpdateEnv) != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(got), 0o644); err != nil {
			t.Fatalf("write golden: %v", err)
		}
	}
	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	if diff := cmp.Diff(string(want), got); diff != "" {
		t.Fatalf("%s mismatch (-want +got):\n%s", filepath.Base(path), diff)
	}
}

// CompareGolden returns a diff string if the values differ.
func CompareGolden(want, got any) string {
	return cmp.Diff(want, got)
}

// Trace records the signals seen while driving a render to completion.
type Trace struct {
	Signals []render.Signal
}

// Count returns how many times sig was seen.
func (tr Trace) Count(sig render.Signal) int {
	n := 0
	for _, s := range tr.Signals {
		if s == sig {
			n++
		}
	}
	return n
}

// CaptureRender drives r to completion without a state machine: detached
// steps are awaited, limited steps are continued right away. It returns the
// rendered output together with the signal trace.
func CaptureRender(t *testing.T, r template.Renderer, options ...chunk.Option) (string, Trace) {
	t.Helper()

	ctx := context.Background()
	buf := chunk.New(options...)
	defer buf.Close()

	var trace Trace
	cont, err := r.RenderInto(ctx, buf)
	if err != nil {
		t.Fatalf("render into: %v", err)
	}

	for {
		trace.Signals = append(trace.Signals, cont.Signal())
		switch cont.Signal() {
		case render.SignalDone:
			out, err := buf.Export()
			if err != nil {
				t.Fatalf("export: %v", err)
			}
			defer out.Release()
			return out.String(), trace
		case render.SignalDetach:
			if _, err := render.Await(ctx, cont.Pending(), time.Second); err != nil {
				t.Fatalf("await pending value: %v", err)
			}
		}
		if cont, err = cont.Continue(ctx); err != nil {
			t.Fatalf("continue render: %v", err)
		}
	}
}
