// Package snapshot compares canonical detector output against stored
// baselines, or records new baselines in update mode.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

// Ext is the file extension of stored snapshots.
const Ext = ".txt"

// Result is the outcome of one comparison.
type Result struct {
	// Match is true when the text equals the stored baseline byte for byte.
	Match bool
	// Missing is true when no baseline exists. Missing is never a match.
	Missing bool
	// Updated is true when the baseline was (re)written in update mode.
	Updated bool
	// Diff is a unified diff from baseline to text on mismatch.
	Diff string
}

// Err returns nil for a match or an update, and an error wrapping
// core.ErrSnapshotMismatch otherwise.
func (r Result) Err(name string) error {
	switch {
	case r.Match, r.Updated:
		return nil
	case r.Missing:
		return fmt.Errorf("%w: no snapshot recorded for %s (run with --update to record it)", core.ErrSnapshotMismatch, name)
	default:
		return fmt.Errorf("%w: %s\n%s", core.ErrSnapshotMismatch, name, r.Diff)
	}
}

// Oracle compares named outputs with their baselines.
type Oracle interface {
	Compare(ctx context.Context, name, text string) (Result, error)
}

// FileOracle stores one baseline per name as {Dir}/{name}.txt.
type FileOracle struct {
	Dir    string
	Update bool
}

// NewFileOracle creates a FileOracle.
func NewFileOracle(dir string, update bool) *FileOracle {
	return &FileOracle{Dir: dir, Update: update}
}

// Path returns the baseline path for name.
func (o *FileOracle) Path(name string) string {
	return filepath.Join(o.Dir, name+Ext)
}

// Compare implements Oracle. An empty text is a valid baseline and is stored
// as a zero-byte file.
func (o *FileOracle) Compare(ctx context.Context, name, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return Result{}, fmt.Errorf("invalid snapshot name %q", name)
	}

	path := o.Path(name)
	if o.Update {
		if err := writeAtomic(path, []byte(text)); err != nil {
			return Result{}, fmt.Errorf("write snapshot %s: %w", path, err)
		}
		return Result{Match: true, Updated: true}, nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Result{Missing: true}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	if bytes.Equal(want, []byte(text)) {
		return Result{Match: true}, nil
	}
	return Result{Diff: Diff(name, string(want), text)}, nil
}

// Diff renders a unified diff between a stored baseline and new output.
func Diff(name, want, got string) string {
	d, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: name + " (snapshot)",
		ToFile:   name + " (actual)",
		Context:  3,
	})
	if err != nil {
		return fmt.Sprintf("--- %s (snapshot)\n+++ %s (actual)\n(diff unavailable: %v)\n", name, name, err)
	}
	if d == "" {
		// differences SplitLines cannot see, e.g. a missing trailing newline
		return fmt.Sprintf("--- %s (snapshot)\n+++ %s (actual)\n-%q\n+%q\n", name, name, want, got)
	}
	return d
}

func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
