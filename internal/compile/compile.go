// Package compile invokes the external compiler and converts its output into
// core.CompilationUnits.
package compile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blang/semver/v4"
	"github.com/tidwall/gjson"

	"github.com/leapstack-labs/snapmatrix/internal/toolchain"
	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

// Compiler is the compilation engine collaborator.
type Compiler interface {
	// Compile compiles paths with the given toolchain. The first path is the
	// primary fixture; the rest only take part in source mapping.
	Compile(ctx context.Context, handle *toolchain.Handle, paths []string) (*core.CompilationUnits, error)
}

// combinedFields is the --combined-json selection shared by all releases.
var combinedFields = []string{"abi", "ast", "bin", "bin-runtime", "srcmap", "srcmap-runtime", "userdoc", "devdoc", "hashes"}

// compactFormatCutoff is the first release without the compact-format field.
var compactFormatCutoff = semver.MustParse("0.8.10")

// Solc runs the solc binary from a toolchain handle.
type Solc struct {
	logger *slog.Logger
}

// NewSolc creates a solc-backed Compiler.
func NewSolc(logger *slog.Logger) *Solc {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Solc{logger: logger}
}

// CombinedFields returns the --combined-json field list for a release.
func CombinedFields(version string) (string, error) {
	v, err := semver.Parse(version)
	if err != nil {
		return "", fmt.Errorf("invalid compiler version %q: %w", version, err)
	}
	fields := append([]string(nil), combinedFields...)
	if v.LT(compactFormatCutoff) {
		fields = append(fields, "compact-format")
	}
	return strings.Join(fields, ","), nil
}

// Compile implements Compiler.
//
// solc runs inside the primary fixture's directory with relative paths, so
// the recorded source paths do not depend on where the checkout lives.
func (s *Solc) Compile(ctx context.Context, handle *toolchain.Handle, paths []string) (*core.CompilationUnits, error) {
	if handle == nil {
		return nil, fmt.Errorf("no toolchain handle: %w", core.ErrCompilation)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("nothing to compile: %w", core.ErrCompilation)
	}

	fields, err := CombinedFields(handle.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrCompilation, err)
	}

	dir := filepath.Dir(paths[0])
	rel := make([]string, len(paths))
	for i, p := range paths {
		r, err := filepath.Rel(dir, p)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrCompilation, err)
		}
		rel[i] = filepath.ToSlash(r)
	}

	args := []string{"--combined-json", fields, "--allow-paths", "."}
	args = append(args, rel...)

	cmd := exec.CommandContext(ctx, handle.Binary, args...)
	cmd.Dir = dir
	cmd.Env = handle.Env(os.Environ())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.logger.Debug("compiling", "solc", handle.Version, "dir", dir, "sources", rel)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("solc %s exited with %d: %s: %w",
				handle.Version, exitErr.ExitCode(), strings.TrimSpace(stderr.String()), core.ErrCompilation)
		}
		return nil, fmt.Errorf("run solc %s: %w: %w", handle.Version, core.ErrCompilation, err)
	}

	units, err := ParseCombined(stdout.Bytes(), dir)
	if err != nil {
		return nil, err
	}
	units.Target = paths[0]
	units.CompilerVersion = handle.Version
	return units, nil
}

// ParseCombined converts solc --combined-json output into CompilationUnits.
// Source contents are read relative to dir.
func ParseCombined(output []byte, dir string) (*core.CompilationUnits, error) {
	if !gjson.ValidBytes(output) {
		return nil, fmt.Errorf("solc produced invalid JSON: %w", core.ErrCompilation)
	}
	doc := gjson.ParseBytes(output)

	var sources []string
	doc.Get("sourceList").ForEach(func(_, v gjson.Result) bool {
		sources = append(sources, v.String())
		return true
	})
	// releases without sourceList still key their ASTs by path
	if len(sources) == 0 {
		doc.Get("sources").ForEach(func(k, _ gjson.Result) bool {
			sources = append(sources, k.String())
			return true
		})
		sort.Strings(sources)
	}

	unit := core.CompilationUnit{
		Name:   filepath.Base(firstOr(sources, "unit")),
		Output: append([]byte(nil), output...),
	}

	for _, src := range sources {
		content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(src)))
		if err != nil {
			return nil, fmt.Errorf("read source %s: %w: %w", src, core.ErrCompilation, err)
		}
		unit.Sources = append(unit.Sources, core.SourceFile{Path: src, Content: string(content)})
	}

	doc.Get("contracts").ForEach(func(k, _ gjson.Result) bool {
		key := k.String()
		source, name := key, key
		if i := strings.LastIndex(key, ":"); i >= 0 {
			source, name = key[:i], key[i+1:]
		}
		unit.Contracts = append(unit.Contracts, core.Contract{Name: name, Source: source})
		return true
	})

	return &core.CompilationUnits{Units: []core.CompilationUnit{unit}}, nil
}

func firstOr(s []string, def string) string {
	if len(s) == 0 {
		return def
	}
	return s[0]
}
