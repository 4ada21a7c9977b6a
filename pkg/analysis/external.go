package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

// Placeholders substituted into external analyzer command arguments.
const (
	PlaceholderArchive  = "{archive}"
	PlaceholderArgument = "{argument}"
	PlaceholderTarget   = "{target}"
)

// ExternalDetector delegates detection to an analyzer process.
//
// The command must print a JSON document of the form
//
//	{"success": true, "results": {"detectors": [{"description": "...", "first_markdown_element": "..."}]}}
//
// on stdout. The exit status is ignored when the document reports success,
// because analyzers commonly exit non-zero when they have findings.
type ExternalDetector struct {
	RuleName string
	Slug     string
	Command  []string
}

// Name implements Detector.
func (e *ExternalDetector) Name() string { return e.RuleName }

// Argument implements Detector.
func (e *ExternalDetector) Argument() string { return e.Slug }

// Description implements Detector.
func (e *ExternalDetector) Description() string {
	return fmt.Sprintf("%s via %s", e.Slug, firstOr(e.Command, "external analyzer"))
}

// Args returns the command line for units with placeholders substituted.
func (e *ExternalDetector) Args(units *core.CompilationUnits) []string {
	r := strings.NewReplacer(
		PlaceholderArchive, units.Archive,
		PlaceholderArgument, e.Slug,
		PlaceholderTarget, units.Target,
	)
	args := make([]string, len(e.Command))
	for i, a := range e.Command {
		args[i] = r.Replace(a)
	}
	return args
}

// Detect implements Detector.
func (e *ExternalDetector) Detect(ctx context.Context, units *core.CompilationUnits) ([]core.Finding, error) {
	if len(e.Command) == 0 {
		return nil, errors.New("no analyzer command configured")
	}
	if units.Archive == "" {
		return nil, errors.New("compilation units were not loaded from an archive")
	}

	args := e.Args(units)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	// slither exits non-zero when it has findings; only an explicit
	// success report overrides a failed exit
	if runErr != nil && !gjson.GetBytes(stdout.Bytes(), "success").Bool() {
		return nil, fmt.Errorf("%s: %w: %s", args[0], runErr, strings.TrimSpace(stderr.String()))
	}
	return ParseResults(stdout.Bytes(), e.RuleName)
}

// ParseResults extracts findings from analyzer JSON output, in the order the
// analyzer emitted them.
func ParseResults(output []byte, rule string) ([]core.Finding, error) {
	if !gjson.ValidBytes(output) {
		return nil, errors.New("analyzer output is not valid JSON")
	}
	doc := gjson.ParseBytes(output)

	if success := doc.Get("success"); success.Exists() && !success.Bool() {
		msg := doc.Get("error").String()
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("analyzer reported failure: %s", msg)
	}

	var findings []core.Finding
	doc.Get("results.detectors").ForEach(func(_, d gjson.Result) bool {
		findings = append(findings, core.Finding{
			Description: d.Get("description").String(),
			Rule:        rule,
			Location:    d.Get("first_markdown_element").String(),
		})
		return true
	})
	return findings, nil
}

// RegisterExternal registers one ExternalDetector per rule. rules maps rule
// names to argument slugs. Registration follows rule name order.
func RegisterExternal(reg *Registry, rules map[string]string, command []string) error {
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		d := &ExternalDetector{
			RuleName: name,
			Slug:     rules[name],
			Command:  append([]string(nil), command...),
		}
		if err := reg.Register(d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func firstOr(s []string, def string) string {
	if len(s) == 0 {
		return def
	}
	return s[0]
}
