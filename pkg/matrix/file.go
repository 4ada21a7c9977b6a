package matrix

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// FormatVersion is the matrix file format understood by this package.
const FormatVersion = 1

//go:embed detectors.yaml
var defaultMatrix []byte

// File is the on-disk form of a matrix.
type File struct {
	Version int               `yaml:"version"`
	Rules   map[string]string `yaml:"rules"`
	Cases   []Row             `yaml:"cases"`
}

// Row is a single declarative matrix entry.
type Row struct {
	Rule      string   `yaml:"rule"`
	Fixture   string   `yaml:"fixture"`
	Version   string   `yaml:"version"`
	Auxiliary []string `yaml:"auxiliary,omitempty"`
}

// Load parses and validates a matrix from r.
func Load(r io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("matrix is empty")
		}
		return nil, fmt.Errorf("failed to parse matrix: %w", err)
	}
	return f.Registry()
}

// LoadFile parses and validates the matrix file at path.
func LoadFile(path string) (*Registry, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open matrix: %w", err)
	}
	defer func() { _ = fh.Close() }()

	reg, err := Load(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Default returns the matrix embedded in the binary.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultMatrix))
}

// Registry validates the file and converts its rows into test cases.
func (f *File) Registry() (*Registry, error) {
	if f.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported matrix version %d (want %d)", f.Version, FormatVersion)
	}

	var errs []error
	cases := make([]TestCaseRow, 0, len(f.Cases))
	for i, row := range f.Cases {
		argument, ok := f.Rules[row.Rule]
		if !ok && row.Rule != "" {
			errs = append(errs, fmt.Errorf("case %d: rule %q is not declared in rules", i, row.Rule))
			continue
		}
		cases = append(cases, TestCaseRow{Index: i, Row: row, Argument: argument})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return newRegistry(cases)
}
