package core

import "encoding/json"

// CompilationUnits is the compiler's structured output for one fixture at one
// compiler version. It is what the artifact cache persists and what detectors
// analyze.
type CompilationUnits struct {
	// Target is the primary fixture path that was compiled.
	Target string `json:"target"`
	// CompilerVersion is the compiler release that produced the units.
	CompilerVersion string `json:"compiler_version"`
	// Units holds the compilation units in compiler order.
	Units []CompilationUnit `json:"units"`

	// Archive is the archive path the units were loaded from, if any.
	Archive string `json:"-"`
}

// CompilationUnit is a single unit of compiler output.
type CompilationUnit struct {
	Name      string          `json:"name"`
	Sources   []SourceFile    `json:"sources"`
	Contracts []Contract      `json:"contracts"`
	Output    json.RawMessage `json:"output,omitempty"`
}

// SourceFile is a source that took part in a compilation. Content is kept so
// that source locations can be mapped without the original checkout.
type SourceFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Contract names a compiled contract and the source it was defined in.
type Contract struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// SourcePaths returns every source path across all units, in order.
func (c *CompilationUnits) SourcePaths() []string {
	if c == nil {
		return nil
	}
	var paths []string
	for _, u := range c.Units {
		for _, s := range u.Sources {
			paths = append(paths, s.Path)
		}
	}
	return paths
}

// ContractCount returns the number of contracts across all units.
func (c *CompilationUnits) ContractCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, u := range c.Units {
		n += len(u.Contracts)
	}
	return n
}
