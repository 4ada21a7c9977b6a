package core

// Finding is one issue reported by a detector during a run.
type Finding struct {
	// Description is the human-readable text that makes up canonical output.
	Description string `json:"description"`
	// Rule is the detector that emitted the finding.
	Rule string `json:"rule"`
	// Location is an opaque source location owned by the detector.
	Location string `json:"location,omitempty"`
}

// DetectorResult holds the findings of one registered detector, in emission order.
type DetectorResult struct {
	Detector string    `json:"detector"`
	Findings []Finding `json:"findings"`
}
