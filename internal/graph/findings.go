package graph

import (
	"fmt"
	"strings"
)

// FindingKind classifies one validator finding.
type FindingKind string

const (
	FindingCycle       FindingKind = "cycle"
	FindingMissingArg  FindingKind = "missing-argument"
	FindingBadArg      FindingKind = "invalid-argument"
	FindingMissingFlag FindingKind = "missing-flag"
	FindingUnknownAxis FindingKind = "unknown-axis"
	FindingMissingAxis FindingKind = "missing-axis"
	FindingMissingEnv  FindingKind = "missing-env"
	FindingMissingOut  FindingKind = "missing-output"
	FindingNoVersion   FindingKind = "no-version"
	FindingAmbiguous   FindingKind = "ambiguous-version"
	FindingUnsupported FindingKind = "unsupported"
)

// Finding is one validation problem, attributed to a node where possible.
type Finding struct {
	Kind    FindingKind
	NodeID  string
	Message string
}

func (f Finding) String() string {
	if f.NodeID != "" {
		return fmt.Sprintf("%s: %s: %s", f.Kind, f.NodeID, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// ValidationBatch aggregates every finding into a single error so all
// problems surface together before execution.
type ValidationBatch struct {
	Findings []Finding
}

func (b *ValidationBatch) Error() string {
	if b == nil || len(b.Findings) == 0 {
		return "validation failed"
	}
	lines := make([]string, 0, len(b.Findings)+1)
	lines = append(lines, fmt.Sprintf("validation failed with %d problem(s):", len(b.Findings)))
	for _, f := range b.Findings {
		lines = append(lines, "  - "+f.String())
	}
	return strings.Join(lines, "\n")
}

// ErrorOrNil returns the batch as an error when it holds findings.
func (b *ValidationBatch) ErrorOrNil() error {
	if b == nil || len(b.Findings) == 0 {
		return nil
	}
	return b
}

func (b *ValidationBatch) add(kind FindingKind, nodeID, format string, args ...interface{}) {
	b.Findings = append(b.Findings, Finding{Kind: kind, NodeID: nodeID, Message: fmt.Sprintf(format, args...)})
}
