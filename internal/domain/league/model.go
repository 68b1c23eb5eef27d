package league

import (
	"fmt"
	"strings"
)

const (
	// CoverageMajor marks leagues with reliable real-time feeds; matches in
	// them may be authoritatively finished from provider evidence.
	CoverageMajor = "major"
	// CoverageRegional is the default; matches only ever soft-finish without
	// explicit confirmation.
	CoverageRegional = "regional"
)

// League groups matches and gates which lifecycle transitions are allowed.
type League struct {
	ID       string
	SportID  int64
	Name     string
	Coverage string
}

func (l League) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("league id is required")
	}
	if l.SportID <= 0 {
		return fmt.Errorf("league sport id must be greater than zero")
	}
	if l.Name == "" {
		return fmt.Errorf("league name is required")
	}
	switch l.Coverage {
	case CoverageMajor, CoverageRegional:
		return nil
	default:
		return fmt.Errorf("league coverage %q is not valid", l.Coverage)
	}
}

// NormalizeCoverage resolves the coverage default exactly once at data
// entry; readers never re-derive it.
func NormalizeCoverage(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case CoverageMajor:
		return CoverageMajor
	default:
		return CoverageRegional
	}
}
