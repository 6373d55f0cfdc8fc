package snapshot

import (
	"github.com/pmezard/go-difflib/difflib"
)

// UnifiedDiff renders a line-oriented unified diff between two code bodies
// with three lines of context, labeled by run name.
func UnifiedDiff(prev, next, fromLabel, toLabel string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(prev),
		B:        difflib.SplitLines(next),
		FromFile: fromLabel,
		ToFile:   toLabel,
		Context:  3,
	})
}
