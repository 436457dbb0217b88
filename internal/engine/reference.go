package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Package references follow YYYY-MM-NNNN: a month prefix plus a four digit
// sequence that restarts at 1 every calendar month. The month-scoped numbering
// is an external format requirement, which is why allocation scans the current
// maximum instead of using a database sequence.

// NextPackageReference derives the next reference from the system-wide
// maximum existing one. The numeric suffix only carries over when the month
// prefix matches now's month.
func NextPackageReference(maxRef string, now time.Time) string {
	prefix := now.UTC().Format("2006-01")
	seq := 1
	if rest, ok := strings.CutPrefix(maxRef, prefix+"-"); ok {
		if n, err := strconv.Atoi(rest); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s-%04d", prefix, seq)
}

// ReportReference builds the sibling reference of a report from its package
// reference and its 1-indexed position within the package.
func ReportReference(packageRef string, position int) string {
	return fmt.Sprintf("%s-%05d", packageRef, position)
}
