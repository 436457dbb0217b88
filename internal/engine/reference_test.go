package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"signalis/internal/engine"
)

func TestNextPackageReference(t *testing.T) {
	june := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	july := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		maxRef string
		now    time.Time
		want   string
	}{
		{"first package ever", "", june, "2024-06-0001"},
		{"same month increments", "2024-06-0041", june, "2024-06-0042"},
		{"new month restarts", "2024-06-0041", july, "2024-07-0001"},
		{"stale max from last year", "2023-06-0999", june, "2024-06-0001"},
		{"garbage suffix falls back", "2024-06-xyz", june, "2024-06-0001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.NextPackageReference(tt.maxRef, tt.now))
		})
	}
}

func TestReportReference(t *testing.T) {
	assert.Equal(t, "2024-06-0003-00001", engine.ReportReference("2024-06-0003", 1))
	assert.Equal(t, "2024-06-0003-00127", engine.ReportReference("2024-06-0003", 127))
}
