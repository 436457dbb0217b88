package domain_test

import (
	"testing"

	"signalis/internal/domain"
)

const ts = "2024-06-15T10:00:00Z"
const later = "2024-06-16T10:00:00Z"

func packagedReport() domain.Report {
	pkgID := "pkg-1"
	ref := "2024-06-0001-00001"
	return domain.Report{
		ID:          "rep-1",
		CommuneCode: "12001",
		Completed:   true,
		PackageID:   &pkgID,
		Reference:   &ref,
	}
}

func TestReportPredicates(t *testing.T) {
	rp := domain.Report{ID: "rep-1", CommuneCode: "12001"}
	if rp.Transmitted() || rp.Delivered() || rp.Pending() {
		t.Fatalf("unpackaged report should not be transmitted")
	}
	rp = packagedReport()
	if !rp.Transmitted() || !rp.Delivered() || !rp.Pending() {
		t.Fatalf("packaged report should be pending")
	}
	rp.Sandbox = true
	if rp.Transmitted() {
		t.Fatalf("sandbox report should not count as transmitted")
	}
	rp = packagedReport()
	rp.DiscardedAt = strPtr(ts)
	if rp.Delivered() {
		t.Fatalf("discarded report should not be delivered")
	}
}

func TestReportApproveIdempotent(t *testing.T) {
	rp := packagedReport()
	if !rp.Approve(ts) {
		t.Fatalf("approve failed")
	}
	first := rp
	if !rp.Approve(later) {
		t.Fatalf("re-approve failed")
	}
	if rp != first {
		t.Fatalf("re-approve mutated the report")
	}
	if *rp.ApprovedAt != ts {
		t.Fatalf("approved_at overwritten: %s", *rp.ApprovedAt)
	}
}

func TestReportApproveRejectExclusive(t *testing.T) {
	rp := packagedReport()
	rp.Reject(ts)
	rp.Approve(later)
	if rp.RejectedAt != nil {
		t.Fatalf("approve should clear rejected_at")
	}
	if rp.ApprovedAt == nil {
		t.Fatalf("approve should set approved_at")
	}
	rp.Reject(later)
	if rp.ApprovedAt != nil {
		t.Fatalf("reject should clear approved_at")
	}
}

func TestReportDebateOnlyFromUndecided(t *testing.T) {
	rp := packagedReport()
	if !rp.Debate(ts) {
		t.Fatalf("debate from undecided failed")
	}
	if !rp.Debate(later) {
		t.Fatalf("re-debate should be a no-op success")
	}
	if *rp.DebatedAt != ts {
		t.Fatalf("debated_at overwritten")
	}

	rp = packagedReport()
	rp.Approve(ts)
	before := rp
	if rp.Debate(later) {
		t.Fatalf("debate after approval should fail")
	}
	if rp != before {
		t.Fatalf("failed debate mutated the report")
	}
}

func TestPackageAssignReturn(t *testing.T) {
	p := domain.Package{ID: "pkg-1", Reference: "2024-06-0001"}
	if !p.Unresolved() {
		t.Fatalf("fresh package should be unresolved")
	}
	p.Assign(ts)
	if !p.Assigned() || p.Returned() || p.Unresolved() {
		t.Fatalf("assign state wrong")
	}
	first := p
	p.Assign(later)
	if p != first {
		t.Fatalf("re-assign mutated the package")
	}
	p.Return(later)
	if !p.Returned() || p.Assigned() {
		t.Fatalf("return should clear assigned_at")
	}
}

func TestPackageTransmitted(t *testing.T) {
	p := domain.Package{ID: "pkg-1", Reference: "2024-06-0001"}
	if !p.Transmitted() {
		t.Fatalf("regular package should be transmitted")
	}
	p.Sandbox = true
	if p.Transmitted() {
		t.Fatalf("sandbox package should not be transmitted")
	}
}

func strPtr(s string) *string { return &s }
