package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"signalis/internal/domain"
	"signalis/internal/events"
	"signalis/internal/repo"
)

// FinalizeResult is the outcome of CompleteTransmission. Validation failures
// populate Errors and leave everything unmutated; on success Packages lists
// the created packages with their reports in packaging order, and Unrouted
// lists pool reports no authority covered (they stay in the completed
// transmission, unpackaged).
type FinalizeResult struct {
	OK       bool                    `json:"ok"`
	Errors   []string                `json:"errors,omitempty"`
	Packages []FinalizePackageResult `json:"packages,omitempty"`
	Unrouted []string                `json:"unrouted,omitempty"`
}

type FinalizePackageResult struct {
	ID          string                 `json:"id"`
	Reference   string                 `json:"reference"`
	AuthorityID string                 `json:"authority_id"`
	Reports     []FinalizeReportResult `json:"reports"`
}

type FinalizeReportResult struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
}

// CompleteTransmission finalizes a pending transmission: it validates the
// pool, partitions it by covering authority, creates one referenced package
// per authority and stamps every routed report, all in one transaction.
// Auto-assignment runs after commit. A validation failure is returned as data
// (OK=false, Errors set) with no mutation; only infrastructure failures are
// returned as errors.
func (e Engine) CompleteTransmission(ctx context.Context, transmissionID, actorID string) (FinalizeResult, error) {
	var res FinalizeResult

	t, err := e.Repo.GetTransmission(ctx, transmissionID)
	if err != nil {
		return res, err
	}
	if t.Completed() {
		res.Errors = append(res.Errors, "transmission already completed")
		return res, nil
	}
	pool, err := e.Repo.ListReports(ctx, repo.ReportFilters{TransmissionID: transmissionID})
	if err != nil {
		return res, err
	}
	if len(pool) == 0 {
		res.Errors = append(res.Errors, "no reports")
		return res, nil
	}
	for _, rp := range pool {
		if !rp.Completed {
			res.Errors = append(res.Errors, "incomplete reports present")
			break
		}
	}
	if len(res.Errors) > 0 {
		return res, nil
	}

	// Preload the territorial lookup: candidate authorities with offices and
	// commune assignments, plus the commune rows for the pool.
	authorities, err := e.Repo.ListAuthoritiesWithCoverage(ctx)
	if err != nil {
		return res, fmt.Errorf("load authorities: %w", err)
	}
	codes := make([]string, 0, len(pool))
	for _, rp := range pool {
		codes = append(codes, rp.CommuneCode)
	}
	communes, err := e.Repo.GetCommunes(ctx, codes)
	if err != nil {
		return res, fmt.Errorf("load communes: %w", err)
	}

	now := e.now().UTC()
	ts := now.Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	// Guarded flip of completed_at: a second finalization racing on the same
	// transmission loses here and reports a validation failure.
	if err := e.Repo.CompleteTransmissionTx(ctx, tx, transmissionID, ts); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			res.Errors = append(res.Errors, "transmission already completed")
			return res, nil
		}
		return res, err
	}

	// Re-read the pool inside the transaction so concurrent membership
	// changes cannot slip between validation and packaging. Returning before
	// commit rolls the completed_at flip back.
	pool, err = e.Repo.ListTransmissionReportsTx(ctx, tx, transmissionID)
	if err != nil {
		return res, err
	}
	if len(pool) == 0 {
		res.Errors = append(res.Errors, "no reports")
		return res, nil
	}
	for _, rp := range pool {
		if !rp.Completed {
			res.Errors = append(res.Errors, "incomplete reports present")
			return res, nil
		}
	}

	// Partition the pool by covering authority, preserving pool order within
	// each group. Authority iteration order stays the lookup's stable order.
	type routed struct {
		report domain.Report
		office *domain.Office
	}
	groups := map[string][]routed{}
	for _, rp := range pool {
		authority, office := RouteReport(rp, communes, authorities)
		if authority == nil {
			res.Unrouted = append(res.Unrouted, rp.ID)
			continue
		}
		groups[authority.ID] = append(groups[authority.ID], routed{report: rp, office: office})
	}

	for i := range authorities {
		authority := &authorities[i]
		group := groups[authority.ID]
		if len(group) == 0 {
			continue
		}
		pkg, err := e.createPackageTx(ctx, tx, t, authority.ID, now, ts)
		if err != nil {
			return FinalizeResult{}, err
		}
		pkgRes := FinalizePackageResult{ID: pkg.ID, Reference: pkg.Reference, AuthorityID: authority.ID}
		for pos, entry := range group {
			ref := ReportReference(pkg.Reference, pos+1)
			var officeID *string
			if entry.office != nil {
				officeID = &entry.office.ID
			}
			if err := e.Repo.MarkReportPackagedTx(ctx, tx, entry.report.ID, pkg.ID, ref, authority.ID, officeID, t.Sandbox, ts); err != nil {
				return FinalizeResult{}, fmt.Errorf("package report %s: %w", entry.report.ID, err)
			}
			pkgRes.Reports = append(pkgRes.Reports, FinalizeReportResult{ID: entry.report.ID, Reference: ref})
		}
		if err := e.Events.Append(ctx, tx, "package.created", "package", pkg.ID, actorID, events.EventPayload{
			"reference":    pkg.Reference,
			"authority_id": authority.ID,
			"reports":      len(group),
		}); err != nil {
			return FinalizeResult{}, err
		}
		res.Packages = append(res.Packages, pkgRes)
	}

	if err := e.Events.Append(ctx, tx, "transmission.completed", "transmission", transmissionID, actorID, events.EventPayload{
		"packages": len(res.Packages),
		"unrouted": len(res.Unrouted),
	}); err != nil {
		return FinalizeResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return FinalizeResult{}, err
	}
	res.OK = true

	if err := e.autoAssign(ctx, res.Packages, authorities, actorID); err != nil {
		return res, err
	}
	return res, nil
}

// createPackageTx allocates a reference and inserts the package row, retrying
// the whole step on a uniqueness conflict with a concurrently committed
// package. The retry loop is the sole mechanism preventing duplicate
// references when transmissions finalize in the same month at the same time.
func (e Engine) createPackageTx(ctx context.Context, tx *sql.Tx, t domain.Transmission, authorityID string, now time.Time, ts string) (domain.Package, error) {
	retries := e.referenceRetries()
	for attempt := 0; attempt < retries; attempt++ {
		maxRef, err := e.Repo.MaxPackageReferenceTx(ctx, tx)
		if err != nil {
			return domain.Package{}, err
		}
		pkg := domain.Package{
			ID:             uuid.New().String(),
			CollectivityID: t.CollectivityID,
			TransmissionID: t.ID,
			AuthorityID:    authorityID,
			Reference:      NextPackageReference(maxRef, now),
			Sandbox:        t.Sandbox,
			CreatedAt:      ts,
		}
		err = e.Repo.InsertPackageTx(ctx, tx, pkg)
		if err == nil {
			return pkg, nil
		}
		if !errors.Is(err, repo.ErrDuplicateReference) {
			return domain.Package{}, fmt.Errorf("insert package: %w", err)
		}
	}
	return domain.Package{}, fmt.Errorf("package reference allocation: %w", repo.ErrDuplicateReference)
}

// autoAssign applies each authority's auto-assign policy to the packages just
// created. Runs after the finalization commit and is safe to re-invoke:
// assigning an assigned package is a no-op.
func (e Engine) autoAssign(ctx context.Context, packages []FinalizePackageResult, authorities []domain.Authority, actorID string) error {
	byID := make(map[string]*domain.Authority, len(authorities))
	for i := range authorities {
		byID[authorities[i].ID] = &authorities[i]
	}
	for _, pkg := range packages {
		authority := byID[pkg.AuthorityID]
		if authority == nil || !authority.AutoAssign {
			continue
		}
		if _, err := e.resolvePackage(ctx, pkg.ID, actorID, "package.auto_assigned", true); err != nil {
			return fmt.Errorf("auto-assign package %s: %w", pkg.Reference, err)
		}
	}
	return nil
}
