package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"signalis/internal/config"
	"signalis/internal/domain"
	"signalis/internal/events"
	"signalis/internal/repo"
)

// ErrReportDecided is returned when a debate is requested on a report that has
// already been approved or rejected.
var ErrReportDecided = errors.New("report already approved or rejected")

const defaultReferenceRetries = 3

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) referenceRetries() int {
	if e.Config != nil && e.Config.Transmission.ReferenceRetries > 0 {
		return e.Config.Transmission.ReferenceRetries
	}
	return defaultReferenceRetries
}

func (e Engine) CreateCollectivity(ctx context.Context, id, name, siren, actorID string) (domain.Collectivity, error) {
	if name == "" {
		return domain.Collectivity{}, errors.New("name is required")
	}
	if id == "" {
		id = uuid.New().String()
	}
	c := domain.Collectivity{
		ID:        id,
		Name:      name,
		Siren:     siren,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertCollectivity(ctx, c); err != nil {
		return domain.Collectivity{}, fmt.Errorf("insert collectivity: %w", err)
	}
	return c, nil
}

// ReportCreateOptions are parameters for filing a report.
type ReportCreateOptions struct {
	ID             string
	CollectivityID string
	PublisherID    string
	CommuneCode    string
	Anomaly        string
	Completed      bool
	ActorID        string
}

func (e Engine) CreateReport(ctx context.Context, opts ReportCreateOptions) (domain.Report, error) {
	if opts.CollectivityID == "" {
		return domain.Report{}, errors.New("collectivity is required")
	}
	if opts.CommuneCode == "" {
		return domain.Report{}, errors.New("commune code is required")
	}
	if _, err := e.Repo.GetCollectivity(ctx, opts.CollectivityID); err != nil {
		return domain.Report{}, err
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	rp := domain.Report{
		ID:             id,
		CollectivityID: opts.CollectivityID,
		PublisherID:    optionalString(opts.PublisherID),
		CommuneCode:    opts.CommuneCode,
		Anomaly:        opts.Anomaly,
		Completed:      opts.Completed,
		CreatedAt:      e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Report{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertReportTx(ctx, tx, rp); err != nil {
		return domain.Report{}, fmt.Errorf("insert report: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "report.created", "report", rp.ID, opts.ActorID, events.EventPayload{
		"collectivity_id": rp.CollectivityID,
		"commune_code":    rp.CommuneCode,
	}); err != nil {
		return domain.Report{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Report{}, err
	}
	return rp, nil
}

// CompleteReport marks a draft report as ready for transmission.
func (e Engine) CompleteReport(ctx context.Context, id, actorID string) (domain.Report, error) {
	rp, err := e.Repo.GetReport(ctx, id)
	if err != nil {
		return rp, err
	}
	if rp.Completed {
		return rp, nil
	}
	if err := e.Repo.SetReportCompleted(ctx, id, true); err != nil {
		return rp, err
	}
	rp.Completed = true
	return rp, nil
}

func (e Engine) CreateTransmission(ctx context.Context, collectivityID, publisherID, actorID string, sandbox *bool) (domain.Transmission, error) {
	if collectivityID == "" {
		return domain.Transmission{}, errors.New("collectivity is required")
	}
	if _, err := e.Repo.GetCollectivity(ctx, collectivityID); err != nil {
		return domain.Transmission{}, err
	}
	sb := false
	if e.Config != nil {
		sb = e.Config.Transmission.Sandbox
	}
	if sandbox != nil {
		sb = *sandbox
	}
	t := domain.Transmission{
		ID:             uuid.New().String(),
		CollectivityID: collectivityID,
		PublisherID:    optionalString(publisherID),
		Sandbox:        sb,
		CreatedAt:      e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transmission{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTransmissionTx(ctx, tx, t); err != nil {
		return domain.Transmission{}, fmt.Errorf("insert transmission: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "transmission.created", "transmission", t.ID, actorID, events.EventPayload{
		"collectivity_id": t.CollectivityID,
		"sandbox":         t.Sandbox,
	}); err != nil {
		return domain.Transmission{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Transmission{}, err
	}
	return t, nil
}

// ApproveReport records the approval decision. Re-approving is a no-op.
func (e Engine) ApproveReport(ctx context.Context, id, actorID string) (domain.Report, error) {
	return e.decideReport(ctx, id, actorID, "report.approved", func(rp *domain.Report, ts string) bool {
		return rp.Approve(ts)
	})
}

func (e Engine) RejectReport(ctx context.Context, id, actorID string) (domain.Report, error) {
	return e.decideReport(ctx, id, actorID, "report.rejected", func(rp *domain.Report, ts string) bool {
		return rp.Reject(ts)
	})
}

// DebateReport marks the report as under discussion; it fails with
// ErrReportDecided once an approval or rejection has been recorded.
func (e Engine) DebateReport(ctx context.Context, id, actorID string) (domain.Report, error) {
	return e.decideReport(ctx, id, actorID, "report.debated", func(rp *domain.Report, ts string) bool {
		return rp.Debate(ts)
	})
}

func (e Engine) decideReport(ctx context.Context, id, actorID, evtType string, apply func(*domain.Report, string) bool) (domain.Report, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Report{}, err
	}
	defer tx.Rollback()
	rp, err := e.Repo.GetReportTx(ctx, tx, id)
	if err != nil {
		return rp, err
	}
	before := rp
	ts := e.now().UTC().Format(time.RFC3339)
	if !apply(&rp, ts) {
		return before, ErrReportDecided
	}
	if rp == before {
		// already in the target state
		return rp, nil
	}
	if err := e.Repo.UpdateReportDecision(ctx, tx, rp); err != nil {
		return rp, err
	}
	if err := e.Events.Append(ctx, tx, evtType, "report", rp.ID, actorID, events.EventPayload{}); err != nil {
		return rp, err
	}
	if err := tx.Commit(); err != nil {
		return rp, err
	}
	return rp, nil
}

// AssignPackage accepts a package into its authority's workload and stamps the
// package's undecided reports. Idempotent.
func (e Engine) AssignPackage(ctx context.Context, id, actorID string) (domain.Package, error) {
	return e.resolvePackage(ctx, id, actorID, "package.assigned", true)
}

// ReturnPackage sends a package back to the collectivity. Idempotent.
func (e Engine) ReturnPackage(ctx context.Context, id, actorID string) (domain.Package, error) {
	return e.resolvePackage(ctx, id, actorID, "package.returned", false)
}

func (e Engine) resolvePackage(ctx context.Context, id, actorID, evtType string, assign bool) (domain.Package, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Package{}, err
	}
	defer tx.Rollback()
	p, err := e.Repo.GetPackageTx(ctx, tx, id)
	if err != nil {
		return p, err
	}
	before := p
	ts := e.now().UTC().Format(time.RFC3339)
	if assign {
		p.Assign(ts)
	} else {
		p.Return(ts)
	}
	if p == before {
		return p, nil
	}
	if err := e.Repo.UpdatePackageResolution(ctx, tx, p); err != nil {
		return p, err
	}
	if assign {
		if err := e.Repo.AssignPackageReportsTx(ctx, tx, p.ID, ts); err != nil {
			return p, err
		}
	}
	if err := e.Events.Append(ctx, tx, evtType, "package", p.ID, actorID, events.EventPayload{
		"reference": p.Reference,
	}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	return p, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
