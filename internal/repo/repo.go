package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"signalis/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrDuplicateReference signals a uniqueness violation on a package or report
// reference. The finalizer treats it as a cue to recompute the reference and
// retry the whole package insert.
var ErrDuplicateReference = errors.New("duplicate reference")

// IsUniqueViolation reports whether err is a SQLite unique-constraint failure.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func ptrFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// --- collectivities ---

func (r Repo) InsertCollectivity(ctx context.Context, c domain.Collectivity) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO collectivities(id,name,siren,created_at) VALUES (?,?,?,?)`,
		c.ID, c.Name, nullable(c.Siren), c.CreatedAt)
	return err
}

func (r Repo) GetCollectivity(ctx context.Context, id string) (domain.Collectivity, error) {
	var c domain.Collectivity
	var siren sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,siren,created_at FROM collectivities WHERE id=?`, id).
		Scan(&c.ID, &c.Name, &siren, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if siren.Valid {
		c.Siren = siren.String
	}
	return c, err
}

func (r Repo) ListCollectivities(ctx context.Context) ([]domain.Collectivity, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(siren,''),created_at FROM collectivities ORDER BY created_at,id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Collectivity
	for rows.Next() {
		var c domain.Collectivity
		if err := rows.Scan(&c.ID, &c.Name, &c.Siren, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// --- reports ---

const reportColumns = `id,collectivity_id,publisher_id,commune_code,anomaly,completed,sandbox,transmission_id,package_id,authority_id,office_id,reference,created_at,transmitted_at,assigned_at,returned_at,approved_at,rejected_at,debated_at,discarded_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (domain.Report, error) {
	var rp domain.Report
	var publisherID, anomaly, transmissionID, packageID, authorityID, officeID, reference sql.NullString
	var transmittedAt, assignedAt, returnedAt, approvedAt, rejectedAt, debatedAt, discardedAt sql.NullString
	err := s.Scan(&rp.ID, &rp.CollectivityID, &publisherID, &rp.CommuneCode, &anomaly, &rp.Completed, &rp.Sandbox,
		&transmissionID, &packageID, &authorityID, &officeID, &reference, &rp.CreatedAt,
		&transmittedAt, &assignedAt, &returnedAt, &approvedAt, &rejectedAt, &debatedAt, &discardedAt)
	if err == sql.ErrNoRows {
		return rp, ErrNotFound
	}
	if err != nil {
		return rp, err
	}
	rp.PublisherID = ptrFromNull(publisherID)
	if anomaly.Valid {
		rp.Anomaly = anomaly.String
	}
	rp.TransmissionID = ptrFromNull(transmissionID)
	rp.PackageID = ptrFromNull(packageID)
	rp.AuthorityID = ptrFromNull(authorityID)
	rp.OfficeID = ptrFromNull(officeID)
	rp.Reference = ptrFromNull(reference)
	rp.TransmittedAt = ptrFromNull(transmittedAt)
	rp.AssignedAt = ptrFromNull(assignedAt)
	rp.ReturnedAt = ptrFromNull(returnedAt)
	rp.ApprovedAt = ptrFromNull(approvedAt)
	rp.RejectedAt = ptrFromNull(rejectedAt)
	rp.DebatedAt = ptrFromNull(debatedAt)
	rp.DiscardedAt = ptrFromNull(discardedAt)
	return rp, nil
}

func (r Repo) InsertReport(ctx context.Context, rp domain.Report) error {
	return insertReport(ctx, r.DB, rp)
}

func (r Repo) InsertReportTx(ctx context.Context, tx *sql.Tx, rp domain.Report) error {
	return insertReport(ctx, tx, rp)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertReport(ctx context.Context, db execer, rp domain.Report) error {
	_, err := db.ExecContext(ctx, `INSERT INTO reports(`+reportColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rp.ID, rp.CollectivityID, nullableStringPtr(rp.PublisherID), rp.CommuneCode, nullable(rp.Anomaly), rp.Completed, rp.Sandbox,
		nullableStringPtr(rp.TransmissionID), nullableStringPtr(rp.PackageID), nullableStringPtr(rp.AuthorityID),
		nullableStringPtr(rp.OfficeID), nullableStringPtr(rp.Reference), rp.CreatedAt,
		nullableStringPtr(rp.TransmittedAt), nullableStringPtr(rp.AssignedAt), nullableStringPtr(rp.ReturnedAt),
		nullableStringPtr(rp.ApprovedAt), nullableStringPtr(rp.RejectedAt), nullableStringPtr(rp.DebatedAt),
		nullableStringPtr(rp.DiscardedAt))
	return err
}

func (r Repo) GetReport(ctx context.Context, id string) (domain.Report, error) {
	return scanReport(r.DB.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id=?`, id))
}

func (r Repo) GetReportTx(ctx context.Context, tx *sql.Tx, id string) (domain.Report, error) {
	return scanReport(tx.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id=?`, id))
}

// GetReportsByIDs returns the existing reports among ids in stable creation
// order. Missing ids are silently absent from the result.
func (r Repo) GetReportsByIDs(ctx context.Context, ids []string) ([]domain.Report, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sq.Select(reportColumns).
		From("reports").
		Where(sq.Eq{"id": ids}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryReports(ctx, query, args...)
}

type ReportFilters struct {
	CollectivityID string
	TransmissionID string
	PackageID      string
	Completed      *bool
	Limit          int
}

func (r Repo) ListReports(ctx context.Context, f ReportFilters) ([]domain.Report, error) {
	q := sq.Select(reportColumns).From("reports").OrderBy("created_at", "id")
	if f.CollectivityID != "" {
		q = q.Where(sq.Eq{"collectivity_id": f.CollectivityID})
	}
	if f.TransmissionID != "" {
		q = q.Where(sq.Eq{"transmission_id": f.TransmissionID})
	}
	if f.PackageID != "" {
		q = q.Where(sq.Eq{"package_id": f.PackageID})
	}
	if f.Completed != nil {
		q = q.Where(sq.Eq{"completed": *f.Completed})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryReports(ctx, query, args...)
}

func (r Repo) queryReports(ctx context.Context, query string, args ...any) ([]domain.Report, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Report
	for rows.Next() {
		rp, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rp)
	}
	return res, rows.Err()
}

// ListTransmissionReportsTx returns the pool of a transmission in stable
// creation order, inside the finalization transaction.
func (r Repo) ListTransmissionReportsTx(ctx context.Context, tx *sql.Tx, transmissionID string) ([]domain.Report, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE transmission_id=? ORDER BY created_at,id`, transmissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Report
	for rows.Next() {
		rp, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rp)
	}
	return res, rows.Err()
}

func (r Repo) CountTransmissionReports(ctx context.Context, transmissionID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM reports WHERE transmission_id=?`, transmissionID).Scan(&n)
	return n, err
}

func (r Repo) CountTransmissionReportsTx(ctx context.Context, tx *sql.Tx, transmissionID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT count(*) FROM reports WHERE transmission_id=?`, transmissionID).Scan(&n)
	return n, err
}

func (r Repo) SetReportCompleted(ctx context.Context, id string, completed bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE reports SET completed=? WHERE id=?`, completed, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignReportsToTransmissionTx moves the given reports into the
// transmission's pool in a single statement.
func (r Repo) AssignReportsToTransmissionTx(ctx context.Context, tx *sql.Tx, transmissionID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sq.Update("reports").
		Set("transmission_id", transmissionID).
		Where(sq.Eq{"id": ids}).
		Where("completed = 1").
		Where("package_id IS NULL").
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// RemoveReportsFromTransmissionTx clears membership for the given reports,
// only where they actually belong to the transmission.
func (r Repo) RemoveReportsFromTransmissionTx(ctx context.Context, tx *sql.Tx, transmissionID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sq.Update("reports").
		Set("transmission_id", nil).
		Where(sq.Eq{"transmission_id": transmissionID}).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// AssignPackageReportsTx stamps assigned_at on a package's reports that have
// not been individually resolved yet.
func (r Repo) AssignPackageReportsTx(ctx context.Context, tx *sql.Tx, packageID, ts string) error {
	_, err := tx.ExecContext(ctx, `UPDATE reports SET assigned_at=? WHERE package_id=? AND assigned_at IS NULL AND approved_at IS NULL AND rejected_at IS NULL`,
		ts, packageID)
	return err
}

// MarkReportPackagedTx attaches a report to its package: reference,
// transmitted_at, routing and the inherited sandbox flag are written together.
func (r Repo) MarkReportPackagedTx(ctx context.Context, tx *sql.Tx, reportID, packageID, reference, authorityID string, officeID *string, sandbox bool, ts string) error {
	_, err := tx.ExecContext(ctx, `UPDATE reports SET package_id=?, reference=?, authority_id=?, office_id=?, sandbox=?, transmitted_at=? WHERE id=?`,
		packageID, reference, authorityID, nullableStringPtr(officeID), sandbox, ts, reportID)
	if IsUniqueViolation(err) {
		return ErrDuplicateReference
	}
	return err
}

// UpdateReportDecision persists the decision timestamps written by the report
// state machine.
func (r Repo) UpdateReportDecision(ctx context.Context, tx *sql.Tx, rp domain.Report) error {
	_, err := tx.ExecContext(ctx, `UPDATE reports SET approved_at=?, rejected_at=?, debated_at=? WHERE id=?`,
		nullableStringPtr(rp.ApprovedAt), nullableStringPtr(rp.RejectedAt), nullableStringPtr(rp.DebatedAt), rp.ID)
	return err
}

// --- transmissions ---

func scanTransmission(s scanner) (domain.Transmission, error) {
	var t domain.Transmission
	var publisherID, completedAt sql.NullString
	err := s.Scan(&t.ID, &t.CollectivityID, &publisherID, &t.Sandbox, &t.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.PublisherID = ptrFromNull(publisherID)
	t.CompletedAt = ptrFromNull(completedAt)
	return t, nil
}

func (r Repo) InsertTransmission(ctx context.Context, t domain.Transmission) error {
	return insertTransmission(ctx, r.DB, t)
}

func (r Repo) InsertTransmissionTx(ctx context.Context, tx *sql.Tx, t domain.Transmission) error {
	return insertTransmission(ctx, tx, t)
}

func insertTransmission(ctx context.Context, db execer, t domain.Transmission) error {
	_, err := db.ExecContext(ctx, `INSERT INTO transmissions(id,collectivity_id,publisher_id,sandbox,created_at,completed_at) VALUES (?,?,?,?,?,?)`,
		t.ID, t.CollectivityID, nullableStringPtr(t.PublisherID), t.Sandbox, t.CreatedAt, nullableStringPtr(t.CompletedAt))
	return err
}

func (r Repo) GetTransmission(ctx context.Context, id string) (domain.Transmission, error) {
	return scanTransmission(r.DB.QueryRowContext(ctx, `SELECT id,collectivity_id,publisher_id,sandbox,created_at,completed_at FROM transmissions WHERE id=?`, id))
}

func (r Repo) GetTransmissionTx(ctx context.Context, tx *sql.Tx, id string) (domain.Transmission, error) {
	return scanTransmission(tx.QueryRowContext(ctx, `SELECT id,collectivity_id,publisher_id,sandbox,created_at,completed_at FROM transmissions WHERE id=?`, id))
}

func (r Repo) ListTransmissions(ctx context.Context, collectivityID string) ([]domain.Transmission, error) {
	q := sq.Select("id,collectivity_id,publisher_id,sandbox,created_at,completed_at").
		From("transmissions").
		OrderBy("created_at DESC", "id DESC")
	if collectivityID != "" {
		q = q.Where(sq.Eq{"collectivity_id": collectivityID})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Transmission
	for rows.Next() {
		t, err := scanTransmission(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// CompleteTransmissionTx flips completed_at. The guard on completed_at IS NULL
// serializes two racing finalizations of the same transmission: the loser
// affects zero rows.
func (r Repo) CompleteTransmissionTx(ctx context.Context, tx *sql.Tx, id, ts string) error {
	res, err := tx.ExecContext(ctx, `UPDATE transmissions SET completed_at=? WHERE id=? AND completed_at IS NULL`, ts, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- packages ---

const packageColumns = `id,collectivity_id,transmission_id,authority_id,reference,sandbox,created_at,assigned_at,returned_at,approved_at,rejected_at,debated_at`

func scanPackage(s scanner) (domain.Package, error) {
	var p domain.Package
	var assignedAt, returnedAt, approvedAt, rejectedAt, debatedAt sql.NullString
	err := s.Scan(&p.ID, &p.CollectivityID, &p.TransmissionID, &p.AuthorityID, &p.Reference, &p.Sandbox, &p.CreatedAt,
		&assignedAt, &returnedAt, &approvedAt, &rejectedAt, &debatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.AssignedAt = ptrFromNull(assignedAt)
	p.ReturnedAt = ptrFromNull(returnedAt)
	p.ApprovedAt = ptrFromNull(approvedAt)
	p.RejectedAt = ptrFromNull(rejectedAt)
	p.DebatedAt = ptrFromNull(debatedAt)
	return p, nil
}

// InsertPackageTx inserts a package row; a reference collision with a
// concurrent finalization surfaces as ErrDuplicateReference.
func (r Repo) InsertPackageTx(ctx context.Context, tx *sql.Tx, p domain.Package) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO packages(`+packageColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.CollectivityID, p.TransmissionID, p.AuthorityID, p.Reference, p.Sandbox, p.CreatedAt,
		nullableStringPtr(p.AssignedAt), nullableStringPtr(p.ReturnedAt), nullableStringPtr(p.ApprovedAt),
		nullableStringPtr(p.RejectedAt), nullableStringPtr(p.DebatedAt))
	if IsUniqueViolation(err) {
		return ErrDuplicateReference
	}
	return err
}

func (r Repo) GetPackage(ctx context.Context, id string) (domain.Package, error) {
	return scanPackage(r.DB.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM packages WHERE id=?`, id))
}

func (r Repo) GetPackageTx(ctx context.Context, tx *sql.Tx, id string) (domain.Package, error) {
	return scanPackage(tx.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM packages WHERE id=?`, id))
}

type PackageFilters struct {
	CollectivityID string
	TransmissionID string
	AuthorityID    string
}

func (r Repo) ListPackages(ctx context.Context, f PackageFilters) ([]domain.Package, error) {
	q := sq.Select(packageColumns).From("packages").OrderBy("reference")
	if f.CollectivityID != "" {
		q = q.Where(sq.Eq{"collectivity_id": f.CollectivityID})
	}
	if f.TransmissionID != "" {
		q = q.Where(sq.Eq{"transmission_id": f.TransmissionID})
	}
	if f.AuthorityID != "" {
		q = q.Where(sq.Eq{"authority_id": f.AuthorityID})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// MaxPackageReferenceTx returns the lexicographic maximum package reference,
// or empty when no package exists yet. The YYYY-MM-NNNN format makes
// lexicographic and chronological order coincide.
func (r Repo) MaxPackageReferenceTx(ctx context.Context, tx *sql.Tx) (string, error) {
	var ref sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT MAX(reference) FROM packages`).Scan(&ref)
	if err != nil {
		return "", err
	}
	if !ref.Valid {
		return "", nil
	}
	return ref.String, nil
}

// UpdatePackageResolution persists the assigned/returned timestamps written by
// the package state machine.
func (r Repo) UpdatePackageResolution(ctx context.Context, tx *sql.Tx, p domain.Package) error {
	_, err := tx.ExecContext(ctx, `UPDATE packages SET assigned_at=?, returned_at=? WHERE id=?`,
		nullableStringPtr(p.AssignedAt), nullableStringPtr(p.ReturnedAt), p.ID)
	return err
}

// --- events ---

func (r Repo) LatestEvents(ctx context.Context, limit int, entityKind, entityID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	q := sq.Select("id,ts,type,entity_kind,entity_id,actor_id,payload_json").
		From("events").
		OrderBy("id DESC").
		Limit(uint64(limit))
	if entityKind != "" {
		q = q.Where(sq.Eq{"entity_kind": entityKind})
	}
	if entityID != "" {
		q = q.Where(sq.Eq{"entity_id": entityID})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if entID.Valid {
			e.EntityID = entID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
