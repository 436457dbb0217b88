package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalis/internal/config"
	"signalis/internal/db"
	"signalis/internal/domain"
	"signalis/internal/engine"
	"signalis/internal/migrate"
	"signalis/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

const frozenNow = "2024-06-15T10:00:00Z"

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err, "open db")
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn), "migrate")
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	_, err = eng.CreateCollectivity(ctx, "col-1", "Commune de Rodez", "211200885", "tester")
	require.NoError(t, err, "seed collectivity")
	return testEnv{Engine: eng, Ctx: ctx}
}

// seedTerritory installs two authorities: aut-a covers departement 12 with two
// offices splitting its communes, aut-b covers departement 30 with no office.
func seedTerritory(t *testing.T, env testEnv) {
	t.Helper()
	r := env.Engine.Repo
	for _, c := range []domain.Commune{
		{CodeINSEE: "12001", Name: "Rodez", DepartementCode: "12"},
		{CodeINSEE: "12002", Name: "Millau", DepartementCode: "12"},
		{CodeINSEE: "30001", Name: "Nimes", DepartementCode: "30"},
	} {
		require.NoError(t, r.InsertCommune(env.Ctx, c))
	}
	require.NoError(t, r.InsertAuthority(env.Ctx, domain.Authority{
		ID: "aut-a", Name: "DDFIP Aveyron", Districts: []string{"12"}, CreatedAt: frozenNow,
	}))
	require.NoError(t, r.InsertOffice(env.Ctx, domain.Office{
		ID: "off-a1", AuthorityID: "aut-a", Name: "SIP Rodez", Communes: []string{"12001"}, CreatedAt: frozenNow,
	}))
	require.NoError(t, r.InsertOffice(env.Ctx, domain.Office{
		ID: "off-a2", AuthorityID: "aut-a", Name: "SIP Millau", Communes: []string{"12002"}, CreatedAt: frozenNow,
	}))
	require.NoError(t, r.InsertAuthority(env.Ctx, domain.Authority{
		ID: "aut-b", Name: "DDFIP Gard", Districts: []string{"30"}, CreatedAt: frozenNow,
	}))
}

func createReport(t *testing.T, env testEnv, id, commune string, completed bool) domain.Report {
	t.Helper()
	rp, err := env.Engine.CreateReport(env.Ctx, engine.ReportCreateOptions{
		ID:             id,
		CollectivityID: "col-1",
		CommuneCode:    commune,
		Anomaly:        "construction_neuve",
		Completed:      completed,
		ActorID:        "tester",
	})
	require.NoError(t, err, "create report %s", id)
	return rp
}

func createTransmission(t *testing.T, env testEnv) domain.Transmission {
	t.Helper()
	tr, err := env.Engine.CreateTransmission(env.Ctx, "col-1", "", "tester", nil)
	require.NoError(t, err, "create transmission")
	return tr
}

func addReports(t *testing.T, env testEnv, transmissionID string, ids ...string) {
	t.Helper()
	_, err := env.Engine.AddToTransmission(env.Ctx, transmissionID, ids, "tester")
	require.NoError(t, err, "add to transmission")
}

func TestCompleteTransmissionPartitionsByAuthorityAndOffice(t *testing.T) {
	env := newTestEnv(t)
	seedTerritory(t, env)
	createReport(t, env, "r1", "12001", true)
	createReport(t, env, "r2", "12002", true)
	createReport(t, env, "r3", "30001", true)
	tr := createTransmission(t, env)
	addReports(t, env, tr.ID, "r1", "r2", "r3")

	res, err := env.Engine.CompleteTransmission(env.Ctx, tr.ID, "tester")
	require.NoError(t, err)
	require.True(t, res.OK, "finalization errors: %v", res.Errors)
	require.Len(t, res.Packages, 2)

	pkgA := res.Packages[0]
	assert.Equal(t, "aut-a", pkgA.AuthorityID)
	assert.Equal(t, "2024-06-0001", pkgA.Reference)
	require.Len(t, pkgA.Reports, 2)
	assert.Equal(t, "r1", pkgA.Reports[0].ID)
	assert.Equal(t, "2024-06-0001-00001", pkgA.Reports[0].Reference)
	assert.Equal(t, "r2", pkgA.Reports[1].ID)
	assert.Equal(t, "2024-06-0001-00002", pkgA.Reports[1].Reference)

	pkgB := res.Packages[1]
	assert.Equal(t, "aut-b", pkgB.AuthorityID)
	assert.Equal(t, "2024-06-0002", pkgB.Reference)
	require.Len(t, pkgB.Reports, 1)
	assert.Equal(t, "2024-06-0002-00001", pkgB.Reports[0].Reference)

	// Reports are routed to their office where one claims the commune.
	r1, err := env.Engine.Repo.GetReport(env.Ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, r1.OfficeID)
	assert.Equal(t, "off-a1", *r1.OfficeID)
	assert.Equal(t, frozenNow, *r1.TransmittedAt)
	r2, err := env.Engine.Repo.GetReport(env.Ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, "off-a2", *r2.OfficeID)
	r3, err := env.Engine.Repo.GetReport(env.Ctx, "r3")
	require.NoError(t, err)
	assert.Nil(t, r3.OfficeID, "aut-b has no office for this commune")

	// The transmission's completed_at shares the reports' transmitted_at.
	got, err := env.Engine.Repo.GetTransmission(env.Ctx, tr.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, frozenNow, *got.CompletedAt)
}

func TestCompleteTransmissionTwiceFailsValidation(t *testing.T) {
	env := newTestEnv(t)
	seedTerritory(t, env)
	createReport(t, env, "r1", "12001", true)
	tr := createTransmission(t, env)
	addReports(t, env, tr.ID, "r1")

	first, err := env.Engine.CompleteTransmission(env.Ctx, tr.ID, "tester")
	require.NoError(t, err)
	require.True(t, first.OK)
	require.Len(t, first.Packages, 1)

	second, err := env.Engine.CompleteTransmission(env.Ctx, tr.ID, "tester")
	require.NoError(t, err)
	assert.False(t, second.OK)
	assert.Contains(t, second.Errors, "transmission already completed")
	assert.Empty(t, second.Packages)

	pkgs, err := env.Engine.Repo.ListPackages(env.Ctx, repo.PackageFilters{TransmissionID: tr.ID})
	require.NoError(t, err)
	assert.Len(t, pkgs, 1, "second call must not create packages")
}

func TestCompleteTransmissionValidation(t *testing.T) {
	env := newTestEnv(t)
	seedTerritory(t, env)

	t.Run("empty pool", func(t *testing.T) {
		tr := createTransmission(t, env)
		res, err := env.Engine.CompleteTransmission(env.Ctx, tr.ID, "tester")
		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Contains(t, res.Errors, "no reports")
	})

	t.Run("incomplete report in pool", func(t *testing.T) {
		tr := createTransmission(t, env)
		createReport(t, env, "ok-1", "12001", true)
		addReports(t, env, tr.ID, "ok-1")
		// sneak an incomplete report into the pool below the eligibility filter
		draft := createReport(t, env, "draft-1", "12001", false)
		_, err := env.Engine.DB.ExecContext(env.Ctx, `UPDATE reports SET transmission_id=? WHERE id=?`, tr.ID, draft.ID)
		require.NoError(t, err)

		res, err := env.Engine.CompleteTransmission(env.Ctx, tr.ID, "tester")
		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Contains(t, res.Errors, "incomplete reports present")

		got, err := env.Engine.Repo.GetTransmission(env.Ctx, tr.ID)
		require.NoError(t, err)
		assert.Nil(t, got.CompletedAt, "validation failure must not complete the transmission")
	})
}

func TestCompleteTransmissionKeepsUnroutedReports(t *testing.T) {
	env := newTestEnv(t)
	seedTerritory(t, env)
	createReport(t, env, "r1", "12001", true)
	// commune 97601 has no lookup row and no covering authority
	require.NoError(t, env.Engine.Repo.InsertCommune(env.Ctx, domain.Commune{
		CodeINSEE: "97601", Name: "Acoua", DepartementCode: "976",
	}))
	createReport(t, env, "r2", "97601", true)
	tr := createTransmission(t, env)
	addReports(t, env, tr.ID, "r1", "r2")

	res, err := env.Engine.CompleteTransmission(env.Ctx, tr.ID, "tester")
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Len(t, res.Packages, 1)
	assert.Equal(t, []string{"r2"}, res.Unrouted)

	// Partition completeness: the routed report is packaged, the unrouted one
	// stays in the now-completed transmission.
	r2, err := env.Engine.Repo.GetReport(env.Ctx, "r2")
	require.NoError(t, err)
	assert.Nil(t, r2.PackageID)
	assert.Nil(t, r2.Reference)
	require.NotNil(t, r2.TransmissionID)
	assert.Equal(t, tr.ID, *r2.TransmissionID)
}

func TestConsecutiveReferencesAcrossTransmissions(t *testing.T) {
	env := newTestEnv(t)
	seedTerritory(t, env)

	var refs []string
	for i, id := range []string{"ra", "rb", "rc"} {
		createReport(t, env, id, "12001", true)
		tr := createTransmission(t, env)
		addReports(t, env, tr.ID, id)
		res, err := env.Engine.CompleteTransmission(env.Ctx, tr.ID, "tester")
		require.NoError(t, err)
		require.True(t, res.OK, "finalization %d: %v", i, res.Errors)
		require.Len(t, res.Packages, 1)
		refs = append(refs, res.Packages[0].Reference)
	}
	assert.Equal(t, []string{"2024-06-0001", "2024-06-0002", "2024-06-0003"}, refs)
}

func TestCompleteTransmissionRollsBackOnReferenceConflict(t *testing.T) {
	env := newTestEnv(t)
	seedTerritory(t, env)
	// Occupy the report reference the finalizer is about to allocate; the
	// unique index then fails mid-transaction and everything must roll back.
	blocker := domain.Report{
		ID:             "blocker",
		CollectivityID: "col-1",
		CommuneCode:    "12001",
		Completed:      true,
		Reference:      strPtr("2024-06-0001-00001"),
		CreatedAt:      frozenNow,
	}
	require.NoError(t, env.Engine.Repo.InsertReport(env.Ctx, blocker))

	createReport(t, env, "r1", "12001", true)
	tr := createTransmission(t, env)
	addReports(t, env, tr.ID, "r1")

	_, err := env.Engine.CompleteTransmission(env.Ctx, tr.ID, "tester")
	require.Error(t, err)

	got, err := env.Engine.Repo.GetTransmission(env.Ctx, tr.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CompletedAt, "transmission must stay pending")
	pkgs, err := env.Engine.Repo.ListPackages(env.Ctx, repo.PackageFilters{TransmissionID: tr.ID})
	require.NoError(t, err)
	assert.Empty(t, pkgs, "no package row may survive the rollback")
	r1, err := env.Engine.Repo.GetReport(env.Ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, r1.PackageID)
	assert.Nil(t, r1.TransmittedAt)
}

func TestAutoAssignTrigger(t *testing.T) {
	env := newTestEnv(t)
	seedTerritory(t, env)
	require.NoError(t, env.Engine.Repo.InsertAuthority(env.Ctx, domain.Authority{
		ID: "aut-c", Name: "DDFIP Herault", AutoAssign: true, Districts: []string{"34"}, CreatedAt: frozenNow,
	}))
	require.NoError(t, env.Engine.Repo.InsertCommune(env.Ctx, domain.Commune{
		CodeINSEE: "34001", Name: "Montpellier", DepartementCode: "34",
	}))
	createReport(t, env, "r1", "34001", true)
	createReport(t, env, "r2", "12001", true)
	tr := createTransmission(t, env)
	addReports(t, env, tr.ID, "r1", "r2")

	res, err := env.Engine.CompleteTransmission(env.Ctx, tr.ID, "tester")
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Len(t, res.Packages, 2)

	for _, pr := range res.Packages {
		pkg, err := env.Engine.Repo.GetPackage(env.Ctx, pr.ID)
		require.NoError(t, err)
		if pr.AuthorityID == "aut-c" {
			assert.True(t, pkg.Assigned(), "auto-assign authority should skip manual acceptance")
			r1, err := env.Engine.Repo.GetReport(env.Ctx, "r1")
			require.NoError(t, err)
			assert.NotNil(t, r1.AssignedAt)
		} else {
			assert.True(t, pkg.Unresolved(), "manual authority stays unresolved")
		}
	}

	// Re-running the trigger path is a no-op on an assigned package.
	pkg := res.Packages[0]
	before, err := env.Engine.Repo.GetPackage(env.Ctx, pkg.ID)
	require.NoError(t, err)
	after, err := env.Engine.AssignPackage(env.Ctx, pkg.ID, "tester")
	require.NoError(t, err)
	if before.Assigned() {
		assert.Equal(t, before, after)
	}
}

func TestSandboxTransmission(t *testing.T) {
	env := newTestEnv(t)
	seedTerritory(t, env)
	createReport(t, env, "r1", "12001", true)
	sandbox := true
	tr, err := env.Engine.CreateTransmission(env.Ctx, "col-1", "", "tester", &sandbox)
	require.NoError(t, err)
	addReports(t, env, tr.ID, "r1")

	res, err := env.Engine.CompleteTransmission(env.Ctx, tr.ID, "tester")
	require.NoError(t, err)
	require.True(t, res.OK)

	r1, err := env.Engine.Repo.GetReport(env.Ctx, "r1")
	require.NoError(t, err)
	assert.True(t, r1.Sandbox, "sandbox flag inherited at packaging time")
	assert.NotNil(t, r1.PackageID)
	assert.False(t, r1.Transmitted(), "sandbox packaging does not transmit")
	assert.False(t, r1.Pending())
}

func TestReportDecisions(t *testing.T) {
	env := newTestEnv(t)
	seedTerritory(t, env)
	createReport(t, env, "r1", "12001", true)
	tr := createTransmission(t, env)
	addReports(t, env, tr.ID, "r1")
	res, err := env.Engine.CompleteTransmission(env.Ctx, tr.ID, "tester")
	require.NoError(t, err)
	require.True(t, res.OK)

	rp, err := env.Engine.ApproveReport(env.Ctx, "r1", "tester")
	require.NoError(t, err)
	require.NotNil(t, rp.ApprovedAt)
	again, err := env.Engine.ApproveReport(env.Ctx, "r1", "tester")
	require.NoError(t, err)
	assert.Equal(t, rp, again, "re-approval is a no-op")

	rp, err = env.Engine.RejectReport(env.Ctx, "r1", "tester")
	require.NoError(t, err)
	assert.Nil(t, rp.ApprovedAt, "reject clears approval")
	require.NotNil(t, rp.RejectedAt)

	_, err = env.Engine.DebateReport(env.Ctx, "r1", "tester")
	assert.ErrorIs(t, err, engine.ErrReportDecided)
}

func strPtr(s string) *string { return &s }
