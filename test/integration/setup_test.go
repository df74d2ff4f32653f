package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meddatabridge/pam-bridge/internal/domain/dossier"
	"github.com/meddatabridge/pam-bridge/internal/domain/endpoint"
	"github.com/meddatabridge/pam-bridge/internal/domain/identifier"
	"github.com/meddatabridge/pam-bridge/internal/domain/messagelog"
	"github.com/meddatabridge/pam-bridge/internal/domain/patient"
	"github.com/meddatabridge/pam-bridge/internal/domain/statemachine"
	"github.com/meddatabridge/pam-bridge/internal/domain/structure"
	"github.com/meddatabridge/pam-bridge/internal/domain/venue"
	"github.com/meddatabridge/pam-bridge/internal/platform/db"
)

// testDB holds the shared database infrastructure for integration tests.
// Unlike a multi-tenant bridge this one runs against a single Postgres
// schema (internal/platform/db.ConnMiddleware's doc comment: "scoped by
// juridical-entity foreign keys rather than a per-customer schema"), so
// test isolation comes from truncating tables between tests rather than
// from a schema-per-test strategy.
type testDB struct {
	Pool *pgxpool.Pool
}

var globalDB *testDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	tdb, cleanup, err := setupPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up postgres: %v\n", err)
		os.Exit(1)
	}

	globalDB = tdb
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupPostgres(ctx context.Context) (*testDB, func(), error) {
	connStr, containerCleanup, err := startWithDocker(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("start postgres container: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		containerCleanup()
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		containerCleanup()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	migrator := db.NewMigrator(pool, findMigrationsDir())
	if _, err := migrator.Up(ctx, "public"); err != nil {
		pool.Close()
		containerCleanup()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &testDB{Pool: pool}, func() {
		pool.Close()
		containerCleanup()
	}, nil
}

// findMigrationsDir locates the migrations directory relative to this test
// file: test/integration -> repo root -> migrations.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	repoRoot := filepath.Join(dir, "..", "..")
	return filepath.Join(repoRoot, "migrations")
}

// truncateAll clears every table between tests, in dependency order, so
// each test starts from an empty database without requiring a fresh
// container per test.
func truncateAll(t *testing.T, ctx context.Context) {
	t.Helper()
	tables := []string{
		"message_log_diagnostic", "message_log",
		"scenario_run", "scenario_template",
		"venue", "dossier", "patient",
		"identifier_allocation", "identifier_namespace", "juridical_entity_policy",
		"structure_node",
		"endpoint",
	}
	for _, tbl := range tables {
		if _, err := globalDB.Pool.Exec(ctx, "TRUNCATE TABLE "+tbl+" CASCADE"); err != nil {
			t.Fatalf("truncate %s: %v", tbl, err)
		}
	}
}

// newJuridicalEntity creates the structure node and the four identifier
// namespaces (IPP/NDA/VN/MVT) a juridical entity needs before any patient
// admission can be generated against it.
func newJuridicalEntity(t *testing.T, ctx context.Context, code string) uuid.UUID {
	t.Helper()

	structRepo := structure.NewRepo(globalDB.Pool)
	je := &structure.Node{Kind: structure.KindJuridicalEntity, Code: code, Label: "Test " + code}
	if err := structRepo.Create(ctx, je); err != nil {
		t.Fatalf("create juridical entity: %v", err)
	}

	identRepo := identifier.NewRepo(globalDB.Pool)
	for _, ns := range []struct {
		typ    identifier.NamespaceType
		prefix string
	}{
		{identifier.TypeIPP, code + "-IPP-"},
		{identifier.TypeNDA, code + "-NDA-"},
		{identifier.TypeVN, code + "-VN-"},
		{identifier.TypeMVT, code + "-MVT-"},
	} {
		prefix := ns.prefix
		n := &identifier.Namespace{
			SystemURI:         "urn:bridge:" + string(ns.typ),
			Type:              ns.typ,
			JuridicalEntityID: &je.ID,
			GenerationMode:    identifier.ModeFixedPrefixPattern,
			PrefixPattern:     &prefix,
		}
		if err := identRepo.CreateNamespace(ctx, n); err != nil {
			t.Fatalf("create %s namespace: %v", ns.typ, err)
		}
	}

	return je.ID
}

// newTestPatient creates a minimal valid patient with one primary IPP
// external identifier under the given namespace.
func newTestPatient(t *testing.T, ctx context.Context, ippNamespaceID uuid.UUID, ipp, family string) *patient.Patient {
	t.Helper()
	repo := patient.NewRepo(globalDB.Pool)
	p := &patient.Patient{
		FamilyName:  family,
		GivenNames:  []string{"Jean"},
		BirthDate:   time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
		Sex:         patient.SexMale,
		Reliability: patient.ReliabilityValidated,
		ExternalIdentifiers: []patient.ExternalIdentifier{
			{NamespaceID: ippNamespaceID, Value: ipp, Primary: true},
		},
	}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("create test patient: %v", err)
	}
	return p
}

// newTestDossier creates a dossier for an already-created patient.
func newTestDossier(t *testing.T, ctx context.Context, patientID, juridicalEntityID uuid.UUID, seq string) *dossier.Dossier {
	t.Helper()
	repo := dossier.NewRepo(globalDB.Pool)
	d := &dossier.Dossier{
		PatientID:         patientID,
		JuridicalEntityID: juridicalEntityID,
		SequenceNumber:    seq,
		AdmitTime:         time.Now().UTC(),
		Type:              dossier.TypeHospitalise,
	}
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("create test dossier: %v", err)
	}
	return d
}

// newTestVenue creates an active venue for a dossier with one insert
// movement, the minimum state a movement-state-machine test needs to
// exercise transfer/discharge transitions against.
func newTestVenue(t *testing.T, ctx context.Context, dossierID uuid.UUID, seq string) *venue.Venue {
	t.Helper()
	repo := venue.NewRepo(globalDB.Pool)
	v := &venue.Venue{
		DossierID:      dossierID,
		SequenceNumber: seq,
		Start:          time.Now().UTC(),
		Status:         statemachine.StatusActive,
		Movements: []venue.Movement{
			{Sequence: 1, Timestamp: time.Now().UTC(), Trigger: "A01", Action: venue.MovementInsert, Nature: "ADMISSION"},
		},
	}
	if err := repo.Create(ctx, v); err != nil {
		t.Fatalf("create test venue: %v", err)
	}
	return v
}

// newTestEndpoint creates an MLLP sender endpoint for a juridical entity.
func newTestEndpoint(t *testing.T, ctx context.Context, juridicalEntityID uuid.UUID, name string) *endpoint.Endpoint {
	t.Helper()
	repo := endpoint.NewRepo(globalDB.Pool)
	e := &endpoint.Endpoint{
		Name:              name,
		Kind:              endpoint.KindMLLPSender,
		JuridicalEntityID: juridicalEntityID,
		Host:              "localhost",
		Port:              2575,
		SendingApp:        "BRIDGE",
		SendingFac:        "BRIDGE",
		ReceivingApp:      "GAM",
		ReceivingFac:      "HOSP",
		CreatedAt:         time.Now().UTC(),
	}
	if err := repo.Create(ctx, e); err != nil {
		t.Fatalf("create test endpoint: %v", err)
	}
	return e
}

// newTestMessageLogEntry records one inbound pending entry, the shape
// C7's correlator and C8's pipeline both operate against.
func newTestMessageLogEntry(t *testing.T, ctx context.Context, endpointID uuid.UUID, controlID string) *messagelog.Entry {
	t.Helper()
	repo := messagelog.NewRepo(globalDB.Pool)
	e := &messagelog.Entry{
		ControlID:     controlID,
		Trigger:       "A01",
		Direction:     messagelog.DirectionInbound,
		CorrelationID: uuid.New(),
		Raw:           []byte("MSH|^~\\&|..."),
		Timestamp:     time.Now().UTC(),
		Status:        messagelog.StatusPending,
		EndpointID:    endpointID,
	}
	if err := repo.Create(ctx, e); err != nil {
		t.Fatalf("create test message log entry: %v", err)
	}
	return e
}
