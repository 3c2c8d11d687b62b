package registry

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/riskmap-io/riskmap/internal/errs"
)

func newTestRegistry(t *testing.T) *SQLiteRegistry {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatal(err)
	}
	// In-memory databases are per-connection; keep the pool at one.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	reg := NewSQLiteRegistry(db)
	if err := reg.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestCreateAndGet(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	id, err := reg.Create(ctx, Asset{
		Name: "payments-db", Environment: "production", AssetType: "database",
		BusinessUnit:    "payments",
		ComplianceScope: `["PCI-DSS"]`,
		CustomFields:    `{"data_classification":"confidential","recovery_time_objective":"immediate"}`,
	})
	if err != nil {
		t.Fatal(err)
	}

	a, err := reg.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if a == nil {
		t.Fatal("asset not found after create")
	}
	if a.Name != "payments-db" || a.Environment != "production" {
		t.Errorf("asset = %+v", a)
	}

	meta := a.Metadata()
	if len(meta.ComplianceScope) != 1 || meta.ComplianceScope[0] != "PCI-DSS" {
		t.Errorf("ComplianceScope = %v", meta.ComplianceScope)
	}
	if meta.CustomFields.DataClassification != "confidential" {
		t.Errorf("DataClassification = %q", meta.CustomFields.DataClassification)
	}
}

func TestCreate_RequiresName(t *testing.T) {
	reg := newTestRegistry(t)
	if _, err := reg.Create(context.Background(), Asset{}); !errs.IsValidation(err) {
		t.Errorf("error = %v, want validation", err)
	}
}

func TestExists(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	id, err := reg.Create(ctx, Asset{Name: "web"})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := reg.Exists(ctx, id)
	if err != nil || !ok {
		t.Errorf("Exists(%d) = %v, %v; want true", id, ok, err)
	}
	ok, err = reg.Exists(ctx, id+100)
	if err != nil || ok {
		t.Errorf("Exists(unknown) = %v, %v; want false", ok, err)
	}
}

func TestGetMetadata_NotFound(t *testing.T) {
	reg := newTestRegistry(t)
	if _, err := reg.GetMetadata(context.Background(), 404); !errs.IsNotFound(err) {
		t.Errorf("error = %v, want not-found", err)
	}
}

func TestGetMetadata_MalformedFieldsDegrade(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	id, err := reg.Create(ctx, Asset{
		Name:            "broken",
		ComplianceScope: `not json at all`,
		CustomFields:    `{"truncated`,
	})
	if err != nil {
		t.Fatal(err)
	}

	meta, err := reg.GetMetadata(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.ComplianceScope) != 0 {
		t.Errorf("ComplianceScope = %v, want empty", meta.ComplianceScope)
	}
	if meta.CustomFields.DataClassification != "" {
		t.Errorf("CustomFields = %+v, want zero", meta.CustomFields)
	}
}

func TestList_Filters(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	seed := []Asset{
		{Name: "db1", Environment: "production", AssetType: "database"},
		{Name: "db2", Environment: "staging", AssetType: "database"},
		{Name: "ws1", Environment: "production", AssetType: "workstation"},
	}
	for _, a := range seed {
		if _, err := reg.Create(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	all, err := reg.List(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}

	prod, err := reg.List(ctx, Filter{Environment: "production"})
	if err != nil {
		t.Fatal(err)
	}
	if len(prod) != 2 {
		t.Errorf("production = %d, want 2", len(prod))
	}

	dbs, err := reg.List(ctx, Filter{AssetType: "database", Environment: "staging"})
	if err != nil {
		t.Fatal(err)
	}
	if len(dbs) != 1 || dbs[0].Name != "db2" {
		t.Errorf("staging databases = %v", dbs)
	}
}

func TestCount(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if _, err := reg.Create(ctx, Asset{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := reg.Count(ctx)
	if err != nil || n != 3 {
		t.Errorf("Count = %d, %v; want 3", n, err)
	}
}

func TestLoadSeed(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "assets.yaml")
	content := []byte(`
assets:
  - name: payments-db
    environment: production
    asset_type: database
    business_unit: payments
    compliance_scope: [PCI-DSS, SOX]
    custom_fields:
      data_classification: confidential
      recovery_time_objective: immediate
      revenue_impact_per_hour: "50000"
  - name: dev-box
    environment: development
    asset_type: workstation
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	ids, err := LoadSeed(ctx, reg, path)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want 2 entries", ids)
	}

	meta, err := reg.GetMetadata(ctx, ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.ComplianceScope) != 2 {
		t.Errorf("ComplianceScope = %v, want 2 regimes", meta.ComplianceScope)
	}
	if meta.CustomFields.RecoveryTimeObjective != "immediate" {
		t.Errorf("RecoveryTimeObjective = %q", meta.CustomFields.RecoveryTimeObjective)
	}
	if string(meta.CustomFields.RevenueImpactPerHour) != "50000" {
		t.Errorf("RevenueImpactPerHour = %q", meta.CustomFields.RevenueImpactPerHour)
	}
}

func TestLoadSeed_MissingFile(t *testing.T) {
	reg := newTestRegistry(t)
	if _, err := LoadSeed(context.Background(), reg, "/nonexistent/assets.yaml"); err == nil {
		t.Error("expected error for missing seed file")
	}
}
