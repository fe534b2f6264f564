package schema

import (
	"errors"
	"path/filepath"
	"testing"
)

func itemsTable() TableSchema {
	return NewBuilder("dbo", "Items").
		AddColumn("FId", "INT").Identity(1, 1).
		AddColumn("FName", "NVARCHAR(120)").Nullable().ColumnComment("display name").
		AddColumn("FOwnerId", "INT").Nullable().
		AddComputed("FLabel", "([FName]+'!')").
		PrimaryKey("PK_Items", "FId").
		Index("IX_Items_FName", false, "FName").
		ForeignKey("FK_Items_Owners", []string{"FOwnerId"}, "Owners", []string{"FId"}).
		Check("CK_Items_FId", "([FId]>(0))").
		Comment("catalog items").
		Build()
}

func ownersTable() TableSchema {
	return NewBuilder("dbo", "Owners").
		AddColumn("FId", "INT").
		PrimaryKey("PK_Owners", "FId").
		Build()
}

func TestBuilder(t *testing.T) {
	b := NewBuilder("dbo", "Items").
		AddColumn("FId", "INT").Identity(1, 1).
		AddColumn("FName", "NVARCHAR(120)").Nullable().Default("N''")

	if b.ColumnCount() != 2 {
		t.Errorf("ColumnCount() = %d, want 2", b.ColumnCount())
	}
	if b.HasPrimaryKey() {
		t.Error("HasPrimaryKey() = true before PrimaryKey()")
	}

	table := b.PrimaryKey("PK_Items", "FId").Build()
	if table.Columns[0].Identity == nil || *table.Columns[0].Identity != (IdentitySchema{Start: 1, Increment: 1}) {
		t.Errorf("Columns[0].Identity = %+v, want {1 1}", table.Columns[0].Identity)
	}
	if !table.Columns[1].Nullable || table.Columns[1].DefaultValue != "N''" {
		t.Errorf("Columns[1] = %+v, want nullable with default", table.Columns[1])
	}

	// Build returns a copy.
	b.AddColumn("FExtra", "INT")
	if len(table.Columns) != 2 {
		t.Errorf("built table changed after builder use: %d columns", len(table.Columns))
	}

	b.Reset()
	if b.ColumnCount() != 0 || b.HasPrimaryKey() {
		t.Error("Reset() should clear columns and keys")
	}
}

func TestBuilderModifiersWithoutColumn(t *testing.T) {
	table := NewBuilder("dbo", "Empty").Nullable().Identity(1, 1).Default("0").Build()
	if len(table.Columns) != 0 {
		t.Errorf("len(Columns) = %d, want 0", len(table.Columns))
	}
}

func TestLookups(t *testing.T) {
	db := &DatabaseSchema{Name: "Shop", Tables: []TableSchema{itemsTable(), ownersTable()}}

	if db.Table("", "items") == nil {
		t.Error("Table(\"\", \"items\") should match case-insensitively")
	}
	if db.Table("sales", "Items") != nil {
		t.Error("Table(\"sales\", \"Items\") should not match dbo.Items")
	}

	items := db.Table("dbo", "Items")
	if items.Column("fname") == nil {
		t.Error("Column(\"fname\") = nil")
	}
	if items.Index("IX_Items_FName") == nil || items.ForeignKey("FK_Items_Owners") == nil || items.CheckConstraint("CK_Items_FId") == nil {
		t.Error("constraint lookups should find builder-added constraints")
	}
	if got := items.FullName(); got != "dbo.Items" {
		t.Errorf("FullName() = %q, want %q", got, "dbo.Items")
	}
}

func TestValidateTable(t *testing.T) {
	v := NewValidator()

	valid := itemsTable()
	if err := v.ValidateTable(&valid); err != nil {
		t.Fatalf("ValidateTable() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*TableSchema)
	}{
		{"empty name", func(t *TableSchema) { t.Name = "" }},
		{"no columns", func(t *TableSchema) { t.Columns = nil }},
		{"duplicate column", func(t *TableSchema) { t.Columns = append(t.Columns, ColumnSchema{Name: "fid", Type: "INT"}) }},
		{"missing type", func(t *TableSchema) { t.Columns[1].Type = "" }},
		{"zero increment", func(t *TableSchema) { t.Columns[0].Identity.Increment = 0 }},
		{"pk unknown column", func(t *TableSchema) { t.PrimaryKey.Columns = []string{"Nope"} }},
		{"index without columns", func(t *TableSchema) { t.Indexes[0].Columns = nil }},
		{"fk mismatch", func(t *TableSchema) { t.ForeignKeys[0].ReferenceColumns = nil }},
		{"duplicate constraint", func(t *TableSchema) { t.CheckConstraints[0].Name = "IX_Items_FName" }},
		{"empty check", func(t *TableSchema) { t.CheckConstraints[0].Expression = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := itemsTable()
			tt.mutate(&table)
			err := v.ValidateTable(&table)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("ValidateTable() error = %v, want *ValidationError", err)
			}
		})
	}
}

func TestValidateDatabase(t *testing.T) {
	v := NewValidator()

	db := &DatabaseSchema{Name: "Shop", Tables: []TableSchema{itemsTable(), ownersTable()}}
	if err := v.ValidateDatabase(db); err != nil {
		t.Fatalf("ValidateDatabase() error = %v", err)
	}

	missing := &DatabaseSchema{Name: "Shop", Tables: []TableSchema{itemsTable()}}
	if err := v.ValidateDatabase(missing); err == nil {
		t.Error("ValidateDatabase() should fail when the referenced table is absent")
	}

	foreign := itemsTable()
	foreign.ForeignKeys[0].ReferenceSchema = "crm"
	partial := &DatabaseSchema{Name: "Shop", Tables: []TableSchema{foreign}}
	if err := v.ValidateDatabase(partial); err != nil {
		t.Errorf("ValidateDatabase() error = %v, want nil for a schema outside the snapshot", err)
	}

	dup := &DatabaseSchema{Name: "Shop", Tables: []TableSchema{ownersTable(), ownersTable()}}
	if err := v.ValidateDatabase(dup); err == nil {
		t.Error("ValidateDatabase() should reject duplicate tables")
	}
}

func TestSnapshotFile(t *testing.T) {
	db := &DatabaseSchema{
		Name:      "Shop",
		Collation: "Cyrillic_General_CI_AS",
		Schemas:   []SchemaName{{Name: "dbo"}},
		Tables:    []TableSchema{itemsTable(), ownersTable()},
		Views:     []ViewSchema{{Schema: "dbo", Name: "vItems", Body: "CREATE VIEW vItems AS SELECT 1 AS x"}},
		Sequences: []SequenceSchema{{Schema: "dbo", Name: "SeqOrders", Type: "BIGINT", Start: 1, Increment: 1}},
	}

	path := filepath.Join(t.TempDir(), "shop.yaml")
	if err := SaveFile(path, db); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	want, err := Fingerprint(db)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	got, err := Fingerprint(loaded)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	if got != want {
		t.Errorf("Fingerprint(loaded) = %x, want %x", got, want)
	}

	loaded.Tables[0].Columns[1].Nullable = false
	changed, _ := Fingerprint(loaded)
	if changed == want {
		t.Error("Fingerprint() should change when a column changes")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile() should fail for a missing file")
	}
}
