package mssql

import (
	"strings"
	"testing"

	"github.com/ruslano69/mssqldialect/pkg/core/schema"
)

func ownersTable() schema.TableSchema {
	return schema.NewBuilder("dbo", "Owners").
		AddColumn("FId", "INT").Identity(1, 1).
		PrimaryKey("PK_Owners", "FId").
		Build()
}

func ordersTable() schema.TableSchema {
	return schema.NewBuilder("dbo", "Orders").
		AddColumn("FId", "INT").Identity(1, 1).
		AddColumn("FOwnerId", "INT").
		PrimaryKey("PK_Orders", "FId").
		ForeignKey("FK_Orders_Owners", []string{"FOwnerId"}, "Owners", []string{"FId"}).
		Build()
}

// position fails the test when want is missing from script.
func position(t *testing.T, script, want string) int {
	t.Helper()
	i := strings.Index(script, want)
	if i < 0 {
		t.Fatalf("script is missing %q:\n%s", want, script)
	}
	return i
}

func TestDiffCreateOrdersForeignKeysLast(t *testing.T) {
	s := newTestScripter()
	to := &schema.DatabaseSchema{Tables: []schema.TableSchema{ordersTable(), ownersTable()}}

	m, err := s.Diff(&schema.DatabaseSchema{}, to)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	orders := position(t, m.Up, "CREATE TABLE [dbo].[Orders]")
	owners := position(t, m.Up, "CREATE TABLE [dbo].[Owners]")
	fk := position(t, m.Up, "ADD CONSTRAINT [FK_Orders_Owners] FOREIGN KEY([FOwnerId]) REFERENCES [dbo].[Owners]([FId])")
	if fk < orders || fk < owners {
		t.Errorf("foreign key added before both tables exist:\n%s", m.Up)
	}

	dropFK := position(t, m.Down, "ALTER TABLE [dbo].[Orders] DROP CONSTRAINT [FK_Orders_Owners]")
	dropOwners := position(t, m.Down, "DROP TABLE [dbo].[Owners]")
	if dropFK > dropOwners {
		t.Errorf("Down drops Owners before the foreign key:\n%s", m.Down)
	}

	want := []Change{
		{Op: OpCreate, Object: "table", Name: "dbo.Orders"},
		{Op: OpCreate, Object: "table", Name: "dbo.Owners"},
	}
	if len(m.Changes) != len(want) {
		t.Fatalf("Changes = %v, want %v", m.Changes, want)
	}
	for i := range want {
		if m.Changes[i] != want[i] {
			t.Errorf("Changes[%d] = %v, want %v", i, m.Changes[i], want[i])
		}
	}
}

func TestDiffEqualSnapshots(t *testing.T) {
	s := newTestScripter()
	db := &schema.DatabaseSchema{
		Tables: []schema.TableSchema{ordersTable(), ownersTable()},
		Views:  []schema.ViewSchema{{Schema: "dbo", Name: "vOrders", Body: "CREATE VIEW dbo.vOrders AS SELECT FId FROM dbo.Orders"}},
	}
	other := &schema.DatabaseSchema{
		Tables: []schema.TableSchema{ownersTable(), ordersTable()},
		// Whitespace differences in module text are not changes.
		Views: []schema.ViewSchema{{Schema: "DBO", Name: "vorders", Body: "CREATE VIEW dbo.vOrders AS\n  SELECT FId\n  FROM dbo.Orders"}},
	}

	m, err := s.Diff(db, other)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if !m.Empty() || m.Up != "" || m.Down != "" {
		t.Errorf("Diff() = %+v, want an empty migration", m)
	}
}

func TestDiffAlterColumns(t *testing.T) {
	s := newTestScripter()
	from := schema.NewBuilder("dbo", "Items").
		AddColumn("FId", "INT").Identity(1, 1).
		AddColumn("FName", "NVARCHAR(50)").
		AddColumn("FOld", "INT").Nullable().
		AddComputed("FLabel", "[FName]").
		Build()
	to := schema.NewBuilder("dbo", "Items").
		AddColumn("FId", "INT").Identity(1, 1).
		AddColumn("FName", "NVARCHAR(120)").Nullable().
		AddColumn("FNew", "BIT").Default("0").
		AddComputed("FLabel", "[FName]+N'!'").
		Comment("items").
		Build()

	m, err := s.Diff(
		&schema.DatabaseSchema{Tables: []schema.TableSchema{from}},
		&schema.DatabaseSchema{Tables: []schema.TableSchema{to}},
	)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	position(t, m.Up, "ALTER TABLE [dbo].[Items] ALTER COLUMN [FName] NVARCHAR(120) NULL")
	position(t, m.Up, "ALTER TABLE [dbo].[Items] ADD [FNew] BIT NOT NULL DEFAULT (0)")
	dropLabel := position(t, m.Up, "ALTER TABLE [dbo].[Items] DROP COLUMN [FLabel]")
	addLabel := position(t, m.Up, "ALTER TABLE [dbo].[Items] ADD [FLabel] AS ([FName]+N'!')")
	if dropLabel > addLabel {
		t.Errorf("computed column added before the old one is dropped:\n%s", m.Up)
	}
	position(t, m.Up, "ALTER TABLE [dbo].[Items] DROP COLUMN [FOld]")
	position(t, m.Up, "@value = N'items', @level0type = N'SCHEMA'")

	position(t, m.Down, "ALTER TABLE [dbo].[Items] ALTER COLUMN [FName] NVARCHAR(50) NOT NULL")
	position(t, m.Down, "ALTER TABLE [dbo].[Items] ADD [FOld] INT NULL")
	position(t, m.Down, "ALTER TABLE [dbo].[Items] DROP COLUMN [FNew]")

	if strings.Contains(m.Up, "[FId]") {
		t.Errorf("unchanged identity column appears in Up:\n%s", m.Up)
	}
}

func TestDiffDefaultChangeIsAnnotated(t *testing.T) {
	s := newTestScripter()
	from := schema.NewBuilder("dbo", "Items").AddColumn("FQty", "INT").Default("0").Build()
	to := schema.NewBuilder("dbo", "Items").AddColumn("FQty", "INT").Default("1").Build()

	m, err := s.Diff(
		&schema.DatabaseSchema{Tables: []schema.TableSchema{from}},
		&schema.DatabaseSchema{Tables: []schema.TableSchema{to}},
	)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if !strings.HasPrefix(m.Up, "-- default of [dbo].[Items].[FQty] changed") {
		t.Errorf("Up = %q, want a manual-step annotation", m.Up)
	}
	if len(m.Changes) != 1 || m.Changes[0].Op != OpAlter || m.Changes[0].Object != "column" {
		t.Errorf("Changes = %v, want one column alteration", m.Changes)
	}
}

func TestDiffRejectsIdentityChange(t *testing.T) {
	s := newTestScripter()
	from := schema.NewBuilder("dbo", "Items").AddColumn("FId", "INT").Build()
	to := schema.NewBuilder("dbo", "Items").AddColumn("FId", "INT").Identity(1, 1).Build()

	_, err := s.Diff(
		&schema.DatabaseSchema{Tables: []schema.TableSchema{from}},
		&schema.DatabaseSchema{Tables: []schema.TableSchema{to}},
	)
	if err == nil || !strings.Contains(err.Error(), "identity cannot be altered") {
		t.Errorf("Diff() error = %v, want the identity rejection", err)
	}
}

func TestDiffConstraintsAndIndexes(t *testing.T) {
	s := newTestScripter()
	from := schema.NewBuilder("dbo", "Items").
		AddColumn("FId", "INT").
		AddColumn("FCode", "NVARCHAR(20)").
		PrimaryKey("PK_Items", "FId").
		Index("IX_Items_Code", false, "FCode").
		Check("CK_Items_FId", "[FId]>(0)").
		Build()
	to := schema.NewBuilder("dbo", "Items").
		AddColumn("FId", "INT").
		AddColumn("FCode", "NVARCHAR(20)").
		PrimaryKey("PK_Items", "FId", "FCode").
		Index("IX_Items_Code", true, "FCode").
		Check("CK_Items_FId", "\n  [FId]>(0) ").
		Build()

	m, err := s.Diff(
		&schema.DatabaseSchema{Tables: []schema.TableSchema{from}},
		&schema.DatabaseSchema{Tables: []schema.TableSchema{to}},
	)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	dropIdx := position(t, m.Up, "DROP INDEX [IX_Items_Code] ON [dbo].[Items]")
	createIdx := position(t, m.Up, "CREATE UNIQUE INDEX [IX_Items_Code] ON [dbo].[Items]([FCode] ASC)")
	if dropIdx > createIdx {
		t.Errorf("index recreated before the drop:\n%s", m.Up)
	}
	dropPK := position(t, m.Up, "ALTER TABLE [dbo].[Items] DROP CONSTRAINT [PK_Items]")
	addPK := position(t, m.Up, "ALTER TABLE [dbo].[Items] ADD CONSTRAINT [PK_Items] PRIMARY KEY([FId] ASC, [FCode] ASC)")
	if dropPK > addPK {
		t.Errorf("primary key added before the drop:\n%s", m.Up)
	}
	if strings.Contains(m.Up, "CK_Items_FId") {
		t.Errorf("whitespace-only check change appears in Up:\n%s", m.Up)
	}
}

func TestDiffModulesAndSequences(t *testing.T) {
	s := newTestScripter()
	from := &schema.DatabaseSchema{
		Schemas:    []schema.SchemaName{{Name: "dbo"}},
		Views:      []schema.ViewSchema{{Schema: "dbo", Name: "vItems", Body: "CREATE VIEW dbo.vItems AS SELECT 1 AS x"}},
		Procedures: []schema.ProcedureSchema{{Schema: "dbo", Name: "uspOld", Body: "CREATE PROCEDURE dbo.uspOld AS RETURN 0"}},
		Sequences:  []schema.SequenceSchema{{Schema: "dbo", Name: "SeqNo", Type: "INT", Start: 1, Increment: 1}},
	}
	to := &schema.DatabaseSchema{
		Schemas:   []schema.SchemaName{{Name: "dbo"}, {Name: "sales", Comment: "Sales"}},
		Views:     []schema.ViewSchema{{Schema: "dbo", Name: "vItems", Body: "CREATE VIEW dbo.vItems AS SELECT 2 AS x"}},
		Functions: []schema.FunctionSchema{{Schema: "sales", Name: "fnTax", Body: "CREATE FUNCTION sales.fnTax() RETURNS INT AS BEGIN RETURN 20 END"}},
		Sequences: []schema.SequenceSchema{{Schema: "dbo", Name: "SeqNo", Type: "BIGINT", Start: 1, Increment: 1}},
	}

	m, err := s.Diff(from, to)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	createSchema := position(t, m.Up, "CREATE SCHEMA [sales]")
	createFn := position(t, m.Up, "CREATE FUNCTION sales.fnTax()")
	if createSchema > createFn {
		t.Errorf("function created before its schema:\n%s", m.Up)
	}
	position(t, m.Up, "ALTER VIEW dbo.vItems AS SELECT 2 AS x")
	position(t, m.Up, "DROP PROCEDURE [dbo].[uspOld]")
	dropSeq := position(t, m.Up, "DROP SEQUENCE [dbo].[SeqNo]")
	createSeq := position(t, m.Up, "CREATE SEQUENCE [dbo].[SeqNo] AS BIGINT START WITH 1 INCREMENT BY 1")
	if dropSeq > createSeq {
		t.Errorf("sequence recreated before the drop:\n%s", m.Up)
	}

	dropFn := position(t, m.Down, "DROP FUNCTION [sales].[fnTax]")
	dropSchema := position(t, m.Down, "DROP SCHEMA [sales]")
	if dropFn > dropSchema {
		t.Errorf("Down drops the schema before its function:\n%s", m.Down)
	}
	position(t, m.Down, "CREATE PROCEDURE dbo.uspOld AS RETURN 0")
}

func TestChangeString(t *testing.T) {
	c := Change{Op: OpDrop, Object: "view", Name: "dbo.vItems"}
	if got, want := c.String(), "drop view dbo.vItems"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
