package mssql

import (
	"errors"
	"strings"
	"testing"

	"github.com/ruslano69/mssqldialect/pkg/adapters"
	"github.com/ruslano69/mssqldialect/pkg/core/ast"
	"github.com/ruslano69/mssqldialect/pkg/core/schema"
)

const goSep = "\nGO\n"

func newTestScripter() *Scripter {
	return NewScripter(newTestCompiler())
}

var itemsName = ast.Name("Items", "dbo")

func TestScripterCreateTable(t *testing.T) {
	table := schema.NewBuilder("dbo", "Items").
		AddColumn("FId", "INT").Identity(1, 1).
		AddColumn("FName", "NVARCHAR(120)").Nullable().ColumnComment("display name").
		PrimaryKey("PK_Items", "FId").
		Index("IX_Items_FName", false, "FName").
		ForeignKey("FK_Items_Owners", []string{"FId"}, "Owners", []string{"FId"}).
		Check("CK_Items_FId", "[FId]>(0)").
		Comment("catalog items").
		Build()

	got, err := newTestScripter().CreateTable(table)
	if err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}
	want := strings.Join([]string{
		"CREATE TABLE [dbo].[Items] (\n" +
			"  [FId] INT NOT NULL IDENTITY(1, 1),\n" +
			"  [FName] NVARCHAR(120) NULL,\n" +
			"  CONSTRAINT [PK_Items] PRIMARY KEY([FId] ASC),\n" +
			"  CONSTRAINT [CK_Items_FId] CHECK ([FId]>(0))\n" +
			")",
		"CREATE INDEX [IX_Items_FName] ON [dbo].[Items]([FName] ASC)",
		"EXEC sys.sp_addextendedproperty @name = N'MS_Description', @value = N'catalog items', " +
			"@level0type = N'SCHEMA', @level0name = N'dbo', @level1type = N'TABLE', @level1name = N'Items'",
		"EXEC sys.sp_addextendedproperty @name = N'MS_Description', @value = N'display name', " +
			"@level0type = N'SCHEMA', @level0name = N'dbo', @level1type = N'TABLE', @level1name = N'Items', " +
			"@level2type = N'COLUMN', @level2name = N'FName'",
	}, goSep)
	if got != want {
		t.Errorf("CreateTable() =\n%s\nwant\n%s", got, want)
	}
	if strings.Contains(got, "FOREIGN KEY") {
		t.Error("CreateTable() should leave foreign keys to AddForeignKey")
	}
}

func TestScripterColumnDefinitions(t *testing.T) {
	s := newTestScripter()
	tests := []struct {
		name string
		col  schema.ColumnSchema
		want string
	}{
		{
			name: "default",
			col:  schema.ColumnSchema{Name: "FQty", Type: "INT", DefaultValue: "0"},
			want: "ALTER TABLE [dbo].[Items] ADD [FQty] INT NOT NULL DEFAULT (0)",
		},
		{
			name: "identity before default",
			col:  schema.ColumnSchema{Name: "FNo", Type: "bigint", Identity: &schema.IdentitySchema{Start: 10, Increment: 5}},
			want: "ALTER TABLE [dbo].[Items] ADD [FNo] BIGINT NOT NULL IDENTITY(10, 5)",
		},
		{
			name: "computed",
			col:  schema.ColumnSchema{Name: "FLabel", Nullable: true, Computed: &schema.ComputedSchema{Expression: "[FName]+N'!'"}},
			want: "ALTER TABLE [dbo].[Items] ADD [FLabel] AS ([FName]+N'!')",
		},
		{
			name: "declared spelling kept",
			col:  schema.ColumnSchema{Name: "FCode", Type: "VARCHAR(20)", Nullable: true},
			want: "ALTER TABLE [dbo].[Items] ADD [FCode] VARCHAR(20) NULL",
		},
		{
			name: "raw type",
			col:  schema.ColumnSchema{Name: "FDoc", Type: "XML", Nullable: true},
			want: "ALTER TABLE [dbo].[Items] ADD [FDoc] XML NULL",
		},
		{
			name: "json as text",
			col:  schema.ColumnSchema{Name: "FMeta", Type: "JSON", Nullable: true},
			want: "ALTER TABLE [dbo].[Items] ADD [FMeta] NVARCHAR(MAX) NULL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.AddColumn(itemsName, tt.col)
			if err != nil {
				t.Fatalf("AddColumn() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("AddColumn() = %q, want %q", got, tt.want)
			}
		})
	}

	_, err := s.AddColumn(itemsName, schema.ColumnSchema{Name: "FBad", Type: "NVARCHAR("})
	var tme *adapters.TypeMappingError
	if !errors.As(err, &tme) {
		t.Errorf("AddColumn() error = %v, want *TypeMappingError", err)
	}
}

func TestScripterConstraints(t *testing.T) {
	s := newTestScripter()
	fk := schema.ForeignKeySchema{
		Name:             "FK_Items_Owners",
		Columns:          []string{"FOwnerId"},
		ReferenceSchema:  "dbo",
		ReferenceTable:   "Owners",
		ReferenceColumns: []string{"FId"},
	}

	tests := []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{"add foreign key", func() (string, error) { return s.AddForeignKey(itemsName, fk) },
			"ALTER TABLE [dbo].[Items] ADD CONSTRAINT [FK_Items_Owners] FOREIGN KEY([FOwnerId]) REFERENCES [dbo].[Owners]([FId])"},
		{"drop foreign key", func() (string, error) { return s.DropForeignKey(itemsName, "FK_Items_Owners") },
			"ALTER TABLE [dbo].[Items] DROP CONSTRAINT [FK_Items_Owners]"},
		{"add check", func() (string, error) {
			return s.AddCheckConstraint(itemsName, schema.CheckConstraintSchema{Name: "CK_Items_FId", Expression: "[FId]>(0)"})
		}, "ALTER TABLE [dbo].[Items] ADD CONSTRAINT [CK_Items_FId] CHECK ([FId]>(0))"},
		{"drop check", func() (string, error) { return s.DropCheckConstraint(itemsName, "CK_Items_FId") },
			"ALTER TABLE [dbo].[Items] DROP CONSTRAINT [CK_Items_FId]"},
		{"create index", func() (string, error) {
			return s.CreateIndex(itemsName, schema.IndexSchema{
				Name:    "UX_Items_Code",
				Unique:  true,
				Columns: []schema.IndexColumn{{Name: "FCode"}, {Name: "FId", Desc: true}},
			})
		}, "CREATE UNIQUE INDEX [UX_Items_Code] ON [dbo].[Items]([FCode] ASC, [FId] DESC)"},
		{"drop index", func() (string, error) { return s.DropIndex(itemsName, "UX_Items_Code") },
			"DROP INDEX [UX_Items_Code] ON [dbo].[Items]"},
		{"drop column", func() (string, error) { return s.DropColumn(itemsName, "FCode") },
			"ALTER TABLE [dbo].[Items] DROP COLUMN [FCode]"},
		{"drop table", func() (string, error) { return s.DropTable(itemsName) },
			"DROP TABLE [dbo].[Items]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn()
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScripterRename(t *testing.T) {
	s := newTestScripter()
	tests := []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{"column", func() (string, error) { return s.RenameColumn(itemsName, "FName", "FTitle") },
			"EXEC sp_rename N'[dbo].[Items].[FName]', N'FTitle', N'COLUMN'"},
		{"table", func() (string, error) { return s.RenameTable(itemsName, "Goods") },
			"EXEC sp_rename N'[dbo].[Items]', N'Goods'"},
		{"index", func() (string, error) { return s.RenameIndex(itemsName, "IX_Items_FName", "IX_Items_FTitle") },
			"EXEC sp_rename N'[dbo].[Items].[IX_Items_FName]', N'IX_Items_FTitle', N'INDEX'"},
		{"view", func() (string, error) { return s.RenameView(ast.Name("vItems", "dbo"), "vGoods") },
			"EXEC sp_rename N'[dbo].[vItems]', N'vGoods'"},
		{"quote in name", func() (string, error) { return s.RenameTable(ast.Name("O'Brien", "dbo"), "Obrien") },
			"EXEC sp_rename N'[dbo].[O''Brien]', N'Obrien'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn()
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := s.RenameTable(itemsName, ""); err == nil {
		t.Error("RenameTable() should reject an empty new name")
	}
}

func TestScripterCommentColumn(t *testing.T) {
	s := newTestScripter()

	got, err := s.CommentColumn(ast.Name("Items"), "FName", "display name")
	if err != nil {
		t.Fatalf("CommentColumn() error = %v", err)
	}
	batches := strings.Split(got, goSep)
	if len(batches) != 2 {
		t.Fatalf("CommentColumn() has %d batches, want 2:\n%s", len(batches), got)
	}

	probe := batches[0]
	for _, want := range []string{
		"IF (EXISTS(SELECT 1 FROM [sys].[extended_properties] AS [p] WHERE ",
		"[p].[major_id] = OBJECT_ID(N'[dbo].[Items]')",
		"[p].[minor_id] = COLUMNPROPERTY(OBJECT_ID(N'[dbo].[Items]'), N'FName', N'ColumnId')",
		"[p].[name] = N'MS_Description'",
		"EXEC sys.sp_dropextendedproperty @name = N'MS_Description', @level0type = N'SCHEMA', @level0name = N'dbo', " +
			"@level1type = N'TABLE', @level1name = N'Items', @level2type = N'COLUMN', @level2name = N'FName'",
	} {
		if !strings.Contains(probe, want) {
			t.Errorf("probe batch missing %q:\n%s", want, probe)
		}
	}
	if !strings.HasPrefix(batches[1], "EXEC sys.sp_addextendedproperty @name = N'MS_Description', @value = N'display name'") {
		t.Errorf("second batch = %q, want sp_addextendedproperty", batches[1])
	}

	cleared, err := s.CommentColumn(ast.Name("Items"), "FName", "")
	if err != nil {
		t.Fatalf("CommentColumn(\"\") error = %v", err)
	}
	if strings.Contains(cleared, goSep) || strings.Contains(cleared, "sp_addextendedproperty") {
		t.Errorf("CommentColumn(\"\") = %q, want only the guarded drop", cleared)
	}
}

func TestScripterCommentTableAndView(t *testing.T) {
	s := newTestScripter()

	table, err := s.CommentTable(itemsName, "it's ours")
	if err != nil {
		t.Fatalf("CommentTable() error = %v", err)
	}
	if !strings.Contains(table, "[p].[minor_id] = 0") || !strings.Contains(table, "@value = N'it''s ours'") {
		t.Errorf("CommentTable() = %q", table)
	}

	view, err := s.CommentView(ast.Name("vItems", "dbo"), "listing")
	if err != nil {
		t.Fatalf("CommentView() error = %v", err)
	}
	if !strings.Contains(view, "@level1type = N'VIEW', @level1name = N'vItems'") {
		t.Errorf("CommentView() = %q, want VIEW level", view)
	}
}

func TestScripterAlterColumn(t *testing.T) {
	s := newTestScripter()

	got, err := s.AlterColumn(itemsName, schema.ColumnSchema{Name: "FName", Type: "NVARCHAR(200)", Comment: "title"})
	if err != nil {
		t.Fatalf("AlterColumn() error = %v", err)
	}
	if !strings.HasPrefix(got, "ALTER TABLE [dbo].[Items] ALTER COLUMN [FName] NVARCHAR(200) NOT NULL"+goSep+"IF (EXISTS(") {
		t.Errorf("AlterColumn() = %q", got)
	}
	if strings.Count(got, goSep) != 2 {
		t.Errorf("AlterColumn() has %d separators, want 2", strings.Count(got, goSep))
	}

	_, err = s.AlterColumn(itemsName, schema.ColumnSchema{Name: "FLabel", Computed: &schema.ComputedSchema{Expression: "1"}})
	if err == nil {
		t.Error("AlterColumn() should reject a computed column")
	}
}

func TestScripterModules(t *testing.T) {
	s := newTestScripter()
	vItems := ast.Name("vItems", "dbo")

	tests := []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{"create view from definition", func() (string, error) {
			return s.CreateView(schema.ViewSchema{Schema: "dbo", Name: "vItems", Body: "CREATE VIEW [dbo].[vItems] AS SELECT 1 AS x"})
		}, "CREATE VIEW [dbo].[vItems] AS SELECT 1 AS x"},
		{"create view from query", func() (string, error) {
			return s.CreateView(schema.ViewSchema{Schema: "dbo", Name: "vItems", Body: "SELECT 1 AS x"})
		}, "CREATE VIEW [dbo].[vItems] AS\nSELECT 1 AS x"},
		{"alter procedure keeps leading comment", func() (string, error) {
			return s.AlterProcedure(schema.ProcedureSchema{Schema: "dbo", Name: "usp", Body: "-- recalc\ncreate proc dbo.usp AS RETURN 0"})
		}, "-- recalc\nALTER proc dbo.usp AS RETURN 0"},
		{"alter function from create or alter", func() (string, error) {
			return s.AlterFunction(schema.FunctionSchema{Schema: "dbo", Name: "fn", Body: "CREATE OR ALTER FUNCTION dbo.fn() RETURNS INT AS BEGIN RETURN 1 END"})
		}, "ALTER FUNCTION dbo.fn() RETURNS INT AS BEGIN RETURN 1 END"},
		{"drop view", func() (string, error) { return s.DropView(vItems) }, "DROP VIEW [dbo].[vItems]"},
		{"drop procedure", func() (string, error) { return s.DropProcedure(ast.Name("usp", "dbo")) }, "DROP PROCEDURE [dbo].[usp]"},
		{"drop function", func() (string, error) { return s.DropFunction(ast.Name("fn", "dbo")) }, "DROP FUNCTION [dbo].[fn]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn()
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	altered, err := s.AlterView(schema.ViewSchema{Schema: "dbo", Name: "vItems", Body: "CREATE VIEW [dbo].[vItems] AS SELECT 2 AS x", Comment: "two"})
	if err != nil {
		t.Fatalf("AlterView() error = %v", err)
	}
	if !strings.HasPrefix(altered, "ALTER VIEW [dbo].[vItems] AS SELECT 2 AS x"+goSep+"IF (EXISTS(") {
		t.Errorf("AlterView() = %q", altered)
	}

	if _, err := s.CreateFunction(schema.FunctionSchema{Schema: "dbo", Name: "fn", Body: "RETURN 1"}); err == nil {
		t.Error("CreateFunction() should reject a body without its header")
	}
	_, err = s.CreateProcedure(schema.ProcedureSchema{Schema: "dbo", Name: "usp"})
	var mf *adapters.MissingFieldError
	if !errors.As(err, &mf) {
		t.Errorf("CreateProcedure() error = %v, want *MissingFieldError", err)
	}
}

func TestScripterSequence(t *testing.T) {
	s := newTestScripter()
	seq := schema.SequenceSchema{Schema: "dbo", Name: "SeqOrders", Type: "BIGINT", Start: 1000, Increment: 1}

	create, err := s.CreateSequence(seq)
	if err != nil {
		t.Fatalf("CreateSequence() error = %v", err)
	}
	if want := "CREATE SEQUENCE [dbo].[SeqOrders] AS BIGINT START WITH 1000 INCREMENT BY 1"; create != want {
		t.Errorf("CreateSequence() = %q, want %q", create, want)
	}

	restart, err := s.RestartSequence(seq)
	if err != nil {
		t.Fatalf("RestartSequence() error = %v", err)
	}
	if want := "ALTER SEQUENCE [dbo].[SeqOrders] RESTART WITH 1000"; restart != want {
		t.Errorf("RestartSequence() = %q, want %q", restart, want)
	}

	drop, err := s.DropSequence(ast.Name("SeqOrders", "dbo"))
	if err != nil || drop != "DROP SEQUENCE [dbo].[SeqOrders]" {
		t.Errorf("DropSequence() = %q, %v", drop, err)
	}
}

func TestScripterSchema(t *testing.T) {
	s := newTestScripter()

	got, err := s.CreateSchema(schema.SchemaName{Name: "sales", Comment: "Sales"})
	if err != nil {
		t.Fatalf("CreateSchema() error = %v", err)
	}
	want := "CREATE SCHEMA [sales]" + goSep +
		"EXEC sys.sp_addextendedproperty @name = N'MS_Description', @value = N'Sales', @level0type = N'SCHEMA', @level0name = N'sales'"
	if got != want {
		t.Errorf("CreateSchema() = %q, want %q", got, want)
	}

	drop, err := s.DropSchema("sales")
	if err != nil || drop != "DROP SCHEMA [sales]" {
		t.Errorf("DropSchema() = %q, %v", drop, err)
	}
}

func TestScripterAnnotation(t *testing.T) {
	s := newTestScripter()
	got, err := s.Annotation("step 1\r\nstep 2")
	if err != nil {
		t.Fatalf("Annotation() error = %v", err)
	}
	if want := "-- step 1\n-- step 2"; got != want {
		t.Errorf("Annotation() = %q, want %q", got, want)
	}

	var missing *adapters.MissingFieldError
	if _, err := s.Annotation("  "); !errors.As(err, &missing) {
		t.Errorf("Annotation() error = %v, want *MissingFieldError", err)
	}
}

func TestScripterSeedData(t *testing.T) {
	s := newTestScripter()

	got, err := s.SeedData(itemsName, []string{"FId", "FName"}, [][]any{{1, "a"}, {2, nil}}, true)
	if err != nil {
		t.Fatalf("SeedData() error = %v", err)
	}
	batches := strings.Split(got, goSep)
	if len(batches) != 3 {
		t.Fatalf("SeedData() has %d batches, want 3:\n%s", len(batches), got)
	}
	if batches[0] != "SET IDENTITY_INSERT [dbo].[Items] ON" || batches[2] != "SET IDENTITY_INSERT [dbo].[Items] OFF" {
		t.Errorf("SeedData() batches = %q", batches)
	}
	if !strings.HasPrefix(batches[1], "INSERT INTO [dbo].[Items]") || !strings.Contains(batches[1], "N'a'") || !strings.Contains(batches[1], "NULL") {
		t.Errorf("insert batch = %q", batches[1])
	}

	plain, err := s.SeedData(itemsName, []string{"FName"}, [][]any{{"b"}}, false)
	if err != nil {
		t.Fatalf("SeedData() error = %v", err)
	}
	if strings.Contains(plain, "IDENTITY_INSERT") {
		t.Errorf("SeedData(identity=false) = %q", plain)
	}

	if _, err := s.SeedData(itemsName, []string{"FId", "FName"}, [][]any{{1}}, false); err == nil {
		t.Error("SeedData() should reject a short row")
	}
}
