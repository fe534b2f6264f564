package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/ruslano69/mssqldialect/pkg/adapters/base"
	"github.com/ruslano69/mssqldialect/pkg/adapters/mssql"
	"github.com/ruslano69/mssqldialect/pkg/core/schema"
)

func TestSplitBatches(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{"single", "SELECT 1", []string{"SELECT 1"}},
		{"separated", "CREATE SCHEMA [s]\nGO\nCREATE TABLE [s].[t] ([a] INT NOT NULL)\nGO\n", []string{
			"CREATE SCHEMA [s]", "CREATE TABLE [s].[t] ([a] INT NOT NULL)",
		}},
		{"case and blanks", "SELECT 1\r\n  go  \r\nSELECT 2", []string{"SELECT 1", "SELECT 2"}},
		{"empty batches", "GO\n\nGO\nSELECT 1\nGO\nGO", []string{"SELECT 1"}},
		{"go inside a line", "SELECT 'GO' AS x -- GO on\nGO", []string{"SELECT 'GO' AS x -- GO on"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitBatches(tt.script)
			if len(got) != len(tt.want) {
				t.Fatalf("splitBatches() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("splitBatches()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func testSnapshot() *schema.DatabaseSchema {
	return &schema.DatabaseSchema{
		Name: "Shop",
		Tables: []schema.TableSchema{
			schema.NewBuilder("dbo", "Orders").
				AddColumn("FId", "INT").
				AddColumn("FOwnerId", "INT").
				ForeignKey("FK_Orders_Owners", []string{"FOwnerId"}, "Owners", []string{"FId"}).
				Build(),
			schema.NewBuilder("dbo", "Owners").
				AddColumn("FId", "INT").
				PrimaryKey("PK_Owners", "FId").
				Build(),
		},
	}
}

func TestWriteCreateScript(t *testing.T) {
	var buf bytes.Buffer
	if err := writeCreateScript(&buf, mssql.New(mssql.Options{}), testSnapshot(), nil); err != nil {
		t.Fatalf("writeCreateScript() error = %v", err)
	}

	batches := splitBatches(buf.String())
	if len(batches) != 3 {
		t.Fatalf("script has %d batches, want 3:\n%s", len(batches), buf.String())
	}
	if !strings.HasPrefix(batches[0], "CREATE TABLE [dbo].[Orders]") ||
		!strings.HasPrefix(batches[1], "CREATE TABLE [dbo].[Owners]") ||
		!strings.Contains(batches[2], "FOREIGN KEY([FOwnerId]) REFERENCES [dbo].[Owners]([FId])") {
		t.Errorf("unexpected script:\n%s", buf.String())
	}

	buf.Reset()
	if err := writeCreateScript(&buf, mssql.New(mssql.Options{}), testSnapshot(), []string{"dbo.owners"}); err != nil {
		t.Fatalf("writeCreateScript() error = %v", err)
	}
	if strings.Contains(buf.String(), "Orders") {
		t.Errorf("filtered script mentions Orders:\n%s", buf.String())
	}

	if err := writeCreateScript(&buf, mssql.New(mssql.Options{}), testSnapshot(), []string{"Nope"}); err == nil {
		t.Error("writeCreateScript() error = nil for an unknown table")
	}
}

func TestResolveSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Shop.yaml")
	if err := schema.SaveFile(path, testSnapshot()); err != nil {
		t.Fatal(err)
	}
	a := &app{config: DefaultConfig(), dialect: mssql.New(mssql.Options{})}

	d, err := a.resolve(context.Background(), path)
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if d.Name != "Shop" || len(d.Tables) != 2 {
		t.Errorf("resolve() = %+v", d)
	}

	if _, err := a.resolve(context.Background(), "cache:Shop"); err == nil {
		t.Error("resolve(cache:) error = nil with the cache disabled")
	}
	a.config.Database.DSN = ""
	if _, err := a.resolve(context.Background(), "db:Shop"); err == nil {
		t.Error("resolve(db:) error = nil without a DSN")
	}
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	s := mssql.New(mssql.Options{}).Scripter()

	m, err := s.Diff(&schema.DatabaseSchema{}, testSnapshot())
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	var buf bytes.Buffer
	printSummary(&buf, m)
	want := "  + table dbo.Orders\n  + table dbo.Owners\n2 to create, 0 to alter, 0 to drop\n"
	if buf.String() != want {
		t.Errorf("printSummary() = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	printSummary(&buf, &mssql.Migration{})
	if buf.String() != "no differences\n" {
		t.Errorf("printSummary() = %q, want %q", buf.String(), "no differences\n")
	}
}

func newMockConn(t *testing.T) (*mssql.Conn, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sc, err := db.Conn(context.Background())
	if err != nil {
		t.Fatalf("db.Conn() error = %v", err)
	}
	conn := mssql.NewConn(sc, 0, base.MSSQLPolicy(), zerolog.Nop())
	t.Cleanup(func() { conn.Close() })
	return conn, mock
}

func TestApplyBatchesCommits(t *testing.T) {
	conn, mock := newMockConn(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE SCHEMA \[s\]`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE \[s\]\.\[t\]`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := applyBatches(context.Background(), conn, []string{"CREATE SCHEMA [s]", "CREATE TABLE [s].[t] ([a] INT NOT NULL)"})
	if err != nil {
		t.Fatalf("applyBatches() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestApplyBatchesRollsBack(t *testing.T) {
	conn, mock := newMockConn(t)
	boom := errors.New("there is already an object named t")

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE SCHEMA \[s\]`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE \[s\]\.\[t\]`).WillReturnError(boom)
	mock.ExpectRollback()

	err := applyBatches(context.Background(), conn, []string{"CREATE SCHEMA [s]", "CREATE TABLE [s].[t] ([a] INT NOT NULL)", "SELECT 1"})
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "batch 2") {
		t.Errorf("applyBatches() error = %v, want batch 2 to fail with the driver error", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestResolveRejectsInvalidSnapshot(t *testing.T) {
	d := testSnapshot()
	d.Tables[0].ForeignKeys[0].ReferenceColumns = []string{"FNope"}
	path := filepath.Join(t.TempDir(), "Broken.yaml")
	if err := schema.SaveFile(path, d); err != nil {
		t.Fatal(err)
	}
	a := &app{config: DefaultConfig(), dialect: mssql.New(mssql.Options{})}

	_, err := a.resolve(context.Background(), path)
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("resolve() error = %v, want a ValidationError", err)
	}
}
