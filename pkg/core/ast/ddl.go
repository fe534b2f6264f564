package ast

import "github.com/ruslano69/mssqldialect/pkg/core/types"

// TableMember is a column or constraint inside CREATE TABLE, ALTER TABLE
// ADD or a table variable declaration.
type TableMember interface {
	Node
	tableMember()
}

// Identity is an auto-increment seed and step.
type Identity struct {
	Start     int64
	Increment int64
}

// ColumnPrimaryKey is an inline PRIMARY KEY on a column.
type ColumnPrimaryKey struct {
	NonClustered bool
}

// ColumnDef declares a column. Computed columns carry an expression and
// ignore Type.
type ColumnDef struct {
	Name       string
	Type       types.DbType
	Nullable   bool
	Identity   *Identity
	PrimaryKey *ColumnPrimaryKey
	Computed   Expression
	Default    Expression
	Check      Expression
}

func (c *ColumnDef) node()          {}
func (c *ColumnDef) tableMember()   {}
func (c *ColumnDef) String() string { return "ColumnDef: " + c.Name }

// KeyColumn is a column of a key or index with its sort direction.
type KeyColumn struct {
	Name string
	Desc bool
}

// PrimaryKeyDef is a table-level PRIMARY KEY constraint.
type PrimaryKeyDef struct {
	Name         string
	Columns      []KeyColumn
	NonClustered bool
}

func (p *PrimaryKeyDef) node()          {}
func (p *PrimaryKeyDef) tableMember()   {}
func (p *PrimaryKeyDef) String() string { return "PrimaryKeyDef: " + p.Name }

// UniqueKeyDef is a table-level UNIQUE constraint.
type UniqueKeyDef struct {
	Name    string
	Columns []KeyColumn
}

func (u *UniqueKeyDef) node()          {}
func (u *UniqueKeyDef) tableMember()   {}
func (u *UniqueKeyDef) String() string { return "UniqueKeyDef: " + u.Name }

// ForeignKeyDef is a FOREIGN KEY ... REFERENCES constraint.
type ForeignKeyDef struct {
	Name             string
	Columns          []string
	ReferenceTable   ObjectName
	ReferenceColumns []string
}

func (f *ForeignKeyDef) node()          {}
func (f *ForeignKeyDef) tableMember()   {}
func (f *ForeignKeyDef) String() string { return "ForeignKeyDef: " + f.Name }

// CheckDef is a table-level CHECK constraint.
type CheckDef struct {
	Name string
	Cond Expression
}

func (c *CheckDef) node()          {}
func (c *CheckDef) tableMember()   {}
func (c *CheckDef) String() string { return "CheckDef: " + c.Name }

type CreateTable struct {
	Name    ObjectName
	Members []TableMember
}

func (c *CreateTable) node()          {}
func (c *CreateTable) statement()     {}
func (c *CreateTable) String() string { return "CreateTable: " + c.Name.Name }

// AlterAction is the single change an AlterTable performs.
type AlterAction interface {
	Node
	alterAction()
}

// AddMembers adds columns and/or constraints.
type AddMembers struct {
	Members []TableMember
}

func (a *AddMembers) node()          {}
func (a *AddMembers) alterAction()   {}
func (a *AddMembers) String() string { return "AddMembers" }

type DropColumn struct {
	Name string
}

func (d *DropColumn) node()          {}
func (d *DropColumn) alterAction()   {}
func (d *DropColumn) String() string { return "DropColumn: " + d.Name }

type DropConstraint struct {
	Name string
}

func (d *DropConstraint) node()          {}
func (d *DropConstraint) alterAction()   {}
func (d *DropConstraint) String() string { return "DropConstraint: " + d.Name }

// AlterColumn changes the type and nullability of a column.
type AlterColumn struct {
	Name     string
	Type     types.DbType
	Nullable bool
}

func (a *AlterColumn) node()          {}
func (a *AlterColumn) alterAction()   {}
func (a *AlterColumn) String() string { return "AlterColumn: " + a.Name }

type AlterTable struct {
	Name   ObjectName
	Action AlterAction
}

func (a *AlterTable) node()          {}
func (a *AlterTable) statement()     {}
func (a *AlterTable) String() string { return "AlterTable: " + a.Name.Name }

type DropTable struct {
	Name ObjectName
}

func (d *DropTable) node()          {}
func (d *DropTable) statement()     {}
func (d *DropTable) String() string { return "DropTable: " + d.Name.Name }

type CreateIndex struct {
	Name      string
	Table     ObjectName
	Columns   []KeyColumn
	Unique    bool
	Clustered bool
}

func (c *CreateIndex) node()          {}
func (c *CreateIndex) statement()     {}
func (c *CreateIndex) String() string { return "CreateIndex: " + c.Name }

type DropIndex struct {
	Table ObjectName
	Name  string
}

func (d *DropIndex) node()          {}
func (d *DropIndex) statement()     {}
func (d *DropIndex) String() string { return "DropIndex: " + d.Name }

// ViewDef is shared by CreateView and AlterView.
type ViewDef struct {
	Name ObjectName
	Body *Select
}

type CreateView struct{ ViewDef }

func (c *CreateView) node()          {}
func (c *CreateView) statement()     {}
func (c *CreateView) String() string { return "CreateView: " + c.Name.Name }

type AlterView struct{ ViewDef }

func (a *AlterView) node()          {}
func (a *AlterView) statement()     {}
func (a *AlterView) String() string { return "AlterView: " + a.Name.Name }

type DropView struct {
	Name ObjectName
}

func (d *DropView) node()          {}
func (d *DropView) statement()     {}
func (d *DropView) String() string { return "DropView: " + d.Name.Name }

// ProcedureParam declares a stored procedure parameter.
type ProcedureParam struct {
	Name      string
	Type      types.DbType
	Default   Expression
	Direction Direction
}

// ProcedureDef is shared by CreateProcedure and AlterProcedure.
type ProcedureDef struct {
	Name   ObjectName
	Params []ProcedureParam
	Body   Statement
}

type CreateProcedure struct{ ProcedureDef }

func (c *CreateProcedure) node()          {}
func (c *CreateProcedure) statement()     {}
func (c *CreateProcedure) String() string { return "CreateProcedure: " + c.Name.Name }

type AlterProcedure struct{ ProcedureDef }

func (a *AlterProcedure) node()          {}
func (a *AlterProcedure) statement()     {}
func (a *AlterProcedure) String() string { return "AlterProcedure: " + a.Name.Name }

type DropProcedure struct {
	Name ObjectName
}

func (d *DropProcedure) node()          {}
func (d *DropProcedure) statement()     {}
func (d *DropProcedure) String() string { return "DropProcedure: " + d.Name.Name }

// FunctionParam declares a function parameter.
type FunctionParam struct {
	Name    string
	Type    types.DbType
	Default Expression
}

// FunctionDef is shared by CreateFunction and AlterFunction. A function
// returns either a scalar (Returns) or a table variable (ReturnsTable).
type FunctionDef struct {
	Name         ObjectName
	Params       []FunctionParam
	Returns      *types.DbType
	ReturnsTable *TableVariableDecl
	Body         Statement
}

type CreateFunction struct{ FunctionDef }

func (c *CreateFunction) node()          {}
func (c *CreateFunction) statement()     {}
func (c *CreateFunction) String() string { return "CreateFunction: " + c.Name.Name }

type AlterFunction struct{ FunctionDef }

func (a *AlterFunction) node()          {}
func (a *AlterFunction) statement()     {}
func (a *AlterFunction) String() string { return "AlterFunction: " + a.Name.Name }

type DropFunction struct {
	Name ObjectName
}

func (d *DropFunction) node()          {}
func (d *DropFunction) statement()     {}
func (d *DropFunction) String() string { return "DropFunction: " + d.Name.Name }

// CreateSequence requires Type. A zero Increment renders as 1.
type CreateSequence struct {
	Name      ObjectName
	Type      *types.DbType
	Start     int64
	Increment int64
}

func (c *CreateSequence) node()          {}
func (c *CreateSequence) statement()     {}
func (c *CreateSequence) String() string { return "CreateSequence: " + c.Name.Name }

type DropSequence struct {
	Name ObjectName
}

func (d *DropSequence) node()          {}
func (d *DropSequence) statement()     {}
func (d *DropSequence) String() string { return "DropSequence: " + d.Name.Name }

type CreateDatabase struct {
	Name    string
	Collate string
}

func (c *CreateDatabase) node()          {}
func (c *CreateDatabase) statement()     {}
func (c *CreateDatabase) String() string { return "CreateDatabase: " + c.Name }

type AlterDatabase struct {
	Name    string
	Collate string
}

func (a *AlterDatabase) node()          {}
func (a *AlterDatabase) statement()     {}
func (a *AlterDatabase) String() string { return "AlterDatabase: " + a.Name }

type DropDatabase struct {
	Name string
}

func (d *DropDatabase) node()          {}
func (d *DropDatabase) statement()     {}
func (d *DropDatabase) String() string { return "DropDatabase: " + d.Name }
