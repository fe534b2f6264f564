package ast

import "github.com/ruslano69/mssqldialect/pkg/core/types"

// Source is a row source in FROM / JOIN.
type Source interface {
	Node
	source()
}

// Table is a named table or view, optionally aliased.
type Table struct {
	Name  ObjectName
	Alias string
}

func (t *Table) node()          {}
func (t *Table) source()        {}
func (t *Table) String() string { return "Table: " + t.Name.String() }

// Derived is a subquery used as a row source. Alias is required.
type Derived struct {
	Query *Select
	Alias string
}

func (d *Derived) node()          {}
func (d *Derived) source()        {}
func (d *Derived) String() string { return "Derived: " + d.Alias }

// TableVariableRef reads from a table variable (@t).
type TableVariableRef struct {
	Name  string
	Alias string
}

func (t *TableVariableRef) node()          {}
func (t *TableVariableRef) source()        {}
func (t *TableVariableRef) String() string { return "TableVariableRef: " + t.Name }

// JoinKind enumerates join flavours.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
	RightJoin
	FullJoin
	CrossJoin
)

// Join attaches a source with an ON condition.
type Join struct {
	Kind   JoinKind
	Source Source
	On     Expression
}

// Select is a query. Offset and Limit request row-window paging.
type Select struct {
	Distinct bool
	Top      *int
	Columns  []Expression
	From     []Source
	Joins    []Join
	Where    Expression
	GroupBy  []Expression
	Having   Expression
	OrderBy  []Sort
	Offset   *int
	Limit    *int
}

func (s *Select) node()          {}
func (s *Select) statement()     {}
func (s *Select) String() string { return "Select" }

// Insert adds rows from Values or from Query. IdentityInsert marks an
// insert that supplies explicit identity values.
type Insert struct {
	Table          ObjectName
	Columns        []string
	Values         [][]Expression
	Query          *Select
	IdentityInsert bool
}

func (i *Insert) node()          {}
func (i *Insert) statement()     {}
func (i *Insert) String() string { return "Insert" }

// Assignment is one SET item of an Update.
type Assignment struct {
	Column string
	Value  Expression
}

// Update modifies rows of Table. When From is set the target may be an
// alias declared there.
type Update struct {
	Table ObjectName
	Alias string
	Sets  []Assignment
	From  []Source
	Joins []Join
	Where Expression
}

func (u *Update) node()          {}
func (u *Update) statement()     {}
func (u *Update) String() string { return "Update" }

// Delete removes rows of Table.
type Delete struct {
	Table ObjectName
	Alias string
	From  []Source
	Joins []Join
	Where Expression
}

func (d *Delete) node()          {}
func (d *Delete) statement()     {}
func (d *Delete) String() string { return "Delete" }

// Execute calls a stored procedure. Return receives the procedure's return
// status; when nil the compiler binds a default OUT parameter.
type Execute struct {
	Proc   ObjectName
	Args   []Expression
	Return *Parameter
}

func (e *Execute) node()          {}
func (e *Execute) statement()     {}
func (e *Execute) String() string { return "Execute: " + e.Proc.Name }

// Declaration is one DECLARE item.
type Declaration interface {
	Node
	declaration()
}

// VariableDecl declares a scalar local variable.
type VariableDecl struct {
	Name string
	Type types.DbType
}

func (v *VariableDecl) node()          {}
func (v *VariableDecl) declaration()   {}
func (v *VariableDecl) String() string { return "VariableDecl: " + v.Name }

// TableVariableDecl declares a table variable.
type TableVariableDecl struct {
	Name    string
	Members []TableMember
}

func (t *TableVariableDecl) node()          {}
func (t *TableVariableDecl) declaration()   {}
func (t *TableVariableDecl) String() string { return "TableVariableDecl: " + t.Name }

// Declare introduces local variables.
type Declare struct {
	Items []Declaration
}

func (d *Declare) node()          {}
func (d *Declare) statement()     {}
func (d *Declare) String() string { return "Declare" }

// Assign sets a variable or column: SET target = value.
type Assign struct {
	Target Expression
	Value  Expression
}

func (a *Assign) node()          {}
func (a *Assign) statement()     {}
func (a *Assign) String() string { return "Assign" }

// Return exits a procedure or function, optionally with a value.
type Return struct {
	Value Expression
}

func (r *Return) node()          {}
func (r *Return) statement()     {}
func (r *Return) String() string { return "Return" }

// Block groups statements into BEGIN ... END.
type Block struct {
	Statements []Statement
}

func (b *Block) node()          {}
func (b *Block) statement()     {}
func (b *Block) String() string { return "Block" }

// ElseIf is one ELSE IF branch.
type ElseIf struct {
	Cond Expression
	Then Statement
}

// If is IF (cond) then [ELSE IF ...] [ELSE ...].
type If struct {
	Cond    Expression
	Then    Statement
	ElseIfs []ElseIf
	Else    Statement
}

func (i *If) node()          {}
func (i *If) statement()     {}
func (i *If) String() string { return "If" }

// While loops while Cond holds.
type While struct {
	Cond Expression
	Body Statement
}

func (w *While) node()          {}
func (w *While) statement()     {}
func (w *While) String() string { return "While" }

type Break struct{}

func (b *Break) node()          {}
func (b *Break) statement()     {}
func (b *Break) String() string { return "Break" }

type Continue struct{}

func (c *Continue) node()          {}
func (c *Continue) statement()     {}
func (c *Continue) String() string { return "Continue" }

// AnnotationStyle selects line or block comments.
type AnnotationStyle int

const (
	AnnotationLine AnnotationStyle = iota
	AnnotationBlock
)

// Annotation is a comment emitted into the script.
type Annotation struct {
	Style AnnotationStyle
	Text  string
}

func (a *Annotation) node()          {}
func (a *Annotation) statement()     {}
func (a *Annotation) String() string { return "Annotation" }
