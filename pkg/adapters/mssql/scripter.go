package mssql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ruslano69/mssqldialect/pkg/adapters"
	"github.com/ruslano69/mssqldialect/pkg/core/ast"
	"github.com/ruslano69/mssqldialect/pkg/core/schema"
	"github.com/ruslano69/mssqldialect/pkg/core/types"
)

// Scripter renders migration scripts from schema descriptions. Methods
// are pure; statements that must run in separate server batches are
// joined with the policy's batch separator.
type Scripter struct {
	c *Compiler
}

// NewScripter creates a scripter rendering through c.
func NewScripter(c *Compiler) *Scripter {
	return &Scripter{c: c}
}

func (s *Scripter) compile(stmt ast.Statement) (string, error) {
	out, err := s.c.Compile(stmt)
	if err != nil {
		return "", err
	}
	return out.SQL(), nil
}

// join drops empty batches.
func (s *Scripter) join(batches ...string) string {
	kept := batches[:0:0]
	for _, b := range batches {
		if b != "" {
			kept = append(kept, b)
		}
	}
	return strings.Join(kept, s.c.policy.BatchSeparator)
}

func tableName(t schema.TableSchema) ast.ObjectName {
	return ast.Name(t.Name, t.Schema)
}

// columnType keeps the declared spelling when the logical type would
// render differently (VARCHAR, DATETIME, ...), so a re-read of the
// created table reports the same type text. JSON documents always render
// as their text storage.
func columnType(col schema.ColumnSchema) (types.DbType, error) {
	t, err := ParseSQLSyntax(col.Type)
	if err != nil {
		return types.DbType{}, fmt.Errorf("column %s: %w", col.Name, err)
	}
	if t.Kind == types.KindRaw || t.Kind == types.KindJSON {
		return t, nil
	}
	canonical, err := ToSQLSyntax(t)
	if err != nil || !strings.EqualFold(baseName(canonical), strings.TrimSpace(baseName(col.Type))) {
		return types.Raw(strings.TrimSpace(col.Type)), nil
	}
	return t, nil
}

func columnDef(col schema.ColumnSchema) (*ast.ColumnDef, error) {
	def := &ast.ColumnDef{Name: col.Name, Nullable: col.Nullable}
	if col.Computed != nil {
		def.Computed = ast.RawSQL(col.Computed.Expression)
		return def, nil
	}
	t, err := columnType(col)
	if err != nil {
		return nil, err
	}
	def.Type = t
	if id := col.Identity; id != nil {
		def.Identity = &ast.Identity{Start: id.Start, Increment: id.Increment}
	}
	if col.DefaultValue != "" {
		def.Default = ast.RawSQL(col.DefaultValue)
	}
	return def, nil
}

func primaryKeyDef(pk *schema.PrimaryKeySchema) *ast.PrimaryKeyDef {
	cols := make([]ast.KeyColumn, len(pk.Columns))
	for i, c := range pk.Columns {
		cols[i] = ast.KeyColumn{Name: c}
	}
	return &ast.PrimaryKeyDef{Name: pk.Name, Columns: cols, NonClustered: pk.NonClustered}
}

func foreignKeyDef(fk schema.ForeignKeySchema) *ast.ForeignKeyDef {
	return &ast.ForeignKeyDef{
		Name:             fk.Name,
		Columns:          fk.Columns,
		ReferenceTable:   ast.Name(fk.ReferenceTable, fk.ReferenceSchema),
		ReferenceColumns: fk.ReferenceColumns,
	}
}

func checkDef(ck schema.CheckConstraintSchema) *ast.CheckDef {
	return &ast.CheckDef{Name: ck.Name, Cond: ast.RawSQL(ck.Expression)}
}

// CreateTable renders the table with its columns, primary key and check
// constraints, then its indexes and comments. Foreign keys are left to
// AddForeignKey so tables can be created in any order.
func (s *Scripter) CreateTable(t schema.TableSchema) (string, error) {
	name := tableName(t)
	members := make([]ast.TableMember, 0, len(t.Columns)+len(t.CheckConstraints)+1)
	for _, col := range t.Columns {
		def, err := columnDef(col)
		if err != nil {
			return "", fmt.Errorf("create table %s: %w", t.FullName(), err)
		}
		members = append(members, def)
	}
	if t.PrimaryKey != nil {
		members = append(members, primaryKeyDef(t.PrimaryKey))
	}
	for _, ck := range t.CheckConstraints {
		members = append(members, checkDef(ck))
	}

	create, err := s.compile(&ast.CreateTable{Name: name, Members: members})
	if err != nil {
		return "", err
	}
	batches := []string{create}
	for _, idx := range t.Indexes {
		sql, err := s.CreateIndex(name, idx)
		if err != nil {
			return "", err
		}
		batches = append(batches, sql)
	}

	table := s.property(name, "TABLE")
	batches = append(batches, s.addProperty(table, t.Comment))
	for _, col := range t.Columns {
		batches = append(batches, s.addProperty(table.child("COLUMN", col.Name), col.Comment))
	}
	if pk := t.PrimaryKey; pk != nil {
		batches = append(batches, s.addProperty(table.child("CONSTRAINT", pk.Name), pk.Comment))
	}
	for _, ck := range t.CheckConstraints {
		batches = append(batches, s.addProperty(table.child("CONSTRAINT", ck.Name), ck.Comment))
	}
	return s.join(batches...), nil
}

// AlterTable renders the changes that turn from into to. Both must
// describe the same table.
func (s *Scripter) AlterTable(from, to schema.TableSchema) (string, error) {
	var p plan
	if err := s.alterTable(&p, from, to); err != nil {
		return "", err
	}
	return s.join(p.statements()...), nil
}

func (s *Scripter) DropTable(name ast.ObjectName) (string, error) {
	return s.compile(&ast.DropTable{Name: name})
}

// AddColumn adds col and its comment.
func (s *Scripter) AddColumn(table ast.ObjectName, col schema.ColumnSchema) (string, error) {
	def, err := columnDef(col)
	if err != nil {
		return "", err
	}
	sql, err := s.compile(&ast.AlterTable{Name: table, Action: &ast.AddMembers{Members: []ast.TableMember{def}}})
	if err != nil {
		return "", err
	}
	return s.join(sql, s.addProperty(s.property(table, "TABLE").child("COLUMN", col.Name), col.Comment)), nil
}

// AlterColumn changes type and nullability, then replaces the comment.
// Computed columns cannot be altered in place.
func (s *Scripter) AlterColumn(table ast.ObjectName, col schema.ColumnSchema) (string, error) {
	if col.Computed != nil {
		return "", fmt.Errorf("column %s: computed columns must be dropped and added", col.Name)
	}
	t, err := columnType(col)
	if err != nil {
		return "", err
	}
	sql, err := s.compile(&ast.AlterTable{
		Name:   table,
		Action: &ast.AlterColumn{Name: col.Name, Type: t, Nullable: col.Nullable},
	})
	if err != nil {
		return "", err
	}
	comment, err := s.CommentColumn(table, col.Name, col.Comment)
	if err != nil {
		return "", err
	}
	return s.join(sql, comment), nil
}

func (s *Scripter) DropColumn(table ast.ObjectName, name string) (string, error) {
	return s.compile(&ast.AlterTable{Name: table, Action: &ast.DropColumn{Name: name}})
}

// rename renders sp_rename. target is the quoted current name; kind is
// empty for objects.
func (s *Scripter) rename(target, newName, kind string) (string, error) {
	if newName == "" {
		return "", &adapters.MissingFieldError{Node: "rename " + target, Field: "NewName"}
	}
	sql := "EXEC sp_rename " + StringLiteral(target) + ", " + StringLiteral(newName)
	if kind != "" {
		sql += ", " + StringLiteral(kind)
	}
	return sql, nil
}

func (s *Scripter) RenameColumn(table ast.ObjectName, name, newName string) (string, error) {
	return s.rename(s.c.policy.QuoteObject(table)+"."+s.c.policy.Quote(name), newName, "COLUMN")
}

func (s *Scripter) RenameTable(name ast.ObjectName, newName string) (string, error) {
	return s.rename(s.c.policy.QuoteObject(name), newName, "")
}

func (s *Scripter) RenameIndex(table ast.ObjectName, name, newName string) (string, error) {
	return s.rename(s.c.policy.QuoteObject(table)+"."+s.c.policy.Quote(name), newName, "INDEX")
}

func (s *Scripter) RenameView(name ast.ObjectName, newName string) (string, error) {
	return s.rename(s.c.policy.QuoteObject(name), newName, "")
}

func (s *Scripter) AddForeignKey(table ast.ObjectName, fk schema.ForeignKeySchema) (string, error) {
	sql, err := s.compile(&ast.AlterTable{Name: table, Action: &ast.AddMembers{Members: []ast.TableMember{foreignKeyDef(fk)}}})
	if err != nil {
		return "", err
	}
	return s.join(sql, s.addProperty(s.property(table, "TABLE").child("CONSTRAINT", fk.Name), fk.Comment)), nil
}

func (s *Scripter) AddCheckConstraint(table ast.ObjectName, ck schema.CheckConstraintSchema) (string, error) {
	sql, err := s.compile(&ast.AlterTable{Name: table, Action: &ast.AddMembers{Members: []ast.TableMember{checkDef(ck)}}})
	if err != nil {
		return "", err
	}
	return s.join(sql, s.addProperty(s.property(table, "TABLE").child("CONSTRAINT", ck.Name), ck.Comment)), nil
}

func (s *Scripter) DropForeignKey(table ast.ObjectName, name string) (string, error) {
	return s.compile(&ast.AlterTable{Name: table, Action: &ast.DropConstraint{Name: name}})
}

func (s *Scripter) DropCheckConstraint(table ast.ObjectName, name string) (string, error) {
	return s.compile(&ast.AlterTable{Name: table, Action: &ast.DropConstraint{Name: name}})
}

func (s *Scripter) CreateIndex(table ast.ObjectName, idx schema.IndexSchema) (string, error) {
	cols := make([]ast.KeyColumn, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = ast.KeyColumn{Name: c.Name, Desc: c.Desc}
	}
	sql, err := s.compile(&ast.CreateIndex{
		Name:      idx.Name,
		Table:     table,
		Columns:   cols,
		Unique:    idx.Unique,
		Clustered: idx.Clustered,
	})
	if err != nil {
		return "", err
	}
	return s.join(sql, s.addProperty(s.property(table, "TABLE").child("INDEX", idx.Name), idx.Comment)), nil
}

func (s *Scripter) DropIndex(table ast.ObjectName, name string) (string, error) {
	return s.compile(&ast.DropIndex{Table: table, Name: name})
}

// moduleHead finds the CREATE or ALTER keyword of a module definition as
// returned by sp_helptext.
var moduleHead = regexp.MustCompile(`(?i)\b(CREATE(?:\s+OR\s+ALTER)?|ALTER)(\s+)(VIEW|PROC|PROCEDURE|FUNCTION)\b`)

// module renders a view, procedure or function from its stored text. A
// full definition has its leading verb replaced; a bare view or
// procedure body gets a header. Functions need their full definition
// because the header carries the return type.
func (s *Scripter) module(verb, kind string, name ast.ObjectName, body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", &adapters.MissingFieldError{Node: strings.ToLower(kind) + " " + name.Name, Field: "Body"}
	}
	if m := moduleHead.FindStringSubmatchIndex(body); m != nil {
		return body[:m[2]] + verb + body[m[3]:], nil
	}
	if kind == "FUNCTION" {
		return "", fmt.Errorf("function %s: body must be a full CREATE FUNCTION definition", name.Name)
	}
	return verb + " " + kind + " " + s.c.policy.QuoteObject(name) + " AS\n" + body, nil
}

// CreateView renders the view followed by its comment. The definition
// must start its own batch.
func (s *Scripter) CreateView(v schema.ViewSchema) (string, error) {
	name := ast.Name(v.Name, v.Schema)
	sql, err := s.module("CREATE", "VIEW", name, v.Body)
	if err != nil {
		return "", err
	}
	return s.join(sql, s.addProperty(s.property(name, "VIEW"), v.Comment)), nil
}

// AlterView replaces the definition and the comment of an existing view.
func (s *Scripter) AlterView(v schema.ViewSchema) (string, error) {
	name := ast.Name(v.Name, v.Schema)
	sql, err := s.module("ALTER", "VIEW", name, v.Body)
	if err != nil {
		return "", err
	}
	comment, err := s.CommentView(name, v.Comment)
	if err != nil {
		return "", err
	}
	return s.join(sql, comment), nil
}

func (s *Scripter) DropView(name ast.ObjectName) (string, error) {
	return s.compile(&ast.DropView{Name: name})
}

func (s *Scripter) CreateProcedure(p schema.ProcedureSchema) (string, error) {
	name := ast.Name(p.Name, p.Schema)
	sql, err := s.module("CREATE", "PROCEDURE", name, p.Body)
	if err != nil {
		return "", err
	}
	return s.join(sql, s.addProperty(s.property(name, "PROCEDURE"), p.Comment)), nil
}

func (s *Scripter) AlterProcedure(p schema.ProcedureSchema) (string, error) {
	return s.module("ALTER", "PROCEDURE", ast.Name(p.Name, p.Schema), p.Body)
}

func (s *Scripter) DropProcedure(name ast.ObjectName) (string, error) {
	return s.compile(&ast.DropProcedure{Name: name})
}

func (s *Scripter) CreateFunction(f schema.FunctionSchema) (string, error) {
	name := ast.Name(f.Name, f.Schema)
	sql, err := s.module("CREATE", "FUNCTION", name, f.Body)
	if err != nil {
		return "", err
	}
	return s.join(sql, s.addProperty(s.property(name, "FUNCTION"), f.Comment)), nil
}

func (s *Scripter) AlterFunction(f schema.FunctionSchema) (string, error) {
	return s.module("ALTER", "FUNCTION", ast.Name(f.Name, f.Schema), f.Body)
}

func (s *Scripter) DropFunction(name ast.ObjectName) (string, error) {
	return s.compile(&ast.DropFunction{Name: name})
}

func (s *Scripter) CreateSequence(seq schema.SequenceSchema) (string, error) {
	t, err := ParseSQLSyntax(seq.Type)
	if err != nil {
		return "", fmt.Errorf("sequence %s: %w", seq.Name, err)
	}
	name := ast.Name(seq.Name, seq.Schema)
	sql, err := s.compile(&ast.CreateSequence{Name: name, Type: &t, Start: seq.Start, Increment: seq.Increment})
	if err != nil {
		return "", err
	}
	return s.join(sql, s.addProperty(s.property(name, "SEQUENCE"), seq.Comment)), nil
}

// RestartSequence resets the sequence to its start value.
func (s *Scripter) RestartSequence(seq schema.SequenceSchema) (string, error) {
	if seq.Name == "" {
		return "", &adapters.MissingFieldError{Node: "RestartSequence", Field: "Name"}
	}
	return fmt.Sprintf("ALTER SEQUENCE %s RESTART WITH %d", s.c.policy.QuoteObject(ast.Name(seq.Name, seq.Schema)), seq.Start), nil
}

func (s *Scripter) DropSequence(name ast.ObjectName) (string, error) {
	return s.compile(&ast.DropSequence{Name: name})
}

// CreateSchema creates a namespace. CREATE SCHEMA must be alone in its
// batch, so the comment follows a separator.
func (s *Scripter) CreateSchema(ns schema.SchemaName) (string, error) {
	if ns.Name == "" {
		return "", &adapters.MissingFieldError{Node: "CreateSchema", Field: "Name"}
	}
	return s.join("CREATE SCHEMA "+s.c.policy.Quote(ns.Name), s.addProperty(property{schema: ns.Name}, ns.Comment)), nil
}

func (s *Scripter) DropSchema(name string) (string, error) {
	if name == "" {
		return "", &adapters.MissingFieldError{Node: "DropSchema", Field: "Name"}
	}
	return "DROP SCHEMA " + s.c.policy.Quote(name), nil
}

// Annotation renders text as line comments.
func (s *Scripter) Annotation(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &adapters.MissingFieldError{Node: "Annotation", Field: "Text"}
	}
	return s.compile(&ast.Annotation{Text: strings.ReplaceAll(text, "\r\n", "\n")})
}

// SeedData renders literal rows. With identity set the insert is wrapped
// in SET IDENTITY_INSERT batches.
func (s *Scripter) SeedData(table ast.ObjectName, columns []string, rows [][]any, identity bool) (string, error) {
	values := make([][]ast.Expression, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", fmt.Errorf("seed %s: row %d has %d values for %d columns", table.Name, i, len(row), len(columns))
		}
		values[i] = make([]ast.Expression, len(row))
		for j, v := range row {
			values[i][j] = ast.Lit(v)
		}
	}
	return s.compile(&ast.Insert{Table: table, Columns: columns, Values: values, IdentityInsert: identity})
}

// CommentTable replaces the MS_Description of a table. An empty comment
// only removes the old one.
func (s *Scripter) CommentTable(name ast.ObjectName, comment string) (string, error) {
	return s.replaceProperty(s.property(name, "TABLE"), comment)
}

func (s *Scripter) CommentColumn(table ast.ObjectName, column, comment string) (string, error) {
	return s.replaceProperty(s.property(table, "TABLE").child("COLUMN", column), comment)
}

func (s *Scripter) CommentView(name ast.ObjectName, comment string) (string, error) {
	return s.replaceProperty(s.property(name, "VIEW"), comment)
}

// property addresses an MS_Description extended property. An empty
// level1 addresses the schema itself.
type property struct {
	schema    string
	level1    string
	object    string
	level2    string
	childName string
}

func (s *Scripter) property(name ast.ObjectName, level1 string) property {
	name = s.c.policy.Qualify(name)
	return property{schema: name.Schema, level1: level1, object: name.Name}
}

func (p property) child(level2, name string) property {
	p.level2, p.childName = level2, name
	return p
}

func (p property) args(value *string) string {
	var sb strings.Builder
	sb.WriteString("@name = N'MS_Description'")
	if value != nil {
		sb.WriteString(", @value = " + StringLiteral(*value))
	}
	sb.WriteString(", @level0type = N'SCHEMA', @level0name = " + StringLiteral(p.schema))
	if p.level1 != "" {
		sb.WriteString(", @level1type = " + StringLiteral(p.level1) + ", @level1name = " + StringLiteral(p.object))
	}
	if p.level2 != "" {
		sb.WriteString(", @level2type = " + StringLiteral(p.level2) + ", @level2name = " + StringLiteral(p.childName))
	}
	return sb.String()
}

// addProperty renders nothing for an empty comment.
func (s *Scripter) addProperty(p property, comment string) string {
	if comment == "" {
		return ""
	}
	return "EXEC sys.sp_addextendedproperty " + p.args(&comment)
}

// replaceProperty drops the property when the catalog has one, then adds
// the new value in a separate batch.
func (s *Scripter) replaceProperty(p property, comment string) (string, error) {
	if p.object == "" && p.level1 != "" {
		return "", &adapters.MissingFieldError{Node: "comment", Field: "Name"}
	}
	drop, err := s.compile(&ast.If{
		Cond: &ast.Exists{Query: s.propertyProbe(p)},
		Then: ast.RawSQL("EXEC sys.sp_dropextendedproperty " + p.args(nil)),
	})
	if err != nil {
		return "", err
	}
	return s.join(drop, s.addProperty(p, comment)), nil
}

// propertyProbe selects the existing property row of p.
func (s *Scripter) propertyProbe(p property) *ast.Select {
	class, major, minor := classObject, ast.Expression(nil), ast.Expression(ast.Lit(0))
	if p.level1 == "" {
		class = classSchema
		major = ast.Fn("SCHEMA_ID", ast.Lit(p.schema))
	} else {
		object := ast.Fn("OBJECT_ID", ast.Lit(s.c.policy.QuoteObject(ast.Name(p.object, p.schema))))
		major = object
		switch p.level2 {
		case "COLUMN":
			minor = ast.Fn("COLUMNPROPERTY", object, ast.Lit(p.childName), ast.Lit("ColumnId"))
		case "INDEX":
			class = classIndex
			minor = ast.Fn("INDEXPROPERTY", object, ast.Lit(p.childName), ast.Lit("IndexID"))
		case "CONSTRAINT":
			major = ast.Fn("OBJECT_ID", ast.Lit(s.c.policy.QuoteObject(ast.Name(p.childName, p.schema))))
		}
	}
	return &ast.Select{
		Columns: []ast.Expression{ast.Lit(1)},
		From:    []ast.Source{sysTable("extended_properties", "p")},
		Where: ast.And(
			on("p", "class", ast.Lit(class)),
			on("p", "major_id", major),
			on("p", "minor_id", minor),
			on("p", "name", ast.Lit("MS_Description")),
		),
	}
}
