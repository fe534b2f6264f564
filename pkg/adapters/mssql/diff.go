package mssql

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ruslano69/mssqldialect/pkg/core/ast"
	"github.com/ruslano69/mssqldialect/pkg/core/schema"
)

// Migration holds the scripts between two snapshots. Down reverts Up.
type Migration struct {
	Up      string
	Down    string
	Changes []Change
}

// Empty reports whether the snapshots are structurally equal.
func (m *Migration) Empty() bool {
	return len(m.Changes) == 0
}

// ChangeOp is what a Change does to an object.
type ChangeOp string

const (
	OpCreate ChangeOp = "create"
	OpAlter  ChangeOp = "alter"
	OpDrop   ChangeOp = "drop"
)

// Change summarizes one step of Migration.Up.
type Change struct {
	Op     ChangeOp
	Object string
	Name   string
}

func (c Change) String() string {
	return string(c.Op) + " " + c.Object + " " + c.Name
}

// Script phases. Foreign keys are dropped before anything else and added
// after every table exists; modules are created last because they may
// reference any table.
const (
	phaseDropForeignKeys = iota
	phaseDropModules
	phaseDrop
	phaseDropSchemas
	phaseCreateSchemas
	phaseCreate
	phaseAddForeignKeys
	phaseCreateModules
	phaseCount
)

type plan struct {
	steps   [phaseCount][]string
	changes []Change
}

func (p *plan) add(phase int, sql string) {
	if sql != "" {
		p.steps[phase] = append(p.steps[phase], sql)
	}
}

func (p *plan) change(op ChangeOp, object, name string) {
	p.changes = append(p.changes, Change{Op: op, Object: object, Name: name})
}

func (p *plan) statements() []string {
	var out []string
	for _, steps := range p.steps {
		out = append(out, steps...)
	}
	return out
}

// Diff renders the migration from one snapshot to another. Objects match
// by schema-qualified name, case-insensitively.
func (s *Scripter) Diff(from, to *schema.DatabaseSchema) (*Migration, error) {
	up, err := s.plan(from, to)
	if err != nil {
		return nil, fmt.Errorf("up: %w", err)
	}
	down, err := s.plan(to, from)
	if err != nil {
		return nil, fmt.Errorf("down: %w", err)
	}
	return &Migration{
		Up:      s.join(up.statements()...),
		Down:    s.join(down.statements()...),
		Changes: up.changes,
	}, nil
}

func qualifiedKey(schemaName, name string) string {
	return strings.ToLower(schemaName + "." + name)
}

// byKey indexes a slice by key.
func byKey[T any](items []T, key func(T) string) map[string]T {
	m := make(map[string]T, len(items))
	for _, it := range items {
		m[key(it)] = it
	}
	return m
}

func sameText(a, b string) bool {
	return strings.Join(strings.Fields(a), " ") == strings.Join(strings.Fields(b), " ")
}

func (s *Scripter) plan(from, to *schema.DatabaseSchema) (*plan, error) {
	if from == nil {
		from = &schema.DatabaseSchema{}
	}
	if to == nil {
		to = &schema.DatabaseSchema{}
	}
	p := &plan{}
	steps := []func(*plan, *schema.DatabaseSchema, *schema.DatabaseSchema) error{
		s.planSchemas,
		s.planSequences,
		s.planTables,
		s.planViews,
		s.planProcedures,
		s.planFunctions,
	}
	for _, step := range steps {
		if err := step(p, from, to); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *Scripter) planSchemas(p *plan, from, to *schema.DatabaseSchema) error {
	key := func(n schema.SchemaName) string { return strings.ToLower(n.Name) }
	old := byKey(from.Schemas, key)
	cur := byKey(to.Schemas, key)

	for _, ns := range to.Schemas {
		prev, ok := old[key(ns)]
		switch {
		case !ok:
			sql, err := s.CreateSchema(ns)
			if err != nil {
				return err
			}
			p.add(phaseCreateSchemas, sql)
			p.change(OpCreate, "schema", ns.Name)
		case prev.Comment != ns.Comment:
			sql, err := s.replaceProperty(property{schema: ns.Name}, ns.Comment)
			if err != nil {
				return err
			}
			p.add(phaseCreateSchemas, sql)
			p.change(OpAlter, "schema", ns.Name)
		}
	}
	for _, ns := range from.Schemas {
		if _, ok := cur[key(ns)]; ok {
			continue
		}
		sql, err := s.DropSchema(ns.Name)
		if err != nil {
			return err
		}
		p.add(phaseDropSchemas, sql)
		p.change(OpDrop, "schema", ns.Name)
	}
	return nil
}

func (s *Scripter) planSequences(p *plan, from, to *schema.DatabaseSchema) error {
	key := func(q schema.SequenceSchema) string { return qualifiedKey(q.Schema, q.Name) }
	old := byKey(from.Sequences, key)
	cur := byKey(to.Sequences, key)

	for _, seq := range to.Sequences {
		name := ast.Name(seq.Name, seq.Schema)
		prev, ok := old[key(seq)]
		if ok && (!strings.EqualFold(prev.Type, seq.Type) || prev.Start != seq.Start || prev.Increment != seq.Increment) {
			drop, err := s.DropSequence(name)
			if err != nil {
				return err
			}
			p.add(phaseDrop, drop)
			ok = false
		}
		if !ok {
			sql, err := s.CreateSequence(seq)
			if err != nil {
				return err
			}
			p.add(phaseCreate, sql)
			p.change(OpCreate, "sequence", name.String())
			continue
		}
		if prev.Comment != seq.Comment {
			sql, err := s.replaceProperty(s.property(name, "SEQUENCE"), seq.Comment)
			if err != nil {
				return err
			}
			p.add(phaseCreate, sql)
			p.change(OpAlter, "sequence", name.String())
		}
	}
	for _, seq := range from.Sequences {
		if _, ok := cur[key(seq)]; ok {
			continue
		}
		name := ast.Name(seq.Name, seq.Schema)
		sql, err := s.DropSequence(name)
		if err != nil {
			return err
		}
		p.add(phaseDrop, sql)
		p.change(OpDrop, "sequence", name.String())
	}
	return nil
}

func (s *Scripter) planTables(p *plan, from, to *schema.DatabaseSchema) error {
	key := func(t schema.TableSchema) string { return qualifiedKey(t.Schema, t.Name) }
	old := byKey(from.Tables, key)
	cur := byKey(to.Tables, key)

	for _, t := range to.Tables {
		prev, ok := old[key(t)]
		if ok {
			if err := s.alterTable(p, prev, t); err != nil {
				return err
			}
			continue
		}
		sql, err := s.CreateTable(t)
		if err != nil {
			return err
		}
		p.add(phaseCreate, sql)
		for _, fk := range t.ForeignKeys {
			sql, err := s.AddForeignKey(tableName(t), fk)
			if err != nil {
				return err
			}
			p.add(phaseAddForeignKeys, sql)
		}
		p.change(OpCreate, "table", t.FullName())
	}

	for _, t := range from.Tables {
		if _, ok := cur[key(t)]; ok {
			continue
		}
		name := tableName(t)
		for _, fk := range t.ForeignKeys {
			sql, err := s.DropForeignKey(name, fk.Name)
			if err != nil {
				return err
			}
			p.add(phaseDropForeignKeys, sql)
		}
		sql, err := s.DropTable(name)
		if err != nil {
			return err
		}
		p.add(phaseDrop, sql)
		p.change(OpDrop, "table", t.FullName())
	}
	return nil
}

func sameForeignKey(a, b schema.ForeignKeySchema) bool {
	return slices.Equal(a.Columns, b.Columns) &&
		strings.EqualFold(a.ReferenceSchema, b.ReferenceSchema) &&
		strings.EqualFold(a.ReferenceTable, b.ReferenceTable) &&
		slices.Equal(a.ReferenceColumns, b.ReferenceColumns)
}

func sameIndex(a, b schema.IndexSchema) bool {
	return a.Unique == b.Unique && a.Clustered == b.Clustered && slices.Equal(a.Columns, b.Columns)
}

func samePrimaryKey(a, b *schema.PrimaryKeySchema) bool {
	if a == nil || b == nil {
		return a == b
	}
	return strings.EqualFold(a.Name, b.Name) && a.NonClustered == b.NonClustered && slices.Equal(a.Columns, b.Columns)
}

// alterTable plans the column and constraint changes of one table.
// Identity changes cannot be expressed with ALTER TABLE and are rejected.
func (s *Scripter) alterTable(p *plan, from, to schema.TableSchema) error {
	name := tableName(to)
	table := s.property(name, "TABLE")
	full := to.FullName()
	altered := false

	for _, fk := range from.ForeignKeys {
		if next := to.ForeignKey(fk.Name); next == nil || !sameForeignKey(fk, *next) {
			sql, err := s.DropForeignKey(name, fk.Name)
			if err != nil {
				return err
			}
			p.add(phaseDropForeignKeys, sql)
			altered = true
		}
	}
	for _, fk := range to.ForeignKeys {
		prev := from.ForeignKey(fk.Name)
		switch {
		case prev == nil || !sameForeignKey(*prev, fk):
			sql, err := s.AddForeignKey(name, fk)
			if err != nil {
				return err
			}
			p.add(phaseAddForeignKeys, sql)
			altered = true
		case prev.Comment != fk.Comment:
			sql, err := s.replaceProperty(table.child("CONSTRAINT", fk.Name), fk.Comment)
			if err != nil {
				return err
			}
			p.add(phaseAddForeignKeys, sql)
			altered = true
		}
	}

	for _, ck := range from.CheckConstraints {
		if next := to.CheckConstraint(ck.Name); next == nil || !sameText(ck.Expression, next.Expression) {
			sql, err := s.DropCheckConstraint(name, ck.Name)
			if err != nil {
				return err
			}
			p.add(phaseDrop, sql)
			altered = true
		}
	}
	for _, idx := range from.Indexes {
		if next := to.Index(idx.Name); next == nil || !sameIndex(idx, *next) {
			sql, err := s.DropIndex(name, idx.Name)
			if err != nil {
				return err
			}
			p.add(phaseDrop, sql)
			altered = true
		}
	}
	if !samePrimaryKey(from.PrimaryKey, to.PrimaryKey) && from.PrimaryKey != nil {
		sql, err := s.compile(&ast.AlterTable{Name: name, Action: &ast.DropConstraint{Name: from.PrimaryKey.Name}})
		if err != nil {
			return err
		}
		p.add(phaseDrop, sql)
		altered = true
	}

	for _, col := range from.Columns {
		if next := to.Column(col.Name); next != nil && !computedChanged(col, *next) {
			continue
		}
		sql, err := s.DropColumn(name, col.Name)
		if err != nil {
			return err
		}
		p.add(phaseDrop, sql)
		p.change(OpDrop, "column", full+"."+col.Name)
	}
	for _, col := range to.Columns {
		prev := from.Column(col.Name)
		if prev == nil || computedChanged(*prev, col) {
			sql, err := s.AddColumn(name, col)
			if err != nil {
				return err
			}
			p.add(phaseCreate, sql)
			p.change(OpCreate, "column", full+"."+col.Name)
			continue
		}
		if err := s.alterColumn(p, name, *prev, col); err != nil {
			return err
		}
	}

	if !samePrimaryKey(from.PrimaryKey, to.PrimaryKey) && to.PrimaryKey != nil {
		sql, err := s.compile(&ast.AlterTable{Name: name, Action: &ast.AddMembers{Members: []ast.TableMember{primaryKeyDef(to.PrimaryKey)}}})
		if err != nil {
			return err
		}
		p.add(phaseCreate, sql)
		altered = true
	}
	for _, idx := range to.Indexes {
		prev := from.Index(idx.Name)
		switch {
		case prev == nil || !sameIndex(*prev, idx):
			sql, err := s.CreateIndex(name, idx)
			if err != nil {
				return err
			}
			p.add(phaseCreate, sql)
			altered = true
		case prev.Comment != idx.Comment:
			sql, err := s.replaceProperty(table.child("INDEX", idx.Name), idx.Comment)
			if err != nil {
				return err
			}
			p.add(phaseCreate, sql)
			altered = true
		}
	}
	for _, ck := range to.CheckConstraints {
		prev := from.CheckConstraint(ck.Name)
		switch {
		case prev == nil || !sameText(prev.Expression, ck.Expression):
			sql, err := s.AddCheckConstraint(name, ck)
			if err != nil {
				return err
			}
			p.add(phaseCreate, sql)
			altered = true
		case prev.Comment != ck.Comment:
			sql, err := s.replaceProperty(table.child("CONSTRAINT", ck.Name), ck.Comment)
			if err != nil {
				return err
			}
			p.add(phaseCreate, sql)
			altered = true
		}
	}

	if from.Comment != to.Comment {
		sql, err := s.CommentTable(name, to.Comment)
		if err != nil {
			return err
		}
		p.add(phaseCreate, sql)
		altered = true
	}
	if altered {
		p.change(OpAlter, "table", full)
	}
	return nil
}

// computedChanged reports a change that needs the column dropped and
// added again.
func computedChanged(a, b schema.ColumnSchema) bool {
	if (a.Computed == nil) != (b.Computed == nil) {
		return true
	}
	return a.Computed != nil && !sameText(a.Computed.Expression, b.Computed.Expression)
}

func (s *Scripter) alterColumn(p *plan, table ast.ObjectName, from, to schema.ColumnSchema) error {
	full := s.c.policy.QuoteObject(table) + "." + s.c.policy.Quote(to.Name)
	changed := false

	if (from.Identity == nil) != (to.Identity == nil) ||
		from.Identity != nil && *from.Identity != *to.Identity {
		return fmt.Errorf("column %s: identity cannot be altered", full)
	}
	if to.Computed == nil && (!sameText(strings.ToUpper(from.Type), strings.ToUpper(to.Type)) || from.Nullable != to.Nullable) {
		t, err := columnType(to)
		if err != nil {
			return err
		}
		sql, err := s.compile(&ast.AlterTable{
			Name:   table,
			Action: &ast.AlterColumn{Name: to.Name, Type: t, Nullable: to.Nullable},
		})
		if err != nil {
			return err
		}
		p.add(phaseCreate, sql)
		changed = true
	}
	if !sameText(from.DefaultValue, to.DefaultValue) {
		// Defaults are unnamed constraints in the snapshot; the old one
		// has to be dropped by its server-generated name.
		note, err := s.Annotation(fmt.Sprintf("default of %s changed from %q to %q; replace its default constraint manually",
			full, from.DefaultValue, to.DefaultValue))
		if err != nil {
			return err
		}
		p.add(phaseCreate, note)
		changed = true
	}
	if from.Comment != to.Comment {
		sql, err := s.CommentColumn(table, to.Name, to.Comment)
		if err != nil {
			return err
		}
		p.add(phaseCreate, sql)
		changed = true
	}
	if changed {
		p.change(OpAlter, "column", full)
	}
	return nil
}

func (s *Scripter) planViews(p *plan, from, to *schema.DatabaseSchema) error {
	key := func(v schema.ViewSchema) string { return qualifiedKey(v.Schema, v.Name) }
	old := byKey(from.Views, key)
	cur := byKey(to.Views, key)

	for _, v := range to.Views {
		name := ast.Name(v.Name, v.Schema)
		prev, ok := old[key(v)]
		var (
			sql string
			err error
		)
		switch {
		case !ok:
			sql, err = s.CreateView(v)
			p.change(OpCreate, "view", name.String())
		case !sameText(prev.Body, v.Body):
			sql, err = s.AlterView(v)
			p.change(OpAlter, "view", name.String())
		case prev.Comment != v.Comment:
			sql, err = s.CommentView(name, v.Comment)
			p.change(OpAlter, "view", name.String())
		}
		if err != nil {
			return err
		}
		p.add(phaseCreateModules, sql)
	}
	for _, v := range from.Views {
		if _, ok := cur[key(v)]; ok {
			continue
		}
		name := ast.Name(v.Name, v.Schema)
		sql, err := s.DropView(name)
		if err != nil {
			return err
		}
		p.add(phaseDropModules, sql)
		p.change(OpDrop, "view", name.String())
	}
	return nil
}

func (s *Scripter) planProcedures(p *plan, from, to *schema.DatabaseSchema) error {
	key := func(v schema.ProcedureSchema) string { return qualifiedKey(v.Schema, v.Name) }
	old := byKey(from.Procedures, key)
	cur := byKey(to.Procedures, key)

	for _, proc := range to.Procedures {
		name := ast.Name(proc.Name, proc.Schema)
		prev, ok := old[key(proc)]
		var (
			sql string
			err error
		)
		switch {
		case !ok:
			sql, err = s.CreateProcedure(proc)
			p.change(OpCreate, "procedure", name.String())
		case !sameText(prev.Body, proc.Body):
			sql, err = s.AlterProcedure(proc)
			p.change(OpAlter, "procedure", name.String())
		case prev.Comment != proc.Comment:
			sql, err = s.replaceProperty(s.property(name, "PROCEDURE"), proc.Comment)
			p.change(OpAlter, "procedure", name.String())
		}
		if err != nil {
			return err
		}
		p.add(phaseCreateModules, sql)
	}
	for _, proc := range from.Procedures {
		if _, ok := cur[key(proc)]; ok {
			continue
		}
		name := ast.Name(proc.Name, proc.Schema)
		sql, err := s.DropProcedure(name)
		if err != nil {
			return err
		}
		p.add(phaseDropModules, sql)
		p.change(OpDrop, "procedure", name.String())
	}
	return nil
}

func (s *Scripter) planFunctions(p *plan, from, to *schema.DatabaseSchema) error {
	key := func(v schema.FunctionSchema) string { return qualifiedKey(v.Schema, v.Name) }
	old := byKey(from.Functions, key)
	cur := byKey(to.Functions, key)

	for _, fn := range to.Functions {
		name := ast.Name(fn.Name, fn.Schema)
		prev, ok := old[key(fn)]
		var (
			sql string
			err error
		)
		switch {
		case !ok:
			sql, err = s.CreateFunction(fn)
			p.change(OpCreate, "function", name.String())
		case !sameText(prev.Body, fn.Body):
			sql, err = s.AlterFunction(fn)
			p.change(OpAlter, "function", name.String())
		case prev.Comment != fn.Comment:
			sql, err = s.replaceProperty(s.property(name, "FUNCTION"), fn.Comment)
			p.change(OpAlter, "function", name.String())
		}
		if err != nil {
			return err
		}
		p.add(phaseCreateModules, sql)
	}
	for _, fn := range from.Functions {
		if _, ok := cur[key(fn)]; ok {
			continue
		}
		name := ast.Name(fn.Name, fn.Schema)
		sql, err := s.DropFunction(name)
		if err != nil {
			return err
		}
		p.add(phaseDropModules, sql)
		p.change(OpDrop, "function", name.String())
	}
	return nil
}
