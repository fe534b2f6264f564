package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ruslano69/mssqldialect/pkg/adapters"
	"github.com/ruslano69/mssqldialect/pkg/core/ast"
	"github.com/ruslano69/mssqldialect/pkg/core/schema"
	"github.com/ruslano69/mssqldialect/pkg/core/types"
)

// Catalog classes of sys.extended_properties.
const (
	classObject = 1
	classSchema = 3
	classIndex  = 7
)

// LoaderOptions configure NewLoader.
type LoaderOptions struct {
	// MigrationTable is left out of table listings.
	MigrationTable string

	// Logger defaults to zerolog.Nop().
	Logger *zerolog.Logger
}

// Loader reads a database's structure from the system catalog.
//
// Every getter takes a database name. A non-empty name different from the
// session's current database switches the session there for the duration
// of the call and switches it back afterwards, also when a query fails.
// Because that switch is session state, a Loader must not be shared
// between goroutines; use one Loader and one Conn per concurrent call.
type Loader struct {
	conn    *Conn
	log     zerolog.Logger
	exclude []string
}

var _ adapters.SchemaLoader = (*Loader)(nil)

// NewLoader creates a loader over conn.
func NewLoader(conn *Conn, opts LoaderOptions) *Loader {
	l := &Loader{conn: conn, log: zerolog.Nop()}
	if opts.Logger != nil {
		l.log = *opts.Logger
	}
	if opts.MigrationTable != "" {
		l.exclude = []string{opts.MigrationTable}
	}
	return l
}

// inDatabase runs fn with database as the current database and always
// restores the previous one.
func (l *Loader) inDatabase(ctx context.Context, database string, fn func() error) (err error) {
	if database == "" {
		return fn()
	}
	prev, err := l.conn.CurrentDatabase(ctx)
	if err != nil {
		return err
	}
	if strings.EqualFold(prev, database) {
		return fn()
	}

	if err := l.conn.ChangeDatabase(ctx, database); err != nil {
		return err
	}
	defer func() {
		// The caller's context may be the reason fn failed.
		rerr := l.conn.ChangeDatabase(context.WithoutCancel(ctx), prev)
		if rerr != nil {
			l.log.Error().Err(rerr).AnErr("cause", err).Str("database", prev).Msg("failed to restore database")
			if err == nil {
				err = rerr
			}
			return
		}
		l.log.Debug().Str("database", prev).Msg("database restored")
	}()
	return fn()
}

// each runs q and calls scan for every row. A scan error closes the rows,
// which cancels the request.
func (l *Loader) each(ctx context.Context, q ast.Statement, scan func(*Rows) error) error {
	rows, err := l.conn.Query(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func sysTable(name, alias string) *ast.Table {
	return ast.From(ast.Name(name, "sys"), alias)
}

func on(alias, col string, e ast.Expression) *ast.Binary {
	return ast.Eq(ast.TCol(alias, col), e)
}

// description left-joins the MS_Description property of an object as
// alias.
func description(alias string, class int, major, minor ast.Expression) ast.Join {
	return ast.Join{
		Kind:   ast.LeftJoin,
		Source: sysTable("extended_properties", alias),
		On: ast.And(
			on(alias, "class", ast.Lit(class)),
			on(alias, "major_id", major),
			on(alias, "minor_id", minor),
			on(alias, "name", ast.Lit("MS_Description")),
		),
	}
}

// asText converts a sql_variant or numeric catalog value for scanning.
func asText(e ast.Expression, name string) ast.Expression {
	return ast.As(ast.Std("convert", e, &ast.TypeRef{Type: types.String(types.Max)}), name)
}

func asBigint(e ast.Expression, name string) ast.Expression {
	return ast.As(ast.Std("convert", e, &ast.TypeRef{Type: types.Int64()}), name)
}

// catalogObject is a row of the names phase.
type catalogObject struct {
	id      int64
	schema  string
	name    string
	comment string
}

func (o catalogObject) objectName() ast.ObjectName {
	return ast.Name(o.name, o.schema)
}

type objectKind struct {
	object   string
	view     string
	filter   ast.Expression
	excluded bool
}

var (
	tableKind     = objectKind{object: "table", view: "tables", excluded: true}
	viewKind      = objectKind{object: "view", view: "views"}
	procedureKind = objectKind{object: "procedure", view: "procedures"}
	functionKind  = objectKind{
		object: "function",
		view:   "objects",
		filter: &ast.In{Expr: ast.TCol("o", "type"), List: []ast.Expression{ast.Lit("FN"), ast.Lit("IF"), ast.Lit("TF")}},
	}
)

// names is the first phase: ids, names and comments of one kind of
// object, optionally narrowed to a schema and a name.
func (l *Loader) names(ctx context.Context, kind objectKind, schemaName, name string) ([]catalogObject, error) {
	l.log.Debug().Str("object", kind.object).Str("schema", schemaName).Str("name", name).Msg("loading names")

	var where []ast.Expression
	if kind.filter != nil {
		where = append(where, kind.filter)
	}
	if kind.excluded && len(l.exclude) > 0 {
		list := make([]ast.Expression, len(l.exclude))
		for i, t := range l.exclude {
			list[i] = ast.Lit(t)
		}
		where = append(where, &ast.In{Expr: ast.TCol("o", "name"), List: list, Not: true})
	}
	if schemaName != "" {
		where = append(where, on("s", "name", ast.Param("schema", schemaName)))
	}
	if name != "" {
		where = append(where, on("o", "name", ast.Param("name", name)))
	}

	q := &ast.Select{
		Columns: []ast.Expression{
			ast.As(ast.TCol("o", "object_id"), "id"),
			ast.As(ast.TCol("s", "name"), "schema"),
			ast.As(ast.TCol("o", "name"), "name"),
			asText(ast.TCol("p", "value"), "comment"),
		},
		From: []ast.Source{sysTable(kind.view, "o")},
		Joins: []ast.Join{
			{Kind: ast.InnerJoin, Source: sysTable("schemas", "s"), On: on("s", "schema_id", ast.TCol("o", "schema_id"))},
			description("p", classObject, ast.TCol("o", "object_id"), ast.Lit(0)),
		},
		Where:   ast.And(where...),
		OrderBy: []ast.Sort{ast.Asc(ast.TCol("s", "name")), ast.Asc(ast.TCol("o", "name"))},
	}

	var out []catalogObject
	err := l.each(ctx, q, func(r *Rows) error {
		var o catalogObject
		var comment sql.NullString
		if err := r.Scan(&o.id, &o.schema, &o.name, &comment); err != nil {
			return fmt.Errorf("failed to scan %s name: %w", kind.object, err)
		}
		o.comment = comment.String
		out = append(out, o)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s names: %w", kind.object, err)
	}
	return out, nil
}

// one narrows names to the single object schema.name.
func (l *Loader) one(ctx context.Context, kind objectKind, schemaName, name string) (catalogObject, error) {
	objs, err := l.names(ctx, kind, schemaName, name)
	if err != nil {
		return catalogObject{}, err
	}
	if len(objs) == 0 {
		return catalogObject{}, &adapters.NotFoundError{Object: kind.object, Name: qualified(schemaName, name)}
	}
	return objs[0], nil
}

func qualified(schemaName, name string) string {
	if schemaName == "" {
		return name
	}
	return schemaName + "." + name
}

// GetTableNames lists tables without loading their details.
func (l *Loader) GetTableNames(ctx context.Context, database, schemaName string) ([]ast.ObjectName, error) {
	var out []ast.ObjectName
	err := l.inDatabase(ctx, database, func() error {
		objs, err := l.names(ctx, tableKind, schemaName, "")
		for _, o := range objs {
			out = append(out, o.objectName())
		}
		return err
	})
	return out, err
}

// GetTables loads every table of database, optionally only those in
// schemaName.
func (l *Loader) GetTables(ctx context.Context, database, schemaName string) ([]schema.TableSchema, error) {
	var out []schema.TableSchema
	err := l.inDatabase(ctx, database, func() error {
		objs, err := l.names(ctx, tableKind, schemaName, "")
		if err != nil {
			return err
		}
		out = make([]schema.TableSchema, 0, len(objs))
		for _, o := range objs {
			t, err := l.fillTable(ctx, o)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetTable loads one table. A missing table is a NotFoundError.
func (l *Loader) GetTable(ctx context.Context, database, schemaName, name string) (*schema.TableSchema, error) {
	var out schema.TableSchema
	err := l.inDatabase(ctx, database, func() error {
		o, err := l.one(ctx, tableKind, schemaName, name)
		if err != nil {
			return err
		}
		out, err = l.fillTable(ctx, o)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// fillTable is the second phase for one table.
func (l *Loader) fillTable(ctx context.Context, o catalogObject) (schema.TableSchema, error) {
	l.log.Debug().Str("object", "table").Str("schema", o.schema).Str("name", o.name).Msg("loading details")

	t := schema.TableSchema{Schema: o.schema, Name: o.name, Comment: o.comment}
	var err error
	wrap := func(err error) error {
		return fmt.Errorf("table %s.%s: %w", o.schema, o.name, err)
	}

	if t.Columns, err = l.columns(ctx, o.id); err != nil {
		return t, wrap(err)
	}
	if t.PrimaryKey, err = l.primaryKey(ctx, o.id); err != nil {
		return t, wrap(err)
	}
	if t.Indexes, err = l.indexes(ctx, o.id); err != nil {
		return t, wrap(err)
	}
	if err = l.keyColumns(ctx, o.id, t.PrimaryKey, t.Indexes); err != nil {
		return t, wrap(err)
	}
	if t.ForeignKeys, err = l.foreignKeys(ctx, o.id); err != nil {
		return t, wrap(err)
	}
	if t.CheckConstraints, err = l.checks(ctx, o.id); err != nil {
		return t, wrap(err)
	}
	return t, nil
}

func (l *Loader) columns(ctx context.Context, tableID int64) ([]schema.ColumnSchema, error) {
	q := &ast.Select{
		Columns: []ast.Expression{
			ast.As(ast.TCol("c", "name"), "name"),
			ast.As(ast.TCol("t", "name"), "type_name"),
			ast.As(ast.TCol("c", "max_length"), "type_length"),
			ast.As(ast.TCol("c", "precision"), "type_precision"),
			ast.As(ast.TCol("c", "scale"), "type_scale"),
			ast.As(ast.TCol("c", "is_nullable"), "is_nullable"),
			asBigint(ast.TCol("ic", "seed_value"), "identity_start"),
			asBigint(ast.TCol("ic", "increment_value"), "identity_increment"),
			ast.As(ast.TCol("cc", "definition"), "computed"),
			ast.As(ast.TCol("d", "definition"), "default_value"),
			asText(ast.TCol("p", "value"), "comment"),
		},
		From: []ast.Source{sysTable("columns", "c")},
		Joins: []ast.Join{
			{Kind: ast.InnerJoin, Source: sysTable("types", "t"), On: on("t", "user_type_id", ast.TCol("c", "user_type_id"))},
			{Kind: ast.LeftJoin, Source: sysTable("identity_columns", "ic"), On: ast.And(
				on("ic", "object_id", ast.TCol("c", "object_id")),
				on("ic", "column_id", ast.TCol("c", "column_id")),
			)},
			{Kind: ast.LeftJoin, Source: sysTable("computed_columns", "cc"), On: ast.And(
				on("cc", "object_id", ast.TCol("c", "object_id")),
				on("cc", "column_id", ast.TCol("c", "column_id")),
			)},
			{Kind: ast.LeftJoin, Source: sysTable("default_constraints", "d"), On: on("d", "object_id", ast.TCol("c", "default_object_id"))},
			description("p", classObject, ast.TCol("c", "object_id"), ast.TCol("c", "column_id")),
		},
		Where:   on("c", "object_id", ast.Param("id", tableID)),
		OrderBy: []ast.Sort{ast.Asc(ast.TCol("c", "column_id"))},
	}

	var out []schema.ColumnSchema
	err := l.each(ctx, q, func(r *Rows) error {
		var (
			c                        schema.ColumnSchema
			typeName                 string
			length, precision, scale int64
			start, increment         sql.NullInt64
			computed, def, comment   sql.NullString
		)
		if err := r.Scan(&c.Name, &typeName, &length, &precision, &scale, &c.Nullable,
			&start, &increment, &computed, &def, &comment); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}
		c.Type = catalogType(typeName, length, precision, scale)
		if start.Valid {
			c.Identity = &schema.IdentitySchema{Start: start.Int64, Increment: increment.Int64}
		}
		if computed.Valid {
			c.Computed = &schema.ComputedSchema{Expression: unwrapDefinition(computed.String)}
		}
		if def.Valid {
			c.DefaultValue = unwrapDefinition(def.String)
		}
		c.Comment = comment.String
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	return out, nil
}

func (l *Loader) primaryKey(ctx context.Context, tableID int64) (*schema.PrimaryKeySchema, error) {
	q := &ast.Select{
		Columns: []ast.Expression{
			ast.As(ast.TCol("k", "name"), "name"),
			ast.As(ast.TCol("i", "type"), "index_type"),
			asText(ast.TCol("p", "value"), "comment"),
		},
		From: []ast.Source{sysTable("key_constraints", "k")},
		Joins: []ast.Join{
			{Kind: ast.InnerJoin, Source: sysTable("indexes", "i"), On: ast.And(
				on("i", "object_id", ast.TCol("k", "parent_object_id")),
				on("i", "index_id", ast.TCol("k", "unique_index_id")),
			)},
			description("p", classObject, ast.TCol("k", "object_id"), ast.Lit(0)),
		},
		Where: ast.And(
			on("k", "parent_object_id", ast.Param("id", tableID)),
			on("k", "type", ast.Lit("PK")),
		),
	}

	var pk *schema.PrimaryKeySchema
	err := l.each(ctx, q, func(r *Rows) error {
		var (
			name      string
			indexType int64
			comment   sql.NullString
		)
		if err := r.Scan(&name, &indexType, &comment); err != nil {
			return fmt.Errorf("failed to scan primary key: %w", err)
		}
		pk = &schema.PrimaryKeySchema{Name: name, NonClustered: indexType != 1, Comment: comment.String}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query primary key: %w", err)
	}
	return pk, nil
}

func (l *Loader) indexes(ctx context.Context, tableID int64) ([]schema.IndexSchema, error) {
	q := &ast.Select{
		Columns: []ast.Expression{
			ast.As(ast.TCol("i", "name"), "name"),
			ast.As(ast.TCol("i", "is_unique"), "is_unique"),
			ast.As(ast.TCol("i", "type"), "index_type"),
			asText(ast.TCol("p", "value"), "comment"),
		},
		From:  []ast.Source{sysTable("indexes", "i")},
		Joins: []ast.Join{description("p", classIndex, ast.TCol("i", "object_id"), ast.TCol("i", "index_id"))},
		Where: ast.And(
			on("i", "object_id", ast.Param("id", tableID)),
			on("i", "is_primary_key", ast.Lit(false)),
			on("i", "is_unique_constraint", ast.Lit(false)),
			&ast.In{Expr: ast.TCol("i", "type"), List: []ast.Expression{ast.Lit(1), ast.Lit(2)}},
		),
		OrderBy: []ast.Sort{ast.Asc(ast.TCol("i", "name"))},
	}

	var out []schema.IndexSchema
	err := l.each(ctx, q, func(r *Rows) error {
		var (
			idx       schema.IndexSchema
			indexType int64
			comment   sql.NullString
		)
		if err := r.Scan(&idx.Name, &idx.Unique, &indexType, &comment); err != nil {
			return fmt.Errorf("failed to scan index: %w", err)
		}
		idx.Clustered = indexType == 1
		idx.Comment = comment.String
		out = append(out, idx)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}
	return out, nil
}

// keyColumns loads the key columns of the primary key and of every index
// in one query and attaches them in key order.
func (l *Loader) keyColumns(ctx context.Context, tableID int64, pk *schema.PrimaryKeySchema, indexes []schema.IndexSchema) error {
	if pk == nil && len(indexes) == 0 {
		return nil
	}
	q := &ast.Select{
		Columns: []ast.Expression{
			ast.As(ast.TCol("i", "name"), "index_name"),
			ast.As(ast.TCol("i", "is_primary_key"), "is_primary_key"),
			ast.As(ast.TCol("c", "name"), "name"),
			ast.As(ast.TCol("ic", "is_descending_key"), "is_desc"),
		},
		From: []ast.Source{sysTable("index_columns", "ic")},
		Joins: []ast.Join{
			{Kind: ast.InnerJoin, Source: sysTable("columns", "c"), On: ast.And(
				on("c", "object_id", ast.TCol("ic", "object_id")),
				on("c", "column_id", ast.TCol("ic", "column_id")),
			)},
			{Kind: ast.InnerJoin, Source: sysTable("indexes", "i"), On: ast.And(
				on("i", "object_id", ast.TCol("ic", "object_id")),
				on("i", "index_id", ast.TCol("ic", "index_id")),
			)},
		},
		Where: ast.And(
			on("ic", "object_id", ast.Param("id", tableID)),
			on("ic", "is_included_column", ast.Lit(false)),
		),
		OrderBy: []ast.Sort{ast.Asc(ast.TCol("ic", "index_id")), ast.Asc(ast.TCol("ic", "key_ordinal"))},
	}

	byName := make(map[string]*schema.IndexSchema, len(indexes))
	for i := range indexes {
		byName[indexes[i].Name] = &indexes[i]
	}

	err := l.each(ctx, q, func(r *Rows) error {
		var (
			index, column string
			isPK, desc    bool
		)
		if err := r.Scan(&index, &isPK, &column, &desc); err != nil {
			return fmt.Errorf("failed to scan index column: %w", err)
		}
		if isPK {
			if pk != nil {
				pk.Columns = append(pk.Columns, column)
			}
			return nil
		}
		if idx := byName[index]; idx != nil {
			idx.Columns = append(idx.Columns, schema.IndexColumn{Name: column, Desc: desc})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to query index columns: %w", err)
	}
	return nil
}

// foreignKeys loads key definitions, then the ordered column pairs of
// each key by its object id.
func (l *Loader) foreignKeys(ctx context.Context, tableID int64) ([]schema.ForeignKeySchema, error) {
	q := &ast.Select{
		Columns: []ast.Expression{
			ast.As(ast.TCol("fk", "object_id"), "id"),
			ast.As(ast.TCol("fk", "name"), "name"),
			ast.As(ast.TCol("rs", "name"), "reference_schema"),
			ast.As(ast.TCol("rt", "name"), "reference_table"),
			asText(ast.TCol("p", "value"), "comment"),
		},
		From: []ast.Source{sysTable("foreign_keys", "fk")},
		Joins: []ast.Join{
			{Kind: ast.InnerJoin, Source: sysTable("tables", "rt"), On: on("rt", "object_id", ast.TCol("fk", "referenced_object_id"))},
			{Kind: ast.InnerJoin, Source: sysTable("schemas", "rs"), On: on("rs", "schema_id", ast.TCol("rt", "schema_id"))},
			description("p", classObject, ast.TCol("fk", "object_id"), ast.Lit(0)),
		},
		Where:   on("fk", "parent_object_id", ast.Param("id", tableID)),
		OrderBy: []ast.Sort{ast.Asc(ast.TCol("fk", "name"))},
	}

	var (
		out []schema.ForeignKeySchema
		ids []int64
	)
	err := l.each(ctx, q, func(r *Rows) error {
		var (
			fk      schema.ForeignKeySchema
			id      int64
			comment sql.NullString
		)
		if err := r.Scan(&id, &fk.Name, &fk.ReferenceSchema, &fk.ReferenceTable, &comment); err != nil {
			return fmt.Errorf("failed to scan foreign key: %w", err)
		}
		fk.Comment = comment.String
		out = append(out, fk)
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}

	for i, id := range ids {
		if err := l.foreignKeyColumns(ctx, id, &out[i]); err != nil {
			return nil, fmt.Errorf("foreign key %s: %w", out[i].Name, err)
		}
	}
	return out, nil
}

func (l *Loader) foreignKeyColumns(ctx context.Context, keyID int64, fk *schema.ForeignKeySchema) error {
	q := &ast.Select{
		Columns: []ast.Expression{
			ast.As(ast.TCol("fc", "name"), "column"),
			ast.As(ast.TCol("rc", "name"), "reference_column"),
		},
		From: []ast.Source{sysTable("foreign_key_columns", "fkc")},
		Joins: []ast.Join{
			{Kind: ast.InnerJoin, Source: sysTable("columns", "fc"), On: ast.And(
				on("fc", "object_id", ast.TCol("fkc", "parent_object_id")),
				on("fc", "column_id", ast.TCol("fkc", "parent_column_id")),
			)},
			{Kind: ast.InnerJoin, Source: sysTable("columns", "rc"), On: ast.And(
				on("rc", "object_id", ast.TCol("fkc", "referenced_object_id")),
				on("rc", "column_id", ast.TCol("fkc", "referenced_column_id")),
			)},
		},
		Where:   on("fkc", "constraint_object_id", ast.Param("id", keyID)),
		OrderBy: []ast.Sort{ast.Asc(ast.TCol("fkc", "constraint_column_id"))},
	}

	err := l.each(ctx, q, func(r *Rows) error {
		var column, ref string
		if err := r.Scan(&column, &ref); err != nil {
			return fmt.Errorf("failed to scan foreign key column: %w", err)
		}
		fk.Columns = append(fk.Columns, column)
		fk.ReferenceColumns = append(fk.ReferenceColumns, ref)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to query foreign key columns: %w", err)
	}
	return nil
}

func (l *Loader) checks(ctx context.Context, tableID int64) ([]schema.CheckConstraintSchema, error) {
	q := &ast.Select{
		Columns: []ast.Expression{
			ast.As(ast.TCol("ck", "name"), "name"),
			ast.As(ast.TCol("ck", "definition"), "definition"),
			asText(ast.TCol("p", "value"), "comment"),
		},
		From:    []ast.Source{sysTable("check_constraints", "ck")},
		Joins:   []ast.Join{description("p", classObject, ast.TCol("ck", "object_id"), ast.Lit(0))},
		Where:   on("ck", "parent_object_id", ast.Param("id", tableID)),
		OrderBy: []ast.Sort{ast.Asc(ast.TCol("ck", "name"))},
	}

	var out []schema.CheckConstraintSchema
	err := l.each(ctx, q, func(r *Rows) error {
		var (
			ck      schema.CheckConstraintSchema
			comment sql.NullString
		)
		if err := r.Scan(&ck.Name, &ck.Expression, &comment); err != nil {
			return fmt.Errorf("failed to scan check constraint: %w", err)
		}
		ck.Expression = unwrapDefinition(ck.Expression)
		ck.Comment = comment.String
		out = append(out, ck)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query check constraints: %w", err)
	}
	return out, nil
}

// definition reassembles an object's source text from sp_helptext. Rows
// keep their own line breaks, so they are concatenated as is.
func (l *Loader) definition(ctx context.Context, o catalogObject) (string, error) {
	q := &ast.Execute{
		Proc: ast.Name("sp_helptext", "sys"),
		Args: []ast.Expression{ast.Param("objname", l.conn.compiler.Policy().QuoteObject(o.objectName()))},
	}
	var sb strings.Builder
	err := l.each(ctx, q, func(r *Rows) error {
		var line string
		if err := r.Scan(&line); err != nil {
			return fmt.Errorf("failed to scan source line: %w", err)
		}
		sb.WriteString(line)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to read source of %s.%s: %w", o.schema, o.name, err)
	}
	return strings.TrimRight(sb.String(), " \t\r\n"), nil
}

// module is a view, procedure or function: a name, a body and a comment.
type module struct {
	catalogObject
	body string
}

func (l *Loader) modules(ctx context.Context, kind objectKind, database, schemaName, name string) ([]module, error) {
	var out []module
	err := l.inDatabase(ctx, database, func() error {
		var objs []catalogObject
		if name != "" {
			o, err := l.one(ctx, kind, schemaName, name)
			if err != nil {
				return err
			}
			objs = []catalogObject{o}
		} else {
			var err error
			if objs, err = l.names(ctx, kind, schemaName, ""); err != nil {
				return err
			}
		}
		for _, o := range objs {
			l.log.Debug().Str("object", kind.object).Str("schema", o.schema).Str("name", o.name).Msg("loading source")
			body, err := l.definition(ctx, o)
			if err != nil {
				return err
			}
			out = append(out, module{catalogObject: o, body: body})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetViews loads every view with its source text.
func (l *Loader) GetViews(ctx context.Context, database, schemaName string) ([]schema.ViewSchema, error) {
	mods, err := l.modules(ctx, viewKind, database, schemaName, "")
	if err != nil {
		return nil, err
	}
	out := make([]schema.ViewSchema, len(mods))
	for i, m := range mods {
		out[i] = schema.ViewSchema{Schema: m.schema, Name: m.name, Body: m.body, Comment: m.comment}
	}
	return out, nil
}

// GetView loads one view. A missing view is a NotFoundError.
func (l *Loader) GetView(ctx context.Context, database, schemaName, name string) (*schema.ViewSchema, error) {
	mods, err := l.modules(ctx, viewKind, database, schemaName, name)
	if err != nil {
		return nil, err
	}
	m := mods[0]
	return &schema.ViewSchema{Schema: m.schema, Name: m.name, Body: m.body, Comment: m.comment}, nil
}

func (l *Loader) GetProcedures(ctx context.Context, database, schemaName string) ([]schema.ProcedureSchema, error) {
	mods, err := l.modules(ctx, procedureKind, database, schemaName, "")
	if err != nil {
		return nil, err
	}
	out := make([]schema.ProcedureSchema, len(mods))
	for i, m := range mods {
		out[i] = schema.ProcedureSchema{Schema: m.schema, Name: m.name, Body: m.body, Comment: m.comment}
	}
	return out, nil
}

func (l *Loader) GetProcedure(ctx context.Context, database, schemaName, name string) (*schema.ProcedureSchema, error) {
	mods, err := l.modules(ctx, procedureKind, database, schemaName, name)
	if err != nil {
		return nil, err
	}
	m := mods[0]
	return &schema.ProcedureSchema{Schema: m.schema, Name: m.name, Body: m.body, Comment: m.comment}, nil
}

// GetFunctions loads scalar, inline and table-valued functions.
func (l *Loader) GetFunctions(ctx context.Context, database, schemaName string) ([]schema.FunctionSchema, error) {
	mods, err := l.modules(ctx, functionKind, database, schemaName, "")
	if err != nil {
		return nil, err
	}
	out := make([]schema.FunctionSchema, len(mods))
	for i, m := range mods {
		out[i] = schema.FunctionSchema{Schema: m.schema, Name: m.name, Body: m.body, Comment: m.comment}
	}
	return out, nil
}

func (l *Loader) GetFunction(ctx context.Context, database, schemaName, name string) (*schema.FunctionSchema, error) {
	mods, err := l.modules(ctx, functionKind, database, schemaName, name)
	if err != nil {
		return nil, err
	}
	m := mods[0]
	return &schema.FunctionSchema{Schema: m.schema, Name: m.name, Body: m.body, Comment: m.comment}, nil
}

func (l *Loader) sequences(ctx context.Context, schemaName, name string) ([]schema.SequenceSchema, error) {
	l.log.Debug().Str("object", "sequence").Str("schema", schemaName).Str("name", name).Msg("loading names")

	var where []ast.Expression
	if schemaName != "" {
		where = append(where, on("s", "name", ast.Param("schema", schemaName)))
	}
	if name != "" {
		where = append(where, on("o", "name", ast.Param("name", name)))
	}
	q := &ast.Select{
		Columns: []ast.Expression{
			ast.As(ast.TCol("s", "name"), "schema"),
			ast.As(ast.TCol("o", "name"), "name"),
			ast.As(ast.TCol("t", "name"), "type_name"),
			ast.As(ast.TCol("o", "precision"), "type_precision"),
			ast.As(ast.TCol("o", "scale"), "type_scale"),
			asBigint(ast.TCol("o", "start_value"), "start_value"),
			asBigint(ast.TCol("o", "increment"), "increment"),
			asText(ast.TCol("p", "value"), "comment"),
		},
		From: []ast.Source{sysTable("sequences", "o")},
		Joins: []ast.Join{
			{Kind: ast.InnerJoin, Source: sysTable("types", "t"), On: on("t", "user_type_id", ast.TCol("o", "user_type_id"))},
			{Kind: ast.InnerJoin, Source: sysTable("schemas", "s"), On: on("s", "schema_id", ast.TCol("o", "schema_id"))},
			description("p", classObject, ast.TCol("o", "object_id"), ast.Lit(0)),
		},
		Where:   ast.And(where...),
		OrderBy: []ast.Sort{ast.Asc(ast.TCol("s", "name")), ast.Asc(ast.TCol("o", "name"))},
	}

	var out []schema.SequenceSchema
	err := l.each(ctx, q, func(r *Rows) error {
		var (
			seq              schema.SequenceSchema
			typeName         string
			precision, scale int64
			comment          sql.NullString
		)
		if err := r.Scan(&seq.Schema, &seq.Name, &typeName, &precision, &scale, &seq.Start, &seq.Increment, &comment); err != nil {
			return fmt.Errorf("failed to scan sequence: %w", err)
		}
		seq.Type = catalogType(typeName, 0, precision, scale)
		seq.Comment = comment.String
		out = append(out, seq)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query sequences: %w", err)
	}
	return out, nil
}

func (l *Loader) GetSequences(ctx context.Context, database, schemaName string) ([]schema.SequenceSchema, error) {
	var out []schema.SequenceSchema
	err := l.inDatabase(ctx, database, func() error {
		var err error
		out, err = l.sequences(ctx, schemaName, "")
		return err
	})
	return out, err
}

// GetSequence loads one sequence. A missing sequence is a NotFoundError.
func (l *Loader) GetSequence(ctx context.Context, database, schemaName, name string) (*schema.SequenceSchema, error) {
	var out []schema.SequenceSchema
	err := l.inDatabase(ctx, database, func() error {
		var err error
		out, err = l.sequences(ctx, schemaName, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &adapters.NotFoundError{Object: "sequence", Name: qualified(schemaName, name)}
	}
	return &out[0], nil
}

// GetSchemaNames lists user schemas: dbo and everything created after the
// built-in ones, without the fixed database roles.
func (l *Loader) GetSchemaNames(ctx context.Context, database string) ([]schema.SchemaName, error) {
	q := &ast.Select{
		Columns: []ast.Expression{
			ast.As(ast.TCol("s", "name"), "name"),
			asText(ast.TCol("p", "value"), "comment"),
		},
		From:  []ast.Source{sysTable("schemas", "s")},
		Joins: []ast.Join{description("p", classSchema, ast.TCol("s", "schema_id"), ast.Lit(0))},
		Where: ast.Or(
			on("s", "schema_id", ast.Lit(1)),
			&ast.Between{Expr: ast.TCol("s", "schema_id"), Low: ast.Lit(5), High: ast.Lit(16383)},
		),
		OrderBy: []ast.Sort{ast.Asc(ast.TCol("s", "name"))},
	}

	var out []schema.SchemaName
	err := l.inDatabase(ctx, database, func() error {
		l.log.Debug().Str("object", "schema").Str("database", database).Msg("loading names")
		return l.each(ctx, q, func(r *Rows) error {
			var (
				s       schema.SchemaName
				comment sql.NullString
			)
			if err := r.Scan(&s.Name, &comment); err != nil {
				return fmt.Errorf("failed to scan schema: %w", err)
			}
			s.Comment = comment.String
			out = append(out, s)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query schemas: %w", err)
	}
	return out, nil
}

// GetDatabaseSchema loads every object kind of database. An empty name
// means the current database.
func (l *Loader) GetDatabaseSchema(ctx context.Context, database string) (*schema.DatabaseSchema, error) {
	if database == "" {
		var err error
		if database, err = l.conn.CurrentDatabase(ctx); err != nil {
			return nil, err
		}
	}

	q := &ast.Select{
		Columns: []ast.Expression{
			ast.As(ast.TCol("d", "name"), "name"),
			ast.As(ast.TCol("d", "collation_name"), "collation"),
		},
		From:  []ast.Source{sysTable("databases", "d")},
		Where: on("d", "name", ast.Param("name", database)),
	}

	out := &schema.DatabaseSchema{}
	found := false
	err := l.each(ctx, q, func(r *Rows) error {
		var collation sql.NullString
		if err := r.Scan(&out.Name, &collation); err != nil {
			return fmt.Errorf("failed to scan database: %w", err)
		}
		out.Collation = collation.String
		found = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}
	if !found {
		return nil, &adapters.NotFoundError{Object: "database", Name: database}
	}

	err = l.inDatabase(ctx, database, func() error {
		var err error
		if out.Schemas, err = l.GetSchemaNames(ctx, ""); err != nil {
			return err
		}
		if out.Tables, err = l.GetTables(ctx, "", ""); err != nil {
			return err
		}
		if out.Views, err = l.GetViews(ctx, "", ""); err != nil {
			return err
		}
		if out.Procedures, err = l.GetProcedures(ctx, "", ""); err != nil {
			return err
		}
		if out.Functions, err = l.GetFunctions(ctx, "", ""); err != nil {
			return err
		}
		out.Sequences, err = l.GetSequences(ctx, "", "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// catalogType rebuilds type syntax from sys.columns/sys.types values.
// max_length is in bytes, so Unicode lengths are halved; -1 means MAX.
// The mapper's spelling wins when it names the same native type.
func catalogType(name string, maxLength, precision, scale int64) string {
	n := strings.ToUpper(name)
	sized := func(length int64) string {
		if length < 0 {
			return n + "(MAX)"
		}
		return fmt.Sprintf("%s(%d)", n, length)
	}

	var syntax string
	switch n {
	case "NCHAR", "NVARCHAR":
		if maxLength > 0 {
			maxLength /= 2
		}
		syntax = sized(maxLength)
	case "CHAR", "VARCHAR", "BINARY", "VARBINARY":
		syntax = sized(maxLength)
	case "DECIMAL", "NUMERIC":
		syntax = fmt.Sprintf("%s(%d,%d)", n, precision, scale)
	case "TIME", "DATETIME2", "DATETIMEOFFSET":
		syntax = fmt.Sprintf("%s(%d)", n, scale)
	case "FLOAT":
		syntax = fmt.Sprintf("FLOAT(%d)", precision)
	case "TIMESTAMP":
		syntax = "ROWVERSION"
	default:
		syntax = n
	}

	t, err := ParseSQLSyntax(syntax)
	if err != nil || t.Kind == types.KindRaw {
		return syntax
	}
	canon, err := ToSQLSyntax(t)
	if err != nil || baseName(canon) != baseName(syntax) {
		return syntax
	}
	return canon
}

func baseName(syntax string) string {
	name, _, _ := strings.Cut(syntax, "(")
	return name
}

// unwrapDefinition strips the one pair of parentheses the server wraps
// around stored default, computed and check definitions.
func unwrapDefinition(def string) string {
	if len(def) < 2 || def[0] != '(' || def[len(def)-1] != ')' {
		return def
	}
	depth := 0
	inString := false
	for i := 0; i < len(def); i++ {
		switch c := def[i]; {
		case c == '\'':
			inString = !inString
		case inString:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 && i != len(def)-1 {
				return def
			}
		}
	}
	return def[1 : len(def)-1]
}
