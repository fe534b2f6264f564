package ast

// QueryBuilder assembles a Select step by step:
//
//	q := ast.Query(ast.From(ast.Name("Items", "dbo"), "i")).
//		Select(ast.Col("FId"), ast.Col("FName")).
//		Where(ast.Gt(ast.Col("FPrice"), ast.Param("min", 10))).
//		OrderBy(ast.Desc(ast.Col("FId"))).
//		Offset(10).
//		Limit(5).
//		Build()
type QueryBuilder struct {
	q Select
}

// Query starts a select over sources.
func Query(sources ...Source) *QueryBuilder {
	return &QueryBuilder{q: Select{From: sources}}
}

// Select appends result columns. No columns means *.
func (b *QueryBuilder) Select(cols ...Expression) *QueryBuilder {
	b.q.Columns = append(b.q.Columns, cols...)
	return b
}

func (b *QueryBuilder) Distinct() *QueryBuilder {
	b.q.Distinct = true
	return b
}

func (b *QueryBuilder) Top(n int) *QueryBuilder {
	b.q.Top = Ptr(n)
	return b
}

// Join adds a joined source.
func (b *QueryBuilder) Join(kind JoinKind, src Source, on Expression) *QueryBuilder {
	b.q.Joins = append(b.q.Joins, Join{Kind: kind, Source: src, On: on})
	return b
}

// Where ANDs conds onto the current filter.
func (b *QueryBuilder) Where(conds ...Expression) *QueryBuilder {
	b.q.Where = And(append([]Expression{b.q.Where}, conds...)...)
	return b
}

func (b *QueryBuilder) GroupBy(exprs ...Expression) *QueryBuilder {
	b.q.GroupBy = append(b.q.GroupBy, exprs...)
	return b
}

// Having ANDs conds onto the current group filter.
func (b *QueryBuilder) Having(conds ...Expression) *QueryBuilder {
	b.q.Having = And(append([]Expression{b.q.Having}, conds...)...)
	return b
}

func (b *QueryBuilder) OrderBy(sorts ...Sort) *QueryBuilder {
	b.q.OrderBy = append(b.q.OrderBy, sorts...)
	return b
}

func (b *QueryBuilder) Offset(n int) *QueryBuilder {
	b.q.Offset = Ptr(n)
	return b
}

func (b *QueryBuilder) Limit(n int) *QueryBuilder {
	b.q.Limit = Ptr(n)
	return b
}

// Build returns a copy; the builder can keep going afterwards.
func (b *QueryBuilder) Build() *Select {
	q := b.q
	q.Columns = append([]Expression(nil), b.q.Columns...)
	q.From = append([]Source(nil), b.q.From...)
	q.Joins = append([]Join(nil), b.q.Joins...)
	q.GroupBy = append([]Expression(nil), b.q.GroupBy...)
	q.OrderBy = append([]Sort(nil), b.q.OrderBy...)
	return &q
}
