package base

import (
	"fmt"
	"strings"
)

// Pagination selects how a dialect renders row windows.
type Pagination int

const (
	// PaginationOffsetFetch: ORDER BY ... OFFSET n ROWS FETCH NEXT m ROWS ONLY.
	// Requires an ORDER BY; a default one is injected when absent.
	PaginationOffsetFetch Pagination = iota
	// PaginationLimitOffset: LIMIT m OFFSET n.
	PaginationLimitOffset
)

// Policy is the data that distinguishes one dialect's surface syntax from
// another. Renderers read it instead of overriding methods.
type Policy struct {
	QuoteLeft        string
	QuoteRight       string
	ParameterPrefix  string
	VariantPrefix    string
	SetsAliasJoin    string // keyword between a row source and its alias
	FieldAliasJoin   string // keyword between a select item and its alias
	ParameterOutWord string // trails output parameters
	BatchSeparator   string
	DefaultSchema    string
	Pagination       Pagination
}

// MSSQLPolicy returns the Transact-SQL policy.
func MSSQLPolicy() Policy {
	return Policy{
		QuoteLeft:        "[",
		QuoteRight:       "]",
		ParameterPrefix:  "@",
		VariantPrefix:    "@",
		SetsAliasJoin:    "AS",
		FieldAliasJoin:   "AS",
		ParameterOutWord: "OUT",
		BatchSeparator:   "\nGO\n",
		DefaultSchema:    "dbo",
		Pagination:       PaginationOffsetFetch,
	}
}

// Quote quotes an identifier, doubling any closing quote inside it.
func (p Policy) Quote(name string) string {
	if p.QuoteRight != "" {
		name = strings.ReplaceAll(name, p.QuoteRight, p.QuoteRight+p.QuoteRight)
	}
	return p.QuoteLeft + name + p.QuoteRight
}

// Parameter renders a bind parameter reference.
func (p Policy) Parameter(name string) string {
	return p.ParameterPrefix + name
}

// Variant renders a local variable reference.
func (p Policy) Variant(name string) string {
	return p.VariantPrefix + name
}

// AliasSource renders "<sql> AS [alias]" for row sources.
func (p Policy) AliasSource(sql, alias string) string {
	return joinAlias(sql, p.SetsAliasJoin, p.Quote(alias))
}

// AliasField renders "<sql> AS [alias]" for select items.
func (p Policy) AliasField(sql, alias string) string {
	return joinAlias(sql, p.FieldAliasJoin, p.Quote(alias))
}

func joinAlias(sql, word, alias string) string {
	if word == "" {
		return sql + " " + alias
	}
	return sql + " " + word + " " + alias
}

// policyKeys maps config keys to policy fields.
var policyKeys = map[string]func(*Policy, string){
	"quote_left":         func(p *Policy, v string) { p.QuoteLeft = v },
	"quote_right":        func(p *Policy, v string) { p.QuoteRight = v },
	"parameter_prefix":   func(p *Policy, v string) { p.ParameterPrefix = v },
	"variant_prefix":     func(p *Policy, v string) { p.VariantPrefix = v },
	"sets_alias_join":    func(p *Policy, v string) { p.SetsAliasJoin = v },
	"field_alias_join":   func(p *Policy, v string) { p.FieldAliasJoin = v },
	"parameter_out_word": func(p *Policy, v string) { p.ParameterOutWord = v },
	"batch_separator":    func(p *Policy, v string) { p.BatchSeparator = v },
	"default_schema":     func(p *Policy, v string) { p.DefaultSchema = v },
}

// ApplyOverrides sets fields from a config map. Unknown keys are an error
// so typos do not pass silently.
func (p *Policy) ApplyOverrides(overrides map[string]string) error {
	for k, v := range overrides {
		set, ok := policyKeys[k]
		if !ok {
			return fmt.Errorf("unknown dialect option: %s", k)
		}
		set(p, v)
	}
	return nil
}
