package base

import (
	"testing"

	"github.com/ruslano69/mssqldialect/pkg/core/ast"
)

func TestQuote(t *testing.T) {
	p := MSSQLPolicy()
	tests := []struct {
		name string
		want string
	}{
		{"Items", "[Items]"},
		{"a]b", "[a]]b]"},
		{"with space", "[with space]"},
		{"", "[]"},
	}
	for _, tt := range tests {
		if got := p.Quote(tt.name); got != tt.want {
			t.Errorf("Quote(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestQuoteObject(t *testing.T) {
	p := MSSQLPolicy()
	tests := []struct {
		obj  ast.ObjectName
		want string
	}{
		{ast.Name("Items"), "[Items]"},
		{ast.Name("Items", "dbo"), "[dbo].[Items]"},
		{ast.Name("Items", "dbo", "Shop"), "[Shop].[dbo].[Items]"},
		{ast.ObjectName{Name: "Items", Database: "Shop"}, "[Shop]..[Items]"},
	}
	for _, tt := range tests {
		if got := p.QuoteObject(tt.obj); got != tt.want {
			t.Errorf("QuoteObject(%v) = %q, want %q", tt.obj, got, tt.want)
		}
	}
}

func TestParseObjectName(t *testing.T) {
	p := MSSQLPolicy()
	tests := []struct {
		in   string
		want ast.ObjectName
	}{
		{"Items", ast.ObjectName{Name: "Items"}},
		{"dbo.Items", ast.ObjectName{Name: "Items", Schema: "dbo"}},
		{"[Shop].[dbo].[Items]", ast.ObjectName{Name: "Items", Schema: "dbo", Database: "Shop"}},
		{"[Shop]..[Items]", ast.ObjectName{Name: "Items", Database: "Shop"}},
		{"[dbo].[a.b]", ast.ObjectName{Name: "a.b", Schema: "dbo"}},
		{`dbo.a\.b`, ast.ObjectName{Name: "a.b", Schema: "dbo"}},
		{"[a]]b]", ast.ObjectName{Name: "a]b"}},
		{"[Товары]", ast.ObjectName{Name: "Товары"}},
	}
	for _, tt := range tests {
		got, err := p.ParseObjectName(tt.in)
		if err != nil {
			t.Errorf("ParseObjectName(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseObjectName(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseObjectNameErrors(t *testing.T) {
	p := MSSQLPolicy()
	for _, in := range []string{"", "[open", "a.b.c.d", "[a]x", "dbo."} {
		if _, err := p.ParseObjectName(in); err == nil {
			t.Errorf("ParseObjectName(%q) should fail", in)
		}
	}
}

func TestObjectNameRoundTrip(t *testing.T) {
	p := MSSQLPolicy()
	names := []ast.ObjectName{
		ast.Name("Items", "dbo"),
		ast.Name("a.b", "dbo", "Shop"),
		ast.Name("x]]y"),
		ast.Name("Заказы", "продажи"),
		ast.Name("[bracketed]"),
	}
	for _, n := range names {
		quoted := p.QuoteObject(n)
		parsed, err := p.ParseObjectName(quoted)
		if err != nil {
			t.Errorf("ParseObjectName(%q) error = %v", quoted, err)
			continue
		}
		if parsed != n {
			t.Errorf("ParseObjectName(%q) = %+v, want %+v", quoted, parsed, n)
		}
		if again := p.QuoteObject(parsed); again != quoted {
			t.Errorf("QuoteObject(parse(%q)) = %q", quoted, again)
		}
	}
}

func TestQualify(t *testing.T) {
	p := MSSQLPolicy()
	if got := p.Qualify(ast.Name("Items")); got.Schema != "dbo" {
		t.Errorf("Qualify().Schema = %q, want dbo", got.Schema)
	}
	if got := p.Qualify(ast.Name("Items", "sales")); got.Schema != "sales" {
		t.Errorf("Qualify().Schema = %q, want sales", got.Schema)
	}
}

func TestAliases(t *testing.T) {
	p := MSSQLPolicy()
	if got := p.AliasSource("[dbo].[Items]", "i"); got != "[dbo].[Items] AS [i]" {
		t.Errorf("AliasSource() = %q", got)
	}
	p.FieldAliasJoin = ""
	if got := p.AliasField("[x]", "y"); got != "[x] [y]" {
		t.Errorf("AliasField() = %q", got)
	}
	if got := p.Parameter("id"); got != "@id" {
		t.Errorf("Parameter() = %q, want @id", got)
	}
}

func TestApplyOverrides(t *testing.T) {
	p := MSSQLPolicy()
	err := p.ApplyOverrides(map[string]string{
		"default_schema":  "sales",
		"batch_separator": "\n;\n",
	})
	if err != nil {
		t.Fatalf("ApplyOverrides() error = %v", err)
	}
	if p.DefaultSchema != "sales" || p.BatchSeparator != "\n;\n" {
		t.Errorf("ApplyOverrides() policy = %+v", p)
	}

	if err := p.ApplyOverrides(map[string]string{"quote": "`"}); err == nil {
		t.Error("ApplyOverrides() should reject unknown keys")
	}
}
