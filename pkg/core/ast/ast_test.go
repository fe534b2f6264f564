package ast

import "testing"

func TestObjectNameString(t *testing.T) {
	tests := []struct {
		name ObjectName
		want string
	}{
		{Name("Items"), "Items"},
		{Name("Items", "dbo"), "dbo.Items"},
		{Name("Items", "dbo", "Shop"), "Shop.dbo.Items"},
		{ObjectName{Name: "Items", Database: "Shop"}, "Shop..Items"},
	}

	for _, tt := range tests {
		if got := tt.name.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}

	if !(ObjectName{}).IsZero() {
		t.Error("zero ObjectName should report IsZero")
	}
}

func TestAndSkipsNil(t *testing.T) {
	if And() != nil {
		t.Error("And() with no conditions should be nil")
	}

	a := Eq(Col("A"), Lit(1))
	if got := And(nil, a, nil); got != a {
		t.Errorf("And(nil, a, nil) = %v, want a", got)
	}

	b := Eq(Col("B"), Lit(2))
	c := Eq(Col("C"), Lit(3))
	got, ok := Or(a, b, c).(*Binary)
	if !ok || got.Op != OpOr {
		t.Fatalf("Or() = %v, want *Binary OR", got)
	}
	left, ok := got.Left.(*Binary)
	if !ok || left.Left != a || left.Right != b || got.Right != c {
		t.Error("Or() should fold left to right")
	}
}

func TestNodeCategories(t *testing.T) {
	var _ Expression = &Raw{}
	var _ Statement = &Raw{}
	var _ Statement = &CreateView{}
	var _ TableMember = &ColumnDef{}
	var _ AlterAction = &AlterColumn{}
	var _ Source = &Derived{}
	var _ Declaration = &TableVariableDecl{}

	if got := (&CreateProcedure{ProcedureDef{Name: Name("p_Sync")}}).String(); got != "CreateProcedure: p_Sync" {
		t.Errorf("String() = %q, want %q", got, "CreateProcedure: p_Sync")
	}
	if got := OpShl.String(); got != "<<" {
		t.Errorf("OpShl.String() = %q, want %q", got, "<<")
	}
	if got := BinaryOperator(0).String(); got != "?" {
		t.Errorf("BinaryOperator(0).String() = %q, want %q", got, "?")
	}
}
