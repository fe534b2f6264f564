package types

import "testing"

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindString, "STRING"},
		{KindDateTimeOffset, "DATETIMEOFFSET"},
		{KindRowFlag, "ROWFLAG"},
		{Kind(200), "Kind(200)"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestDbTypeString(t *testing.T) {
	tests := []struct {
		typ  DbType
		want string
	}{
		{String(120), "STRING(120)"},
		{String(Max), "STRING(MAX)"},
		{Binary(Max), "BINARY(MAX)"},
		{Decimal(18, 2), "DECIMAL(18,2)"},
		{Time(3), "TIME(3)"},
		{List(Int32()), "LIST<INT32>"},
		{Raw("XML"), "RAW(XML)"},
		{UUID(), "UUID"},
	}

	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDbTypeValidate(t *testing.T) {
	tests := []struct {
		name    string
		typ     DbType
		wantErr bool
	}{
		{"string", String(50), false},
		{"negative size", String(-1), true},
		{"decimal", Decimal(10, 2), false},
		{"decimal without precision", DbType{Kind: KindDecimal}, true},
		{"decimal scale > precision", Decimal(4, 6), true},
		{"time scale", Time(8), true},
		{"list", List(String(10)), false},
		{"list without elem", DbType{Kind: KindList}, true},
		{"empty raw", Raw(""), true},
		{"invalid", DbType{}, true},
		{"unknown", DbType{Kind: Kind(99)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.typ.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDbTypeEqual(t *testing.T) {
	if !List(Int32()).Equal(List(Int32())) {
		t.Error("List(Int32()) should equal itself")
	}
	if List(Int32()).Equal(List(Int64())) {
		t.Error("List(Int32()) should not equal List(Int64())")
	}
	if String(10).Equal(String(Max)) {
		t.Error("String(10) should not equal String(Max)")
	}
	if !String(Max).IsMax() {
		t.Error("String(Max).IsMax() = false, want true")
	}
	if Int32().IsMax() {
		t.Error("Int32().IsMax() = true, want false")
	}
}
