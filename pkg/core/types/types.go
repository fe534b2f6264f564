package types

import (
	"fmt"
	"strconv"
)

// Kind identifies a DbType variant.
type Kind uint8

// Supported logical types. The set is closed: every dialect must map each
// of them (Raw excepted) to exactly one native type and one literal rule.
const (
	KindInvalid Kind = iota
	KindString
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindDecimal
	KindFloat32
	KindFloat64
	KindBoolean
	KindDate
	KindTime
	KindDateTime
	KindDateTimeOffset
	KindBinary
	KindUUID
	KindJSON
	KindList
	KindRowFlag
	KindRaw
)

var kindNames = [...]string{
	KindInvalid:        "INVALID",
	KindString:         "STRING",
	KindInt8:           "INT8",
	KindInt16:          "INT16",
	KindInt32:          "INT32",
	KindInt64:          "INT64",
	KindDecimal:        "DECIMAL",
	KindFloat32:        "FLOAT32",
	KindFloat64:        "FLOAT64",
	KindBoolean:        "BOOLEAN",
	KindDate:           "DATE",
	KindTime:           "TIME",
	KindDateTime:       "DATETIME",
	KindDateTimeOffset: "DATETIMEOFFSET",
	KindBinary:         "BINARY",
	KindUUID:           "UUID",
	KindJSON:           "JSON",
	KindList:           "LIST",
	KindRowFlag:        "ROWFLAG",
	KindRaw:            "RAW",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Max is the size sentinel for unbounded STRING and BINARY columns.
const Max = 0

// Default fractional-second scale for TIME and DATETIMEOFFSET.
const DefaultTimeScale = 7

// DbType is a logical column/parameter type.
//
// Field usage by kind:
//
//	STRING, BINARY          Size (Max = unbounded)
//	DECIMAL                 Precision, Scale
//	TIME, DATETIMEOFFSET    Scale (fractional seconds)
//	LIST                    Elem
//	RAW                     SQL
type DbType struct {
	Kind      Kind
	Size      int
	Precision int
	Scale     int
	Elem      *DbType
	SQL       string
}

func String(size int) DbType          { return DbType{Kind: KindString, Size: size} }
func Int8() DbType                    { return DbType{Kind: KindInt8} }
func Int16() DbType                   { return DbType{Kind: KindInt16} }
func Int32() DbType                   { return DbType{Kind: KindInt32} }
func Int64() DbType                   { return DbType{Kind: KindInt64} }
func Float32() DbType                 { return DbType{Kind: KindFloat32} }
func Float64() DbType                 { return DbType{Kind: KindFloat64} }
func Boolean() DbType                 { return DbType{Kind: KindBoolean} }
func Date() DbType                    { return DbType{Kind: KindDate} }
func DateTime() DbType                { return DbType{Kind: KindDateTime} }
func Binary(size int) DbType          { return DbType{Kind: KindBinary, Size: size} }
func UUID() DbType                    { return DbType{Kind: KindUUID} }
func JSON() DbType                    { return DbType{Kind: KindJSON} }
func RowFlag() DbType                 { return DbType{Kind: KindRowFlag} }
func Raw(sql string) DbType           { return DbType{Kind: KindRaw, SQL: sql} }
func Time(scale int) DbType           { return DbType{Kind: KindTime, Scale: scale} }
func DateTimeOffset(scale int) DbType { return DbType{Kind: KindDateTimeOffset, Scale: scale} }
func Decimal(precision, scale int) DbType {
	return DbType{Kind: KindDecimal, Precision: precision, Scale: scale}
}

// List describes an array of elem values.
func List(elem DbType) DbType {
	return DbType{Kind: KindList, Elem: &elem}
}

// IsMax reports whether a sized type is unbounded.
func (t DbType) IsMax() bool {
	return (t.Kind == KindString || t.Kind == KindBinary) && t.Size == Max
}

// IsNumeric reports whether values of t are numbers.
func (t DbType) IsNumeric() bool {
	switch t.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64, KindDecimal, KindFloat32, KindFloat64:
		return true
	default:
		return false
	}
}

// IsTemporal reports whether values of t are dates or times.
func (t DbType) IsTemporal() bool {
	switch t.Kind {
	case KindDate, KindTime, KindDateTime, KindDateTimeOffset:
		return true
	default:
		return false
	}
}

// Equal compares two types structurally.
func (t DbType) Equal(o DbType) bool {
	if t.Kind != o.Kind || t.Size != o.Size || t.Precision != o.Precision ||
		t.Scale != o.Scale || t.SQL != o.SQL {
		return false
	}
	if t.Elem == nil || o.Elem == nil {
		return t.Elem == o.Elem
	}
	return t.Elem.Equal(*o.Elem)
}

// Validate checks the per-kind field constraints that do not depend on a
// dialect.
func (t DbType) Validate() error {
	switch t.Kind {
	case KindInvalid:
		return fmt.Errorf("type kind is not set")
	case KindString, KindBinary:
		if t.Size < 0 {
			return fmt.Errorf("%s size must be >= 0, got %d", t.Kind, t.Size)
		}
	case KindDecimal:
		if t.Precision <= 0 {
			return fmt.Errorf("DECIMAL requires precision and scale")
		}
		if t.Scale < 0 || t.Scale > t.Precision {
			return fmt.Errorf("DECIMAL scale must be between 0 and %d, got %d", t.Precision, t.Scale)
		}
	case KindTime, KindDateTimeOffset:
		if t.Scale < 0 || t.Scale > DefaultTimeScale {
			return fmt.Errorf("%s scale must be between 0 and %d, got %d", t.Kind, DefaultTimeScale, t.Scale)
		}
	case KindList:
		if t.Elem == nil {
			return fmt.Errorf("LIST requires an element type")
		}
		return t.Elem.Validate()
	case KindRaw:
		if t.SQL == "" {
			return fmt.Errorf("RAW type has empty SQL")
		}
	}
	if t.Kind > KindRaw {
		return fmt.Errorf("unknown type kind %s", t.Kind)
	}
	return nil
}

// String returns a dialect-neutral debug form such as DECIMAL(18,2).
func (t DbType) String() string {
	switch t.Kind {
	case KindString, KindBinary:
		if t.Size == Max {
			return t.Kind.String() + "(MAX)"
		}
		return fmt.Sprintf("%s(%d)", t.Kind, t.Size)
	case KindDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Precision, t.Scale)
	case KindTime, KindDateTimeOffset:
		return fmt.Sprintf("%s(%d)", t.Kind, t.Scale)
	case KindList:
		if t.Elem == nil {
			return "LIST"
		}
		return "LIST<" + t.Elem.String() + ">"
	case KindRaw:
		return "RAW(" + t.SQL + ")"
	default:
		return t.Kind.String()
	}
}
