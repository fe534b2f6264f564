package mssql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	mssqldb "github.com/denisenkom/go-mssqldb"

	"github.com/ruslano69/mssqldialect/pkg/adapters"
	"github.com/ruslano69/mssqldialect/pkg/core/types"
)

// Type mapping for SQL Server 2012+
//
// DbType             SQL Server type        Notes
// ────────────────────────────────────────────────────────────
// STRING(n)          NVARCHAR(n|MAX)        n <= 4000, Unicode always
// INT8..INT64        TINYINT..BIGINT
// DECIMAL(p,s)       DECIMAL(p,s)           precision required
// FLOAT32, FLOAT64   REAL, FLOAT(53)
// BOOLEAN            BIT
// DATE               DATE
// TIME(s)            TIME(s)                s <= 7
// DATETIME           DATETIME               DATETIME2 parses back here
// DATETIMEOFFSET(s)  DATETIMEOFFSET(s)
// BINARY(n)          VARBINARY(n|MAX)       n <= 8000
// UUID               UNIQUEIDENTIFIER
// JSON, LIST         NVARCHAR(MAX)          parses back as STRING(MAX)
// ROWFLAG            ROWVERSION             TIMESTAMP is a synonym
// RAW(sql)           sql verbatim

const (
	maxNVarChar  = 4000
	maxVarBinary = 8000
)

// NativeType is the driver-level descriptor a DbType binds as.
type NativeType struct {
	Name      string
	Length    int // 0 = MAX for character and binary types
	Precision int
	Scale     int

	kind types.Kind
}

// ToNativeType returns the native descriptor for t.
func ToNativeType(t types.DbType) (NativeType, error) {
	if err := t.Validate(); err != nil {
		return NativeType{}, &adapters.TypeMappingError{Type: t.String(), Reason: err.Error()}
	}

	n := NativeType{kind: t.Kind}
	switch t.Kind {
	case types.KindString:
		if t.Size > maxNVarChar {
			return NativeType{}, sizeError(t, maxNVarChar)
		}
		n.Name, n.Length = "NVARCHAR", t.Size
	case types.KindInt8:
		n.Name = "TINYINT"
	case types.KindInt16:
		n.Name = "SMALLINT"
	case types.KindInt32:
		n.Name = "INT"
	case types.KindInt64:
		n.Name = "BIGINT"
	case types.KindDecimal:
		n.Name, n.Precision, n.Scale = "DECIMAL", t.Precision, t.Scale
	case types.KindFloat32:
		n.Name = "REAL"
	case types.KindFloat64:
		n.Name, n.Precision = "FLOAT", 53
	case types.KindBoolean:
		n.Name = "BIT"
	case types.KindDate:
		n.Name = "DATE"
	case types.KindTime:
		n.Name, n.Scale = "TIME", t.Scale
	case types.KindDateTime:
		n.Name = "DATETIME"
	case types.KindDateTimeOffset:
		n.Name, n.Scale = "DATETIMEOFFSET", t.Scale
	case types.KindBinary:
		if t.Size > maxVarBinary {
			return NativeType{}, sizeError(t, maxVarBinary)
		}
		n.Name, n.Length = "VARBINARY", t.Size
	case types.KindUUID:
		n.Name = "UNIQUEIDENTIFIER"
	case types.KindJSON, types.KindList:
		n.Name, n.Length = "NVARCHAR", types.Max
	case types.KindRowFlag:
		n.Name = "ROWVERSION"
	case types.KindRaw:
		n.Name = t.SQL
	default:
		return NativeType{}, &adapters.TypeMappingError{Type: t.String(), Reason: "no native type"}
	}
	return n, nil
}

func sizeError(t types.DbType, limit int) error {
	return &adapters.TypeMappingError{
		Type:   t.String(),
		Reason: fmt.Sprintf("size %d exceeds %d, use MAX", t.Size, limit),
	}
}

// SQL renders the descriptor as column type syntax.
func (n NativeType) SQL() string {
	switch n.kind {
	case types.KindString, types.KindBinary, types.KindJSON, types.KindList:
		if n.Length == types.Max {
			return n.Name + "(MAX)"
		}
		return n.Name + "(" + strconv.Itoa(n.Length) + ")"
	case types.KindDecimal:
		return fmt.Sprintf("%s(%d,%d)", n.Name, n.Precision, n.Scale)
	case types.KindFloat64:
		return fmt.Sprintf("%s(%d)", n.Name, n.Precision)
	case types.KindTime, types.KindDateTimeOffset:
		return n.Name + "(" + strconv.Itoa(n.Scale) + ")"
	}
	return n.Name
}

// Bind converts v into the value the driver sends for this native type.
// nil binds as NULL.
func (n NativeType) Bind(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch n.kind {
	case types.KindString:
		s, ok := v.(string)
		if !ok {
			return nil, bindError(n, v)
		}
		if n.Length == types.Max {
			return mssqldb.NVarCharMax(s), nil
		}
		return s, nil

	case types.KindInt8, types.KindInt16, types.KindInt32, types.KindInt64:
		i, ok := toInt64(v)
		if !ok {
			return nil, bindError(n, v)
		}
		return i, nil

	case types.KindDecimal:
		switch x := v.(type) {
		case decimal.Decimal:
			return x.StringFixed(int32(n.Scale)), nil
		case string:
			d, err := decimal.NewFromString(x)
			if err != nil {
				return nil, fmt.Errorf("bind %s: %w", n.SQL(), err)
			}
			return d.StringFixed(int32(n.Scale)), nil
		case float64:
			return decimal.NewFromFloat(x).StringFixed(int32(n.Scale)), nil
		}
		if i, ok := toInt64(v); ok {
			return decimal.NewFromInt(i).StringFixed(int32(n.Scale)), nil
		}
		return nil, bindError(n, v)

	case types.KindFloat32, types.KindFloat64:
		switch x := v.(type) {
		case float32:
			return float64(x), nil
		case float64:
			return x, nil
		}
		if i, ok := toInt64(v); ok {
			return float64(i), nil
		}
		return nil, bindError(n, v)

	case types.KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, bindError(n, v)
		}
		return b, nil

	case types.KindDate:
		switch x := v.(type) {
		case time.Time:
			return civil.DateOf(x), nil
		case civil.Date:
			return x, nil
		}
		return nil, bindError(n, v)

	case types.KindTime:
		switch x := v.(type) {
		case time.Time:
			return civil.TimeOf(x), nil
		case civil.Time:
			return x, nil
		}
		return nil, bindError(n, v)

	case types.KindDateTime:
		if x, ok := v.(time.Time); ok {
			return mssqldb.DateTime1(x), nil
		}
		return nil, bindError(n, v)

	case types.KindDateTimeOffset:
		if x, ok := v.(time.Time); ok {
			return mssqldb.DateTimeOffset(x), nil
		}
		return nil, bindError(n, v)

	case types.KindBinary, types.KindRowFlag:
		b, ok := v.([]byte)
		if !ok {
			return nil, bindError(n, v)
		}
		return b, nil

	case types.KindUUID:
		switch x := v.(type) {
		case uuid.UUID:
			return mssqldb.UniqueIdentifier(x), nil
		case string:
			u, err := uuid.Parse(x)
			if err != nil {
				return nil, fmt.Errorf("bind %s: %w", n.SQL(), err)
			}
			return mssqldb.UniqueIdentifier(u), nil
		}
		return nil, bindError(n, v)

	case types.KindJSON, types.KindList:
		if s, ok := v.(string); ok {
			return mssqldb.NVarCharMax(s), nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("bind %s: %w", n.SQL(), err)
		}
		return mssqldb.NVarCharMax(data), nil
	}
	return v, nil
}

// OutDest returns a pointer suitable as sql.Out.Dest for this type.
func (n NativeType) OutDest() any {
	switch n.kind {
	case types.KindString, types.KindJSON, types.KindList:
		return new(string)
	case types.KindInt8, types.KindInt16, types.KindInt32, types.KindInt64:
		return new(int64)
	case types.KindDecimal:
		return new(decimal.Decimal)
	case types.KindFloat32, types.KindFloat64:
		return new(float64)
	case types.KindBoolean:
		return new(bool)
	case types.KindDate, types.KindTime, types.KindDateTime, types.KindDateTimeOffset:
		return new(time.Time)
	case types.KindBinary, types.KindRowFlag:
		return new([]byte)
	case types.KindUUID:
		return new(mssqldb.UniqueIdentifier)
	}
	return new(any)
}

func bindError(n NativeType, v any) error {
	return &adapters.TypeMappingError{
		Type:   n.SQL(),
		Reason: fmt.Sprintf("cannot bind value of type %T", v),
	}
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	}
	return 0, false
}

// ToSQLSyntax renders t as T-SQL column type syntax.
func ToSQLSyntax(t types.DbType) (string, error) {
	n, err := ToNativeType(t)
	if err != nil {
		return "", err
	}
	return n.SQL(), nil
}

// typePattern matches name[(MAX|n[,m])].
var typePattern = regexp.MustCompile(`(?i)^\s*(\w+)\s*(?:\(\s*(?:(max)|(\d+)(?:\s*,\s*(\d+))?)\s*\))?\s*$`)

// ParseSQLSyntax is the inverse of ToSQLSyntax. Text that is well formed
// but names a type outside the taxonomy (XML, SQL_VARIANT, ...) comes
// back as RAW; malformed text is an error.
func ParseSQLSyntax(s string) (types.DbType, error) {
	m := typePattern.FindStringSubmatch(s)
	if m == nil {
		return types.DbType{}, &adapters.TypeMappingError{Type: s, Reason: "cannot parse type syntax"}
	}

	name := strings.ToUpper(m[1])
	isMax := m[2] != ""
	hasArg := m[3] != ""
	arg1, _ := strconv.Atoi(m[3])
	arg2, _ := strconv.Atoi(m[4])

	size := func() int {
		if isMax || !hasArg {
			return types.Max
		}
		return arg1
	}

	switch name {
	case "NVARCHAR", "VARCHAR", "NCHAR", "CHAR":
		return types.String(size()), nil
	case "TEXT", "NTEXT":
		return types.String(types.Max), nil
	case "TINYINT":
		return types.Int8(), nil
	case "SMALLINT":
		return types.Int16(), nil
	case "INT", "INTEGER":
		return types.Int32(), nil
	case "BIGINT":
		return types.Int64(), nil
	case "DECIMAL", "NUMERIC":
		// Omitted precision and scale take the server defaults 18 and 0.
		if isMax {
			break
		}
		if !hasArg {
			return types.Decimal(18, 0), nil
		}
		return types.Decimal(arg1, arg2), nil
	case "MONEY":
		return types.Decimal(19, 4), nil
	case "SMALLMONEY":
		return types.Decimal(10, 4), nil
	case "REAL":
		return types.Float32(), nil
	case "FLOAT":
		if hasArg && arg1 <= 24 {
			return types.Float32(), nil
		}
		return types.Float64(), nil
	case "BIT":
		return types.Boolean(), nil
	case "DATE":
		return types.Date(), nil
	case "TIME":
		if hasArg {
			return types.Time(arg1), nil
		}
		return types.Time(types.DefaultTimeScale), nil
	case "DATETIME", "DATETIME2", "SMALLDATETIME":
		return types.DateTime(), nil
	case "DATETIMEOFFSET":
		if hasArg {
			return types.DateTimeOffset(arg1), nil
		}
		return types.DateTimeOffset(types.DefaultTimeScale), nil
	case "VARBINARY", "BINARY":
		return types.Binary(size()), nil
	case "IMAGE":
		return types.Binary(types.Max), nil
	case "UNIQUEIDENTIFIER":
		return types.UUID(), nil
	case "JSON":
		return types.JSON(), nil
	case "ROWVERSION", "TIMESTAMP":
		return types.RowFlag(), nil
	default:
		return types.Raw(strings.TrimSpace(s)), nil
	}
	return types.DbType{}, &adapters.TypeMappingError{Type: s, Reason: "MAX is not valid here"}
}

// TypeMapper adapts the package functions to adapters.TypeMapper.
type TypeMapper struct{}

func (TypeMapper) ToSQLSyntax(t types.DbType) (string, error)    { return ToSQLSyntax(t) }
func (TypeMapper) ParseSQLSyntax(s string) (types.DbType, error) { return ParseSQLSyntax(s) }
func (TypeMapper) Literal(v any, hint *types.DbType) (string, error) {
	return Literal(v, hint)
}
