package mssql

import (
	"fmt"
	"math"
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

// Literal layouts are fixed ISO 8601 so the server parses them the same
// way under any session language or DATEFORMAT.
const (
	layoutDate           = "2006-01-02"
	layoutTime           = "15:04:05.0000000"
	layoutDateTime       = "2006-01-02T15:04:05.000"
	layoutDateTimeOffset = "2006-01-02T15:04:05.0000000-07:00"
)

// Literal renders v as T-SQL literal text. hint, when given, selects the
// rendering for values that fit several types (time.Time, JSON payloads,
// decimal scale).
func Literal(v any, hint *types.DbType) (string, error) {
	if v == nil {
		return "NULL", nil
	}

	if hint != nil {
		switch hint.Kind {
		case types.KindJSON, types.KindList:
			return jsonLiteral(v)
		case types.KindDate, types.KindTime, types.KindDateTime, types.KindDateTimeOffset:
			if t, ok := v.(time.Time); ok {
				return timeLiteral(t, *hint), nil
			}
		case types.KindDecimal:
			if d, ok := v.(decimal.Decimal); ok {
				return d.StringFixed(int32(hint.Scale)), nil
			}
		case types.KindUUID:
			if s, ok := v.(string); ok {
				u, err := uuid.Parse(s)
				if err != nil {
					return "", &adapters.TypeMappingError{Type: "UUID", Reason: err.Error()}
				}
				return uuidLiteral(u), nil
			}
		}
	}

	switch x := v.(type) {
	case string:
		return StringLiteral(x), nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(x), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return floatLiteral(float64(x), 32)
	case float64:
		return floatLiteral(x, 64)
	case decimal.Decimal:
		places := int32(0)
		if exp := x.Exponent(); exp < 0 {
			places = -exp
		}
		return x.StringFixed(places), nil
	case time.Time:
		return timeLiteral(x, types.DateTimeOffset(types.DefaultTimeScale)), nil
	case civil.Date:
		return "CONVERT(DATE, '" + x.String() + "')", nil
	case civil.Time:
		t := time.Date(2000, 1, 1, x.Hour, x.Minute, x.Second, x.Nanosecond, time.UTC)
		return timeLiteral(t, types.Time(types.DefaultTimeScale)), nil
	case uuid.UUID:
		return uuidLiteral(x), nil
	case mssqldb.UniqueIdentifier:
		return uuidLiteral(uuid.UUID(x)), nil
	case []byte:
		return HexLiteral(x), nil
	}
	return "", &adapters.TypeMappingError{
		Type:   fmt.Sprintf("%T", v),
		Reason: "no literal rendering for value",
	}
}

// StringLiteral renders s as a Unicode string literal.
func StringLiteral(s string) string {
	return "N'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func floatLiteral(f float64, bits int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", &adapters.TypeMappingError{
			Type:   "FLOAT" + strconv.Itoa(bits),
			Reason: "NaN and infinity have no literal form",
		}
	}
	return strconv.FormatFloat(f, 'g', -1, bits), nil
}

func timeLiteral(t time.Time, hint types.DbType) string {
	switch hint.Kind {
	case types.KindDate:
		return "CONVERT(DATE, '" + t.Format(layoutDate) + "')"
	case types.KindTime:
		return fmt.Sprintf("CONVERT(TIME(%d), '%s')", hint.Scale, t.Format(layoutTime))
	case types.KindDateTime:
		return "CONVERT(DATETIME, '" + t.Format(layoutDateTime) + "', 126)"
	}
	return fmt.Sprintf("CONVERT(DATETIMEOFFSET(%d), '%s')", hint.Scale, t.Format(layoutDateTimeOffset))
}

// uuidLiteral renders the bytes in the server's storage order, which is
// what a binary-to-UNIQUEIDENTIFIER conversion reads.
func uuidLiteral(u uuid.UUID) string {
	id := mssqldb.UniqueIdentifier(u)
	v, err := id.Value()
	if err != nil {
		return HexLiteral(u[:])
	}
	b, _ := v.([]byte)
	return HexLiteral(b)
}

func jsonLiteral(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return StringLiteral(x), nil
	case []byte:
		return StringLiteral(string(x)), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", &adapters.TypeMappingError{Type: "JSON", Reason: err.Error()}
	}
	return StringLiteral(string(data)), nil
}
