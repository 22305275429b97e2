package engine

import (
	"database/sql/driver"
	"strconv"
	"time"

	"github.com/mattn/go-sqlite3"
)

// ValueKind is the storage class of a Value.
type ValueKind int

const (
	Null ValueKind = iota
	Integer
	Float
	Text
	Blob
)

func (k ValueKind) String() string {
	switch k {
	case Integer:
		return "int"
	case Float:
		return "real"
	case Text:
		return "text"
	case Blob:
		return "blob"
	default:
		return "null"
	}
}

// Value is a typed cell of a result row.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Bytes []byte // Content of Text and Blob Values.
}

// IntValue returns an Integer Value.
func IntValue(i int64) Value { return Value{Kind: Integer, Int: i} }

// FloatValue returns a Float Value.
func FloatValue(f float64) Value { return Value{Kind: Float, Float: f} }

// TextValue returns a Text Value.
func TextValue(s string) Value { return Value{Kind: Text, Bytes: []byte(s)} }

// BlobValue returns a Blob Value.
func BlobValue(b []byte) Value { return Value{Kind: Blob, Bytes: b} }

// String formats the Value as text. Floats use the shortest representation
// which round-trips, and Null is "(null)".
func (v Value) String() string {
	switch v.Kind {
	case Integer:
		return strconv.FormatInt(v.Int, 10)
	case Float:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case Text, Blob:
		return string(v.Bytes)
	default:
		return "(null)"
	}
}

// fromDriver maps a value produced by the sqlite3 driver into a Value.
// The driver interprets some declared column types: booleans map back
// to Integer, and timestamps to Text.
func fromDriver(v driver.Value) Value {
	switch vv := v.(type) {
	case nil:
		return Value{}
	case int64:
		return IntValue(vv)
	case float64:
		return FloatValue(vv)
	case string:
		return TextValue(vv)
	case []byte:
		return BlobValue(vv)
	case bool:
		if vv {
			return IntValue(1)
		}
		return IntValue(0)
	case time.Time:
		return TextValue(vv.Format(sqlite3.SQLiteTimestampFormats[0]))
	default:
		panic("unexpected driver value type")
	}
}
