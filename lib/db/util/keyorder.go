package util

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Canonical Key Order
// --------------------------------------------------------------------------

// Keys are ordered first by type class, then within the class:
//
//	nil < booleans < numbers < strings < byte slices < everything else
//
// All integer and float types share one numeric class, so the key 2 sorts
// between 1.5 and 3 regardless of its Go type. Values outside the listed
// classes are ordered by their formatted representation, which keeps the
// order total.
const (
	classNil = iota
	classBool
	classNumber
	classString
	classBytes
	classOther
)

func classOf(v any) int {
	switch v.(type) {
	case nil:
		return classNil
	case bool:
		return classBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return classNumber
	case string:
		return classString
	case []byte:
		return classBytes
	default:
		return classOther
	}
}

// CompareKeys imposes the engine's native total key order on two key values.
// It returns -1, 0 or 1 if a sorts before, equal to or after b.
func CompareKeys(a, b any) int {
	ca, cb := classOf(a), classOf(b)
	if ca != cb {
		if ca < cb {
			return -1
		}
		return 1
	}

	switch ca {
	case classNil:
		return 0
	case classBool:
		av, bv := a.(bool), b.(bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case classNumber:
		return compareNumbers(a, b)
	case classString:
		return strings.Compare(a.(string), b.(string))
	case classBytes:
		return bytes.Compare(a.([]byte), b.([]byte))
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

// KeyString returns a canonical textual form of a key, stable across the Go
// types of the numeric class (the int 1 and the float 1.0 map to the same
// string). It is used by engines that need keys as map indices.
func KeyString(v any) string {
	switch classOf(v) {
	case classNil:
		return "n:"
	case classBool:
		return fmt.Sprintf("b:%t", v.(bool))
	case classNumber:
		if i, u, isInt := intValue(v); isInt {
			if u != 0 {
				return "i:" + strconv.FormatUint(u, 10)
			}
			return "i:" + strconv.FormatInt(i, 10)
		}
		f := floatValue(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return "i:" + strconv.FormatInt(int64(f), 10)
		}
		return "f:" + strconv.FormatFloat(f, 'g', -1, 64)
	case classString:
		return "s:" + v.(string)
	case classBytes:
		return "y:" + string(v.([]byte))
	default:
		return "o:" + fmt.Sprint(v)
	}
}

// --------------------------------------------------------------------------
// Numeric Helpers
// --------------------------------------------------------------------------

// intValue reports whether v is of an integer type. Values that exceed
// math.MaxInt64 are returned through the uint64 result (u != 0 only then).
func intValue(v any) (i int64, u uint64, ok bool) {
	switch n := v.(type) {
	case int:
		return int64(n), 0, true
	case int8:
		return int64(n), 0, true
	case int16:
		return int64(n), 0, true
	case int32:
		return int64(n), 0, true
	case int64:
		return n, 0, true
	case uint:
		return intFromUint(uint64(n))
	case uint8:
		return int64(n), 0, true
	case uint16:
		return int64(n), 0, true
	case uint32:
		return int64(n), 0, true
	case uint64:
		return intFromUint(n)
	default:
		return 0, 0, false
	}
}

func intFromUint(n uint64) (int64, uint64, bool) {
	if n > math.MaxInt64 {
		return 0, n, true
	}
	return int64(n), 0, true
}

func floatValue(v any) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		i, u, _ := intValue(v)
		if u != 0 {
			return float64(u)
		}
		return float64(i)
	}
}

func compareNumbers(a, b any) int {
	ai, au, aInt := intValue(a)
	bi, bu, bInt := intValue(b)

	// Exact comparison while both sides are integers
	if aInt && bInt {
		switch {
		case au != 0 && bu != 0:
			return compareOrdered(au, bu)
		case au != 0:
			return 1
		case bu != 0:
			return -1
		default:
			return compareOrdered(ai, bi)
		}
	}

	return compareOrdered(floatValue(a), floatValue(b))
}

func compareOrdered[T int64 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
