// Package types holds Tubular's closed data-type lattice and its mapping
// onto WebAssembly value types.
package types

// DataType is one of the four base kinds Tubular values can carry. The
// numeric value of each constant doubles as its rank in the promotion
// lattice: CHAR < INTEGER < DOUBLE < STRING.
type DataType int

const (
	CHAR DataType = iota
	INTEGER
	DOUBLE
	STRING
)

func (t DataType) String() string {
	switch t {
	case CHAR:
		return "char"
	case INTEGER:
		return "int"
	case DOUBLE:
		return "double"
	case STRING:
		return "string"
	default:
		return "unknown"
	}
}

// IsNumeric reports whether t participates in arithmetic promotion.
func IsNumeric(t DataType) bool {
	return t == CHAR || t == INTEGER || t == DOUBLE
}

// Promote returns the lower bound on the lattice that both a and b can be
// widened to without loss: the larger of the two ranks.
func Promote(a, b DataType) DataType {
	if a > b {
		return a
	}
	return b
}

// WatRepr returns the WebAssembly value type used to hold a value of kind t.
// CHAR, INTEGER and STRING (a memory address) are all i32; DOUBLE is f64.
func WatRepr(t DataType) string {
	if t == DOUBLE {
		return "f64"
	}
	return "i32"
}
