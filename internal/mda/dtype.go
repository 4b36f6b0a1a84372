package mda

import "fmt"

// DType is the type code stored in the first header field.
type DType int32

const (
	// Complex64 is only produced by legacy headers, whose first field is the
	// dimension count instead of a type code.
	Complex64 DType = -1
	Uint8     DType = -2
	Float32   DType = -3
	Int16     DType = -4
	Int32     DType = -5
	Uint16    DType = -6
	Float64   DType = -7
	Uint32    DType = -8
)

// Size returns the bytes per element, or 0 for an unknown code.
func (d DType) Size() int {
	switch d {
	case Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Float32, Int32, Uint32:
		return 4
	case Float64, Complex64:
		return 8
	default:
		return 0
	}
}

// Valid reports whether d is a known type code.
func (d DType) Valid() bool {
	return d.Size() > 0
}

func (d DType) String() string {
	switch d {
	case Complex64:
		return "complex64"
	case Uint8:
		return "uint8"
	case Float32:
		return "float32"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Uint16:
		return "uint16"
	case Float64:
		return "float64"
	case Uint32:
		return "uint32"
	default:
		return fmt.Sprintf("dtype(%d)", int32(d))
	}
}

// Element is the set of Go types an Array can hold.
type Element interface {
	uint8 | float32 | int16 | int32 | uint16 | float64 | uint32 | complex64
}

// dtypeOf maps an element type to its code.
func dtypeOf[T Element]() DType {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return Uint8
	case float32:
		return Float32
	case int16:
		return Int16
	case int32:
		return Int32
	case uint16:
		return Uint16
	case float64:
		return Float64
	case uint32:
		return Uint32
	default:
		return Complex64
	}
}
