package mda

import (
	"fmt"

	"msconvert/internal/services"
)

// Array is an n-dimensional array stored column-major: the first index
// varies fastest.
type Array struct {
	DType DType
	Dims  []int
	// Data is a []T for the Go type matching DType.
	Data any
}

// New wraps column-major data with the given dimensions.
func New[T Element](dims []int, data []T) (*Array, error) {
	n, err := elementCount(dims)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != n {
		return nil, services.Wrap(services.ErrValidation, "mda", "new array",
			fmt.Sprintf("dims %v hold %d elements, got %d", dims, n, len(data)), nil)
	}
	return &Array{DType: dtypeOf[T](), Dims: append([]int(nil), dims...), Data: data}, nil
}

// FromRows builds a 2-D array from row-major input, transposing it into
// column-major storage. rows[i][j] becomes element (i, j).
func FromRows[T Element](rows [][]T) (*Array, error) {
	nrows := len(rows)
	ncols := 0
	if nrows > 0 {
		ncols = len(rows[0])
	}
	data := make([]T, nrows*ncols)
	for i, row := range rows {
		if len(row) != ncols {
			return nil, services.Wrap(services.ErrValidation, "mda", "from rows",
				fmt.Sprintf("row %d has %d columns, want %d", i, len(row), ncols), nil)
		}
		for j, v := range row {
			data[i+j*nrows] = v
		}
	}
	return New([]int{nrows, ncols}, data)
}

// Values returns the array's elements if they are of type T.
func Values[T Element](a *Array) ([]T, error) {
	v, ok := a.Data.([]T)
	if !ok {
		return nil, services.Wrap(services.ErrUnsupportedType, "mda", "values",
			fmt.Sprintf("array holds %s, not %s", a.DType, dtypeOf[T]()), nil)
	}
	return v, nil
}

// Rows returns a 2-D array as row-major slices of T.
func Rows[T Element](a *Array) ([][]T, error) {
	if len(a.Dims) != 2 {
		return nil, services.Wrap(services.ErrValidation, "mda", "rows",
			fmt.Sprintf("array has %d dimensions, want 2", len(a.Dims)), nil)
	}
	data, err := Values[T](a)
	if err != nil {
		return nil, err
	}
	nrows, ncols := a.Dims[0], a.Dims[1]
	rows := make([][]T, nrows)
	for i := range rows {
		rows[i] = make([]T, ncols)
		for j := range rows[i] {
			rows[i][j] = data[i+j*nrows]
		}
	}
	return rows, nil
}

// Len returns the number of elements.
func (a *Array) Len() int {
	n, _ := elementCount(a.Dims)
	return int(n)
}

// Float64s converts every element to float64, in storage order. Complex
// elements contribute their real part.
func (a *Array) Float64s() []float64 {
	switch v := a.Data.(type) {
	case []float64:
		return append([]float64(nil), v...)
	case []float32:
		return convert(v)
	case []int16:
		return convert(v)
	case []int32:
		return convert(v)
	case []uint8:
		return convert(v)
	case []uint16:
		return convert(v)
	case []uint32:
		return convert(v)
	case []complex64:
		out := make([]float64, len(v))
		for i, c := range v {
			out[i] = float64(real(c))
		}
		return out
	default:
		return nil
	}
}

func convert[T uint8 | float32 | int16 | int32 | uint16 | uint32](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func elementCount(dims []int) (int64, error) {
	if len(dims) == 0 {
		return 0, services.Wrap(services.ErrValidation, "mda", "dims", "at least one dimension required", nil)
	}
	n := int64(1)
	for _, d := range dims {
		if d < 0 {
			return 0, services.Wrap(services.ErrValidation, "mda", "dims", fmt.Sprintf("negative dimension in %v", dims), nil)
		}
		n *= int64(d)
	}
	return n, nil
}
