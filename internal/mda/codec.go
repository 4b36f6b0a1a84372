package mda

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"msconvert/internal/fileutil"
	"msconvert/internal/services"
)

// maxDims bounds the dimension count so a corrupt header cannot request an
// absurd allocation.
const maxDims = 50

// Header describes an MDA file without its elements.
type Header struct {
	DType DType
	Dims  []int
	// Legacy marks the old layout whose first field is the dimension count.
	Legacy bool
	// DataOffset is the byte offset of the first element.
	DataOffset int64
}

// NumElements returns the product of the dimensions.
func (h Header) NumElements() int64 {
	n, _ := elementCount(h.Dims)
	return n
}

// DataBytes is the payload size implied by the header.
func (h Header) DataBytes() int64 {
	return h.NumElements() * int64(h.DType.Size())
}

// ReadHeader decodes the header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	var first int32
	if err := binary.Read(r, binary.LittleEndian, &first); err != nil {
		return h, headerErr(err)
	}
	var ndims int32
	if first > 0 {
		h.Legacy = true
		h.DType = Complex64
		ndims = first
		h.DataOffset = 4
	} else {
		h.DType = DType(first)
		if !h.DType.Valid() || h.DType == Complex64 {
			return h, services.Wrap(services.ErrUnsupportedType, "mda", "read header",
				fmt.Sprintf("type code %d", first), nil)
		}
		var fields [2]int32
		if err := binary.Read(r, binary.LittleEndian, &fields); err != nil {
			return h, headerErr(err)
		}
		if int(fields[0]) != h.DType.Size() {
			return h, services.Wrap(services.ErrFormat, "mda", "read header",
				fmt.Sprintf("%s with %d bytes per element", h.DType, fields[0]), nil)
		}
		ndims = fields[1]
		h.DataOffset = 12
	}
	if ndims < 1 || ndims > maxDims {
		return h, services.Wrap(services.ErrFormat, "mda", "read header",
			fmt.Sprintf("dimension count %d", ndims), nil)
	}
	dims := make([]int32, ndims)
	if err := binary.Read(r, binary.LittleEndian, dims); err != nil {
		return h, headerErr(err)
	}
	h.Dims = make([]int, ndims)
	for i, d := range dims {
		if d < 0 {
			return h, services.Wrap(services.ErrFormat, "mda", "read header",
				fmt.Sprintf("dimension %d is %d", i, d), nil)
		}
		h.Dims[i] = int(d)
	}
	h.DataOffset += 4 * int64(ndims)
	return h, nil
}

func headerErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return services.Wrap(services.ErrTruncated, "mda", "read header", "", err)
	}
	return services.Wrap(services.ErrFormat, "mda", "read header", "", err)
}

// Read decodes a complete array from r.
func Read(r io.Reader) (*Array, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	h, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	n := h.NumElements()
	var data any
	switch h.DType {
	case Uint8:
		data, err = readElements[uint8](br, n)
	case Float32:
		data, err = readElements[float32](br, n)
	case Int16:
		data, err = readElements[int16](br, n)
	case Int32:
		data, err = readElements[int32](br, n)
	case Uint16:
		data, err = readElements[uint16](br, n)
	case Float64:
		data, err = readElements[float64](br, n)
	case Uint32:
		data, err = readElements[uint32](br, n)
	case Complex64:
		data, err = readElements[complex64](br, n)
	}
	if err != nil {
		return nil, err
	}
	return &Array{DType: h.DType, Dims: h.Dims, Data: data}, nil
}

func readElements[T Element](r io.Reader, n int64) ([]T, error) {
	out := make([]T, n)
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, services.Wrap(services.ErrTruncated, "mda", "read data",
				fmt.Sprintf("fewer than %d elements", n), err)
		}
		return nil, err
	}
	return out, nil
}

// Write encodes a in the standard layout.
func Write(w io.Writer, a *Array) error {
	if a.DType == Complex64 || !a.DType.Valid() {
		return services.Wrap(services.ErrUnsupportedType, "mda", "write", a.DType.String(), nil)
	}
	if err := checkLength(a); err != nil {
		return err
	}
	head := make([]int32, 0, 3+len(a.Dims))
	head = append(head, int32(a.DType), int32(a.DType.Size()), int32(len(a.Dims)))
	for _, d := range a.Dims {
		head = append(head, int32(d))
	}
	if err := binary.Write(w, binary.LittleEndian, head); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, a.Data)
}

// WriteFile writes a to path atomically.
func WriteFile(path string, a *Array) error {
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		return Write(w, a)
	})
}

func checkLength(a *Array) error {
	n, err := elementCount(a.Dims)
	if err != nil {
		return err
	}
	var got int
	switch v := a.Data.(type) {
	case []uint8:
		got = len(v)
	case []float32:
		got = len(v)
	case []int16:
		got = len(v)
	case []int32:
		got = len(v)
	case []uint16:
		got = len(v)
	case []float64:
		got = len(v)
	case []uint32:
		got = len(v)
	case []complex64:
		got = len(v)
	default:
		return services.Wrap(services.ErrUnsupportedType, "mda", "write", fmt.Sprintf("data of type %T", a.Data), nil)
	}
	if int64(got) != n {
		return services.Wrap(services.ErrValidation, "mda", "write",
			fmt.Sprintf("dims %v hold %d elements, data has %d", a.Dims, n, got), nil)
	}
	return nil
}

// ReadFile reads the array stored at path.
func ReadFile(path string) (*Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	a, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// Stat reads the header of path and checks that the file holds exactly the
// payload the header declares. A file cut short by an interrupted writer
// fails with ErrTruncated; trailing bytes fail with ErrFormat.
func Stat(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return Header{}, err
	}
	h, err := ReadHeader(bufio.NewReader(f))
	if err != nil {
		return h, fmt.Errorf("%s: %w", path, err)
	}
	want := h.DataOffset + h.DataBytes()
	switch size := info.Size(); {
	case size < want:
		return h, services.Wrap(services.ErrTruncated, "mda", "stat",
			fmt.Sprintf("%s: %d bytes, header declares %d", path, size, want), nil)
	case size > want:
		return h, services.Wrap(services.ErrFormat, "mda", "stat",
			fmt.Sprintf("%s: %d bytes, header declares %d", path, size, want), nil)
	}
	return h, nil
}
