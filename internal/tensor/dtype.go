package tensor

// DataType identifies the element type of a RawTensor at runtime.
type DataType int

// Supported element types.
//
// Float32 carries all learnable state and activations; Int64 carries
// class labels and argmax indices.
const (
	Float32 DataType = iota
	Int64
)

// Size returns the element size in bytes.
func (d DataType) Size() int {
	switch d {
	case Float32:
		return 4
	case Int64:
		return 8
	default:
		panic("unknown dtype")
	}
}

// String returns a human-readable type name.
func (d DataType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// DType is the compile-time constraint for typed tensors.
type DType interface {
	~float32 | ~int64
}

// inferDataType maps a Go value to its runtime DataType tag.
func inferDataType(v any) DataType {
	switch v.(type) {
	case float32:
		return Float32
	case int64:
		return Int64
	default:
		panic("unsupported element type")
	}
}
