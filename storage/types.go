package storage

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Scalar is the set of element types a field can hold
type Scalar interface {
	~float32 | ~float64 | ~int32 | ~int64
}

// DataType represents the precision of numerical data
type DataType int

const (
	Float32 DataType = iota + 1
	Float64
	INT32
	INT64
)

func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case INT32:
		return "int32"
	case INT64:
		return "int64"
	default:
		return fmt.Sprintf("DataType(%d)", int(dt))
	}
}

// CType returns the C type name used in kernel source
func (dt DataType) CType() string {
	switch dt {
	case Float32:
		return "float"
	case INT32:
		return "int"
	case INT64:
		return "long"
	default:
		return "double"
	}
}

// IsReal reports whether the type is floating point
func (dt DataType) IsReal() bool {
	return dt == Float32 || dt == Float64
}

// DataTypeOf returns the DataType of T, following named types to their
// underlying kind
func DataTypeOf[T Scalar]() DataType {
	var zero T
	switch reflect.TypeOf(zero).Kind() {
	case reflect.Float32:
		return Float32
	case reflect.Int32:
		return INT32
	case reflect.Int64:
		return INT64
	default:
		return Float64
	}
}

// SizeOf returns the size in bytes of one T
func SizeOf[T Scalar]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}
