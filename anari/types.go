// Package anari describes the declarative rendering API the bridge targets:
// opaque object handles, parameter data types and the device verbs used to
// create, parameterize, commit and release objects.
package anari

import "fmt"

// Object is an opaque device handle. The zero value is the null object.
type Object uint64

type (
	Array1D  Object
	Array2D  Object
	Geometry Object
	Material Object
	Sampler  Object
	Surface  Object
	Group    Object
	Instance Object
	World    Object
)

// DataType tags parameter values and array elements.
type DataType int32

const (
	TypeUnknown DataType = iota
	TypeString
	TypeBool
	TypeInt32
	TypeUInt32
	TypeUInt32Vec3
	TypeUInt64
	TypeFloat32
	TypeFloat32Vec2
	TypeFloat32Vec3
	TypeFloat32Vec4
	TypeFloat32Mat4
	TypeUFixed8Vec4

	TypeObject
	TypeArray1D
	TypeArray2D
	TypeGeometry
	TypeMaterial
	TypeSampler
	TypeSurface
	TypeGroup
	TypeInstance
	TypeWorld
	TypeDevice
)

var dataTypeNames = map[DataType]string{
	TypeUnknown:     "UNKNOWN",
	TypeString:      "STRING",
	TypeBool:        "BOOL",
	TypeInt32:       "INT32",
	TypeUInt32:      "UINT32",
	TypeUInt32Vec3:  "UINT32_VEC3",
	TypeUInt64:      "UINT64",
	TypeFloat32:     "FLOAT32",
	TypeFloat32Vec2: "FLOAT32_VEC2",
	TypeFloat32Vec3: "FLOAT32_VEC3",
	TypeFloat32Vec4: "FLOAT32_VEC4",
	TypeFloat32Mat4: "FLOAT32_MAT4",
	TypeUFixed8Vec4: "UFIXED8_VEC4",
	TypeObject:      "OBJECT",
	TypeArray1D:     "ARRAY1D",
	TypeArray2D:     "ARRAY2D",
	TypeGeometry:    "GEOMETRY",
	TypeMaterial:    "MATERIAL",
	TypeSampler:     "SAMPLER",
	TypeSurface:     "SURFACE",
	TypeGroup:       "GROUP",
	TypeInstance:    "INSTANCE",
	TypeWorld:       "WORLD",
	TypeDevice:      "DEVICE",
}

func (t DataType) String() string {
	if s, ok := dataTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", int32(t))
}

// IsObject reports whether values of this type are object handles.
func (t DataType) IsObject() bool {
	return t >= TypeObject && t <= TypeDevice
}

// Components is the number of scalar components of one element, 0 for
// non-numeric types.
func (t DataType) Components() int {
	switch t {
	case TypeBool, TypeInt32, TypeUInt32, TypeUInt64, TypeFloat32:
		return 1
	case TypeFloat32Vec2:
		return 2
	case TypeUInt32Vec3, TypeFloat32Vec3:
		return 3
	case TypeFloat32Vec4, TypeUFixed8Vec4:
		return 4
	case TypeFloat32Mat4:
		return 16
	}
	return 0
}

// StatusSeverity grades device diagnostics.
type StatusSeverity int32

const (
	SeverityFatalError StatusSeverity = iota
	SeverityError
	SeverityWarning
	SeverityPerformanceWarning
	SeverityInfo
	SeverityDebug
)

func (s StatusSeverity) String() string {
	switch s {
	case SeverityFatalError:
		return "fatal"
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityPerformanceWarning:
		return "performance"
	case SeverityInfo:
		return "info"
	case SeverityDebug:
		return "debug"
	}
	return "unknown"
}

// StatusCode classifies a diagnostic.
type StatusCode int32

const (
	StatusNoError StatusCode = iota
	StatusUnknownError
	StatusInvalidArgument
	StatusInvalidOperation
	StatusOutOfMemory
	StatusUnsupportedDevice
	StatusVersionMismatch
)

// StatusCallback receives every diagnostic a device raises. Errors in
// object creation or commit surface here and nowhere else.
type StatusCallback func(source Object, sourceType DataType, severity StatusSeverity, code StatusCode, message string)
