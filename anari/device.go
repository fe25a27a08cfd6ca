package anari

// Object subtypes and well-known names used by the bridge.
const (
	SubtypeTriangle        = "triangle"
	SubtypePhysicallyBased = "physicallyBased"
	SubtypeMatte           = "matte"
	SubtypeImage2D         = "image2D"
	SubtypeTransform       = "transform"

	// PropertyGeometryMaxIndex is the device property holding the largest
	// vertex index a geometry may reference.
	PropertyGeometryMaxIndex = "geometryMaxIndex"
)

// Device is the rendering backend. Objects follow a retain/release
// discipline: a handle returned by a New* call carries one public reference
// owned by the caller, and setting an object as a parameter of another object
// makes the holder keep it alive on its own.
type Device interface {
	// NewArray1D copies count elements of typ from data. data is either a
	// slice of element values or a flat slice of scalar components.
	NewArray1D(typ DataType, data interface{}, count uint64) Array1D
	NewArray2D(typ DataType, data interface{}, width, height uint64) Array2D

	NewGeometry(subtype string) Geometry
	NewMaterial(subtype string) Material
	NewSampler(subtype string) Sampler
	NewSurface() Surface
	NewGroup() Group
	NewInstance(subtype string) Instance
	NewWorld() World

	SetParameter(obj Object, name string, typ DataType, value interface{})
	UnsetParameter(obj Object, name string)
	CommitParameters(obj Object)

	Retain(obj Object)
	Release(obj Object)

	// GetProperty queries a property of obj, or of the device itself when obj
	// is the null object. The boolean is false when the backend does not
	// report the property.
	GetProperty(obj Object, name string, typ DataType) (interface{}, bool)
}
