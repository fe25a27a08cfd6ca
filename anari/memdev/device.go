// Package memdev is an in-memory anari.Device. It keeps every object's
// parameter table and commit snapshot, counts references the way a real
// backend does and reports rejected calls through the status callback. It
// renders nothing; it exists to drive and inspect conversions.
package memdev

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/flywave/go-anari-bridge/anari"
)

type Options struct {
	// Properties are reported by GetProperty on the null object.
	Properties map[string]interface{}

	// StatusCallback receives diagnostics. When nil they are written to Logger.
	StatusCallback anari.StatusCallback
	Logger         *zap.Logger
}

type param struct {
	typ   anari.DataType
	value interface{}
}

type object struct {
	id       anari.Object
	typ      anari.DataType
	subtype  string
	params   map[string]param
	snapshot map[string]param
	commits  int
	public   int
	internal int

	elemType anari.DataType
	data     interface{}
	dims     [2]uint64
	children []anari.Object
}

type Device struct {
	mu         sync.Mutex
	next       anari.Object
	objects    map[anari.Object]*object
	properties map[string]interface{}
	status     anari.StatusCallback
	logger     *zap.Logger
}

var _ anari.Device = (*Device)(nil)

func NewDevice() *Device {
	return NewDeviceWithOptions(nil)
}

func NewDeviceWithOptions(opts *Options) *Device {
	d := &Device{
		objects:    make(map[anari.Object]*object),
		properties: make(map[string]interface{}),
		logger:     zap.NewNop(),
	}
	if opts != nil {
		for k, v := range opts.Properties {
			d.properties[k] = v
		}
		if opts.Logger != nil {
			d.logger = opts.Logger
		}
		d.status = opts.StatusCallback
	}
	return d
}

// SetProperty sets or replaces a device property.
func (d *Device) SetProperty(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.properties[name] = value
}

func (d *Device) report(src anari.Object, typ anari.DataType, sev anari.StatusSeverity, code anari.StatusCode, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if d.status != nil {
		d.status(src, typ, sev, code, msg)
		return
	}
	fields := []zap.Field{
		zap.Uint64("object", uint64(src)),
		zap.Stringer("type", typ),
		zap.Stringer("severity", sev),
	}
	switch sev {
	case anari.SeverityFatalError, anari.SeverityError:
		d.logger.Error(msg, fields...)
	case anari.SeverityWarning, anari.SeverityPerformanceWarning:
		d.logger.Warn(msg, fields...)
	default:
		d.logger.Debug(msg, fields...)
	}
}

func (d *Device) newObject(typ anari.DataType, subtype string) *object {
	d.next++
	o := &object{
		id:      d.next,
		typ:     typ,
		subtype: subtype,
		params:  make(map[string]param),
		public:  1,
	}
	d.objects[o.id] = o
	return o
}

func (d *Device) NewArray1D(typ anari.DataType, data interface{}, count uint64) anari.Array1D {
	d.mu.Lock()
	defer d.mu.Unlock()
	o := d.newArray(anari.TypeArray1D, typ, data, count, 1)
	if o == nil {
		return 0
	}
	return anari.Array1D(o.id)
}

func (d *Device) NewArray2D(typ anari.DataType, data interface{}, width, height uint64) anari.Array2D {
	d.mu.Lock()
	defer d.mu.Unlock()
	o := d.newArray(anari.TypeArray2D, typ, data, width, height)
	if o == nil {
		return 0
	}
	return anari.Array2D(o.id)
}

func (d *Device) newArray(arrayType, elemType anari.DataType, data interface{}, n1, n2 uint64) *object {
	if n1 == 0 || n2 == 0 {
		d.report(0, arrayType, anari.SeverityError, anari.StatusInvalidArgument, "array of %s has zero extent", elemType)
		return nil
	}
	want := n1 * n2
	if elemType.IsObject() {
		handles, ok := objectSlice(data)
		if !ok || uint64(len(handles)) != want {
			d.report(0, arrayType, anari.SeverityError, anari.StatusInvalidArgument, "object array expects %d handles", want)
			return nil
		}
		for _, h := range handles {
			if _, ok := d.objects[h]; !ok {
				d.report(h, elemType, anari.SeverityError, anari.StatusInvalidArgument, "object array references unknown object")
				return nil
			}
		}
		o := d.newObject(arrayType, "")
		o.elemType = elemType
		o.dims = [2]uint64{n1, n2}
		o.children = handles
		o.data = handles
		for _, h := range handles {
			d.objects[h].internal++
		}
		return o
	}

	copied, got, err := copyElements(elemType, data)
	if err != nil {
		d.report(0, arrayType, anari.SeverityError, anari.StatusInvalidArgument, "%v", err)
		return nil
	}
	if got != want {
		d.report(0, arrayType, anari.SeverityError, anari.StatusInvalidArgument,
			"array of %s expects %d elements, data holds %d", elemType, want, got)
		return nil
	}
	o := d.newObject(arrayType, "")
	o.elemType = elemType
	o.dims = [2]uint64{n1, n2}
	o.data = copied
	return o
}

// copyElements clones a slice and reports how many elements of typ it holds.
// Slices of vectors count one element per entry; flat scalar slices count
// one element per Components() entries.
func copyElements(typ anari.DataType, data interface{}) (interface{}, uint64, error) {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice {
		return nil, 0, fmt.Errorf("array data must be a slice, got %T", data)
	}
	comps := typ.Components()
	if comps == 0 {
		return nil, 0, fmt.Errorf("unsupported array element type %s", typ)
	}
	out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
	reflect.Copy(out, v)

	n := uint64(v.Len())
	switch v.Type().Elem().Kind() {
	case reflect.Array, reflect.Struct:
		return out.Interface(), n, nil
	}
	if n%uint64(comps) != 0 {
		return nil, 0, fmt.Errorf("%d scalars do not split into %s elements", n, typ)
	}
	return out.Interface(), n / uint64(comps), nil
}

func objectSlice(data interface{}) ([]anari.Object, bool) {
	switch s := data.(type) {
	case []anari.Object:
		return append([]anari.Object(nil), s...), true
	case []anari.Surface:
		out := make([]anari.Object, len(s))
		for i := range s {
			out[i] = anari.Object(s[i])
		}
		return out, true
	case []anari.Instance:
		out := make([]anari.Object, len(s))
		for i := range s {
			out[i] = anari.Object(s[i])
		}
		return out, true
	case []anari.Group:
		out := make([]anari.Object, len(s))
		for i := range s {
			out[i] = anari.Object(s[i])
		}
		return out, true
	}
	return nil, false
}

func (d *Device) NewGeometry(subtype string) anari.Geometry {
	d.mu.Lock()
	defer d.mu.Unlock()
	if subtype != anari.SubtypeTriangle {
		d.report(0, anari.TypeGeometry, anari.SeverityWarning, anari.StatusInvalidArgument, "unknown geometry subtype %q", subtype)
	}
	return anari.Geometry(d.newObject(anari.TypeGeometry, subtype).id)
}

func (d *Device) NewMaterial(subtype string) anari.Material {
	d.mu.Lock()
	defer d.mu.Unlock()
	if subtype != anari.SubtypePhysicallyBased && subtype != anari.SubtypeMatte {
		d.report(0, anari.TypeMaterial, anari.SeverityWarning, anari.StatusInvalidArgument, "unknown material subtype %q", subtype)
	}
	return anari.Material(d.newObject(anari.TypeMaterial, subtype).id)
}

func (d *Device) NewSampler(subtype string) anari.Sampler {
	d.mu.Lock()
	defer d.mu.Unlock()
	if subtype != anari.SubtypeImage2D {
		d.report(0, anari.TypeSampler, anari.SeverityWarning, anari.StatusInvalidArgument, "unknown sampler subtype %q", subtype)
	}
	return anari.Sampler(d.newObject(anari.TypeSampler, subtype).id)
}

func (d *Device) NewSurface() anari.Surface {
	d.mu.Lock()
	defer d.mu.Unlock()
	return anari.Surface(d.newObject(anari.TypeSurface, "").id)
}

func (d *Device) NewGroup() anari.Group {
	d.mu.Lock()
	defer d.mu.Unlock()
	return anari.Group(d.newObject(anari.TypeGroup, "").id)
}

func (d *Device) NewInstance(subtype string) anari.Instance {
	d.mu.Lock()
	defer d.mu.Unlock()
	if subtype != anari.SubtypeTransform {
		d.report(0, anari.TypeInstance, anari.SeverityWarning, anari.StatusInvalidArgument, "unknown instance subtype %q", subtype)
	}
	return anari.Instance(d.newObject(anari.TypeInstance, subtype).id)
}

func (d *Device) NewWorld() anari.World {
	d.mu.Lock()
	defer d.mu.Unlock()
	return anari.World(d.newObject(anari.TypeWorld, "").id)
}

func handleOf(v interface{}) (anari.Object, bool) {
	switch h := v.(type) {
	case anari.Object:
		return h, true
	case anari.Array1D:
		return anari.Object(h), true
	case anari.Array2D:
		return anari.Object(h), true
	case anari.Geometry:
		return anari.Object(h), true
	case anari.Material:
		return anari.Object(h), true
	case anari.Sampler:
		return anari.Object(h), true
	case anari.Surface:
		return anari.Object(h), true
	case anari.Group:
		return anari.Object(h), true
	case anari.Instance:
		return anari.Object(h), true
	case anari.World:
		return anari.Object(h), true
	}
	return 0, false
}

func (d *Device) SetParameter(obj anari.Object, name string, typ anari.DataType, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.objects[obj]
	if !ok {
		d.report(obj, typ, anari.SeverityError, anari.StatusInvalidArgument, "set %q on unknown object", name)
		return
	}
	p := param{typ: typ, value: value}
	if typ.IsObject() {
		h, ok := handleOf(value)
		if !ok {
			d.report(obj, o.typ, anari.SeverityError, anari.StatusInvalidArgument, "parameter %q of type %s is not a handle", name, typ)
			return
		}
		target, ok := d.objects[h]
		if !ok {
			d.report(obj, o.typ, anari.SeverityError, anari.StatusInvalidArgument, "parameter %q references unknown object %d", name, h)
			return
		}
		if !compatible(typ, target.typ) {
			d.report(obj, o.typ, anari.SeverityError, anari.StatusInvalidArgument,
				"parameter %q declared %s but object is %s", name, typ, target.typ)
			return
		}
		target.internal++
		p.value = h
	}
	if old, ok := o.params[name]; ok {
		d.dropParam(old)
	}
	o.params[name] = p
}

func compatible(declared, actual anari.DataType) bool {
	return declared == actual || declared == anari.TypeObject
}

func (d *Device) UnsetParameter(obj anari.Object, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.objects[obj]
	if !ok {
		d.report(obj, anari.TypeUnknown, anari.SeverityError, anari.StatusInvalidArgument, "unset %q on unknown object", name)
		return
	}
	if old, ok := o.params[name]; ok {
		delete(o.params, name)
		d.dropParam(old)
	}
}

func (d *Device) dropParam(p param) {
	if !p.typ.IsObject() {
		return
	}
	if h, ok := p.value.(anari.Object); ok {
		d.releaseInternal(h)
	}
}

var required = map[anari.DataType][]string{
	anari.TypeGeometry: {"vertex.position"},
	anari.TypeSampler:  {"image"},
	anari.TypeSurface:  {"geometry", "material"},
	anari.TypeInstance: {"group"},
}

func (d *Device) CommitParameters(obj anari.Object) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.objects[obj]
	if !ok {
		d.report(obj, anari.TypeUnknown, anari.SeverityError, anari.StatusInvalidArgument, "commit on unknown object")
		return
	}
	for _, name := range required[o.typ] {
		if _, ok := o.params[name]; !ok {
			d.report(obj, o.typ, anari.SeverityError, anari.StatusInvalidOperation, "missing required parameter %q", name)
		}
	}
	snap := make(map[string]param, len(o.params))
	for k, p := range o.params {
		snap[k] = p
		if h, ok := p.value.(anari.Object); ok && p.typ.IsObject() {
			d.objects[h].internal++
		}
	}
	old := o.snapshot
	o.snapshot = snap
	o.commits++
	for _, p := range old {
		d.dropParam(p)
	}
}

func (d *Device) Retain(obj anari.Object) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.objects[obj]
	if !ok {
		d.report(obj, anari.TypeUnknown, anari.SeverityError, anari.StatusInvalidArgument, "retain on unknown object")
		return
	}
	o.public++
}

func (d *Device) Release(obj anari.Object) {
	if obj == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.objects[obj]
	if !ok || o.public == 0 {
		d.report(obj, anari.TypeUnknown, anari.SeverityError, anari.StatusInvalidOperation, "release without a public reference")
		return
	}
	o.public--
	d.collect(o)
}

func (d *Device) releaseInternal(h anari.Object) {
	o, ok := d.objects[h]
	if !ok {
		return
	}
	o.internal--
	d.collect(o)
}

func (d *Device) collect(o *object) {
	if o.public > 0 || o.internal > 0 {
		return
	}
	delete(d.objects, o.id)
	for _, p := range o.params {
		d.dropParam(p)
	}
	for _, p := range o.snapshot {
		d.dropParam(p)
	}
	for _, c := range o.children {
		d.releaseInternal(c)
	}
}

func (d *Device) GetProperty(obj anari.Object, name string, typ anari.DataType) (interface{}, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if obj == 0 {
		v, ok := d.properties[name]
		if !ok {
			return nil, false
		}
		return convertProperty(v, typ)
	}
	o, ok := d.objects[obj]
	if !ok {
		return nil, false
	}
	switch name {
	case "valid":
		return o.commits > 0, typ == anari.TypeBool
	case "subtype":
		return o.subtype, typ == anari.TypeString
	}
	return nil, false
}

func convertProperty(v interface{}, typ anari.DataType) (interface{}, bool) {
	if typ != anari.TypeUInt64 {
		return v, true
	}
	switch n := v.(type) {
	case uint64:
		return n, true
	case uint32:
		return uint64(n), true
	case int:
		if n >= 0 {
			return uint64(n), true
		}
	case int64:
		if n >= 0 {
			return uint64(n), true
		}
	}
	return nil, false
}

// ObjectInfo describes a live object.
type ObjectInfo struct {
	Type         anari.DataType
	Subtype      string
	Commits      int
	PublicRefs   int
	InternalRefs int
}

func (d *Device) Info(obj anari.Object) (ObjectInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.objects[obj]
	if !ok {
		return ObjectInfo{}, false
	}
	return ObjectInfo{
		Type:         o.typ,
		Subtype:      o.subtype,
		Commits:      o.commits,
		PublicRefs:   o.public,
		InternalRefs: o.internal,
	}, true
}

// Live returns the number of objects still alive.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.objects)
}

// LiveOfType returns the live objects of a type, in creation order.
func (d *Device) LiveOfType(typ anari.DataType) []anari.Object {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []anari.Object
	for id, o := range d.objects {
		if o.typ == typ {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Param returns a parameter as last set, committed or not.
func (d *Device) Param(obj anari.Object, name string) (anari.DataType, interface{}, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.objects[obj]
	if !ok {
		return anari.TypeUnknown, nil, false
	}
	p, ok := o.params[name]
	return p.typ, p.value, ok
}

// Committed returns a parameter as of the last commit.
func (d *Device) Committed(obj anari.Object, name string) (anari.DataType, interface{}, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.objects[obj]
	if !ok || o.snapshot == nil {
		return anari.TypeUnknown, nil, false
	}
	p, ok := o.snapshot[name]
	return p.typ, p.value, ok
}

// ParamNames lists the parameters currently set, sorted.
func (d *Device) ParamNames(obj anari.Object) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.objects[obj]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(o.params))
	for k := range o.params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Array returns the element type, the copied data and the extent of an array.
func (d *Device) Array(obj anari.Object) (anari.DataType, interface{}, [2]uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.objects[obj]
	if !ok || (o.typ != anari.TypeArray1D && o.typ != anari.TypeArray2D) {
		return anari.TypeUnknown, nil, [2]uint64{}, false
	}
	return o.elemType, o.data, o.dims, true
}
