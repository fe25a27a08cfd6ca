// Package bridge converts an imported scene into the object graph of an
// ANARI device: triangle geometries, physically based materials and their
// samplers, attached through surfaces, one group and one instance to a
// committed world.
package bridge

import (
	"go.uber.org/zap"

	"github.com/flywave/go-anari-bridge/anari"
	"github.com/flywave/go-anari-bridge/scene"
)

type SceneBridge struct {
	options *Options
}

func NewSceneBridge() *SceneBridge {
	return NewSceneBridgeWithOptions(DefaultOptions())
}

func NewSceneBridgeWithOptions(opts *Options) *SceneBridge {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &SceneBridge{options: opts}
}

// Bridge converts sc with default options. The returned world is committed
// and owned by the caller.
func Bridge(sc *scene.Scene, dev anari.Device) anari.World {
	return NewSceneBridge().Bridge(sc, dev)
}

func (b *SceneBridge) Bridge(sc *scene.Scene, dev anari.Device) anari.World {
	w, _ := b.BridgeWithReport(sc, dev)
	return w
}

// BridgeWithReport converts sc and describes what was converted and skipped.
// It never fails: bad input is skipped and device rejections go to the
// device's status callback.
func (b *SceneBridge) BridgeWithReport(sc *scene.Scene, dev anari.Device) (anari.World, *Report) {
	c := &conversion{
		sc:     sc,
		dev:    dev,
		opts:   b.options,
		logger: b.options.logger(),
		report: newReport(),
	}
	return c.run(), c.report
}

// conversion holds the handles created during one call. geometries and
// materials are indexed by mesh and material position; 0 marks a gap.
type conversion struct {
	sc     *scene.Scene
	dev    anari.Device
	opts   *Options
	logger *zap.Logger
	report *Report

	indexLimit uint64
	geometries []anari.Geometry
	materials  []anari.Material
	variants   map[materialVariant]anari.Material
	fallback   anari.Material
}

// materialVariant keys a material rebuilt for a mesh whose packed UV sets
// move its samplers off the direct attribute slots.
type materialVariant struct {
	index  uint32
	layout uvLayout
}

func (c *conversion) run() anari.World {
	world := c.dev.NewWorld()
	c.indexLimit = probeIndexLimit(c.dev, c.opts.indexLimitDefault(), c.logger)
	c.report.IndexLimit = c.indexLimit

	if c.sc.HasMaterials() {
		c.buildMaterials()
	}
	if c.sc.HasMeshes() {
		c.buildGeometries()
	}
	if c.sc.HasCameras() {
		c.report.Cameras = len(c.sc.Cameras)
		c.logger.Debug("cameras present, not converted", zap.Int("count", c.report.Cameras))
	}

	c.attach(world)
	c.dev.CommitParameters(anari.Object(world))
	c.release()

	c.logger.Info("scene converted",
		zap.Int("meshes", c.report.Meshes),
		zap.Int("geometries", c.report.GeometriesBuilt),
		zap.Int("materials", c.report.Materials),
		zap.Int("surfaces", c.report.Surfaces))
	return world
}

func (c *conversion) buildMaterials() {
	mb := newMaterialBuilder(c.sc, c.dev, c.opts, c.report.Textures)
	c.materials = make([]anari.Material, len(c.sc.Materials))
	for i, m := range c.sc.Materials {
		c.materials[i] = mb.build(m)
		c.report.Materials++
	}
}

func (c *conversion) buildGeometries() {
	c.geometries = make([]anari.Geometry, len(c.sc.Meshes))
	for i, m := range c.sc.Meshes {
		c.report.Meshes++
		g, st := BuildGeometry(c.dev, m, c.indexLimit)
		if st != GeometryBuilt {
			name := ""
			if m != nil {
				name = m.Name
			}
			c.report.Skipped = append(c.report.Skipped, SkippedMesh{Index: i, Name: name, Reason: st})
			c.logger.Debug("mesh skipped",
				zap.Int("mesh", i),
				zap.String("name", name),
				zap.Stringer("reason", st))
			continue
		}
		c.geometries[i] = g
		c.report.GeometriesBuilt++
		bx := meshBounds(m)
		c.report.extend(&bx)
	}
}

// materialFor resolves a mesh's material, creating the default material on
// first use when the index has no converted material.
func (c *conversion) materialFor(m *scene.Mesh) anari.Material {
	index := m.MaterialIndex
	if int(index) < len(c.materials) && c.materials[index] != 0 {
		src := c.sc.Materials[index]
		layout := meshUVLayout(m)
		if !needsLayout(src, layout) {
			return c.materials[index]
		}
		key := materialVariant{index: index, layout: layout}
		if v, ok := c.variants[key]; ok {
			return v
		}
		mb := newMaterialBuilder(c.sc, c.dev, c.opts, nil)
		mb.layout = layout
		v := mb.build(src)
		if c.variants == nil {
			c.variants = make(map[materialVariant]anari.Material)
		}
		c.variants[key] = v
		c.report.MaterialVariants++
		c.logger.Debug("material rebuilt for packed uv sets",
			zap.Uint32("materialIndex", index),
			zap.String("mesh", m.Name))
		return v
	}
	if c.fallback == 0 {
		c.fallback = c.dev.NewMaterial(anari.SubtypePhysicallyBased)
		c.dev.CommitParameters(anari.Object(c.fallback))
		c.logger.Debug("default material created", zap.Uint32("materialIndex", index))
	}
	return c.fallback
}

// attach puts one surface per geometry into a single group, instances it
// once with the identity transform and sets the instance on the world.
func (c *conversion) attach(world anari.World) {
	var surfaces []anari.Surface
	for i, g := range c.geometries {
		if g == 0 {
			continue
		}
		s := c.dev.NewSurface()
		c.dev.SetParameter(anari.Object(s), "geometry", anari.TypeGeometry, g)
		c.dev.SetParameter(anari.Object(s), "material", anari.TypeMaterial, c.materialFor(c.sc.Meshes[i]))
		c.dev.CommitParameters(anari.Object(s))
		surfaces = append(surfaces, s)
	}
	c.report.Surfaces = len(surfaces)
	if len(surfaces) == 0 {
		return
	}

	group := c.dev.NewGroup()
	arr := c.dev.NewArray1D(anari.TypeSurface, surfaces, uint64(len(surfaces)))
	c.dev.SetParameter(anari.Object(group), "surface", anari.TypeArray1D, arr)
	c.dev.CommitParameters(anari.Object(group))
	c.dev.Release(anari.Object(arr))
	for _, s := range surfaces {
		c.dev.Release(anari.Object(s))
	}

	inst := c.dev.NewInstance(anari.SubtypeTransform)
	c.dev.SetParameter(anari.Object(inst), "group", anari.TypeGroup, group)
	c.dev.SetParameter(anari.Object(inst), "transform", anari.TypeFloat32Mat4, identityTransform)
	c.dev.CommitParameters(anari.Object(inst))
	c.dev.Release(anari.Object(group))

	instances := c.dev.NewArray1D(anari.TypeInstance, []anari.Instance{inst}, 1)
	c.dev.SetParameter(anari.Object(world), "instance", anari.TypeArray1D, instances)
	c.dev.Release(anari.Object(instances))
	c.dev.Release(anari.Object(inst))
}

var identityTransform = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

func (c *conversion) release() {
	for _, g := range c.geometries {
		c.dev.Release(anari.Object(g))
	}
	for _, m := range c.materials {
		c.dev.Release(anari.Object(m))
	}
	for _, m := range c.variants {
		c.dev.Release(anari.Object(m))
	}
	c.dev.Release(anari.Object(c.fallback))
	c.geometries, c.materials, c.variants, c.fallback = nil, nil, nil, 0
}
