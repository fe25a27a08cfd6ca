package bridge

import (
	dvec3 "github.com/flywave/go3d/float64/vec3"
)

// SkippedMesh records a mesh that produced no geometry.
type SkippedMesh struct {
	Index  int
	Name   string
	Reason GeometryStatus
}

// Report summarizes one conversion.
type Report struct {
	IndexLimit      uint64
	Meshes          int
	GeometriesBuilt int
	Skipped         []SkippedMesh
	Materials       int
	// MaterialVariants counts materials rebuilt because a mesh packs its UV
	// sets into different attribute slots.
	MaterialVariants int
	Textures         map[TextureStatus]int
	Surfaces         int
	Cameras          int

	bounds dvec3.Box
	empty  bool
}

func newReport() *Report {
	return &Report{
		Textures: make(map[TextureStatus]int),
		bounds:   dvec3.MinBox,
		empty:    true,
	}
}

func (r *Report) extend(bx *dvec3.Box) {
	r.bounds.Join(bx)
	r.empty = false
}

// Bounds returns min x, y, z then max x, y, z of every converted geometry,
// and false when nothing was converted.
func (r *Report) Bounds() ([6]float64, bool) {
	if r.empty {
		return [6]float64{}, false
	}
	return *r.bounds.Array(), true
}

// SkippedBy counts skipped meshes with the given reason.
func (r *Report) SkippedBy(reason GeometryStatus) int {
	n := 0
	for _, s := range r.Skipped {
		if s.Reason == reason {
			n++
		}
	}
	return n
}
