// Package importer reads model files into scene.Scene values ready for the
// bridge. Node transforms are baked into vertex positions, polygons are
// triangulated and image files referenced by materials are embedded.
package importer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/flywave/go-anari-bridge/scene"
)

const (
	THREEDS = "3ds"
	DAE     = "dae"
	FBX     = "fbx"
	GLTF    = "gltf"
	GLB     = "glb"
	OBJ     = "obj"
	TBIN    = "3jsbin"
)

var ErrUnsupportedFormat = errors.New("unsupported model format")

type Importer interface {
	Import(path string) (*scene.Scene, error)
}

func FormatFactory(format string) Importer {
	switch strings.ToLower(format) {
	case THREEDS:
		return &ThreeDsImporter{}
	case DAE:
		return &DaeImporter{}
	case FBX:
		return &FbxImporter{}
	case GLTF, GLB:
		return &GltfImporter{}
	case OBJ:
		return &ObjImporter{}
	case TBIN:
		return &ThreejsBinImporter{}
	}
	return nil
}

// FormatOf names the format of a model file by its extension.
func FormatOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Import reads path with the importer registered for its extension.
func Import(path string) (*scene.Scene, error) {
	format := FormatOf(path)
	imp := FormatFactory(format)
	if imp == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	sc, err := imp.Import(path)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	return sc, nil
}
