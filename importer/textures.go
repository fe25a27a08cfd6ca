package importer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/flywave/go-anari-bridge/scene"
)

// textureTable embeds image files next to a model into the scene once each
// and hands out the "*N" references materials point at.
type textureTable struct {
	sc      *scene.Scene
	baseDir string
	refs    map[string]string
}

func newTextureTable(sc *scene.Scene, baseDir string) *textureTable {
	return &textureTable{sc: sc, baseDir: baseDir, refs: make(map[string]string)}
}

// embedFile resolves name against the model directory, trying the bare file
// name when the stored path does not exist.
func (t *textureTable) embedFile(name string) (string, bool) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return "", false
	}
	if ref, ok := t.refs[name]; ok {
		return ref, true
	}
	candidates := []string{name, filepath.Base(name)}
	if !filepath.IsAbs(name) {
		candidates = []string{filepath.Join(t.baseDir, name), filepath.Join(t.baseDir, filepath.Base(name))}
	}
	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil || len(data) == 0 {
			continue
		}
		ref := t.embedData(name, data, formatHint(p), filepath.Base(p))
		return ref, true
	}
	return "", false
}

// embedData stores an encoded image under key.
func (t *textureTable) embedData(key string, data []byte, hint, filename string) string {
	if ref, ok := t.refs[key]; ok {
		return ref
	}
	ref := t.sc.AddTexture(scene.NewCompressedTexture(data, hint, filename))
	t.refs[key] = ref
	return ref
}

func formatHint(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

func mimeHint(mime string) string {
	switch strings.ToLower(mime) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/bmp":
		return "bmp"
	case "image/gif":
		return "gif"
	}
	return ""
}
