package pipeline

import (
	"encoding/json"
	"time"

	"github.com/kestrelengine/assetpipe/asset"
	"github.com/kestrelengine/assetpipe/vfs"
)

// loadedMeta is the parsed sidecar meta file (spec §3, §6): "Meta sidecar
// (source-authored): JSON5 object; platform-specific overrides live under
// pc: / mobile: children whose keys override the top-level."
//
// Parsed with encoding/json rather than a JSON5 library: no JSON5 parser
// appears anywhere in the example pack (see DESIGN.md), and sidecar content
// in practice is plain JSON: comments/trailing commas are the only JSON5
// extensions a hand-authored sidecar would plausibly use, and their absence
// just means the sidecar must be strict JSON.
type loadedMeta struct {
	flat map[string]string
	kv   []asset.MetaKV
	size int64
	mod  time.Time
}

func metaSidecarPath(sourcePath string) string { return sourcePath + ".meta" }

// loadMeta reads and flattens the sidecar for sourcePath, applying the
// platform-specific override block if one exists for platform.
func loadMeta(v *vfs.VFS, sourcePath string, platform asset.Platform) loadedMeta {
	metaPath := metaSidecarPath(sourcePath)
	out := loadedMeta{flat: map[string]string{}}

	size, mod, ok := v.Stat(metaPath)
	if !ok {
		return out // no sidecar: empty meta, zero size/modtime (spec §4.5 metaFileSize?/metaFileLastModified? are optional)
	}
	out.size, out.mod = size, mod

	blob := v.Read(metaPath, vfs.FlagNone)
	if !blob.IsValid() {
		return out
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(blob.Data, &raw); err != nil {
		return out
	}

	platformKey := platform.String()
	var overrides map[string]json.RawMessage
	if sub, ok := raw[platformKey]; ok {
		_ = json.Unmarshal(sub, &overrides)
	}

	apply := func(src map[string]json.RawMessage) {
		for k, v := range src {
			if k == "pc" || k == "mobile" || k == "auto" {
				continue
			}
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				out.flat[k] = s
				out.kv = append(out.kv, asset.MetaKV{Key: k, Value: s})
				continue
			}
			// Non-string scalars (numbers, bools) still round-trip through
			// GetMetaValue as their JSON text form.
			out.flat[k] = string(v)
			out.kv = append(out.kv, asset.MetaKV{Key: k, Value: string(v)})
		}
	}
	apply(raw)
	apply(overrides) // overrides applied last so platform keys win
	return out
}
