package asset

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/kestrelengine/assetpipe/baker"
)

// MetaKV is one sidecar meta key/value pair (spec §3).
type MetaKV struct {
	Key, Value string
}

// DependencyRecord is the persisted form of a baker.Dependency: it never
// stores a resolved Handle, because handles are only meaningful within the
// process that minted them (spec §9's relocatable-record design — cache
// entries travel across processes, so dependency handles are re-resolved by
// CreateOrFetchHandle on every load, cache hit or not).
type DependencyRecord struct {
	Path      string
	TypeID    uint32
	Extra     []byte
	ObjOffset int64
}

// GPUObjectRecord is the persisted form of a baker.GPUObject. Buffer/texture
// creation parameters and content bytes are kept so the GPU object can be
// recreated fresh from every load (device objects themselves are never
// cached).
type GPUObjectRecord struct {
	IsTexture bool
	Kind      string
	Width     uint32
	Height    uint32
	Format    string
	Size      uint64
	Content   []byte
	ObjOffset int64
}

// DataInternal is the Asset Data Record described in spec §3: a
// self-contained, relocatable blob rooted at objData, referencing its
// dependencies and GPU descriptors by offset rather than pointer so the
// whole thing can be written to disk or a socket verbatim.
type DataInternal struct {
	ObjData      []byte
	Dependencies []DependencyRecord
	GPUObjects   []GPUObjectRecord
	Meta         []MetaKV
}

// FromBuilder converts a completed baker.Builder into a DataInternal record,
// dropping the resolved-handle concept (builder.Dependencies/GPUObjects
// carry type/path/extra/offset only — never a handle) and attaching whatever
// meta key/values were loaded for this bake.
func FromBuilder(b *baker.Builder, meta []MetaKV) DataInternal {
	rec := DataInternal{
		ObjData: append([]byte(nil), b.ObjData()...),
		Meta:    meta,
	}
	for _, d := range b.Dependencies() {
		rec.Dependencies = append(rec.Dependencies, DependencyRecord{
			Path: d.Path, TypeID: d.TypeID, Extra: d.Extra, ObjOffset: d.ObjOffset,
		})
	}
	for _, g := range b.GPUObjects() {
		gr := GPUObjectRecord{IsTexture: g.IsTexture, ObjOffset: g.ObjOffset}
		if g.IsTexture {
			gr.Kind, gr.Width, gr.Height, gr.Format, gr.Content = g.Texture.Kind, g.Texture.Width, g.Texture.Height, g.Texture.Format, g.Texture.Content
		} else {
			gr.Kind, gr.Size, gr.Content = g.Buffer.Kind, g.Buffer.Size, g.Buffer.Content
		}
		rec.GPUObjects = append(rec.GPUObjects, gr)
	}
	return rec
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeString(w io.Writer, s string) error { return writeBytes(w, []byte(s)) }

// Marshal serializes the record in the format persisted to cache (spec §3,
// §6): little-endian throughout, length-prefixed variable fields, so the
// whole thing round-trips byte-identically (testable property §8.4).
func (d DataInternal) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeBytes(&buf, d.ObjData); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(d.Dependencies))); err != nil {
		return nil, err
	}
	for _, dep := range d.Dependencies {
		if err := writeString(&buf, dep.Path); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, dep.TypeID); err != nil {
			return nil, err
		}
		if err := writeBytes(&buf, dep.Extra); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, dep.ObjOffset); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(d.GPUObjects))); err != nil {
		return nil, err
	}
	for _, g := range d.GPUObjects {
		isTex := uint8(0)
		if g.IsTexture {
			isTex = 1
		}
		if err := binary.Write(&buf, binary.LittleEndian, isTex); err != nil {
			return nil, err
		}
		if err := writeString(&buf, g.Kind); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, g.Width); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, g.Height); err != nil {
			return nil, err
		}
		if err := writeString(&buf, g.Format); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, g.Size); err != nil {
			return nil, err
		}
		if err := writeBytes(&buf, g.Content); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, g.ObjOffset); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(d.Meta))); err != nil {
		return nil, err
	}
	for _, kv := range d.Meta {
		if err := writeString(&buf, kv.Key); err != nil {
			return nil, err
		}
		if err := writeString(&buf, kv.Value); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if int(n) > r.Len() {
		return nil, errors.New("asset: corrupt record, length exceeds remaining bytes")
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	return string(b), err
}

// Unmarshal parses a record previously produced by Marshal.
func Unmarshal(data []byte) (DataInternal, error) {
	r := bytes.NewReader(data)
	var d DataInternal
	var err error
	if d.ObjData, err = readBytes(r); err != nil {
		return d, errors.Wrap(err, "objData")
	}
	var numDeps uint32
	if err = binary.Read(r, binary.LittleEndian, &numDeps); err != nil {
		return d, errors.Wrap(err, "numDeps")
	}
	for i := uint32(0); i < numDeps; i++ {
		var dep DependencyRecord
		if dep.Path, err = readString(r); err != nil {
			return d, errors.Wrap(err, "dep.Path")
		}
		if err = binary.Read(r, binary.LittleEndian, &dep.TypeID); err != nil {
			return d, errors.Wrap(err, "dep.TypeID")
		}
		if dep.Extra, err = readBytes(r); err != nil {
			return d, errors.Wrap(err, "dep.Extra")
		}
		if err = binary.Read(r, binary.LittleEndian, &dep.ObjOffset); err != nil {
			return d, errors.Wrap(err, "dep.ObjOffset")
		}
		d.Dependencies = append(d.Dependencies, dep)
	}
	var numGPU uint32
	if err = binary.Read(r, binary.LittleEndian, &numGPU); err != nil {
		return d, errors.Wrap(err, "numGPU")
	}
	for i := uint32(0); i < numGPU; i++ {
		var g GPUObjectRecord
		var isTex uint8
		if err = binary.Read(r, binary.LittleEndian, &isTex); err != nil {
			return d, errors.Wrap(err, "gpu.isTex")
		}
		g.IsTexture = isTex != 0
		if g.Kind, err = readString(r); err != nil {
			return d, errors.Wrap(err, "gpu.Kind")
		}
		if err = binary.Read(r, binary.LittleEndian, &g.Width); err != nil {
			return d, err
		}
		if err = binary.Read(r, binary.LittleEndian, &g.Height); err != nil {
			return d, err
		}
		if g.Format, err = readString(r); err != nil {
			return d, errors.Wrap(err, "gpu.Format")
		}
		if err = binary.Read(r, binary.LittleEndian, &g.Size); err != nil {
			return d, err
		}
		if g.Content, err = readBytes(r); err != nil {
			return d, errors.Wrap(err, "gpu.Content")
		}
		if err = binary.Read(r, binary.LittleEndian, &g.ObjOffset); err != nil {
			return d, err
		}
		d.GPUObjects = append(d.GPUObjects, g)
	}
	var numMeta uint32
	if err = binary.Read(r, binary.LittleEndian, &numMeta); err != nil {
		return d, errors.Wrap(err, "numMeta")
	}
	for i := uint32(0); i < numMeta; i++ {
		var kv MetaKV
		if kv.Key, err = readString(r); err != nil {
			return d, err
		}
		if kv.Value, err = readString(r); err != nil {
			return d, err
		}
		d.Meta = append(d.Meta, kv)
	}
	return d, nil
}
