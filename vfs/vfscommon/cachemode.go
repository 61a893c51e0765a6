// Package vfscommon holds small flag-like value types shared by the
// VFS and Cache Store configuration surfaces, following the teacher's
// vfs/vfscommon package: enums that also satisfy pflag.Value and
// json.Unmarshaler so they can be set from both the command line and a TOML/
// JSON config file.
package vfscommon

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CacheMode controls how the Cache Store (spec §4.5) treats baked blobs.
type CacheMode int

const (
	// CacheModeOff never reads or writes cache entries; every load bakes
	// from source. Distinct from spec §4.5's "cache only" flag, which is
	// the opposite extreme (CacheModeReadOnly below).
	CacheModeOff CacheMode = iota
	// CacheModeReadOnly implements spec §4.5's "cache only mode": a missing
	// cache entry fails the load instead of falling back to a source bake.
	CacheModeReadOnly
	// CacheModeFull is the default: read on hit, bake-and-persist on miss.
	CacheModeFull
)

var cacheModeNames = map[CacheMode]string{
	CacheModeOff:      "off",
	CacheModeReadOnly: "readonly",
	CacheModeFull:     "full",
}

// String implements fmt.Stringer and pflag.Value.
func (m CacheMode) String() string {
	if s, ok := cacheModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Unknown(%d)", int(m))
}

// Set implements pflag.Value, parsing the flag's string form.
func (m *CacheMode) Set(s string) error {
	for mode, name := range cacheModeNames {
		if name == strings.ToLower(s) {
			*m = mode
			return nil
		}
	}
	return fmt.Errorf("unknown cache mode level %q", s)
}

// Type implements pflag.Value.
func (m CacheMode) Type() string { return "CacheMode" }

// UnmarshalJSON implements json.Unmarshaler so CacheMode can appear as a
// plain string in a config file.
func (m *CacheMode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return m.Set(s)
}

// MarshalJSON implements json.Marshaler.
func (m CacheMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}
