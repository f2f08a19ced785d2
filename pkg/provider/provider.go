// Package provider supplies classfile bytes to pkg/vm's ClassLoader
// through the BytesFor callback (§7's "bytes fetched via a loader
// callback"). The core loader never touches a filesystem directly;
// these are the two ambient hosts wired in to satisfy that callback.
package provider

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	mmap "github.com/edsrzf/mmap-go"
)

// DirProvider resolves a binary class name (slash form, no ".class"
// suffix) to the bytes of <root>/<name>.class, reading the whole file
// into memory the way the teacher's UserClassLoader did.
type DirProvider struct {
	root string
}

// NewDirProvider returns a provider rooted at dir.
func NewDirProvider(dir string) *DirProvider {
	return &DirProvider{root: dir}
}

// BytesFor implements vm.BytesFor.
func (p *DirProvider) BytesFor(className string) ([]byte, bool, error) {
	path := filepath.Join(p.root, filepath.FromSlash(className)+".class")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("provider: reading %s: %w", path, err)
	}
	return data, true, nil
}

// MmapJmodProvider serves classfiles out of a single jmod-style archive
// by memory-mapping it once and slicing into the mapping for every
// lookup, instead of copying each classfile into its own buffer. Mirrors
// the mmap.Map(f, mmap.RDONLY, 0) pattern used to open large binaries
// without a full read, generalized here from a single PE image to a
// jmod's directory-of-classfiles layout.
//
// A real java.base.jmod stores classfiles under a "classes/" prefix
// inside a zip container; this provider works the same way but against
// a pre-indexed offset table built at Open time, since pkg/vm's C1
// parser (not zip) is this repo's concern.
type MmapJmodProvider struct {
	f       *os.File
	data    mmap.MMap
	offsets map[string][2]int // className -> [start, end) into data

	mu     sync.Mutex
	closed bool
}

// jmodIndexEntry is one entry of the trailing index this provider
// expects a jmod-like archive to carry: a flat table of (name, offset,
// length) triples terminated by a zero-length name, written after the
// concatenated classfile bodies.
type jmodIndexEntry struct {
	name   string
	start  int
	length int
}

// OpenMmapJmod memory-maps path and parses its trailing index. The
// mapping is read-only and stays open until Close.
func OpenMmapJmod(path string) (*MmapJmodProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("provider: opening %s: %w", path, err)
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("provider: mapping %s: %w", path, err)
	}

	entries, err := parseJmodIndex(data)
	if err != nil {
		data.Unmap()
		f.Close()
		return nil, fmt.Errorf("provider: indexing %s: %w", path, err)
	}

	offsets := make(map[string][2]int, len(entries))
	for _, e := range entries {
		offsets[e.name] = [2]int{e.start, e.start + e.length}
	}

	return &MmapJmodProvider{f: f, data: data, offsets: offsets}, nil
}

// BytesFor implements vm.BytesFor, slicing directly into the mapping.
func (p *MmapJmodProvider) BytesFor(className string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, false, fmt.Errorf("provider: jmod already closed")
	}
	span, ok := p.offsets[className]
	if !ok {
		return nil, false, nil
	}
	return p.data[span[0]:span[1]], true, nil
}

// Close releases the mapping and the underlying file descriptor.
func (p *MmapJmodProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.data.Unmap(); err != nil {
		p.f.Close()
		return err
	}
	return p.f.Close()
}

// parseJmodIndex reads the trailing "name\x00<u32 start><u32 length>"
// records this provider expects, stopping at the first empty name.
func parseJmodIndex(data []byte) ([]jmodIndexEntry, error) {
	var entries []jmodIndexEntry
	off := 0
	for off < len(data) {
		nul := strings.IndexByte(string(data[off:]), 0)
		if nul < 0 {
			return nil, fmt.Errorf("unterminated index entry at offset %d", off)
		}
		name := string(data[off : off+nul])
		off += nul + 1
		if name == "" {
			break
		}
		if off+8 > len(data) {
			return nil, fmt.Errorf("truncated index entry for %q", name)
		}
		start := int(be32(data[off:]))
		length := int(be32(data[off+4:]))
		off += 8
		entries = append(entries, jmodIndexEntry{name: name, start: start, length: length})
	}
	return entries, nil
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// ChainProvider tries each provider in order, returning the first hit.
// Mirrors the teacher's UserClassLoader-then-JmodClassLoader fallback
// (user classpath first, bootstrap jmod second).
type ChainProvider struct {
	providers []func(string) ([]byte, bool, error)
}

// NewChainProvider builds a ChainProvider trying each BytesFor-shaped
// function in order.
func NewChainProvider(providers ...func(string) ([]byte, bool, error)) *ChainProvider {
	return &ChainProvider{providers: providers}
}

// BytesFor implements vm.BytesFor.
func (c *ChainProvider) BytesFor(className string) ([]byte, bool, error) {
	for _, p := range c.providers {
		data, ok, err := p(className)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return data, true, nil
		}
	}
	return nil, false, nil
}
