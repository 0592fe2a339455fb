// Copyright 2026 the diffraster authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package mem

import (
	"unsafe"

	"honnef.co/go/safeish"

	"github.com/TheNeeloy/diffraster/dmath"
)

// Arena is a slab-backed bump allocator for the rasterizer's per-call
// scratch buffers. Allocations are only valid until the next call to Reset;
// a rasterizer resets its arena at the start of every forward pass, reusing
// the slabs instead of growing the heap.
//
// Element types must be free of Go pointers. The arena hands out views into
// untyped byte slabs and never tells the GC about interior structure.
//
// An Arena is not safe for concurrent use. The pipeline allocates during
// single-threaded stage prologues and only shares the resulting slices with
// workers read-only or partitioned by index.
type Arena struct {
	slabs []slab
}

type slab struct {
	data   []byte
	offset int
}

const slabSize = 1024 * 1024

func NewArena() *Arena {
	return &Arena{}
}

// NewSlice allocates a slice with the given length and capacity. The memory
// is zeroed.
func NewSlice[S ~[]E, E any](a *Arena, len, cap int) S {
	if cap == 0 {
		return nil
	}
	var e E
	buf := a.alloc(cap*int(unsafe.Sizeof(e)), int(unsafe.Alignof(e)))
	return safeish.SliceCast[S](buf)[:len:cap]
}

// MakeSlice copies values into the arena.
func MakeSlice[S ~[]E, E any](a *Arena, values S) S {
	s := NewSlice[S, E](a, len(values), len(values))
	copy(s, values)
	return s
}

func Append[S ~[]E, E any](a *Arena, s S, data ...E) S {
	s = growSlice(a, s, len(data))
	return append(s, data...)
}

// Grow ensures capacity for n more elements, reallocating within the arena
// if needed.
func Grow[S ~[]E, E any](a *Arena, s S, n int) S {
	if n -= cap(s) - len(s); n > 0 {
		s = growSlice(a, s, n)
	}
	return s
}

func growSlice[S ~[]E, E any](a *Arena, s S, n int) S {
	const growThreshold = 256
	newLen := len(s) + n
	newCap := cap(s)

	if newCap > 0 {
		for newLen > newCap {
			if newCap < growThreshold {
				newCap *= 2
			} else {
				newCap += newCap / 4
			}
		}
	} else {
		newCap = n
	}
	if newCap == cap(s) {
		return s
	}
	s2 := NewSlice[S, E](a, len(s), newCap)
	copy(s2, s)
	return s2
}

func (a *Arena) alloc(size, alignment int) []byte {
	// OPT: skip full slabs
	for i := range a.slabs {
		sl := &a.slabs[i]
		off := dmath.AlignUp(sl.offset, alignment)
		if len(sl.data)-off >= size {
			sl.offset = off + size
			buf := sl.data[off : off+size : off+size]
			// Return zeroed memory; slabs are reused across Resets.
			clear(buf)
			return buf
		}
	}
	// Need a new slab. Oversized requests get a dedicated slab.
	sz := slabSize
	if size > sz {
		sz = size
	}
	a.slabs = append(a.slabs, slab{data: make([]byte, sz)})
	sl := &a.slabs[len(a.slabs)-1]
	sl.offset = size
	return sl.data[:size:size]
}

// Reset recycles all slabs. Slices handed out before the call must no longer
// be used.
func (a *Arena) Reset() {
	for i := range a.slabs {
		a.slabs[i].offset = 0
	}
}
