// Package framearena implements the per-frame staging buffer for bone
// matrices and instance transforms: a serial bump-allocator mode, reset at
// each frame boundary, plus a parallel mode that gives each worker a
// private scratch region merged back into the main arena at frame end.
//
// Grounded on original_source/OloEngine/.../FrameDataBuffer.h's serial
// bump-allocator (separate mutex-guarded offsets for bones and transforms,
// offset+count handles instead of slices so callers stay POD-friendly);
// the parallel scratch/merge mode has no original_source counterpart and
// is a from-scratch extension of that same allocator shape.
package framearena

import (
	"fmt"
	"runtime"
	"sync"

	"code.hybscloud.com/enginecore/corelog"
)

// Matrix is a flat row-major 4x4 matrix, standing in for glm::mat4 for the
// purposes of offset bookkeeping; index 0 is the [0][0] element.
type Matrix [16]float32

const (
	defaultBoneCapacity      = 4096
	defaultTransformCapacity = 8192

	// maxWorkers bounds RegisterAndGetScratch's monotonic worker index
	// assignment.
	maxWorkers = 32

	// hardCapMatrices is the point past which growth is refused outright: an
	// arena overflow past this cap is fatal, not a resizable condition.
	hardCapMatrices = 1 << 22
)

// InvalidOffset is the all-ones offset value. The Allocate* methods never
// return it: an allocation past hardCapMatrices panics instead.
const InvalidOffset = ^uint32(0)

// Arena is the per-frame staging buffer. A nil *corelog.Logger silently
// drops the diagnostic emitted before a hard-cap Fatal (tests only); New
// stores whichever logger it is given, nil included.
type Arena struct {
	log *corelog.Logger

	boneMu     sync.Mutex
	bones      []Matrix
	boneOffset uint32

	transformMu     sync.Mutex
	transforms      []Matrix
	transformOffset uint32

	parallelMu sync.Mutex
	inParallel bool
	scratches  []*Scratch
	workerOf   map[uint64]int
}

// New constructs an Arena with the given initial capacities. Zero values
// fall back to the defaults FrameDataBuffer.h uses.
func New(log *corelog.Logger, boneCapacity, transformCapacity int) *Arena {
	if boneCapacity <= 0 {
		boneCapacity = defaultBoneCapacity
	}
	if transformCapacity <= 0 {
		transformCapacity = defaultTransformCapacity
	}
	return &Arena{
		log:        log,
		bones:      make([]Matrix, boneCapacity),
		transforms: make([]Matrix, transformCapacity),
	}
}

// Reset resets both offsets to 0 for a new frame. It does not free memory
// and must not be called while in parallel mode.
func (a *Arena) Reset() {
	a.boneMu.Lock()
	a.boneOffset = 0
	a.boneMu.Unlock()

	a.transformMu.Lock()
	a.transformOffset = 0
	a.transformMu.Unlock()
}

// AllocateBones bump-allocates count bone matrices in the main arena,
// growing it (doubling) if count exceeds remaining capacity, and returns
// the global offset writers should fill. Growth past hardCapMatrices logs a
// Fatal diagnostic (when a logger is set) and panics instead of returning.
func (a *Arena) AllocateBones(count uint32) uint32 {
	a.boneMu.Lock()
	defer a.boneMu.Unlock()
	offset := a.boneOffset
	a.growBonesLocked(offset + count)
	a.boneOffset = offset + count
	return offset
}

// AllocateTransforms is AllocateBones for the transform buffer.
func (a *Arena) AllocateTransforms(count uint32) uint32 {
	a.transformMu.Lock()
	defer a.transformMu.Unlock()
	offset := a.transformOffset
	a.growTransformsLocked(offset + count)
	a.transformOffset = offset + count
	return offset
}

func (a *Arena) growBonesLocked(needed uint32) {
	if int(needed) <= len(a.bones) {
		return
	}
	a.bones = growMatrices(a.log, "bone", a.bones, needed)
}

func (a *Arena) growTransformsLocked(needed uint32) {
	if int(needed) <= len(a.transforms) {
		return
	}
	a.transforms = growMatrices(a.log, "transform", a.transforms, needed)
}

// growMatrices doubles buf until it holds at least needed elements,
// Fatal-and-panicking if that would cross hardCapMatrices.
func growMatrices(log *corelog.Logger, kind string, buf []Matrix, needed uint32) []Matrix {
	newCap := len(buf)
	if newCap == 0 {
		newCap = 1
	}
	for uint32(newCap) < needed {
		newCap *= 2
	}
	if newCap > hardCapMatrices {
		if log != nil {
			log.Fatal("framearena", func(b *corelog.Builder) {
				b.Str("kind", kind).Uint64("requested", uint64(needed)).Uint64("hardCap", hardCapMatrices)
			}, "frame arena allocation past hard cap")
		}
		panic(fmt.Sprintf("framearena: %s allocation of %d past hard cap %d", kind, needed, hardCapMatrices))
	}
	grown := make([]Matrix, newCap)
	copy(grown, buf)
	return grown
}

// BoneAt returns a pointer to the bone matrix at a global offset returned
// by AllocateBones.
func (a *Arena) BoneAt(offset uint32) *Matrix {
	a.boneMu.Lock()
	defer a.boneMu.Unlock()
	return &a.bones[offset]
}

// TransformAt returns a pointer to the transform at a global offset
// returned by AllocateTransforms.
func (a *Arena) TransformAt(offset uint32) *Matrix {
	a.transformMu.Lock()
	defer a.transformMu.Unlock()
	return &a.transforms[offset]
}

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
