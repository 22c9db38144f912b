package framearena

import "fmt"

// Scratch is one worker's private staging region during parallel mode.
// Bump-allocated locally by its owning worker with no synchronization; the
// merge step (single-threaded) reads it and records the global offset its
// data landed at in the main arena.
type Scratch struct {
	bones           []Matrix
	boneOffset      uint32
	transforms      []Matrix
	transformOffset uint32

	boneGlobalOffset      uint32
	transformGlobalOffset uint32
}

// PrepareParallel clears all scratch regions and the goroutine→worker-index
// map, entering parallel mode. Must be called before any
// RegisterAndGetScratch.
func (a *Arena) PrepareParallel() {
	a.parallelMu.Lock()
	defer a.parallelMu.Unlock()
	a.inParallel = true
	a.scratches = a.scratches[:0]
	a.workerOf = make(map[uint64]int)
}

// RegisterAndGetScratch assigns the calling goroutine a monotonic worker
// index (up to maxWorkers) for the current parallel phase, returning that
// index and its private scratch. Calling it again from the same goroutine
// within the same phase returns the same index and scratch.
func (a *Arena) RegisterAndGetScratch() (int, *Scratch) {
	gid := goroutineID()

	a.parallelMu.Lock()
	defer a.parallelMu.Unlock()

	if !a.inParallel {
		panic("framearena: RegisterAndGetScratch called outside a parallel scope")
	}
	if idx, ok := a.workerOf[gid]; ok {
		return idx, a.scratches[idx]
	}
	idx := len(a.scratches)
	if idx >= maxWorkers {
		panic(fmt.Sprintf("framearena: parallel phase exceeded maxWorkers (%d)", maxWorkers))
	}
	s := &Scratch{}
	a.scratches = append(a.scratches, s)
	a.workerOf[gid] = idx
	return idx, s
}

// AllocateBones bump-allocates count bone matrices in this scratch,
// doubling capacity if needed, and returns the scratch-local offset.
func (s *Scratch) AllocateBones(count uint32) uint32 {
	offset := s.boneOffset
	needed := offset + count
	if int(needed) > len(s.bones) {
		s.bones = growMatrices(nil, "scratch-bone", s.bones, needed)
	}
	s.boneOffset = needed
	return offset
}

// AllocateTransforms is AllocateBones for the scratch's transform region.
func (s *Scratch) AllocateTransforms(count uint32) uint32 {
	offset := s.transformOffset
	needed := offset + count
	if int(needed) > len(s.transforms) {
		s.transforms = growMatrices(nil, "scratch-transform", s.transforms, needed)
	}
	s.transformOffset = needed
	return offset
}

// BoneAt returns a pointer to the bone matrix at a scratch-local offset.
func (s *Scratch) BoneAt(offset uint32) *Matrix { return &s.bones[offset] }

// TransformAt returns a pointer to the transform at a scratch-local offset.
func (s *Scratch) TransformAt(offset uint32) *Matrix { return &s.transforms[offset] }

// MergeScratchBuffers copies every registered scratch's written data into
// the main arena, in worker-index order, growing the main arena if needed,
// records each scratch's global_offset for later translation, and leaves
// parallel mode. Must be called from a single goroutine once every worker
// has finished writing to its scratch.
func (a *Arena) MergeScratchBuffers() {
	a.parallelMu.Lock()
	scratches := a.scratches
	a.parallelMu.Unlock()

	var totalBones, totalTransforms uint32
	for _, s := range scratches {
		totalBones += s.boneOffset
		totalTransforms += s.transformOffset
	}

	a.boneMu.Lock()
	boneBase := a.boneOffset
	a.growBonesLocked(boneBase + totalBones)
	cursor := boneBase
	for _, s := range scratches {
		s.boneGlobalOffset = cursor
		copy(a.bones[cursor:cursor+s.boneOffset], s.bones[:s.boneOffset])
		cursor += s.boneOffset
	}
	a.boneOffset = cursor
	a.boneMu.Unlock()

	a.transformMu.Lock()
	transformBase := a.transformOffset
	a.growTransformsLocked(transformBase + totalTransforms)
	cursor = transformBase
	for _, s := range scratches {
		s.transformGlobalOffset = cursor
		copy(a.transforms[cursor:cursor+s.transformOffset], s.transforms[:s.transformOffset])
		cursor += s.transformOffset
	}
	a.transformOffset = cursor
	a.transformMu.Unlock()

	a.parallelMu.Lock()
	a.inParallel = false
	a.parallelMu.Unlock()
}

// GetGlobalBoneOffset translates a (workerIndex, localOffset) pair recorded
// during the parallel phase into a post-merge offset into the main bone
// buffer. Valid only after MergeScratchBuffers has run for the phase that
// produced workerIndex.
func (a *Arena) GetGlobalBoneOffset(workerIndex int, localOffset uint32) uint32 {
	a.parallelMu.Lock()
	s := a.scratches[workerIndex]
	a.parallelMu.Unlock()
	return s.boneGlobalOffset + localOffset
}

// GetGlobalTransformOffset is GetGlobalBoneOffset for the transform buffer.
func (a *Arena) GetGlobalTransformOffset(workerIndex int, localOffset uint32) uint32 {
	a.parallelMu.Lock()
	s := a.scratches[workerIndex]
	a.parallelMu.Unlock()
	return s.transformGlobalOffset + localOffset
}
