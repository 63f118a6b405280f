package ecs

// EntityID packs a 32-bit slot index in the low bits and a 32-bit generation
// in the high bits. The generation increments when a slot is recycled so a
// stale id held across a destroy can never alias the new occupant.
type EntityID uint64

// Zero is the invalid entity id. No live entity ever has it.
const Zero EntityID = 0

func makeEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) index() uint32      { return uint32(id) }
func (id EntityID) generation() uint32 { return uint32(id >> 32) }

// IsZero reports whether the id is the invalid sentinel.
func (id EntityID) IsZero() bool { return id == Zero }

// entityPool hands out generational ids from a free list.
type entityPool struct {
	generations []uint32
	freeList    []uint32
	nextIndex   uint32
}

func newEntityPool() *entityPool {
	return &entityPool{
		generations: make([]uint32, 1, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

func (p *entityPool) create() EntityID {
	if len(p.freeList) > 0 {
		idx := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]
		return makeEntityID(idx, p.generations[idx])
	}
	if p.nextIndex == 0 {
		// Slot 0 is reserved so the zero EntityID stays invalid.
		p.nextIndex = 1
	}
	idx := p.nextIndex
	p.nextIndex++
	for int(idx) >= len(p.generations) {
		p.generations = append(p.generations, 0)
	}
	return makeEntityID(idx, p.generations[idx])
}

func (p *entityPool) alive(id EntityID) bool {
	idx := id.index()
	if idx == 0 || idx >= p.nextIndex {
		return false
	}
	return p.generations[idx] == id.generation()
}

func (p *entityPool) destroy(id EntityID) bool {
	idx := id.index()
	if idx == 0 || idx >= p.nextIndex {
		return false
	}
	if p.generations[idx] != id.generation() {
		return false
	}
	p.generations[idx]++
	p.freeList = append(p.freeList, idx)
	return true
}
