package ecs

import "github.com/ashgrove/ecsruntime/internal/ecserr"

// Entity is an opaque index into per-component columns. Zero is never
// issued by AddEntity and is used as the "undefined" sentinel at the public
// boundary.
type Entity uint32

// IsZero reports whether e is the undefined entity reference.
func (e Entity) IsZero() bool { return e == 0 }

// entityPool allocates and recycles entity indices. Entities carry no
// generation: staleness is instead caught by the world's sparse set
// membership check, and id reuse is gated by a size-relative threshold
// rather than happening unconditionally.
type entityPool struct {
	cursor          uint32
	removed         []Entity
	recycleFraction float64
	size            int
}

func newEntityPool(size int, recycleFraction float64) *entityPool {
	return &entityPool{
		cursor:          1, // 0 is reserved as the undefined sentinel
		recycleFraction: recycleFraction,
		size:            size,
	}
}

// shouldRecycle reports whether the removed queue has grown large enough to
// start reusing ids: |removed| > round(size * fraction).
func (p *entityPool) shouldRecycle() bool {
	threshold := int(roundHalfAwayFromZero(float64(p.size) * p.recycleFraction))
	return len(p.removed) > threshold
}

func roundHalfAwayFromZero(f float64) float64 {
	if f >= 0 {
		return float64(int64(f + 0.5))
	}
	return float64(int64(f - 0.5))
}

// allocate returns the next entity id, recycling one from the removed queue
// when the threshold is exceeded, or an error if the world has no remaining
// capacity.
func (p *entityPool) allocate() (Entity, error) {
	if p.shouldRecycle() {
		n := len(p.removed)
		eid := p.removed[n-1]
		p.removed = p.removed[:n-1]
		return eid, nil
	}
	if int(p.cursor) > p.size {
		return 0, ecserr.ErrCapacityExceeded
	}
	eid := Entity(p.cursor)
	p.cursor++
	return eid, nil
}

func (p *entityPool) free(e Entity) {
	p.removed = append(p.removed, e)
}
