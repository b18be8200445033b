package smoothing

import "github.com/blinkwatch/blinkwatch/pkg/types"

// Points keeps a short position history per landmark index and returns the
// running mean position. All ring buffers share one backing arena; slots are
// handed out the first time an index is seen.
type Points struct {
	size  int
	slots map[int]int      // landmark index -> slot number
	arena []types.Landmark // slot i occupies arena[i*size : (i+1)*size]
	count []int            // samples held per slot, capped at size
	next  []int            // write position per slot
}

// NewPoints returns a smoother with size samples per landmark.
// A size of 0 disables smoothing: Smooth returns its input.
func NewPoints(size int) *Points {
	if size < 0 {
		size = 0
	}
	return &Points{size: size, slots: make(map[int]int)}
}

// Enabled reports whether positions are being smoothed.
func (p *Points) Enabled() bool { return p.size > 0 }

// Size returns the number of samples kept per landmark.
func (p *Points) Size() int { return p.size }

// Tracked returns how many landmark indices hold history.
func (p *Points) Tracked() int { return len(p.slots) }

// Smooth records l for landmark index and returns the mean of that index's
// buffered positions, including l.
func (p *Points) Smooth(index int, l types.Landmark) types.Landmark {
	if p.size == 0 {
		return l
	}
	slot, ok := p.slots[index]
	if !ok {
		slot = len(p.count)
		p.slots[index] = slot
		p.arena = append(p.arena, make([]types.Landmark, p.size)...)
		p.count = append(p.count, 0)
		p.next = append(p.next, 0)
	}

	buf := p.arena[slot*p.size : (slot+1)*p.size]
	buf[p.next[slot]] = l
	p.next[slot] = (p.next[slot] + 1) % p.size
	if p.count[slot] < p.size {
		p.count[slot]++
	}

	var out types.Landmark
	n := float64(p.count[slot])
	for _, b := range buf[:p.count[slot]] {
		out.X += b.X / n
		out.Y += b.Y / n
		out.Z += b.Z / n
	}
	return out
}

// SmoothEye smooths each point of eye, keyed by the given landmark indices.
// It returns a new slice; eye is left untouched.
func (p *Points) SmoothEye(eye types.EyeLandmarks, idx [types.EyePoints]int) types.EyeLandmarks {
	if p.size == 0 || len(eye) != types.EyePoints {
		return eye
	}
	out := make(types.EyeLandmarks, types.EyePoints)
	for i, l := range eye {
		out[i] = p.Smooth(idx[i], l)
	}
	return out
}

// Reset forgets every tracked index.
func (p *Points) Reset() {
	p.slots = make(map[int]int)
	p.arena = p.arena[:0]
	p.count = p.count[:0]
	p.next = p.next[:0]
}
