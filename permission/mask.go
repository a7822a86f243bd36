package permission

// MaxBits is the width of a [Mask]. The highest bit is the root bit.
const MaxBits = 128

const rootBit = MaxBits - 1

// Mask is a 128-bit permission bitmask.
type Mask struct {
	A uint64
	B uint64
}

// Has reports whether bit is set. A mask with the root bit set has every bit.
func (m Mask) Has(bit int) bool {
	if bit < 0 || bit >= MaxBits {
		return false
	}
	if m.B&(1<<63) != 0 {
		return true
	}
	if bit < 64 {
		return m.A&(1<<bit) != 0
	}
	return m.B&(1<<(bit-64)) != 0
}

// Root reports whether the root bit is set.
func (m Mask) Root() bool {
	return m.B&(1<<63) != 0
}

// Set sets bit in the mask.
func (m *Mask) Set(bit int) {
	if bit < 0 || bit >= MaxBits {
		return
	}
	if bit < 64 {
		m.A |= 1 << bit
	} else {
		m.B |= 1 << (bit - 64)
	}
}

// Clear clears bit in the mask.
func (m *Mask) Clear(bit int) {
	if bit < 0 || bit >= MaxBits {
		return
	}
	if bit < 64 {
		m.A &^= 1 << bit
	} else {
		m.B &^= 1 << (bit - 64)
	}
}
