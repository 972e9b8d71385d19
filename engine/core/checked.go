package core

import (
	"errors"
	"math/bits"

	"golang.org/x/exp/constraints"
)

var ErrOverflow = errors.New("integer overflow")

// CheckedAdd returns a+b or ErrOverflow for non-negative operands.
func CheckedAdd[T constraints.Unsigned](a, b T) (T, error) {
	s := a + b
	if s < a {
		return 0, ErrOverflow
	}
	return s, nil
}

// CheckedMul returns a*b or ErrOverflow.
func CheckedMul[T constraints.Unsigned](a, b T) (T, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	p := a * b
	if p/b != a {
		return 0, ErrOverflow
	}
	return p, nil
}

// MulSize multiplies sizes expressed as int, rejecting negatives and results
// that would not fit in an int.
func MulSize[T constraints.Integer](factors ...T) (int, error) {
	total := uint64(1)
	for _, f := range factors {
		if f < 0 {
			return 0, ErrOverflow
		}
		hi, lo := bits.Mul64(total, uint64(f))
		if hi != 0 || lo > uint64(maxInt) {
			return 0, ErrOverflow
		}
		total = lo
	}
	return int(total), nil
}

// InRange reports whether [off, off+length) lies inside [lo, hi).
func InRange[T constraints.Unsigned](off, length, lo, hi T) bool {
	end, err := CheckedAdd(off, length)
	if err != nil {
		return false
	}
	return off >= lo && end <= hi
}

const maxInt = int(^uint(0) >> 1)
