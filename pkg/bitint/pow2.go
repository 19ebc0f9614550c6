// SPDX-License-Identifier: MIT

// Package bitint holds the power-of-two helpers used to validate and
// suggest FFT block sizes.
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size, or 1 when size
// is not positive. Subtracting one first keeps exact powers unchanged.
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
