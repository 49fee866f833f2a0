// Copyright 2026 The gpuproof Authors. All rights reserved.

package scene

// align rounds x up to the smallest multiple of y that is
// greater than or equal to x.
// It returns x unchanged when either argument is zero.
func align(x, y int) int {
	if x <= 0 || y <= 0 {
		return x
	}
	if r := x % y; r != 0 {
		return x + y - r
	}
	return x
}
