// Copyright 2026 The gpuproof Authors. All rights reserved.

package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlign(t *testing.T) {
	for _, tc := range []struct {
		x, y, want int
	}{
		{0, 0, 0},
		{0, 4, 0},
		{7, 0, 7},
		{1, 1, 1},
		{1, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{255, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{10, 3, 12},
		{12, 3, 12},
		{13, 3, 15},
		{100, 7, 105},
	} {
		assert.Equal(t, tc.want, align(tc.x, tc.y), "align(%d, %d)", tc.x, tc.y)
	}
}
