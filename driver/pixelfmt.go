// Copyright 2026 The gpuproof Authors. All rights reserved.

package driver

// PixelFmt describes the format of a pixel.
type PixelFmt int

// Pixel formats.
const (
	FmtInvalid PixelFmt = iota
	// Color, 8-bit channels.
	RGBA8un
	RGBA8sRGB
	BGRA8un
	BGRA8sRGB
	RG8un
	R8un
	// Color, 16-bit channels.
	RGBA16f
	RG16f
	R16f
	// Color, 32-bit channels.
	RGBA32f
	RG32f
	R32f
	// Depth/Stencil.
	D16un
	D32f
	S8ui
	D24unS8ui
	D32fS8ui
)

// Size returns the number of bytes per pixel of f.
// It returns 0 for FmtInvalid.
func (f PixelFmt) Size() int {
	switch f {
	case RGBA8un, RGBA8sRGB, BGRA8un, BGRA8sRGB, RG16f, R32f, D32f, D24unS8ui:
		return 4
	case RG8un, R16f, D16un:
		return 2
	case R8un, S8ui:
		return 1
	case RGBA16f, RG32f:
		return 8
	case RGBA32f:
		return 16
	case D32fS8ui:
		return 5
	}
	return 0
}

// Aspects returns the image aspects of f.
func (f PixelFmt) Aspects() Aspect {
	switch f {
	case D16un, D32f:
		return AspectDepth
	case S8ui:
		return AspectStencil
	case D24unS8ui, D32fS8ui:
		return AspectDepth | AspectStencil
	case FmtInvalid:
		return 0
	}
	return AspectColor
}

// IsColor returns whether f is a color format.
func (f PixelFmt) IsColor() bool { return f.Aspects() == AspectColor }
