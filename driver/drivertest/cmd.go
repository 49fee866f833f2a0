// Copyright 2026 The gpuproof Authors. All rights reserved.

package drivertest

import (
	"github.com/cockroachdb/errors"

	"github.com/gpuproof/scene/driver"
)

// CmdBuffer is a fake command buffer.
// Recording appends closures; Submit runs them in order.
// Recorded copies validate the current image layout when
// they execute, so a missing or wrong transition earlier
// in the batch fails the whole submission.
type CmdBuffer struct {
	dev       *Device
	ops       []func() error
	recording bool
	ended     bool
	consumed  bool
	inPass    bool
	destroyed bool
}

// Begin implements driver.CmdBuffer.
func (cb *CmdBuffer) Begin() error {
	if cb.recording {
		return errors.New("drivertest: Begin while recording")
	}
	cb.recording = true
	cb.ended = false
	cb.consumed = false
	cb.ops = cb.ops[:0]
	return nil
}

// IsRecording implements driver.CmdBuffer.
func (cb *CmdBuffer) IsRecording() bool { return cb.recording }

// End implements driver.CmdBuffer.
func (cb *CmdBuffer) End() error {
	if !cb.recording {
		return errors.New("drivertest: End while not recording")
	}
	if cb.inPass {
		return errors.New("drivertest: End inside a render pass")
	}
	cb.recording = false
	cb.ended = true
	return nil
}

// Destroy implements driver.Destroyer.
// Command buffers are owned by their pool, which destroys
// any survivors, so Destroy tolerates being called twice.
func (cb *CmdBuffer) Destroy() {
	if cb.destroyed {
		return
	}
	cb.destroyed = true
	cb.dev.destroyed(&cb.dev.stats.CmdBuffers)
}

// Transition implements driver.CmdBuffer.
func (cb *CmdBuffer) Transition(t []driver.Transition) {
	ts := append([]driver.Transition(nil), t...)
	cb.ops = append(cb.ops, func() error {
		for i := range ts {
			img := ts[i].Img.(*Image)
			before := ts[i].LayoutBefore
			if before != driver.LUndefined && img.layout != before {
				return errors.Newf("drivertest: transition from %d, image in layout %d", before, img.layout)
			}
			img.layout = ts[i].LayoutAfter
		}
		return nil
	})
}

// CopyBufToImg implements driver.CmdBuffer.
func (cb *CmdBuffer) CopyBufToImg(param *driver.BufImgCopy) {
	p := *param
	cb.ops = append(cb.ops, func() error {
		img := p.Img.(*Image)
		if img.layout != driver.LCopyDst {
			return errors.Newf("drivertest: buffer-to-image copy with image in layout %d", img.layout)
		}
		return copyRows(p, img, func(buf, img []byte) { copy(img, buf) })
	})
}

// CopyImgToBuf implements driver.CmdBuffer.
func (cb *CmdBuffer) CopyImgToBuf(param *driver.BufImgCopy) {
	p := *param
	cb.ops = append(cb.ops, func() error {
		img := p.Img.(*Image)
		if img.layout != driver.LCopySrc {
			return errors.Newf("drivertest: image-to-buffer copy with image in layout %d", img.layout)
		}
		return copyRows(p, img, func(buf, img []byte) { copy(buf, img) })
	})
}

// copyRows walks the copy region row by row, handing the
// buffer-side range first and the image-side range second.
// The buffer side uses the pitches from the copy
// parameters; the image side is tightly packed.
func copyRows(p driver.BufImgCopy, img *Image, row func(buf, img []byte)) error {
	if p.ImgOff != (driver.Off3D{}) {
		return errors.New("drivertest: image offsets not supported")
	}
	if p.Size.Width > img.size.Width || p.Size.Height > img.size.Height || p.Size.Depth > img.size.Depth {
		return errors.Newf("drivertest: copy size %v exceeds image size %v", p.Size, img.size)
	}
	buf := p.Buf.(*Buffer).bytes()
	widthBytes := img.pf.Size() * p.Size.Width
	for z := 0; z < p.Size.Depth; z++ {
		for y := 0; y < p.Size.Height; y++ {
			bufOff := p.BufOff + int64(z)*p.SlicePitch + int64(y)*p.RowPitch
			if bufOff+int64(widthBytes) > int64(len(buf)) {
				return errors.New("drivertest: copy out of buffer range")
			}
			imgOff := (z*img.size.Height + y) * img.rowBytes()
			row(buf[bufOff:bufOff+int64(widthBytes)], img.data[imgOff:imgOff+widthBytes])
		}
	}
	return nil
}

// BeginPass implements driver.CmdBuffer.
// Attachments whose color load operation is a clear have
// their whole image filled with the matching clear value.
func (cb *CmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, clear []driver.ClearValue) {
	cb.inPass = true
	rp := pass.(*RenderPass)
	f := fb.(*Framebuf)
	cv := append([]driver.ClearValue(nil), clear...)
	cb.ops = append(cb.ops, func() error {
		for i, att := range rp.atts {
			if att.Load[0] != driver.LClear || i >= len(cv) {
				continue
			}
			img := f.views[i].img
			px := pixelBytes(img.pf, cv[i])
			for off := 0; off < len(img.data); off += len(px) {
				copy(img.data[off:], px)
			}
		}
		return nil
	})
}

// NextSubpass implements driver.CmdBuffer.
func (cb *CmdBuffer) NextSubpass() {}

// EndPass implements driver.CmdBuffer.
func (cb *CmdBuffer) EndPass() { cb.inPass = false }

// SetVertexBuf implements driver.CmdBuffer.
func (cb *CmdBuffer) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {}

// SetIndexBuf implements driver.CmdBuffer.
func (cb *CmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {}

// Draw implements driver.CmdBuffer.
func (cb *CmdBuffer) Draw(vertCount, instCount, baseVert, baseInst int) {
	cb.ops = append(cb.ops, func() error {
		cb.dev.stats.Draws++
		return nil
	})
}

// DrawIndexed implements driver.CmdBuffer.
func (cb *CmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	cb.ops = append(cb.ops, func() error {
		cb.dev.stats.Draws++
		return nil
	})
}

func un8(f float32) byte {
	switch {
	case f <= 0:
		return 0
	case f >= 1:
		return 255
	}
	return byte(f*255 + 0.5)
}

// pixelBytes converts a clear value into one packed pixel
// of the given format. Formats the fake does not model in
// detail clear to zero.
func pixelBytes(pf driver.PixelFmt, cv driver.ClearValue) []byte {
	c := cv.Color
	switch pf {
	case driver.R8un:
		return []byte{un8(c[0])}
	case driver.RG8un:
		return []byte{un8(c[0]), un8(c[1])}
	case driver.RGBA8un, driver.RGBA8sRGB:
		return []byte{un8(c[0]), un8(c[1]), un8(c[2]), un8(c[3])}
	case driver.BGRA8un, driver.BGRA8sRGB:
		return []byte{un8(c[2]), un8(c[1]), un8(c[0]), un8(c[3])}
	}
	return make([]byte, pf.Size())
}
