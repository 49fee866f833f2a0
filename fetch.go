// Copyright 2026 The gpuproof Authors. All rights reserved.

package scene

import (
	"github.com/cockroachdb/errors"

	"github.com/gpuproof/scene/driver"
)

// FetchGuard exposes the host mapping of a read-back
// staging buffer.
// The mapping is valid until Free is called; callers are
// expected to defer Free at the fetch site so the buffer
// and its memory are released on every exit path. Row
// slices must not be retained past Free.
type FetchGuard struct {
	buf        driver.Buffer
	mem        driver.Memory
	data       []byte
	rowPitch   int
	widthBytes int
	bpp        int
	rows       int
	freed      bool
}

// Row returns the i-th row of the fetched image: a
// widthBytes-long slice taken rowPitch apart, with any
// pitch padding excluded.
func (g *FetchGuard) Row(i int) []byte {
	off := i * g.rowPitch
	return g.data[off : off+g.widthBytes]
}

// At returns the bytes of the pixel at (x, y).
func (g *FetchGuard) At(x, y int) []byte {
	row := g.Row(y)
	return row[x*g.bpp : (x+1)*g.bpp]
}

// Rows returns the number of rows fetched.
func (g *FetchGuard) Rows() int { return g.rows }

// Width returns the length in bytes of each row.
func (g *FetchGuard) Width() int { return g.widthBytes }

// Free unmaps the staging buffer and releases it together
// with its memory. It is idempotent; the guard must not
// be used afterwards.
func (g *FetchGuard) Free() {
	if g.freed {
		return
	}
	g.freed = true
	g.data = nil
	g.mem.Unmap()
	g.buf.Destroy()
	g.mem.Free()
}

// FetchImage synchronously copies the named image into a
// newly allocated host-visible staging buffer and returns
// a guard over the mapping.
// The copy is bracketed by barriers that take the image
// from its stable state to a copy source and back, so the
// tracked stable state is unchanged by the call.
// FetchImage waits for the copy to complete, bounded by
// the scene's fence timeout.
func (s *Scene) FetchImage(name string) (*FetchGuard, error) {
	im, ok := s.res.Images[name]
	if !ok {
		return nil, notFound("image", name)
	}

	widthBytes := im.format.Size() * im.size.Width
	rowPitch := align(widthBytes, s.limits.MinCopyPitchAlign)
	rows := im.size.Height * im.size.Depth
	downSize := int64(rowPitch) * int64(rows)

	buf, err := s.dev.NewBuffer(downSize, driver.UCopyDst)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %q", name)
	}
	req := buf.Requirements()
	if req.TypeMask&(1<<uint(s.downloadType)) == 0 {
		buf.Destroy()
		return nil, errors.Wrapf(ErrNoMemoryType,
			"scene: fetch %q: download memory type not allowed", name)
	}
	mem, err := s.dev.Alloc(s.downloadType, req.Size)
	if err != nil {
		buf.Destroy()
		return nil, errors.Wrapf(err, "fetch %q", name)
	}
	if err := buf.Bind(mem, 0); err != nil {
		buf.Destroy()
		mem.Free()
		return nil, errors.Wrapf(err, "fetch %q", name)
	}
	fail := func(err error) (*FetchGuard, error) {
		buf.Destroy()
		mem.Free()
		return nil, errors.Wrapf(err, "fetch %q", name)
	}

	pool, err := s.queue.NewPool(1)
	if err != nil {
		return fail(err)
	}
	defer pool.Destroy()
	cb, err := pool.NewCmdBuffer()
	if err != nil {
		return fail(err)
	}
	if err := cb.Begin(); err != nil {
		return fail(err)
	}
	cb.Transition([]driver.Transition{{
		Barrier: driver.Barrier{
			SyncBefore:   driver.SAll,
			SyncAfter:    driver.SCopy,
			AccessBefore: im.stable.access,
			AccessAfter:  driver.ACopyRead,
		},
		LayoutBefore: im.stable.layout,
		LayoutAfter:  driver.LCopySrc,
		Img:          im.Handle,
		Range:        im.wholeRange(),
	}})
	cb.CopyImgToBuf(&driver.BufImgCopy{
		Buf:        buf,
		BufOff:     0,
		RowPitch:   int64(rowPitch),
		SlicePitch: int64(rowPitch) * int64(im.size.Height),
		Img:        im.Handle,
		Layers: driver.SubresLayers{
			Aspects: im.format.Aspects(),
			Level:   0,
			Layer:   0,
			Layers:  1,
		},
		Size: im.size,
	})
	cb.Transition([]driver.Transition{{
		Barrier: driver.Barrier{
			SyncBefore:   driver.SCopy,
			SyncAfter:    driver.SAll,
			AccessBefore: driver.ACopyRead,
			AccessAfter:  im.stable.access,
		},
		LayoutBefore: driver.LCopySrc,
		LayoutAfter:  im.stable.layout,
		Img:          im.Handle,
		Range:        im.wholeRange(),
	}})
	if err := cb.End(); err != nil {
		return fail(err)
	}

	fence, err := s.dev.NewFence(false)
	if err != nil {
		return fail(err)
	}
	defer fence.Destroy()
	if err := s.queue.Submit([]driver.CmdBuffer{cb}, fence); err != nil {
		return fail(err)
	}
	if err := s.dev.WaitFence(fence, s.fenceTimeout); err != nil {
		return fail(err)
	}

	data, err := mem.Map()
	if err != nil {
		return fail(errors.Mark(err, ErrMappingFailed))
	}
	s.log.Debug("image fetched", "name", name, "rows", rows, "rowPitch", rowPitch)
	return &FetchGuard{
		buf:        buf,
		mem:        mem,
		data:       data,
		rowPitch:   rowPitch,
		widthBytes: widthBytes,
		bpp:        im.format.Size(),
		rows:       rows,
	}, nil
}
