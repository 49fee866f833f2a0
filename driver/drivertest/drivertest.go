// Copyright 2026 The gpuproof Authors. All rights reserved.

// Package drivertest provides an in-memory driver
// implementation for tests.
// The fake device executes recorded commands at submit
// time against byte-slice memory: buffer/image copies
// honor row pitches, render-pass begins apply clear
// values, and layout transitions are checked against each
// image's tracked layout. Object creation and destruction
// are counted so leak and double-free properties can be
// asserted.
package drivertest

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gpuproof/scene/driver"
)

// Count pairs creations with destructions of one object
// kind.
type Count struct {
	Created   int
	Destroyed int
}

// Live returns how many objects of the kind are alive.
func (c Count) Live() int { return c.Created - c.Destroyed }

// Stats aggregates the device's object accounting.
type Stats struct {
	Mems            Count
	Buffers         Count
	Images          Count
	ImageViews      Count
	RenderPasses    Count
	Framebufs       Count
	DescLayouts     Count
	DescPools       Count
	PipelineLayouts Count
	Fences          Count
	CmdPools        Count
	CmdBuffers      Count

	Submits int
	Draws   int
}

// Adapter is a fake driver.Adapter over one Device.
type Adapter struct {
	dev *Device
}

// New creates an unopened fake adapter.
// Each adapter owns an independent device; scenes built on
// different adapters share nothing.
func New() *Adapter { return &Adapter{} }

// Open implements driver.Adapter.
func (a *Adapter) Open() (driver.Device, error) {
	if a.dev == nil {
		a.dev = newDevice()
	}
	return a.dev, nil
}

// Name implements driver.Adapter.
func (a *Adapter) Name() string { return "drivertest" }

// Close implements driver.Adapter.
func (a *Adapter) Close() { a.dev = nil }

// Device returns the opened device for inspection.
// It returns nil before Open is called.
func (a *Adapter) Device() *Device { return a.dev }

// Device is the fake device.
type Device struct {
	mu     sync.Mutex
	queue  *Queue
	limits driver.Limits
	mtypes []driver.MemoryType
	stats  Stats
}

func newDevice() *Device {
	d := &Device{
		limits: driver.Limits{
			MinCopyPitchAlign: 256,
			MaxImage2D:        16384,
			MaxFBSize:         [2]int{16384, 16384},
			MaxColorTargets:   8,
		},
		mtypes: []driver.MemoryType{
			{Props: driver.MDeviceLocal},
			{Props: driver.MHostVisible | driver.MHostCoherent},
			{Props: driver.MHostVisible | driver.MHostCached | driver.MHostCoherent},
		},
	}
	d.queue = &Queue{dev: d}
	return d
}

// allTypes is the type mask fake resources report: any
// memory type can back any resource.
func (d *Device) allTypes() uint { return 1<<uint(len(d.mtypes)) - 1 }

// Stats returns a copy of the device's accounting.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Device) created(c *Count) {
	d.mu.Lock()
	c.Created++
	d.mu.Unlock()
}

func (d *Device) destroyed(c *Count) {
	d.mu.Lock()
	c.Destroyed++
	d.mu.Unlock()
}

// Queue implements driver.Device.
func (d *Device) Queue() driver.Queue { return d.queue }

// MemoryTypes implements driver.Device.
func (d *Device) MemoryTypes() []driver.MemoryType { return d.mtypes }

// Limits implements driver.Device.
func (d *Device) Limits() driver.Limits { return d.limits }

// MemBudget is the largest single allocation the fake
// device grants per memory type.
const MemBudget = 1 << 30

// Alloc implements driver.Device.
// Allocations over MemBudget fail with the out-of-memory
// sentinel matching the memory type.
func (d *Device) Alloc(typeIndex int, size int64) (driver.Memory, error) {
	if typeIndex < 0 || typeIndex >= len(d.mtypes) {
		return nil, errors.Newf("drivertest: memory type %d out of range", typeIndex)
	}
	if size < 0 {
		return nil, errors.Newf("drivertest: negative allocation size %d", size)
	}
	if size > MemBudget {
		if d.mtypes[typeIndex].Props&driver.MDeviceLocal != 0 {
			return nil, errors.Wrapf(driver.ErrNoDeviceMemory, "drivertest: %d bytes", size)
		}
		return nil, errors.Wrapf(driver.ErrNoHostMemory, "drivertest: %d bytes", size)
	}
	d.created(&d.stats.Mems)
	return &Memory{
		dev:   d,
		bytes: make([]byte, size),
		props: d.mtypes[typeIndex].Props,
	}, nil
}

// NewBuffer implements driver.Device.
func (d *Device) NewBuffer(size int64, usg driver.Usage) (driver.Buffer, error) {
	if size <= 0 {
		return nil, errors.Newf("drivertest: buffer size %d", size)
	}
	d.created(&d.stats.Buffers)
	return &Buffer{dev: d, size: size, usg: usg}, nil
}

// NewImage implements driver.Device.
func (d *Device) NewImage(pf driver.PixelFmt, size driver.Dim3D, levels int, usg driver.Usage) (driver.Image, error) {
	if pf == driver.FmtInvalid {
		return nil, errors.New("drivertest: invalid pixel format")
	}
	if size.Width < 1 || size.Height < 1 || size.Depth < 1 {
		return nil, errors.Newf("drivertest: image size %v", size)
	}
	if size.Width > d.limits.MaxImage2D || size.Height > d.limits.MaxImage2D {
		return nil, errors.Newf("drivertest: image size %v over limit", size)
	}
	if levels < 1 {
		return nil, errors.Newf("drivertest: image levels %d", levels)
	}
	d.created(&d.stats.Images)
	return &Image{dev: d, pf: pf, size: size, levels: levels, usg: usg}, nil
}

// NewRenderPass implements driver.Device.
func (d *Device) NewRenderPass(att []driver.Attachment, sub []driver.Subpass, dep []driver.SubpassDep) (driver.RenderPass, error) {
	check := func(ref driver.AttachmentRef) error {
		if ref.Index < 0 || ref.Index >= len(att) {
			return errors.Newf("drivertest: attachment index %d out of range", ref.Index)
		}
		return nil
	}
	for _, sp := range sub {
		for _, c := range sp.Colors {
			if err := check(c); err != nil {
				return nil, err
			}
		}
		if sp.DepthStencil != nil {
			if err := check(*sp.DepthStencil); err != nil {
				return nil, err
			}
		}
		for _, in := range sp.Inputs {
			if err := check(in); err != nil {
				return nil, err
			}
		}
	}
	for _, dp := range dep {
		for _, end := range [2]int{dp.From, dp.To} {
			if end != driver.SubpassExternal && (end < 0 || end >= len(sub)) {
				return nil, errors.Newf("drivertest: subpass index %d out of range", end)
			}
		}
	}
	d.created(&d.stats.RenderPasses)
	return &RenderPass{
		dev:  d,
		atts: append([]driver.Attachment(nil), att...),
		subs: append([]driver.Subpass(nil), sub...),
	}, nil
}

// NewDescLayout implements driver.Device.
func (d *Device) NewDescLayout(bindings []driver.DescBinding) (driver.DescLayout, error) {
	d.created(&d.stats.DescLayouts)
	return &DescLayout{dev: d, bindings: append([]driver.DescBinding(nil), bindings...)}, nil
}

// NewDescPool implements driver.Device.
func (d *Device) NewDescPool(capacity int, ranges []driver.DescRange) (driver.DescPool, error) {
	if capacity < 1 {
		return nil, errors.Newf("drivertest: descriptor pool capacity %d", capacity)
	}
	d.created(&d.stats.DescPools)
	return &DescPool{dev: d, capacity: capacity}, nil
}

// NewPipelineLayout implements driver.Device.
func (d *Device) NewPipelineLayout(layouts []driver.DescLayout) (driver.PipelineLayout, error) {
	d.created(&d.stats.PipelineLayouts)
	return &PipelineLayout{dev: d}, nil
}

// NewFence implements driver.Device.
func (d *Device) NewFence(signaled bool) (driver.Fence, error) {
	d.created(&d.stats.Fences)
	return &Fence{dev: d, signaled: signaled}, nil
}

// WaitFence implements driver.Device.
// The fake queue executes at submit time, so a submitted
// fence is always signaled already; waiting on a fence
// that was never submitted reports a timeout immediately
// instead of blocking the test.
func (d *Device) WaitFence(f driver.Fence, timeout time.Duration) error {
	fence := f.(*Fence)
	d.mu.Lock()
	signaled := fence.signaled
	d.mu.Unlock()
	if signaled {
		return nil
	}
	return driver.ErrTimeout
}

// Memory is a host-side allocation.
type Memory struct {
	dev    *Device
	bytes  []byte
	props  driver.MemProps
	mapped bool
	freed  bool
}

// Map implements driver.Memory.
func (m *Memory) Map() ([]byte, error) {
	if m.freed {
		return nil, errors.New("drivertest: map of freed memory")
	}
	if m.props&driver.MHostVisible == 0 {
		return nil, errors.New("drivertest: map of non-host-visible memory")
	}
	m.mapped = true
	return m.bytes, nil
}

// Unmap implements driver.Memory.
func (m *Memory) Unmap() { m.mapped = false }

// Free implements driver.Memory.
func (m *Memory) Free() {
	m.freed = true
	m.dev.destroyed(&m.dev.stats.Mems)
}

// Buffer is a fake buffer backed by a range of its bound
// memory.
type Buffer struct {
	dev  *Device
	size int64
	usg  driver.Usage
	mem  *Memory
	off  int64
}

// Requirements implements driver.Buffer.
func (b *Buffer) Requirements() driver.MemReq {
	return driver.MemReq{Size: b.size, Align: 256, TypeMask: b.dev.allTypes()}
}

// Bind implements driver.Buffer.
func (b *Buffer) Bind(m driver.Memory, off int64) error {
	mem := m.(*Memory)
	if off+b.size > int64(len(mem.bytes)) {
		return errors.New("drivertest: buffer binding out of range")
	}
	b.mem = mem
	b.off = off
	return nil
}

// Destroy implements driver.Destroyer.
func (b *Buffer) Destroy() { b.dev.destroyed(&b.dev.stats.Buffers) }

// Bytes returns the buffer's bound byte range for test
// assertions.
func (b *Buffer) Bytes() []byte { return b.bytes() }

func (b *Buffer) bytes() []byte { return b.mem.bytes[b.off : b.off+b.size] }

// Image is a fake image.
// Pixel data is stored tightly packed, row-major, slices
// outermost; the current layout is tracked so transitions
// can be validated.
type Image struct {
	dev    *Device
	pf     driver.PixelFmt
	size   driver.Dim3D
	levels int
	usg    driver.Usage
	mem    *Memory
	data   []byte
	layout driver.Layout
}

// Layout returns the image's current layout for test
// assertions.
func (im *Image) Layout() driver.Layout { return im.layout }

// Data returns the image's backing pixel bytes, tightly
// packed.
func (im *Image) Data() []byte { return im.data }

func (im *Image) rowBytes() int { return im.pf.Size() * im.size.Width }

// Requirements implements driver.Image.
func (im *Image) Requirements() driver.MemReq {
	size := int64(im.rowBytes()) * int64(im.size.Height) * int64(im.size.Depth)
	return driver.MemReq{Size: size, Align: 256, TypeMask: im.dev.allTypes()}
}

// Bind implements driver.Image.
func (im *Image) Bind(m driver.Memory, off int64) error {
	im.mem = m.(*Memory)
	im.data = make([]byte, im.Requirements().Size)
	im.layout = driver.LUndefined
	return nil
}

// NewView implements driver.Image.
func (im *Image) NewView(pf driver.PixelFmt, swz driver.Swizzle, rng driver.SubresRange) (driver.ImageView, error) {
	if rng.Level+rng.Levels > im.levels {
		return nil, errors.Newf("drivertest: view levels %d+%d out of range", rng.Level, rng.Levels)
	}
	im.dev.created(&im.dev.stats.ImageViews)
	return &ImageView{dev: im.dev, img: im}, nil
}

// Destroy implements driver.Destroyer.
func (im *Image) Destroy() { im.dev.destroyed(&im.dev.stats.Images) }

// ImageView is a fake image view.
type ImageView struct {
	dev *Device
	img *Image
}

// Image implements driver.ImageView.
func (v *ImageView) Image() driver.Image { return v.img }

// Destroy implements driver.Destroyer.
func (v *ImageView) Destroy() { v.dev.destroyed(&v.dev.stats.ImageViews) }

// RenderPass is a fake render pass.
type RenderPass struct {
	dev  *Device
	atts []driver.Attachment
	subs []driver.Subpass
}

// NewFB implements driver.RenderPass.
func (rp *RenderPass) NewFB(iv []driver.ImageView, extent driver.Dim3D) (driver.Framebuf, error) {
	if len(iv) != len(rp.atts) {
		return nil, errors.Newf("drivertest: %d views for %d attachments", len(iv), len(rp.atts))
	}
	views := make([]*ImageView, len(iv))
	for i := range iv {
		views[i] = iv[i].(*ImageView)
	}
	rp.dev.created(&rp.dev.stats.Framebufs)
	return &Framebuf{dev: rp.dev, rp: rp, views: views, extent: extent}, nil
}

// Destroy implements driver.Destroyer.
func (rp *RenderPass) Destroy() { rp.dev.destroyed(&rp.dev.stats.RenderPasses) }

// Framebuf is a fake framebuffer.
type Framebuf struct {
	dev    *Device
	rp     *RenderPass
	views  []*ImageView
	extent driver.Dim3D
}

// Extent implements driver.Framebuf.
func (fb *Framebuf) Extent() driver.Dim3D { return fb.extent }

// Destroy implements driver.Destroyer.
func (fb *Framebuf) Destroy() { fb.dev.destroyed(&fb.dev.stats.Framebufs) }

// DescLayout is a fake descriptor set layout.
type DescLayout struct {
	dev      *Device
	bindings []driver.DescBinding
}

// Destroy implements driver.Destroyer.
func (l *DescLayout) Destroy() { l.dev.destroyed(&l.dev.stats.DescLayouts) }

// DescPool is a fake descriptor pool.
type DescPool struct {
	dev      *Device
	capacity int
	used     int
}

// AllocSet implements driver.DescPool.
func (p *DescPool) AllocSet(layout driver.DescLayout) (driver.DescSet, error) {
	if p.used >= p.capacity {
		return nil, errors.Newf("drivertest: descriptor pool exhausted (%d sets)", p.capacity)
	}
	p.used++
	return &DescSet{}, nil
}

// Destroy implements driver.Destroyer.
func (p *DescPool) Destroy() { p.dev.destroyed(&p.dev.stats.DescPools) }

// DescSet is a fake descriptor set.
type DescSet struct{}

// PipelineLayout is a fake pipeline layout.
type PipelineLayout struct {
	dev *Device
}

// Destroy implements driver.Destroyer.
func (l *PipelineLayout) Destroy() { l.dev.destroyed(&l.dev.stats.PipelineLayouts) }

// Fence is a fake fence.
type Fence struct {
	dev      *Device
	signaled bool
}

// Destroy implements driver.Destroyer.
func (f *Fence) Destroy() { f.dev.destroyed(&f.dev.stats.Fences) }

// Queue is the fake device queue.
// Submitted command buffers execute immediately, in batch
// order, so submission order is observable through data
// effects.
type Queue struct {
	dev *Device
}

// NewPool implements driver.Queue.
func (q *Queue) NewPool(capacity int) (driver.CmdPool, error) {
	q.dev.created(&q.dev.stats.CmdPools)
	return &CmdPool{dev: q.dev}, nil
}

// Submit implements driver.Queue.
func (q *Queue) Submit(cbs []driver.CmdBuffer, f driver.Fence) error {
	q.dev.mu.Lock()
	defer q.dev.mu.Unlock()
	for _, c := range cbs {
		cb := c.(*CmdBuffer)
		if !cb.ended {
			return errors.New("drivertest: submit of unfinished command buffer")
		}
		if cb.consumed {
			return errors.New("drivertest: command buffer submitted twice")
		}
	}
	for _, c := range cbs {
		cb := c.(*CmdBuffer)
		cb.consumed = true
		for _, op := range cb.ops {
			if err := op(); err != nil {
				return err
			}
		}
	}
	q.dev.stats.Submits++
	if f != nil {
		f.(*Fence).signaled = true
	}
	return nil
}

// CmdPool is a fake command pool.
// Destroying the pool destroys any of its command buffers
// that are still alive.
type CmdPool struct {
	dev  *Device
	bufs []*CmdBuffer
}

// NewCmdBuffer implements driver.CmdPool.
func (p *CmdPool) NewCmdBuffer() (driver.CmdBuffer, error) {
	p.dev.created(&p.dev.stats.CmdBuffers)
	cb := &CmdBuffer{dev: p.dev}
	p.bufs = append(p.bufs, cb)
	return cb, nil
}

// Destroy implements driver.Destroyer.
func (p *CmdPool) Destroy() {
	for _, cb := range p.bufs {
		cb.Destroy()
	}
	p.bufs = nil
	p.dev.destroyed(&p.dev.stats.CmdPools)
}
