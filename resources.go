// Copyright 2026 The gpuproof Authors. All rights reserved.

package scene

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/gpuproof/scene/desc"
	"github.com/gpuproof/scene/driver"
)

// Buffer is a realized buffer resource: the driver handle
// plus the memory bound to it.
type Buffer struct {
	Handle driver.Buffer
	mem    driver.Memory
}

// imageState is the access/layout pair an image rests in.
type imageState struct {
	access driver.Access
	layout driver.Layout
}

// Image is a realized image resource.
// Its stable state is the access/layout the image is
// guaranteed to hold whenever it is not inside a transient
// operation; every such operation must end by restoring it.
type Image struct {
	Handle driver.Image
	mem    driver.Memory
	size   driver.Dim3D
	format driver.PixelFmt
	stable imageState
}

// Size returns the image's dimensions.
func (im *Image) Size() driver.Dim3D { return im.size }

// Format returns the image's pixel format.
func (im *Image) Format() driver.PixelFmt { return im.format }

// StableState returns the image's resting access scope
// and layout.
func (im *Image) StableState() (driver.Access, driver.Layout) {
	return im.stable.access, im.stable.layout
}

// RenderPass is a realized render pass together with the
// attachment and subpass names in declaration order.
// The positions are fixed at construction; jobs and
// framebuffers resolve attachment/subpass identity through
// them.
type RenderPass struct {
	Handle      driver.RenderPass
	attachments []string
	subpasses   []string
}

// Attachments returns the attachment names in declaration
// order.
func (rp *RenderPass) Attachments() []string {
	out := make([]string, len(rp.attachments))
	copy(out, rp.attachments)
	return out
}

// Subpasses returns the subpass names in declaration
// order.
func (rp *RenderPass) Subpasses() []string {
	out := make([]string, len(rp.subpasses))
	copy(out, rp.subpasses)
	return out
}

// Resources is the realized resource table of a scene:
// every named declaration resolved to a GPU object.
// Entries are created during scene construction and
// destroyed only at teardown.
type Resources struct {
	Buffers         map[string]*Buffer
	Images          map[string]*Image
	ImageViews      map[string]driver.ImageView
	RenderPasses    map[string]*RenderPass
	Framebufs       map[string]driver.Framebuf
	DescLayouts     map[string]driver.DescLayout
	DescPools       map[string]driver.DescPool
	DescSets        map[string]driver.DescSet
	PipelineLayouts map[string]driver.PipelineLayout
}

func newResources() *Resources {
	return &Resources{
		Buffers:         map[string]*Buffer{},
		Images:          map[string]*Image{},
		ImageViews:      map[string]driver.ImageView{},
		RenderPasses:    map[string]*RenderPass{},
		Framebufs:       map[string]driver.Framebuf{},
		DescLayouts:     map[string]driver.DescLayout{},
		DescPools:       map[string]driver.DescPool{},
		DescSets:        map[string]driver.DescSet{},
		PipelineLayouts: map[string]driver.PipelineLayout{},
	}
}

// free destroys every table entry.
// Framebuffers go before render passes and views before
// images, matching the creation constraints the driver
// imposes.
func (r *Resources) free() {
	for _, fb := range r.Framebufs {
		fb.Destroy()
	}
	for _, rp := range r.RenderPasses {
		rp.Handle.Destroy()
	}
	for _, v := range r.ImageViews {
		v.Destroy()
	}
	for _, im := range r.Images {
		im.Handle.Destroy()
		im.mem.Free()
	}
	for _, b := range r.Buffers {
		b.Handle.Destroy()
		b.mem.Free()
	}
	for _, pl := range r.PipelineLayouts {
		pl.Destroy()
	}
	for _, p := range r.DescPools {
		p.Destroy()
	}
	for _, l := range r.DescLayouts {
		l.Destroy()
	}
	*r = *newResources()
}

// findMemoryType returns the index of the first memory
// type that is allowed by mask and has all of props.
func findMemoryType(types []driver.MemoryType, mask uint, props driver.MemProps) (int, bool) {
	for i := range types {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		if types[i].Props&props == props {
			return i, true
		}
	}
	return 0, false
}

// builder realizes the resource section of a description.
// It runs in three fixed passes because later resource
// kinds reference earlier kinds by name and the
// description map has no guaranteed iteration order:
// pass 1 creates images, buffers, render passes and
// descriptor layouts/pools; pass 2 creates image views,
// descriptor sets and pipeline layouts; pass 3 creates
// framebuffers.
type builder struct {
	dev        driver.Device
	limits     driver.Limits
	mtypes     []driver.MemoryType
	uploadType int
	initCmd    driver.CmdBuffer
	dataPath   string
	res        *Resources
	uploads    map[string]*Buffer
	log        *slog.Logger
}

func (b *builder) build(resources map[string]desc.Resource) error {
	for name, res := range resources {
		var err error
		switch {
		case res.Buffer != nil:
			err = b.createBuffer(name, res.Buffer)
		case res.Image != nil:
			err = b.createImage(name, res.Image)
		case res.RenderPass != nil:
			err = b.createRenderPass(name, res.RenderPass)
		case res.DescLayout != nil:
			err = b.createDescLayout(name, res.DescLayout)
		case res.DescPool != nil:
			err = b.createDescPool(name, res.DescPool)
		}
		if err != nil {
			return err
		}
	}
	for name, res := range resources {
		var err error
		switch {
		case res.ImageView != nil:
			err = b.createImageView(name, res.ImageView)
		case res.DescSet != nil:
			err = b.createDescSet(name, res.DescSet)
		case res.PipelineLayout != nil:
			err = b.createPipelineLayout(name, res.PipelineLayout)
		}
		if err != nil {
			return err
		}
	}
	for name, res := range resources {
		if res.Framebuffer == nil {
			continue
		}
		if err := b.createFramebuffer(name, res.Framebuffer); err != nil {
			return err
		}
	}
	return nil
}

// allocBound allocates memory of the given type for req
// and returns it. It fails with ErrNoMemoryType when the
// type is not allowed by the requirements.
func (b *builder) allocBound(req driver.MemReq, typeIndex int) (driver.Memory, error) {
	if req.TypeMask&(1<<uint(typeIndex)) == 0 {
		return nil, errors.Wrapf(ErrNoMemoryType,
			"scene: memory type %d not allowed by resource", typeIndex)
	}
	return b.dev.Alloc(typeIndex, req.Size)
}

func (b *builder) createBuffer(name string, d *desc.Buffer) error {
	buf, err := b.dev.NewBuffer(d.Size, d.Usage.Usg())
	if err != nil {
		return errors.Wrapf(err, "buffer %q", name)
	}
	req := buf.Requirements()
	props := driver.MDeviceLocal
	if d.Data != "" {
		// Initial data is streamed through a mapping,
		// so the buffer itself must be host visible.
		props = driver.MHostVisible
	}
	ti, ok := findMemoryType(b.mtypes, req.TypeMask, props)
	if !ok {
		buf.Destroy()
		return errors.Wrapf(ErrNoMemoryType,
			"scene: buffer %q: no memory type with props %#x", name, props)
	}
	mem, err := b.dev.Alloc(ti, req.Size)
	if err != nil {
		buf.Destroy()
		return errors.Wrapf(err, "buffer %q", name)
	}
	if err := buf.Bind(mem, 0); err != nil {
		buf.Destroy()
		mem.Free()
		return errors.Wrapf(err, "buffer %q", name)
	}
	if d.Data != "" {
		if err := b.writeBuffer(mem, d.Data, d.Size); err != nil {
			buf.Destroy()
			mem.Free()
			return errors.Wrapf(err, "buffer %q", name)
		}
	}
	b.res.Buffers[name] = &Buffer{Handle: buf, mem: mem}
	b.log.Debug("buffer created", "name", name, "size", d.Size)
	return nil
}

// writeBuffer streams the named data file into mem.
func (b *builder) writeBuffer(mem driver.Memory, data string, size int64) error {
	mapping, err := mem.Map()
	if err != nil {
		return errors.Mark(err, ErrMappingFailed)
	}
	defer mem.Unmap()
	f, err := os.Open(filepath.Join(b.dataPath, data))
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.ReadFull(f, mapping[:size])
	return err
}

// stableStateFor chooses the resting state of an image
// that carries no initial data: depth/stencil formats
// rest as depth/stencil targets, everything else as a
// color target.
func stableStateFor(f driver.PixelFmt) imageState {
	if f.IsColor() {
		return imageState{driver.AColorWrite, driver.LColorTarget}
	}
	return imageState{driver.ADSWrite, driver.LDSTarget}
}

func (b *builder) createImage(name string, d *desc.Image) error {
	size := d.Size.Norm()
	levels := d.Levels
	if levels < 1 {
		levels = 1
	}
	usg := d.Usage.Usg()
	if d.Data != "" {
		usg |= driver.UCopyDst
	}
	img, err := b.dev.NewImage(d.Format.Fmt(), size, levels, usg)
	if err != nil {
		return errors.Wrapf(err, "image %q", name)
	}
	req := img.Requirements()
	ti, ok := findMemoryType(b.mtypes, req.TypeMask, driver.MDeviceLocal)
	if !ok {
		img.Destroy()
		return errors.Wrapf(ErrNoMemoryType,
			"scene: image %q: no device-local memory type", name)
	}
	mem, err := b.dev.Alloc(ti, req.Size)
	if err != nil {
		img.Destroy()
		return errors.Wrapf(err, "image %q", name)
	}
	if err := img.Bind(mem, 0); err != nil {
		img.Destroy()
		mem.Free()
		return errors.Wrapf(err, "image %q", name)
	}

	im := &Image{Handle: img, mem: mem, size: size, format: d.Format.Fmt()}
	if d.Data == "" {
		im.stable = stableStateFor(im.format)
		b.initCmd.Transition([]driver.Transition{{
			Barrier: driver.Barrier{
				SyncBefore:   driver.SNone,
				SyncAfter:    driver.SAll,
				AccessBefore: driver.ANone,
				AccessAfter:  im.stable.access,
			},
			LayoutBefore: driver.LUndefined,
			LayoutAfter:  im.stable.layout,
			Img:          img,
			Range:        im.wholeRange(),
		}})
	} else if err := b.uploadImage(name, im, d.Data); err != nil {
		img.Destroy()
		mem.Free()
		return errors.Wrapf(err, "image %q", name)
	}
	b.res.Images[name] = im
	b.log.Debug("image created", "name", name,
		"width", size.Width, "height", size.Height, "depth", size.Depth)
	return nil
}

// wholeRange returns the subresource range covering the
// first mip level of im.
func (im *Image) wholeRange() driver.SubresRange {
	return driver.SubresRange{
		Aspects: im.format.Aspects(),
		Level:   0,
		Levels:  1,
		Layer:   0,
		Layers:  1,
	}
}

// uploadImage creates a host-visible staging buffer,
// streams the named data file into it row by row honoring
// the device's copy pitch alignment, and appends to the
// init command buffer the upload copy bracketed by the
// barriers that leave the image in its stable state.
func (b *builder) uploadImage(name string, im *Image, data string) error {
	widthBytes := im.format.Size() * im.size.Width
	rowPitch := align(widthBytes, b.limits.MinCopyPitchAlign)
	rows := im.size.Height * im.size.Depth
	uploadSize := int64(rowPitch) * int64(rows)

	buf, err := b.dev.NewBuffer(uploadSize, driver.UCopySrc)
	if err != nil {
		return err
	}
	mem, err := b.allocBound(buf.Requirements(), b.uploadType)
	if err != nil {
		buf.Destroy()
		return err
	}
	if err := buf.Bind(mem, 0); err != nil {
		buf.Destroy()
		mem.Free()
		return err
	}

	err = func() error {
		mapping, err := mem.Map()
		if err != nil {
			return errors.Mark(err, ErrMappingFailed)
		}
		defer mem.Unmap()
		f, err := os.Open(filepath.Join(b.dataPath, data))
		if err != nil {
			return err
		}
		defer f.Close()
		// Rows are tightly packed in the file; padding
		// bytes between rowPitch strides stay untouched.
		for y := 0; y < rows; y++ {
			dst := mapping[y*rowPitch : y*rowPitch+widthBytes]
			if _, err := io.ReadFull(f, dst); err != nil {
				return err
			}
		}
		return nil
	}()
	if err != nil {
		buf.Destroy()
		mem.Free()
		return err
	}

	final := imageState{driver.AShaderRead, driver.LShaderRead}
	b.initCmd.Transition([]driver.Transition{{
		Barrier: driver.Barrier{
			SyncBefore:   driver.SNone,
			SyncAfter:    driver.SCopy,
			AccessBefore: driver.ANone,
			AccessAfter:  driver.ACopyWrite,
		},
		LayoutBefore: driver.LUndefined,
		LayoutAfter:  driver.LCopyDst,
		Img:          im.Handle,
		Range:        im.wholeRange(),
	}})
	b.initCmd.CopyBufToImg(&driver.BufImgCopy{
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
	b.initCmd.Transition([]driver.Transition{{
		Barrier: driver.Barrier{
			SyncBefore:   driver.SCopy,
			SyncAfter:    driver.SAll,
			AccessBefore: driver.ACopyWrite,
			AccessAfter:  final.access,
		},
		LayoutBefore: driver.LCopyDst,
		LayoutAfter:  final.layout,
		Img:          im.Handle,
		Range:        im.wholeRange(),
	}})

	im.stable = final
	b.uploads[name] = &Buffer{Handle: buf, mem: mem}
	return nil
}

func (b *builder) createRenderPass(name string, d *desc.RenderPass) error {
	attIndex := make(map[string]int, len(d.Attachments))
	attNames := make([]string, len(d.Attachments))
	atts := make([]driver.Attachment, len(d.Attachments))
	for i, a := range d.Attachments {
		attIndex[a.Name] = i
		attNames[i] = a.Name
		samples := a.Samples
		if samples < 1 {
			samples = 1
		}
		atts[i] = driver.Attachment{
			Format:  a.Format.Fmt(),
			Samples: samples,
			Load:    [2]driver.LoadOp{a.LoadOp.Val(), a.StencilLoadOp.Val()},
			Store:   [2]driver.StoreOp{a.StoreOp.Val(), a.StencilStoreOp.Val()},
			Layouts: [2]driver.Layout{a.InitialLayout.Val(), a.FinalLayout.Val()},
		}
	}
	attRef := func(r desc.AttachmentRef) (driver.AttachmentRef, error) {
		i, ok := attIndex[r.Name]
		if !ok {
			return driver.AttachmentRef{}, notFound("attachment", r.Name)
		}
		return driver.AttachmentRef{Index: i, Layout: r.Layout.Val()}, nil
	}

	subIndex := make(map[string]int, len(d.Subpasses))
	subNames := make([]string, len(d.Subpasses))
	for i, sp := range d.Subpasses {
		subIndex[sp.Name] = i
		subNames[i] = sp.Name
	}
	subs := make([]driver.Subpass, len(d.Subpasses))
	for i, sp := range d.Subpasses {
		var sub driver.Subpass
		for _, c := range sp.Colors {
			ref, err := attRef(c)
			if err != nil {
				return errors.Wrapf(err, "render pass %q", name)
			}
			sub.Colors = append(sub.Colors, ref)
		}
		if sp.DepthStencil != nil {
			ref, err := attRef(*sp.DepthStencil)
			if err != nil {
				return errors.Wrapf(err, "render pass %q", name)
			}
			sub.DepthStencil = &ref
		}
		for _, in := range sp.Inputs {
			ref, err := attRef(in)
			if err != nil {
				return errors.Wrapf(err, "render pass %q", name)
			}
			sub.Inputs = append(sub.Inputs, ref)
		}
		for _, p := range sp.Preserves {
			pi, ok := attIndex[p]
			if !ok {
				return errors.Wrapf(notFound("attachment", p), "render pass %q", name)
			}
			sub.Preserves = append(sub.Preserves, pi)
		}
		subs[i] = sub
	}

	subRef := func(s string) (int, error) {
		if s == "" {
			return driver.SubpassExternal, nil
		}
		i, ok := subIndex[s]
		if !ok {
			return 0, notFound("subpass", s)
		}
		return i, nil
	}
	deps := make([]driver.SubpassDep, len(d.Dependencies))
	for i, dep := range d.Dependencies {
		from, err := subRef(dep.From)
		if err != nil {
			return errors.Wrapf(err, "render pass %q", name)
		}
		to, err := subRef(dep.To)
		if err != nil {
			return errors.Wrapf(err, "render pass %q", name)
		}
		deps[i] = driver.SubpassDep{
			Barrier: driver.Barrier{
				SyncBefore:   dep.SyncFrom.Val(),
				SyncAfter:    dep.SyncTo.Val(),
				AccessBefore: dep.AccessFrom.Val(),
				AccessAfter:  dep.AccessTo.Val(),
			},
			From: from,
			To:   to,
		}
	}

	handle, err := b.dev.NewRenderPass(atts, subs, deps)
	if err != nil {
		return errors.Wrapf(err, "render pass %q", name)
	}
	b.res.RenderPasses[name] = &RenderPass{
		Handle:      handle,
		attachments: attNames,
		subpasses:   subNames,
	}
	b.log.Debug("render pass created", "name", name,
		"attachments", len(attNames), "subpasses", len(subNames))
	return nil
}

func (b *builder) createDescLayout(name string, d *desc.DescLayout) error {
	bindings := make([]driver.DescBinding, len(d.Bindings))
	for i, bd := range d.Bindings {
		count := bd.Count
		if count < 1 {
			count = 1
		}
		bindings[i] = driver.DescBinding{
			Type:   bd.Type.Val(),
			Nr:     bd.Nr,
			Count:  count,
			Stages: bd.Stages.Val(),
		}
	}
	layout, err := b.dev.NewDescLayout(bindings)
	if err != nil {
		return errors.Wrapf(err, "descriptor set layout %q", name)
	}
	b.res.DescLayouts[name] = layout
	return nil
}

func (b *builder) createDescPool(name string, d *desc.DescPool) error {
	ranges := make([]driver.DescRange, len(d.Ranges))
	for i, r := range d.Ranges {
		ranges[i] = driver.DescRange{Type: r.Type.Val(), Count: r.Count}
	}
	pool, err := b.dev.NewDescPool(d.Capacity, ranges)
	if err != nil {
		return errors.Wrapf(err, "descriptor pool %q", name)
	}
	b.res.DescPools[name] = pool
	return nil
}

func (b *builder) createImageView(name string, d *desc.ImageView) error {
	im, ok := b.res.Images[d.Image]
	if !ok {
		return errors.Wrapf(notFound("image", d.Image), "image view %q", name)
	}
	format := d.Format.Fmt()
	if format == driver.FmtInvalid {
		format = im.format
	}
	rng := driver.SubresRange{
		Aspects: d.Range.Aspects.Val(),
		Level:   d.Range.Level,
		Levels:  d.Range.Levels,
		Layer:   d.Range.Layer,
		Layers:  d.Range.Layers,
	}
	if rng.Aspects == 0 {
		rng.Aspects = format.Aspects()
	}
	if rng.Levels < 1 {
		rng.Levels = 1
	}
	if rng.Layers < 1 {
		rng.Layers = 1
	}
	view, err := im.Handle.NewView(format, d.Swizzle.Val(), rng)
	if err != nil {
		return errors.Wrapf(err, "image view %q", name)
	}
	b.res.ImageViews[name] = view
	return nil
}

func (b *builder) createDescSet(name string, d *desc.DescSet) error {
	pool, ok := b.res.DescPools[d.Pool]
	if !ok {
		return errors.Wrapf(notFound("descriptor pool", d.Pool), "descriptor set %q", name)
	}
	layout, ok := b.res.DescLayouts[d.Layout]
	if !ok {
		return errors.Wrapf(notFound("descriptor set layout", d.Layout), "descriptor set %q", name)
	}
	set, err := pool.AllocSet(layout)
	if err != nil {
		return errors.Wrapf(err, "descriptor set %q", name)
	}
	b.res.DescSets[name] = set
	return nil
}

func (b *builder) createPipelineLayout(name string, d *desc.PipelineLayout) error {
	layouts := make([]driver.DescLayout, len(d.SetLayouts))
	for i, ln := range d.SetLayouts {
		layout, ok := b.res.DescLayouts[ln]
		if !ok {
			return errors.Wrapf(notFound("descriptor set layout", ln), "pipeline layout %q", name)
		}
		layouts[i] = layout
	}
	handle, err := b.dev.NewPipelineLayout(layouts)
	if err != nil {
		return errors.Wrapf(err, "pipeline layout %q", name)
	}
	b.res.PipelineLayouts[name] = handle
	return nil
}

func (b *builder) createFramebuffer(name string, d *desc.Framebuffer) error {
	rp, ok := b.res.RenderPasses[d.Pass]
	if !ok {
		return errors.Wrapf(notFound("render pass", d.Pass), "framebuffer %q", name)
	}
	// Views are bound in the render pass' declared
	// attachment order, not in description order.
	views := make([]driver.ImageView, len(rp.attachments))
	for i, attName := range rp.attachments {
		viewName, ok := d.Views[attName]
		if !ok {
			return errors.Wrapf(ErrNameNotFound,
				"scene: framebuffer %q: no view bound for attachment %q", name, attName)
		}
		view, ok := b.res.ImageViews[viewName]
		if !ok {
			return errors.Wrapf(notFound("image view", viewName), "framebuffer %q", name)
		}
		views[i] = view
	}
	fb, err := rp.Handle.NewFB(views, d.Extent.Norm())
	if err != nil {
		return errors.Wrapf(err, "framebuffer %q", name)
	}
	b.res.Framebufs[name] = fb
	b.log.Debug("framebuffer created", "name", name, "pass", d.Pass)
	return nil
}
