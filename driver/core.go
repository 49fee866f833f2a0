// Copyright 2026 The gpuproof Authors. All rights reserved.

package driver

import "time"

// Device is the main interface to an underlying GPU.
// It is used to create every other driver type and is
// obtained from a call to Adapter.Open.
type Device interface {
	// Queue returns the device's graphics queue.
	// The queue is owned by the device and is valid
	// until the adapter is closed.
	Queue() Queue

	// MemoryTypes returns the memory types supported
	// by the device. The index of a type in the
	// returned slice is the identifier used when
	// allocating memory of that type.
	// The slice is immutable for the lifetime of
	// the device.
	MemoryTypes() []MemoryType

	// Limits returns the implementation limits.
	// They are immutable for the lifetime of the device.
	Limits() Limits

	// Alloc allocates size bytes of memory of the
	// given type.
	Alloc(typeIndex int, size int64) (Memory, error)

	// NewBuffer creates a new buffer.
	// The buffer has no memory bound to it; callers
	// allocate memory that satisfies the buffer's
	// Requirements and then call Bind.
	NewBuffer(size int64, usg Usage) (Buffer, error)

	// NewImage creates a new image.
	// Like buffers, images are created unbound.
	NewImage(pf PixelFmt, size Dim3D, levels int, usg Usage) (Image, error)

	// NewRenderPass creates a new render pass.
	// Subpass attachment references and dependency
	// endpoints identify attachments/subpasses by
	// position in att and sub.
	NewRenderPass(att []Attachment, sub []Subpass, dep []SubpassDep) (RenderPass, error)

	// NewDescLayout creates a new descriptor set layout.
	NewDescLayout(bindings []DescBinding) (DescLayout, error)

	// NewDescPool creates a new descriptor pool from
	// which at most capacity sets can be allocated.
	NewDescPool(capacity int, ranges []DescRange) (DescPool, error)

	// NewPipelineLayout creates a new pipeline layout
	// over the given descriptor set layouts.
	NewPipelineLayout(layouts []DescLayout) (PipelineLayout, error)

	// NewFence creates a new fence in the given state.
	NewFence(signaled bool) (Fence, error)

	// WaitFence blocks until f signals or the timeout
	// expires, whichever comes first. It returns
	// ErrTimeout in the latter case.
	// Use NoTimeout to wait indefinitely.
	WaitFence(f Fence, timeout time.Duration) error
}

// Destroyer is the interface that wraps the Destroy method.
// Types that implement this interface may hold resources
// that are not managed by GC, so Destroy must be called
// explicitly to ensure such resources are released.
type Destroyer interface {
	Destroy()
}

// Queue is the interface that submits recorded command
// buffers for execution.
type Queue interface {
	// Submit submits cb for execution as a single
	// ordered batch. Command buffers execute as if
	// in slice order.
	// If f is not nil, it signals when every command
	// buffer in the batch completes execution.
	// Submit does not wait for completion.
	Submit(cb []CmdBuffer, f Fence) error

	// NewPool creates a new command pool able to hold
	// at least capacity command buffers.
	NewPool(capacity int) (CmdPool, error)
}

// CmdPool is the interface that allocates command buffers.
// Destroying a pool invalidates every command buffer
// allocated from it.
type CmdPool interface {
	Destroyer

	// NewCmdBuffer allocates a new command buffer.
	NewCmdBuffer() (CmdBuffer, error)
}

// CmdBuffer is the interface that defines a command buffer.
// The usage is as follows: call Begin, record transfer
// and/or render-pass commands, then call End. An ended
// command buffer is immutable; it can be submitted through
// Queue.Submit exactly once.
//
// To record commands for a render pass:
//	1. call BeginPass
//	2. call Set* methods to configure drawing state
//	3. call Draw* commands
//	4. call NextSubpass (if using multiple subpasses)
//	5. repeat 2-4 as needed
//	6. call EndPass
type CmdBuffer interface {
	Destroyer

	// Begin prepares the command buffer for recording.
	// It must be called before any command is recorded.
	Begin() error

	// IsRecording returns whether the command buffer is
	// between a Begin and an End call.
	IsRecording() bool

	// Transition inserts a number of image layout
	// transitions, each with its own barrier, in the
	// command buffer.
	Transition(t []Transition)

	// CopyBufToImg copies data from a buffer to an
	// image.
	CopyBufToImg(param *BufImgCopy)

	// CopyImgToBuf copies data from an image to a
	// buffer.
	CopyImgToBuf(param *BufImgCopy)

	// BeginPass begins the first subpass of the given
	// render pass, rendering into fb over a rectangle
	// equal to the framebuffer's extent.
	// clear provides one value per attachment; it is
	// consulted only for attachments whose load
	// operation is LClear.
	BeginPass(pass RenderPass, fb Framebuf, clear []ClearValue)

	// NextSubpass ends the current subpass and begins
	// the next one.
	// It must not be called in the last subpass.
	NextSubpass()

	// EndPass ends the current render pass.
	EndPass()

	// SetVertexBuf sets one or more vertex buffers.
	SetVertexBuf(start int, buf []Buffer, off []int64)

	// SetIndexBuf sets the index buffer.
	SetIndexBuf(format IndexFmt, buf Buffer, off int64)

	// Draw draws primitives.
	// It must only be called during a render pass.
	Draw(vertCount, instCount, baseVert, baseInst int)

	// DrawIndexed draws indexed primitives.
	// It must only be called during a render pass.
	DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int)

	// End ends command recording and prepares the
	// command buffer for execution.
	End() error
}

// MemProps is a mask of memory properties.
type MemProps int

// Memory properties.
const (
	// The memory is local to the GPU.
	MDeviceLocal MemProps = 1 << iota
	// The memory can be mapped for host access.
	MHostVisible
	// Host reads of the memory are cached.
	MHostCached
	// Host writes need no explicit flushing.
	MHostCoherent
)

// MemoryType describes one kind of memory that a device
// can allocate.
type MemoryType struct {
	Props MemProps
}

// MemReq describes the memory requirements of an unbound
// buffer or image.
// TypeMask has one bit set for each element of
// Device.MemoryTypes from which the resource can be
// allocated.
type MemReq struct {
	Size     int64
	Align    int64
	TypeMask uint
}

// Memory is the interface that defines a device memory
// allocation.
type Memory interface {
	// Map maps the whole allocation for host access.
	// It must only be called on host-visible memory.
	// The returned slice is valid until Unmap or
	// Free is called.
	Map() ([]byte, error)

	// Unmap unmaps the allocation.
	Unmap()

	// Free releases the allocation.
	// Memory that backs a live buffer or image must
	// not be freed.
	Free()
}

// Usage is a mask indicating valid uses for a resource.
type Usage int

// Usage flags for Buffer and Image.
const (
	// The resource can be the source of a copy.
	UCopySrc Usage = 1 << iota
	// The resource can be the destination of a copy.
	UCopyDst
	// The resource can be sampled in shaders.
	// Valid only for Image.
	USampled
	// The resource can be used as render target.
	// Valid only for Image.
	URenderTarget
	// The resource can be used as depth/stencil target.
	// Valid only for Image.
	UDSTarget
	// The resource can provide vertex data for draw calls.
	// Valid only for Buffer.
	UVertexData
	// The resource can provide index data for draw calls.
	// Valid only for Buffer.
	UIndexData
	// The resource can provide constant data for shaders.
	// Valid only for Buffer.
	UShaderConst
)

// Buffer is the interface that defines a GPU buffer.
// The size of the buffer is fixed. When a larger buffer
// is necessary, a new one must be created and the data
// must be copied explicitly.
type Buffer interface {
	Destroyer

	// Requirements returns the buffer's memory
	// requirements.
	Requirements() MemReq

	// Bind binds memory to the buffer.
	// It must be called exactly once, before the
	// buffer is first used.
	Bind(m Memory, off int64) error
}

// Image is the interface that defines a GPU image.
// Direct access to image memory is not provided, so data
// transfers between the CPU and an image go through a
// host-visible staging buffer.
type Image interface {
	Destroyer

	// Requirements returns the image's memory
	// requirements.
	Requirements() MemReq

	// Bind binds memory to the image.
	// It must be called exactly once, before the
	// image is first used.
	Bind(m Memory, off int64) error

	// NewView creates a new view of the image.
	// All views created from a given image must be
	// destroyed before the image itself is destroyed.
	NewView(pf PixelFmt, swz Swizzle, rng SubresRange) (ImageView, error)
}

// ImageView is the interface that defines a typed view of
// an Image resource.
type ImageView interface {
	Destroyer

	// Image returns the image the view was created from.
	Image() Image
}

// Channel identifies the source of one channel of an
// image view's swizzle.
type Channel int

// Swizzle channels.
const (
	CIdentity Channel = iota
	CZero
	COne
	CR
	CG
	CB
	CA
)

// Swizzle remaps the channels of an image view.
type Swizzle struct {
	R, G, B, A Channel
}

// Aspect is a mask of image aspects.
type Aspect int

// Image aspects.
const (
	AspectColor Aspect = 1 << iota
	AspectDepth
	AspectStencil
)

// SubresRange identifies a contiguous set of subresources
// of an image.
type SubresRange struct {
	Aspects Aspect
	Level   int
	Levels  int
	Layer   int
	Layers  int
}

// SubresLayers identifies the subresources of a single
// mip level of an image.
type SubresLayers struct {
	Aspects Aspect
	Level   int
	Layer   int
	Layers  int
}

// Sync is the type of a synchronization scope.
type Sync int

// Synchronization scopes.
const (
	SVertexInput Sync = 1 << iota
	SVertexShading
	SFragmentShading
	SColorOutput
	SDSOutput
	SCopy
	SAll
	SNone Sync = 0
)

// Access is the type of a memory access scope.
type Access int

// Memory access scopes.
const (
	AVertexBufRead Access = 1 << iota
	AIndexBufRead
	AColorRead
	AColorWrite
	ADSRead
	ADSWrite
	ACopyRead
	ACopyWrite
	AShaderRead
	AShaderWrite
	ANone Access = 0
)

// Layout is the type of an image layout.
type Layout int

// Image layouts.
const (
	LUndefined Layout = iota
	LColorTarget
	LDSTarget
	LCopySrc
	LCopyDst
	LShaderRead
)

// Barrier represents a synchronization barrier.
type Barrier struct {
	SyncBefore   Sync
	SyncAfter    Sync
	AccessBefore Access
	AccessAfter  Access
}

// Transition represents a layout transition on a
// specific image subresource range.
type Transition struct {
	Barrier

	LayoutBefore Layout
	LayoutAfter  Layout
	Img          Image
	Range        SubresRange
}

// BufImgCopy describes the parameters of a copy command
// that copies data between a buffer and an image.
// RowPitch and SlicePitch are byte strides describing the
// addressing of image data in the buffer; RowPitch must
// satisfy Limits.MinCopyPitchAlign.
type BufImgCopy struct {
	Buf        Buffer
	BufOff     int64
	RowPitch   int64
	SlicePitch int64
	Img        Image
	ImgOff     Off3D
	Layers     SubresLayers
	Size       Dim3D
}

// LoadOp is the type of an attachment's load operation.
type LoadOp int

// Load operations.
const (
	LDontCare LoadOp = iota
	LClear
	LLoad
)

// StoreOp is the type of an attachment's store operation.
type StoreOp int

// Store operations.
const (
	SDontCare StoreOp = iota
	SStore
)

// Attachment describes the configuration of a single
// render target for use in a render pass.
// Load/Store and Layouts pair color/depth with stencil
// and initial with final, respectively.
type Attachment struct {
	Format  PixelFmt
	Samples int
	Load    [2]LoadOp
	Store   [2]StoreOp
	Layouts [2]Layout
}

// AttachmentRef identifies an attachment by position in
// the render pass' attachment list, together with the
// layout the attachment will be in during the subpass.
type AttachmentRef struct {
	Index  int
	Layout Layout
}

// Subpass defines a subpass of a render pass.
type Subpass struct {
	Colors       []AttachmentRef
	DepthStencil *AttachmentRef
	Inputs       []AttachmentRef
	Preserves    []int
}

// SubpassExternal refers to whatever commands execute
// before (as a dependency source) or after (as a
// destination) the render pass.
const SubpassExternal = -1

// SubpassDep declares an execution and memory dependency
// between two subpasses of a render pass.
// From and To are positions in the render pass' subpass
// list, or SubpassExternal.
type SubpassDep struct {
	Barrier

	From int
	To   int
}

// RenderPass is the interface that defines a render pass
// into which draw commands operate.
type RenderPass interface {
	Destroyer

	// NewFB creates a new framebuffer.
	// Each image view in iv corresponds to the render
	// pass' attachment of same index.
	// All framebuffers created from a given render pass
	// must be destroyed before the render pass itself
	// is destroyed.
	NewFB(iv []ImageView, extent Dim3D) (Framebuf, error)
}

// Framebuf is the interface that defines the render
// targets of a render pass.
type Framebuf interface {
	Destroyer

	// Extent returns the extent the framebuffer was
	// created with.
	Extent() Dim3D
}

// ClearValue defines clear values for color or
// depth/stencil aspects of a render target.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// DescType is the type of a descriptor.
type DescType int

// Descriptor types.
const (
	// Read/write buffer.
	DBuffer DescType = iota
	// Read/write image.
	DImage
	// Constant buffer.
	DConstant
	// Sampled texture.
	DTexture
	// Texture sampler.
	DSampler
)

// Stage is a mask of programmable stages.
type Stage int

// Stages.
const (
	SVertex Stage = 1 << iota
	SFragment
	SCompute
)

// DescBinding describes one binding of a descriptor set
// layout.
type DescBinding struct {
	Type   DescType
	Nr     int
	Count  int
	Stages Stage
}

// DescRange sizes a descriptor pool for one descriptor
// type.
type DescRange struct {
	Type  DescType
	Count int
}

// DescLayout is the interface that defines the shape of
// a descriptor set.
type DescLayout interface {
	Destroyer
}

// DescPool is the interface that allocates descriptor
// sets.
type DescPool interface {
	Destroyer

	// AllocSet allocates a descriptor set with the
	// given layout.
	// Sets are released when the pool is destroyed.
	AllocSet(layout DescLayout) (DescSet, error)
}

// DescSet is the interface that defines a set of
// descriptors for use in programmable pipeline stages.
type DescSet interface{}

// PipelineLayout is the interface that defines the
// descriptor interface of a pipeline.
type PipelineLayout interface {
	Destroyer
}

// Fence is the interface that defines a device-to-host
// synchronization primitive.
type Fence interface {
	Destroyer
}

// IndexFmt describes the format of index buffer data.
type IndexFmt int

// Index formats.
const (
	Index16 IndexFmt = 2
	Index32 IndexFmt = 4
)

// Dim3D is a three-dimensional size.
type Dim3D struct {
	Width, Height, Depth int
}

// Off3D is a three-dimensional offset.
type Off3D struct {
	X, Y, Z int
}

// Limits describes implementation limits.
// These may vary across adapters and devices.
type Limits struct {
	// Required alignment of BufImgCopy.RowPitch.
	MinCopyPitchAlign int
	// Maximum width and height of 2D images.
	MaxImage2D int
	// Maximum width/height for a framebuffer.
	MaxFBSize [2]int
	// Maximum number of color render targets in a
	// subpass of a render pass.
	MaxColorTargets int
}
