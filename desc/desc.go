// Copyright 2026 The gpuproof Authors. All rights reserved.

// Package desc implements the declarative scene description
// consumed by the interpreter.
// A description is an immutable graph of named resource and
// job declarations; all cross-references are by name.
// Attachment and subpass declarations are ordered lists of
// named entries because later references resolve them by
// position.
package desc

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/gpuproof/scene/driver"
)

// Scene is the root of a scene description.
// Resource and job names are unique within their map.
type Scene struct {
	Resources map[string]Resource `yaml:"resources"`
	Jobs      map[string]Job      `yaml:"jobs"`
}

// Resource is a tagged variant of resource declarations.
// Exactly one field must be set.
type Resource struct {
	Buffer         *Buffer         `yaml:"buffer,omitempty"`
	Image          *Image          `yaml:"image,omitempty"`
	RenderPass     *RenderPass     `yaml:"render-pass,omitempty"`
	ImageView      *ImageView      `yaml:"image-view,omitempty"`
	DescLayout     *DescLayout     `yaml:"descriptor-set-layout,omitempty"`
	DescPool       *DescPool       `yaml:"descriptor-pool,omitempty"`
	DescSet        *DescSet        `yaml:"descriptor-set,omitempty"`
	PipelineLayout *PipelineLayout `yaml:"pipeline-layout,omitempty"`
	Framebuffer    *Framebuffer    `yaml:"framebuffer,omitempty"`
}

// Buffer declares a GPU buffer.
// Data optionally names a file, relative to the scene's
// data path, whose bytes initialize the buffer.
type Buffer struct {
	Size  int64  `yaml:"size"`
	Usage Usage  `yaml:"usage"`
	Data  string `yaml:"data,omitempty"`
}

// Dim is a three-dimensional size.
// Height and Depth default to 1.
type Dim struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Depth  int `yaml:"depth"`
}

// Norm returns d as a driver size with Height and Depth
// clamped to at least 1.
func (d Dim) Norm() driver.Dim3D {
	out := driver.Dim3D{Width: d.Width, Height: d.Height, Depth: d.Depth}
	if out.Height < 1 {
		out.Height = 1
	}
	if out.Depth < 1 {
		out.Depth = 1
	}
	return out
}

// Image declares a GPU image.
// Data optionally names a file with the initial pixel
// contents: tightly packed rows, no header, row length and
// count dictated by Size and Format.
type Image struct {
	Size   Dim    `yaml:"size"`
	Levels int    `yaml:"levels"`
	Format Format `yaml:"format"`
	Usage  Usage  `yaml:"usage"`
	Data   string `yaml:"data,omitempty"`
}

// Attachment declares one named render target of a
// render pass.
type Attachment struct {
	Name           string  `yaml:"name"`
	Format         Format  `yaml:"format"`
	Samples        int     `yaml:"samples"`
	LoadOp         LoadOp  `yaml:"load-op"`
	StoreOp        StoreOp `yaml:"store-op"`
	StencilLoadOp  LoadOp  `yaml:"stencil-load-op"`
	StencilStoreOp StoreOp `yaml:"stencil-store-op"`
	InitialLayout  Layout  `yaml:"initial-layout"`
	FinalLayout    Layout  `yaml:"final-layout"`
}

// AttachmentRef refers to an attachment of the enclosing
// render pass by name.
type AttachmentRef struct {
	Name   string `yaml:"name"`
	Layout Layout `yaml:"layout"`
}

// Subpass declares one named subpass of a render pass.
type Subpass struct {
	Name         string          `yaml:"name"`
	Colors       []AttachmentRef `yaml:"colors,omitempty"`
	DepthStencil *AttachmentRef  `yaml:"depth-stencil,omitempty"`
	Inputs       []AttachmentRef `yaml:"inputs,omitempty"`
	Preserves    []string        `yaml:"preserves,omitempty"`
}

// Dependency declares an inter-subpass dependency.
// An empty From or To refers to work outside the
// render pass.
type Dependency struct {
	From       string     `yaml:"from"`
	To         string     `yaml:"to"`
	SyncFrom   SyncMask   `yaml:"sync-from"`
	SyncTo     SyncMask   `yaml:"sync-to"`
	AccessFrom AccessMask `yaml:"access-from"`
	AccessTo   AccessMask `yaml:"access-to"`
}

// RenderPass declares a render pass.
// Attachments and Subpasses are ordered; their positions
// are fixed for the lifetime of the description and define
// the identities that jobs and framebuffers resolve.
type RenderPass struct {
	Attachments  []Attachment `yaml:"attachments"`
	Subpasses    []Subpass    `yaml:"subpasses"`
	Dependencies []Dependency `yaml:"dependencies,omitempty"`
}

// SubresRange identifies image subresources.
// Levels and Layers default to 1.
type SubresRange struct {
	Aspects AspectMask `yaml:"aspects,omitempty"`
	Level   int        `yaml:"level"`
	Levels  int        `yaml:"levels"`
	Layer   int        `yaml:"layer"`
	Layers  int        `yaml:"layers"`
}

// ImageView declares a typed view of a named image.
type ImageView struct {
	Image   string      `yaml:"image"`
	Format  Format      `yaml:"format"`
	Swizzle Swizzle     `yaml:"swizzle,omitempty"`
	Range   SubresRange `yaml:"range"`
}

// Binding declares one binding of a descriptor set layout.
type Binding struct {
	Type   DescriptorType `yaml:"type"`
	Nr     int            `yaml:"nr"`
	Count  int            `yaml:"count"`
	Stages StageMask      `yaml:"stages"`
}

// DescLayout declares a descriptor set layout.
type DescLayout struct {
	Bindings []Binding `yaml:"bindings"`
}

// DescCount sizes a descriptor pool for one descriptor
// type.
type DescCount struct {
	Type  DescriptorType `yaml:"type"`
	Count int            `yaml:"count"`
}

// DescPool declares a descriptor pool.
type DescPool struct {
	Capacity int         `yaml:"capacity"`
	Ranges   []DescCount `yaml:"ranges"`
}

// DescSet declares a descriptor set allocated from a
// named pool against a named layout.
type DescSet struct {
	Pool   string `yaml:"pool"`
	Layout string `yaml:"layout"`
}

// PipelineLayout declares a pipeline layout over a list
// of named descriptor set layouts.
type PipelineLayout struct {
	SetLayouts []string `yaml:"set-layouts"`
}

// Framebuffer declares a framebuffer for a named render
// pass. Views binds each of the pass' attachment names to
// an image view name.
type Framebuffer struct {
	Pass   string            `yaml:"pass"`
	Views  map[string]string `yaml:"views"`
	Extent Dim               `yaml:"extent"`
}

// Job is a tagged variant of job declarations.
// Exactly one field must be set.
type Job struct {
	Transfer *Transfer `yaml:"transfer,omitempty"`
	Graphics *Graphics `yaml:"graphics,omitempty"`
}

// CopyBufferToImage declares a buffer-to-image transfer.
type CopyBufferToImage struct {
	Buffer string `yaml:"buffer"`
	Image  string `yaml:"image"`
}

// TransferCmd is a tagged variant of transfer commands.
type TransferCmd struct {
	CopyBufferToImage *CopyBufferToImage `yaml:"copy-buffer-to-image,omitempty"`
}

// Transfer declares a transfer job as an ordered command
// list.
type Transfer struct {
	Commands []TransferCmd `yaml:"commands"`
}

// ClearValue declares the clear value of one attachment.
// Exactly one field must be set for attachments that are
// cleared on load.
type ClearValue struct {
	Color        *[4]float32        `yaml:"color,omitempty"`
	DepthStencil *DepthStencilClear `yaml:"depth-stencil,omitempty"`
}

// DepthStencilClear is the depth/stencil arm of a
// ClearValue.
type DepthStencilClear struct {
	Depth   float32 `yaml:"depth"`
	Stencil uint32  `yaml:"stencil"`
}

// Range is a half-open interval.
type Range struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// BindIndexBuffer binds a named buffer as index source.
type BindIndexBuffer struct {
	Buffer string   `yaml:"buffer"`
	Offset int64    `yaml:"offset"`
	Format IndexFmt `yaml:"format"`
}

// VertexBufRef binds a named buffer at an offset.
type VertexBufRef struct {
	Buffer string `yaml:"buffer"`
	Offset int64  `yaml:"offset"`
}

// BindDescriptorSets binds named descriptor sets against
// a named pipeline layout.
type BindDescriptorSets struct {
	Layout string   `yaml:"layout"`
	First  int      `yaml:"first"`
	Sets   []string `yaml:"sets"`
}

// Draw declares a non-indexed draw over vertex and
// instance ranges.
type Draw struct {
	Vertices  Range `yaml:"vertices"`
	Instances Range `yaml:"instances"`
}

// DrawIndexed declares an indexed draw.
type DrawIndexed struct {
	Indices    Range `yaml:"indices"`
	BaseVertex int   `yaml:"base-vertex"`
	Instances  Range `yaml:"instances"`
}

// DrawCmd is a tagged variant of draw commands.
// Exactly one field must be set.
type DrawCmd struct {
	BindIndexBuffer    *BindIndexBuffer    `yaml:"bind-index-buffer,omitempty"`
	BindVertexBuffers  []VertexBufRef      `yaml:"bind-vertex-buffers,omitempty"`
	BindPipeline       *string             `yaml:"bind-pipeline,omitempty"`
	BindDescriptorSets *BindDescriptorSets `yaml:"bind-descriptor-sets,omitempty"`
	Draw               *Draw               `yaml:"draw,omitempty"`
	DrawIndexed        *DrawIndexed        `yaml:"draw-indexed,omitempty"`
}

// SubpassCmds is the ordered draw-command list of one
// subpass of a graphics job.
type SubpassCmds struct {
	Commands []DrawCmd `yaml:"commands"`
}

// GraphicsPass names the render pass a graphics job
// records into and carries the per-subpass command lists,
// keyed by subpass name.
type GraphicsPass struct {
	Name      string                 `yaml:"name"`
	Subpasses map[string]SubpassCmds `yaml:"subpasses"`
}

// Graphics declares a graphics job.
// Descriptors is accepted by the grammar but not consumed
// by the interpreter yet.
type Graphics struct {
	Descriptors map[string]string `yaml:"descriptors,omitempty"`
	Framebuffer string            `yaml:"framebuffer"`
	Pass        GraphicsPass      `yaml:"pass"`
	ClearValues []ClearValue      `yaml:"clear-values,omitempty"`
}

// Decode decodes r into a new Scene and validates that
// every resource and job declares exactly one kind.
func Decode(r io.Reader) (*Scene, error) {
	var scn Scene
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&scn); err != nil {
		return nil, errors.Wrap(err, "desc: decode")
	}
	if err := scn.validate(); err != nil {
		return nil, err
	}
	return &scn, nil
}

// Load reads and decodes the scene description file at
// path.
func Load(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "desc: load")
	}
	defer f.Close()
	return Decode(f)
}

func (s *Scene) validate() error {
	for name, res := range s.Resources {
		var n int
		for _, set := range []bool{
			res.Buffer != nil,
			res.Image != nil,
			res.RenderPass != nil,
			res.ImageView != nil,
			res.DescLayout != nil,
			res.DescPool != nil,
			res.DescSet != nil,
			res.PipelineLayout != nil,
			res.Framebuffer != nil,
		} {
			if set {
				n++
			}
		}
		if n != 1 {
			return errors.Newf("desc: resource %q declares %d kinds", name, n)
		}
	}
	for name, job := range s.Jobs {
		var n int
		if job.Transfer != nil {
			n++
		}
		if job.Graphics != nil {
			n++
		}
		if n != 1 {
			return errors.Newf("desc: job %q declares %d kinds", name, n)
		}
	}
	return nil
}
