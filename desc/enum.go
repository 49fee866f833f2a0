// Copyright 2026 The gpuproof Authors. All rights reserved.

package desc

import (
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/gpuproof/scene/driver"
)

// Format wraps driver.PixelFmt for serialization.
type Format driver.PixelFmt

// Fmt returns the driver pixel format.
func (f Format) Fmt() driver.PixelFmt { return driver.PixelFmt(f) }

var formatNames = map[string]driver.PixelFmt{
	"r8un":       driver.R8un,
	"rg8un":      driver.RG8un,
	"rgba8un":    driver.RGBA8un,
	"rgba8srgb":  driver.RGBA8sRGB,
	"bgra8un":    driver.BGRA8un,
	"bgra8srgb":  driver.BGRA8sRGB,
	"r16f":       driver.R16f,
	"rg16f":      driver.RG16f,
	"rgba16f":    driver.RGBA16f,
	"r32f":       driver.R32f,
	"rg32f":      driver.RG32f,
	"rgba32f":    driver.RGBA32f,
	"d16un":      driver.D16un,
	"d32f":       driver.D32f,
	"s8ui":       driver.S8ui,
	"d24un-s8ui": driver.D24unS8ui,
	"d32f-s8ui":  driver.D32fS8ui,
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *Format) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	pf, ok := formatNames[s]
	if !ok {
		return errors.Newf("desc: unknown pixel format %q", s)
	}
	*f = Format(pf)
	return nil
}

// Usage wraps driver.Usage for serialization.
// It decodes from a list of flag names.
type Usage driver.Usage

// Usg returns the driver usage mask.
func (u Usage) Usg() driver.Usage { return driver.Usage(u) }

var usageNames = map[string]driver.Usage{
	"copy-src":      driver.UCopySrc,
	"copy-dst":      driver.UCopyDst,
	"sampled":       driver.USampled,
	"render-target": driver.URenderTarget,
	"ds-target":     driver.UDSTarget,
	"vertex-data":   driver.UVertexData,
	"index-data":    driver.UIndexData,
	"shader-const":  driver.UShaderConst,
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (u *Usage) UnmarshalYAML(value *yaml.Node) error {
	var names []string
	if err := value.Decode(&names); err != nil {
		return err
	}
	var usg driver.Usage
	for _, s := range names {
		x, ok := usageNames[s]
		if !ok {
			return errors.Newf("desc: unknown usage flag %q", s)
		}
		usg |= x
	}
	*u = Usage(usg)
	return nil
}

// Layout wraps driver.Layout for serialization.
type Layout driver.Layout

// Val returns the driver layout.
func (l Layout) Val() driver.Layout { return driver.Layout(l) }

var layoutNames = map[string]driver.Layout{
	"undefined":    driver.LUndefined,
	"color-target": driver.LColorTarget,
	"ds-target":    driver.LDSTarget,
	"copy-src":     driver.LCopySrc,
	"copy-dst":     driver.LCopyDst,
	"shader-read":  driver.LShaderRead,
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *Layout) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	x, ok := layoutNames[s]
	if !ok {
		return errors.Newf("desc: unknown layout %q", s)
	}
	*l = Layout(x)
	return nil
}

// LoadOp wraps driver.LoadOp for serialization.
// The zero value is "dont-care".
type LoadOp driver.LoadOp

// Val returns the driver load operation.
func (o LoadOp) Val() driver.LoadOp { return driver.LoadOp(o) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *LoadOp) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch s {
	case "dont-care":
		*o = LoadOp(driver.LDontCare)
	case "clear":
		*o = LoadOp(driver.LClear)
	case "load":
		*o = LoadOp(driver.LLoad)
	default:
		return errors.Newf("desc: unknown load op %q", s)
	}
	return nil
}

// StoreOp wraps driver.StoreOp for serialization.
// The zero value is "dont-care".
type StoreOp driver.StoreOp

// Val returns the driver store operation.
func (o StoreOp) Val() driver.StoreOp { return driver.StoreOp(o) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *StoreOp) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch s {
	case "dont-care":
		*o = StoreOp(driver.SDontCare)
	case "store":
		*o = StoreOp(driver.SStore)
	default:
		return errors.Newf("desc: unknown store op %q", s)
	}
	return nil
}

// SyncMask wraps driver.Sync for serialization.
// It decodes from a list of scope names.
type SyncMask driver.Sync

// Val returns the driver synchronization scope mask.
func (m SyncMask) Val() driver.Sync { return driver.Sync(m) }

var syncNames = map[string]driver.Sync{
	"none":             driver.SNone,
	"vertex-input":     driver.SVertexInput,
	"vertex-shading":   driver.SVertexShading,
	"fragment-shading": driver.SFragmentShading,
	"color-output":     driver.SColorOutput,
	"ds-output":        driver.SDSOutput,
	"copy":             driver.SCopy,
	"all":              driver.SAll,
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *SyncMask) UnmarshalYAML(value *yaml.Node) error {
	var names []string
	if err := value.Decode(&names); err != nil {
		return err
	}
	var sync driver.Sync
	for _, s := range names {
		x, ok := syncNames[s]
		if !ok {
			return errors.Newf("desc: unknown sync scope %q", s)
		}
		sync |= x
	}
	*m = SyncMask(sync)
	return nil
}

// AccessMask wraps driver.Access for serialization.
// It decodes from a list of scope names.
type AccessMask driver.Access

// Val returns the driver access scope mask.
func (m AccessMask) Val() driver.Access { return driver.Access(m) }

var accessNames = map[string]driver.Access{
	"none":            driver.ANone,
	"vertex-buf-read": driver.AVertexBufRead,
	"index-buf-read":  driver.AIndexBufRead,
	"color-read":      driver.AColorRead,
	"color-write":     driver.AColorWrite,
	"ds-read":         driver.ADSRead,
	"ds-write":        driver.ADSWrite,
	"copy-read":       driver.ACopyRead,
	"copy-write":      driver.ACopyWrite,
	"shader-read":     driver.AShaderRead,
	"shader-write":    driver.AShaderWrite,
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *AccessMask) UnmarshalYAML(value *yaml.Node) error {
	var names []string
	if err := value.Decode(&names); err != nil {
		return err
	}
	var acc driver.Access
	for _, s := range names {
		x, ok := accessNames[s]
		if !ok {
			return errors.Newf("desc: unknown access scope %q", s)
		}
		acc |= x
	}
	*m = AccessMask(acc)
	return nil
}

// AspectMask wraps driver.Aspect for serialization.
// It decodes from a list of aspect names; when absent,
// the aspects are inferred from the relevant format.
type AspectMask driver.Aspect

// Val returns the driver aspect mask.
func (m AspectMask) Val() driver.Aspect { return driver.Aspect(m) }

var aspectNames = map[string]driver.Aspect{
	"color":   driver.AspectColor,
	"depth":   driver.AspectDepth,
	"stencil": driver.AspectStencil,
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *AspectMask) UnmarshalYAML(value *yaml.Node) error {
	var names []string
	if err := value.Decode(&names); err != nil {
		return err
	}
	var asp driver.Aspect
	for _, s := range names {
		x, ok := aspectNames[s]
		if !ok {
			return errors.Newf("desc: unknown aspect %q", s)
		}
		asp |= x
	}
	*m = AspectMask(asp)
	return nil
}

// DescriptorType wraps driver.DescType for serialization.
type DescriptorType driver.DescType

// Val returns the driver descriptor type.
func (t DescriptorType) Val() driver.DescType { return driver.DescType(t) }

var descTypeNames = map[string]driver.DescType{
	"buffer":   driver.DBuffer,
	"image":    driver.DImage,
	"constant": driver.DConstant,
	"texture":  driver.DTexture,
	"sampler":  driver.DSampler,
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *DescriptorType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	x, ok := descTypeNames[s]
	if !ok {
		return errors.Newf("desc: unknown descriptor type %q", s)
	}
	*t = DescriptorType(x)
	return nil
}

// StageMask wraps driver.Stage for serialization.
// It decodes from a list of stage names.
type StageMask driver.Stage

// Val returns the driver stage mask.
func (m StageMask) Val() driver.Stage { return driver.Stage(m) }

var stageNames = map[string]driver.Stage{
	"vertex":   driver.SVertex,
	"fragment": driver.SFragment,
	"compute":  driver.SCompute,
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *StageMask) UnmarshalYAML(value *yaml.Node) error {
	var names []string
	if err := value.Decode(&names); err != nil {
		return err
	}
	var stg driver.Stage
	for _, s := range names {
		x, ok := stageNames[s]
		if !ok {
			return errors.Newf("desc: unknown stage %q", s)
		}
		stg |= x
	}
	*m = StageMask(stg)
	return nil
}

// IndexFmt wraps driver.IndexFmt for serialization.
type IndexFmt driver.IndexFmt

// Val returns the driver index format.
func (f IndexFmt) Val() driver.IndexFmt { return driver.IndexFmt(f) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *IndexFmt) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch s {
	case "u16":
		*f = IndexFmt(driver.Index16)
	case "u32":
		*f = IndexFmt(driver.Index32)
	default:
		return errors.Newf("desc: unknown index format %q", s)
	}
	return nil
}

// Swizzle wraps driver.Swizzle for serialization.
// It decodes from a four-rune string over "rgba01i",
// one rune per output channel; an empty string is the
// identity swizzle.
type Swizzle driver.Swizzle

// Val returns the driver swizzle.
func (s Swizzle) Val() driver.Swizzle { return driver.Swizzle(s) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Swizzle) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}
	if str == "" {
		*s = Swizzle(driver.Swizzle{})
		return nil
	}
	if len(str) != 4 {
		return errors.Newf("desc: swizzle %q is not 4 channels", str)
	}
	var chans [4]driver.Channel
	for i, r := range str {
		switch r {
		case 'r':
			chans[i] = driver.CR
		case 'g':
			chans[i] = driver.CG
		case 'b':
			chans[i] = driver.CB
		case 'a':
			chans[i] = driver.CA
		case '0':
			chans[i] = driver.CZero
		case '1':
			chans[i] = driver.COne
		case 'i':
			chans[i] = driver.CIdentity
		default:
			return errors.Newf("desc: unknown swizzle channel %q", r)
		}
	}
	*s = Swizzle(driver.Swizzle{R: chans[0], G: chans[1], B: chans[2], A: chans[3]})
	return nil
}
