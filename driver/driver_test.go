// Copyright 2026 The gpuproof Authors. All rights reserved.

package driver

import "testing"

type adapterStub struct{ name string }

func (a *adapterStub) Open() (Device, error) { return nil, ErrNoDevice }
func (a *adapterStub) Name() string          { return a.name }
func (a *adapterStub) Close()                {}

func TestRegister(t *testing.T) {
	defer func() {
		mu.Lock()
		adapters = adapters[:0]
		mu.Unlock()
	}()

	if n := len(Adapters()); n != 0 {
		t.Errorf("Adapters: unexpected length %d", n)
	}

	a := &adapterStub{name: "a"}
	b := &adapterStub{name: "b"}
	Register(a)
	Register(b)
	ads := Adapters()
	if len(ads) != 2 {
		t.Fatalf("Adapters: unexpected length %d", len(ads))
	}
	if ads[0] != Adapter(a) || ads[1] != Adapter(b) {
		t.Error("Adapters: wrong registration order")
	}

	// Same name replaces in place.
	a2 := &adapterStub{name: "a"}
	Register(a2)
	ads = Adapters()
	if len(ads) != 2 {
		t.Fatalf("Adapters: unexpected length %d after replacement", len(ads))
	}
	if ads[0] != Adapter(a2) {
		t.Error("Adapters: registration with same name did not replace")
	}

	// The returned slice is a copy.
	ads[0] = b
	if Adapters()[0] != Adapter(a2) {
		t.Error("Adapters: returned slice aliases the registry")
	}
}

func TestPixelFmt(t *testing.T) {
	for _, tc := range []struct {
		fmt     PixelFmt
		size    int
		aspects Aspect
	}{
		{FmtInvalid, 0, 0},
		{RGBA8un, 4, AspectColor},
		{BGRA8sRGB, 4, AspectColor},
		{RG8un, 2, AspectColor},
		{R8un, 1, AspectColor},
		{RGBA16f, 8, AspectColor},
		{RGBA32f, 16, AspectColor},
		{D16un, 2, AspectDepth},
		{D32f, 4, AspectDepth},
		{S8ui, 1, AspectStencil},
		{D24unS8ui, 4, AspectDepth | AspectStencil},
		{D32fS8ui, 5, AspectDepth | AspectStencil},
	} {
		if s := tc.fmt.Size(); s != tc.size {
			t.Errorf("PixelFmt.Size: %d, want %d (format %d)", s, tc.size, tc.fmt)
		}
		if a := tc.fmt.Aspects(); a != tc.aspects {
			t.Errorf("PixelFmt.Aspects: %#x, want %#x (format %d)", a, tc.aspects, tc.fmt)
		}
		wantColor := tc.aspects == AspectColor
		if c := tc.fmt.IsColor(); c != wantColor {
			t.Errorf("PixelFmt.IsColor: %t, want %t (format %d)", c, wantColor, tc.fmt)
		}
	}
}
