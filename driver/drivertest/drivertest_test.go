// Copyright 2026 The gpuproof Authors. All rights reserved.

package drivertest

import (
	"errors"
	"testing"

	"github.com/gpuproof/scene/driver"
)

func open(t *testing.T) (*Adapter, *Device) {
	t.Helper()
	ad := New()
	if _, err := ad.Open(); err != nil {
		t.Fatalf("Adapter.Open: %v", err)
	}
	return ad, ad.Device()
}

func TestOpenSameDevice(t *testing.T) {
	ad := New()
	d1, err := ad.Open()
	if err != nil {
		t.Fatalf("Adapter.Open: %v", err)
	}
	d2, err := ad.Open()
	if err != nil {
		t.Fatalf("Adapter.Open: %v", err)
	}
	if d1 != d2 {
		t.Error("Adapter.Open: second call returned a different device")
	}
}

func TestWaitFence(t *testing.T) {
	_, dev := open(t)

	signaled, err := dev.NewFence(true)
	if err != nil {
		t.Fatalf("Device.NewFence: %v", err)
	}
	if err := dev.WaitFence(signaled, driver.NoTimeout); err != nil {
		t.Errorf("Device.WaitFence: %v", err)
	}

	// A fence that was never submitted cannot signal;
	// the wait must time out rather than block.
	pending, err := dev.NewFence(false)
	if err != nil {
		t.Fatalf("Device.NewFence: %v", err)
	}
	if err := dev.WaitFence(pending, 0); !errors.Is(err, driver.ErrTimeout) {
		t.Errorf("Device.WaitFence: %v, want ErrTimeout", err)
	}
}

func TestAllocBudget(t *testing.T) {
	_, dev := open(t)

	if _, err := dev.Alloc(0, MemBudget+1); !errors.Is(err, driver.ErrNoDeviceMemory) {
		t.Errorf("Device.Alloc: %v, want ErrNoDeviceMemory", err)
	}
	if _, err := dev.Alloc(1, MemBudget+1); !errors.Is(err, driver.ErrNoHostMemory) {
		t.Errorf("Device.Alloc: %v, want ErrNoHostMemory", err)
	}
	if st := dev.Stats(); st.Mems.Created != 0 {
		t.Errorf("Stats.Mems: %+v, want no allocations", st.Mems)
	}
	mem, err := dev.Alloc(0, 4096)
	if err != nil {
		t.Fatalf("Device.Alloc: %v", err)
	}
	mem.Free()
}

func TestSubmitChecksLayout(t *testing.T) {
	_, dev := open(t)

	img, err := dev.NewImage(driver.R8un, driver.Dim3D{Width: 2, Height: 2, Depth: 1}, 1, driver.UCopyDst)
	if err != nil {
		t.Fatalf("Device.NewImage: %v", err)
	}
	mem, err := dev.Alloc(0, img.Requirements().Size)
	if err != nil {
		t.Fatalf("Device.Alloc: %v", err)
	}
	if err := img.Bind(mem, 0); err != nil {
		t.Fatalf("Image.Bind: %v", err)
	}

	buf, err := dev.NewBuffer(256, driver.UCopySrc)
	if err != nil {
		t.Fatalf("Device.NewBuffer: %v", err)
	}
	bmem, err := dev.Alloc(1, buf.Requirements().Size)
	if err != nil {
		t.Fatalf("Device.Alloc: %v", err)
	}
	if err := buf.Bind(bmem, 0); err != nil {
		t.Fatalf("Buffer.Bind: %v", err)
	}

	pool, err := dev.Queue().NewPool(1)
	if err != nil {
		t.Fatalf("Queue.NewPool: %v", err)
	}
	cb, err := pool.NewCmdBuffer()
	if err != nil {
		t.Fatalf("CmdPool.NewCmdBuffer: %v", err)
	}
	if err := cb.Begin(); err != nil {
		t.Fatalf("CmdBuffer.Begin: %v", err)
	}
	// Copy without transitioning to copy-dst first.
	cb.CopyBufToImg(&driver.BufImgCopy{
		Buf:      buf,
		RowPitch: 2,
		Img:      img,
		Size:     driver.Dim3D{Width: 2, Height: 2, Depth: 1},
	})
	if err := cb.End(); err != nil {
		t.Fatalf("CmdBuffer.End: %v", err)
	}
	if err := dev.Queue().Submit([]driver.CmdBuffer{cb}, nil); err == nil {
		t.Error("Queue.Submit: copy into undefined layout did not fail")
	}
}

func TestCopyHonorsRowPitch(t *testing.T) {
	_, dev := open(t)

	img, err := dev.NewImage(driver.R8un, driver.Dim3D{Width: 2, Height: 2, Depth: 1}, 1, driver.UCopyDst)
	if err != nil {
		t.Fatalf("Device.NewImage: %v", err)
	}
	mem, err := dev.Alloc(0, img.Requirements().Size)
	if err != nil {
		t.Fatalf("Device.Alloc: %v", err)
	}
	if err := img.Bind(mem, 0); err != nil {
		t.Fatalf("Image.Bind: %v", err)
	}

	// Two 2-byte rows, 8 bytes apart.
	buf, err := dev.NewBuffer(16, driver.UCopySrc)
	if err != nil {
		t.Fatalf("Device.NewBuffer: %v", err)
	}
	bmem, err := dev.Alloc(1, buf.Requirements().Size)
	if err != nil {
		t.Fatalf("Device.Alloc: %v", err)
	}
	if err := buf.Bind(bmem, 0); err != nil {
		t.Fatalf("Buffer.Bind: %v", err)
	}
	src := buf.(*Buffer).Bytes()
	copy(src[0:], []byte{1, 2})
	copy(src[8:], []byte{3, 4})

	pool, err := dev.Queue().NewPool(1)
	if err != nil {
		t.Fatalf("Queue.NewPool: %v", err)
	}
	cb, err := pool.NewCmdBuffer()
	if err != nil {
		t.Fatalf("CmdPool.NewCmdBuffer: %v", err)
	}
	if err := cb.Begin(); err != nil {
		t.Fatalf("CmdBuffer.Begin: %v", err)
	}
	cb.Transition([]driver.Transition{{
		LayoutBefore: driver.LUndefined,
		LayoutAfter:  driver.LCopyDst,
		Img:          img,
	}})
	cb.CopyBufToImg(&driver.BufImgCopy{
		Buf:        buf,
		RowPitch:   8,
		SlicePitch: 16,
		Img:        img,
		Size:       driver.Dim3D{Width: 2, Height: 2, Depth: 1},
	})
	if err := cb.End(); err != nil {
		t.Fatalf("CmdBuffer.End: %v", err)
	}
	if err := dev.Queue().Submit([]driver.CmdBuffer{cb}, nil); err != nil {
		t.Fatalf("Queue.Submit: %v", err)
	}

	want := []byte{1, 2, 3, 4}
	got := img.(*Image).Data()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Image.Data: %v, want %v", got, want)
		}
	}
	if img.(*Image).Layout() != driver.LCopyDst {
		t.Errorf("Image.Layout: %d, want copy-dst", img.(*Image).Layout())
	}
}

func TestSubmitSingleUse(t *testing.T) {
	_, dev := open(t)

	pool, err := dev.Queue().NewPool(1)
	if err != nil {
		t.Fatalf("Queue.NewPool: %v", err)
	}
	cb, err := pool.NewCmdBuffer()
	if err != nil {
		t.Fatalf("CmdPool.NewCmdBuffer: %v", err)
	}
	if err := dev.Queue().Submit([]driver.CmdBuffer{cb}, nil); err == nil {
		t.Error("Queue.Submit: unfinished command buffer did not fail")
	}
	if err := cb.Begin(); err != nil {
		t.Fatalf("CmdBuffer.Begin: %v", err)
	}
	if err := cb.End(); err != nil {
		t.Fatalf("CmdBuffer.End: %v", err)
	}
	if err := dev.Queue().Submit([]driver.CmdBuffer{cb}, nil); err != nil {
		t.Fatalf("Queue.Submit: %v", err)
	}
	if err := dev.Queue().Submit([]driver.CmdBuffer{cb}, nil); err == nil {
		t.Error("Queue.Submit: consumed command buffer did not fail")
	}
}

func TestPoolDestroysBuffers(t *testing.T) {
	_, dev := open(t)

	pool, err := dev.Queue().NewPool(2)
	if err != nil {
		t.Fatalf("Queue.NewPool: %v", err)
	}
	cb, err := pool.NewCmdBuffer()
	if err != nil {
		t.Fatalf("CmdPool.NewCmdBuffer: %v", err)
	}
	if _, err = pool.NewCmdBuffer(); err != nil {
		t.Fatalf("CmdPool.NewCmdBuffer: %v", err)
	}
	cb.Destroy()
	pool.Destroy()

	st := dev.Stats()
	if st.CmdBuffers.Created != 2 || st.CmdBuffers.Destroyed != 2 {
		t.Errorf("Stats.CmdBuffers: %+v, want 2 created and destroyed", st.CmdBuffers)
	}
	if st.CmdPools.Live() != 0 {
		t.Errorf("Stats.CmdPools: %+v, want all destroyed", st.CmdPools)
	}
}
