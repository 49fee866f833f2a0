// Copyright 2026 The gpuproof Authors. All rights reserved.

package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpuproof/scene/desc"
	"github.com/gpuproof/scene/driver"
	"github.com/gpuproof/scene/driver/drivertest"
)

// writeData writes a data file into a fresh directory and
// returns the directory for use as the scene's data path.
func writeData(t *testing.T, name string, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o666))
	return dir
}

// assertReleased checks that every object the device
// handed out was destroyed exactly as many times as it
// was created.
func assertReleased(t *testing.T, st drivertest.Stats) {
	t.Helper()
	for _, k := range []struct {
		name  string
		count drivertest.Count
	}{
		{"memory", st.Mems},
		{"buffers", st.Buffers},
		{"images", st.Images},
		{"image views", st.ImageViews},
		{"render passes", st.RenderPasses},
		{"framebuffers", st.Framebufs},
		{"descriptor layouts", st.DescLayouts},
		{"descriptor pools", st.DescPools},
		{"pipeline layouts", st.PipelineLayouts},
		{"fences", st.Fences},
		{"command pools", st.CmdPools},
		{"command buffers", st.CmdBuffers},
	} {
		assert.Zerof(t, k.count.Live(),
			"%s: %d created, %d destroyed", k.name, k.count.Created, k.count.Destroyed)
	}
}

// clearScene describes a 4x4 color target cleared to red
// by a single graphics job with one vertex-buffer draw.
func clearScene() *desc.Scene {
	return &desc.Scene{
		Resources: map[string]desc.Resource{
			"target": {Image: &desc.Image{
				Size:   desc.Dim{Width: 4, Height: 4},
				Format: desc.Format(driver.RGBA8un),
				Usage:  desc.Usage(driver.URenderTarget | driver.UCopySrc),
			}},
			"target-view": {ImageView: &desc.ImageView{Image: "target"}},
			"pass": {RenderPass: &desc.RenderPass{
				Attachments: []desc.Attachment{{
					Name:          "color",
					Format:        desc.Format(driver.RGBA8un),
					LoadOp:        desc.LoadOp(driver.LClear),
					StoreOp:       desc.StoreOp(driver.SStore),
					InitialLayout: desc.Layout(driver.LColorTarget),
					FinalLayout:   desc.Layout(driver.LColorTarget),
				}},
				Subpasses: []desc.Subpass{{
					Name: "main",
					Colors: []desc.AttachmentRef{
						{Name: "color", Layout: desc.Layout(driver.LColorTarget)},
					},
				}},
			}},
			"fb": {Framebuffer: &desc.Framebuffer{
				Pass:   "pass",
				Views:  map[string]string{"color": "target-view"},
				Extent: desc.Dim{Width: 4, Height: 4},
			}},
			"tri": {Buffer: &desc.Buffer{
				Size:  48,
				Usage: desc.Usage(driver.UVertexData),
			}},
		},
		Jobs: map[string]desc.Job{
			"draw": {Graphics: &desc.Graphics{
				Framebuffer: "fb",
				Pass: desc.GraphicsPass{
					Name: "pass",
					Subpasses: map[string]desc.SubpassCmds{
						"main": {Commands: []desc.DrawCmd{
							{BindVertexBuffers: []desc.VertexBufRef{{Buffer: "tri"}}},
							{Draw: &desc.Draw{
								Vertices:  desc.Range{Start: 0, End: 3},
								Instances: desc.Range{Start: 0, End: 1},
							}},
						}},
					},
				},
				ClearValues: []desc.ClearValue{{Color: &[4]float32{1, 0, 0, 1}}},
			}},
		},
	}
}

func TestNewResolvesReferences(t *testing.T) {
	scn := clearScene()
	scn.Resources["dl"] = desc.Resource{DescLayout: &desc.DescLayout{
		Bindings: []desc.Binding{{
			Type:   desc.DescriptorType(driver.DTexture),
			Nr:     0,
			Count:  1,
			Stages: desc.StageMask(driver.SFragment),
		}},
	}}
	scn.Resources["dp"] = desc.Resource{DescPool: &desc.DescPool{
		Capacity: 1,
		Ranges: []desc.DescCount{{
			Type:  desc.DescriptorType(driver.DTexture),
			Count: 1,
		}},
	}}
	scn.Resources["ds"] = desc.Resource{DescSet: &desc.DescSet{Pool: "dp", Layout: "dl"}}
	scn.Resources["pl"] = desc.Resource{PipelineLayout: &desc.PipelineLayout{SetLayouts: []string{"dl"}}}

	ad := drivertest.New()
	s, err := New(ad, scn, "")
	require.NoError(t, err)

	res := s.Resources()
	assert.Contains(t, res.Images, "target")
	assert.Contains(t, res.ImageViews, "target-view")
	assert.Contains(t, res.RenderPasses, "pass")
	assert.Contains(t, res.Framebufs, "fb")
	assert.Contains(t, res.Buffers, "tri")
	assert.Contains(t, res.DescLayouts, "dl")
	assert.Contains(t, res.DescPools, "dp")
	assert.Contains(t, res.DescSets, "ds")
	assert.Contains(t, res.PipelineLayouts, "pl")

	rp := res.RenderPasses["pass"]
	assert.Equal(t, []string{"color"}, rp.Attachments())
	assert.Equal(t, []string{"main"}, rp.Subpasses())

	s.Free()
	assertReleased(t, ad.Device().Stats())
}

func TestNewUnknownImage(t *testing.T) {
	scn := clearScene()
	scn.Resources["target-view"] = desc.Resource{
		ImageView: &desc.ImageView{Image: "no-such-image"},
	}

	ad := drivertest.New()
	_, err := New(ad, scn, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNameNotFound)
	assertReleased(t, ad.Device().Stats())
}

func TestNewFramebufferMissingView(t *testing.T) {
	scn := clearScene()
	scn.Resources["fb"] = desc.Resource{Framebuffer: &desc.Framebuffer{
		Pass:   "pass",
		Views:  map[string]string{},
		Extent: desc.Dim{Width: 4, Height: 4},
	}}

	ad := drivertest.New()
	_, err := New(ad, scn, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNameNotFound)
	// The failed resolution must precede framebuffer
	// creation.
	assert.Zero(t, ad.Device().Stats().Framebufs.Created)
	assertReleased(t, ad.Device().Stats())
}

// Map iteration order varies between runs; repeated builds
// exercise the pass ordering that makes resolution
// independent of it.
func TestNewOrderIndependent(t *testing.T) {
	for i := 0; i < 8; i++ {
		ad := drivertest.New()
		s, err := New(ad, clearScene(), "")
		require.NoError(t, err)
		require.Contains(t, s.Resources().Framebufs, "fb")
		view := s.Resources().ImageViews["target-view"]
		img := s.Resources().Images["target"].Handle
		assert.Same(t, view.Image(), img)
		s.Free()
	}
}

func TestNewMissingSubpassCommands(t *testing.T) {
	scn := clearScene()
	job := scn.Jobs["draw"]
	job.Graphics.Pass.Subpasses = map[string]desc.SubpassCmds{}
	scn.Jobs["draw"] = job

	ad := drivertest.New()
	_, err := New(ad, scn, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNameNotFound)
	assertReleased(t, ad.Device().Stats())
}

func TestRunUploadsImageData(t *testing.T) {
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i * 5)
	}
	dir := writeData(t, "tex.bin", data)

	scn := &desc.Scene{
		Resources: map[string]desc.Resource{
			"tex": {Image: &desc.Image{
				Size:   desc.Dim{Width: 4, Height: 4},
				Format: desc.Format(driver.R8un),
				Usage:  desc.Usage(driver.USampled | driver.UCopySrc),
				Data:   "tex.bin",
			}},
		},
	}

	ad := drivertest.New()
	s, err := New(ad, scn, dir)
	require.NoError(t, err)
	defer s.Free()

	access, layout := s.Resources().Images["tex"].StableState()
	assert.Equal(t, driver.AShaderRead, access)
	assert.Equal(t, driver.LShaderRead, layout)

	require.NoError(t, s.Run())

	g, err := s.FetchImage("tex")
	require.NoError(t, err)
	defer g.Free()

	assert.Equal(t, 4, g.Rows())
	assert.Equal(t, 4, g.Width())
	for y := 0; y < 4; y++ {
		assert.Equal(t, data[y*4:y*4+4], g.Row(y), "row %d", y)
	}
	assert.Equal(t, []byte{data[2*4+3]}, g.At(3, 2))

	// The read-back barriers must leave the image back
	// in its resting layout.
	access, layout = s.Resources().Images["tex"].StableState()
	assert.Equal(t, driver.LShaderRead, layout)
	assert.Equal(t, driver.AShaderRead, access)
}

func TestDepthImageInitialTransition(t *testing.T) {
	scn := &desc.Scene{
		Resources: map[string]desc.Resource{
			"depth": {Image: &desc.Image{
				Size:   desc.Dim{Width: 8, Height: 8},
				Format: desc.Format(driver.D24unS8ui),
				Usage:  desc.Usage(driver.UDSTarget),
			}},
		},
	}

	ad := drivertest.New()
	s, err := New(ad, scn, "")
	require.NoError(t, err)
	defer s.Free()

	access, layout := s.Resources().Images["depth"].StableState()
	assert.Equal(t, driver.ADSWrite, access)
	assert.Equal(t, driver.LDSTarget, layout)

	// The init buffer must carry the undefined to
	// resting-state transition for images without
	// initial data too.
	require.NoError(t, s.Run())
	img := s.Resources().Images["depth"].Handle.(*drivertest.Image)
	assert.Equal(t, driver.LDSTarget, img.Layout())
}

func TestRunGraphicsClear(t *testing.T) {
	ad := drivertest.New()
	s, err := New(ad, clearScene(), "")
	require.NoError(t, err)

	require.NoError(t, s.Run("draw"))
	assert.Equal(t, 1, ad.Device().Stats().Draws)

	g, err := s.FetchImage("target")
	require.NoError(t, err)

	red := []byte{255, 0, 0, 255}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			assert.Equal(t, red, g.At(x, y), "pixel (%d, %d)", x, y)
		}
	}

	g.Free()
	g.Free() // idempotent
	s.Free()
	s.Free() // idempotent
	assertReleased(t, ad.Device().Stats())
}

func TestRunUnknownJobSubmitsNothing(t *testing.T) {
	ad := drivertest.New()
	s, err := New(ad, clearScene(), "")
	require.NoError(t, err)
	defer s.Free()

	err = s.Run("no-such-job")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNameNotFound)
	assert.Equal(t, 0, ad.Device().Stats().Submits)

	// The failed call must not consume the one-time
	// initialization work.
	require.NoError(t, s.Run("draw"))
	assert.Equal(t, 1, ad.Device().Stats().Submits)
}

func TestRunJobsAreSingleUse(t *testing.T) {
	ad := drivertest.New()
	s, err := New(ad, clearScene(), "")
	require.NoError(t, err)
	defer s.Free()

	require.NoError(t, s.Run("draw"))
	err = s.Run("draw")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNameNotFound)
}

func TestRunRejectsDuplicateNames(t *testing.T) {
	ad := drivertest.New()
	s, err := New(ad, clearScene(), "")
	require.NoError(t, err)
	defer s.Free()

	err = s.Run("draw", "draw")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNameNotFound)
	assert.Equal(t, 0, ad.Device().Stats().Submits)
	assert.Equal(t, 0, ad.Device().Stats().Draws)

	// The job must still be intact and run exactly once.
	require.NoError(t, s.Run("draw"))
	assert.Equal(t, 1, ad.Device().Stats().Draws)
}

func TestBufferInitialData(t *testing.T) {
	data := []byte("vertex bytes, 24 long...")
	require.Len(t, data, 24)
	dir := writeData(t, "verts.bin", data)

	scn := &desc.Scene{
		Resources: map[string]desc.Resource{
			"verts": {Buffer: &desc.Buffer{
				Size:  24,
				Usage: desc.Usage(driver.UVertexData),
				Data:  "verts.bin",
			}},
		},
	}

	ad := drivertest.New()
	s, err := New(ad, scn, dir)
	require.NoError(t, err)
	defer s.Free()

	buf := s.Resources().Buffers["verts"].Handle.(*drivertest.Buffer)
	assert.Equal(t, data, buf.Bytes())
}

func TestUnsupportedCommands(t *testing.T) {
	pipeline := "pso"
	for name, job := range map[string]desc.Job{
		"bind-pipeline": {Graphics: &desc.Graphics{
			Framebuffer: "fb",
			Pass: desc.GraphicsPass{
				Name: "pass",
				Subpasses: map[string]desc.SubpassCmds{
					"main": {Commands: []desc.DrawCmd{{BindPipeline: &pipeline}}},
				},
			},
		}},
		"bind-descriptor-sets": {Graphics: &desc.Graphics{
			Framebuffer: "fb",
			Pass: desc.GraphicsPass{
				Name: "pass",
				Subpasses: map[string]desc.SubpassCmds{
					"main": {Commands: []desc.DrawCmd{{
						BindDescriptorSets: &desc.BindDescriptorSets{
							Layout: "pl", Sets: []string{"ds"},
						},
					}}},
				},
			},
		}},
		"copy-buffer-to-image": {Transfer: &desc.Transfer{
			Commands: []desc.TransferCmd{{
				CopyBufferToImage: &desc.CopyBufferToImage{Buffer: "tri", Image: "target"},
			}},
		}},
	} {
		t.Run(name, func(t *testing.T) {
			scn := clearScene()
			scn.Jobs = map[string]desc.Job{"job": job}

			ad := drivertest.New()
			_, err := New(ad, scn, "")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupported)
			assertReleased(t, ad.Device().Stats())
		})
	}
}

func TestFetchImageUnknown(t *testing.T) {
	ad := drivertest.New()
	s, err := New(ad, clearScene(), "")
	require.NoError(t, err)
	defer s.Free()

	_, err = s.FetchImage("no-such-image")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNameNotFound)
}

func TestFetchImagePadsRowPitch(t *testing.T) {
	// 6x2 RG8un rows are 12 bytes wide, so the staging
	// buffer's 256-byte pitch leaves padding that Row
	// must skip over.
	data := make([]byte, 24)
	for i := range data {
		data[i] = byte(200 - i)
	}
	dir := writeData(t, "tex.bin", data)

	scn := &desc.Scene{
		Resources: map[string]desc.Resource{
			"tex": {Image: &desc.Image{
				Size:   desc.Dim{Width: 6, Height: 2},
				Format: desc.Format(driver.RG8un),
				Usage:  desc.Usage(driver.USampled | driver.UCopySrc),
				Data:   "tex.bin",
			}},
		},
	}

	ad := drivertest.New()
	s, err := New(ad, scn, dir)
	require.NoError(t, err)
	defer s.Free()
	require.NoError(t, s.Run())

	g, err := s.FetchImage("tex")
	require.NoError(t, err)
	defer g.Free()

	assert.Equal(t, 2, g.Rows())
	assert.Equal(t, 12, g.Width())
	assert.Equal(t, data[:12], g.Row(0))
	assert.Equal(t, data[12:], g.Row(1))
	assert.Equal(t, data[14:16], g.At(1, 1))
}
