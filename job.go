// Copyright 2026 The gpuproof Authors. All rights reserved.

package scene

import (
	"github.com/cockroachdb/errors"

	"github.com/gpuproof/scene/desc"
	"github.com/gpuproof/scene/driver"
)

// recordJobs records one finished command buffer per
// named job. Nothing is submitted here.
func (s *Scene) recordJobs(jobs map[string]desc.Job) error {
	for name, job := range jobs {
		cb, err := s.pool.NewCmdBuffer()
		if err != nil {
			return errors.Wrapf(err, "job %q", name)
		}
		if err := cb.Begin(); err != nil {
			cb.Destroy()
			return errors.Wrapf(err, "job %q", name)
		}
		switch {
		case job.Transfer != nil:
			err = s.recordTransfer(cb, job.Transfer)
		case job.Graphics != nil:
			err = s.recordGraphics(cb, job.Graphics)
		}
		if err == nil {
			err = cb.End()
		}
		if err != nil {
			cb.Destroy()
			return errors.Wrapf(err, "job %q", name)
		}
		s.jobs[name] = cb
		s.log.Debug("job recorded", "name", name)
	}
	return nil
}

func (s *Scene) recordTransfer(cb driver.CmdBuffer, t *desc.Transfer) error {
	for _, cmd := range t.Commands {
		switch {
		case cmd.CopyBufferToImage != nil:
			return unsupported("transfer command copy-buffer-to-image")
		default:
			return errors.New("scene: empty transfer command")
		}
	}
	return nil
}

// recordGraphics records a graphics job: the named render
// pass bound to the named framebuffer, with the declared
// clear values, advancing through the pass' subpasses in
// their declared order and replaying each subpass'
// command list.
func (s *Scene) recordGraphics(cb driver.CmdBuffer, g *desc.Graphics) error {
	fb, ok := s.res.Framebufs[g.Framebuffer]
	if !ok {
		return notFound("framebuffer", g.Framebuffer)
	}
	rp, ok := s.res.RenderPasses[g.Pass.Name]
	if !ok {
		return notFound("render pass", g.Pass.Name)
	}
	clear := make([]driver.ClearValue, len(g.ClearValues))
	for i, cv := range g.ClearValues {
		switch {
		case cv.Color != nil:
			clear[i] = driver.ClearValue{Color: *cv.Color}
		case cv.DepthStencil != nil:
			clear[i] = driver.ClearValue{
				Depth:   cv.DepthStencil.Depth,
				Stencil: cv.DepthStencil.Stencil,
			}
		}
	}

	cb.BeginPass(rp.Handle, fb, clear)
	for i, spName := range rp.subpasses {
		if i > 0 {
			cb.NextSubpass()
		}
		cmds, ok := g.Pass.Subpasses[spName]
		if !ok {
			cb.EndPass()
			return notFound("subpass command list", spName)
		}
		for _, cmd := range cmds.Commands {
			if err := s.recordDraw(cb, cmd); err != nil {
				cb.EndPass()
				return err
			}
		}
	}
	cb.EndPass()
	return nil
}

func (s *Scene) recordDraw(cb driver.CmdBuffer, cmd desc.DrawCmd) error {
	switch {
	case cmd.BindIndexBuffer != nil:
		c := cmd.BindIndexBuffer
		buf, ok := s.res.Buffers[c.Buffer]
		if !ok {
			return notFound("buffer", c.Buffer)
		}
		cb.SetIndexBuf(c.Format.Val(), buf.Handle, c.Offset)
	case cmd.BindVertexBuffers != nil:
		bufs := make([]driver.Buffer, len(cmd.BindVertexBuffers))
		offs := make([]int64, len(cmd.BindVertexBuffers))
		for i, ref := range cmd.BindVertexBuffers {
			buf, ok := s.res.Buffers[ref.Buffer]
			if !ok {
				return notFound("buffer", ref.Buffer)
			}
			bufs[i] = buf.Handle
			offs[i] = ref.Offset
		}
		cb.SetVertexBuf(0, bufs, offs)
	case cmd.BindPipeline != nil:
		// Pipeline-state objects are built out of band;
		// the description grammar accepts the command but
		// recording it is an explicit failure rather than
		// silently dropped draw state.
		return unsupported("draw command bind-pipeline")
	case cmd.BindDescriptorSets != nil:
		return unsupported("draw command bind-descriptor-sets")
	case cmd.Draw != nil:
		c := cmd.Draw
		cb.Draw(c.Vertices.End-c.Vertices.Start,
			c.Instances.End-c.Instances.Start,
			c.Vertices.Start, c.Instances.Start)
	case cmd.DrawIndexed != nil:
		c := cmd.DrawIndexed
		cb.DrawIndexed(c.Indices.End-c.Indices.Start,
			c.Instances.End-c.Instances.Start,
			c.Indices.Start, c.BaseVertex, c.Instances.Start)
	default:
		return errors.New("scene: empty draw command")
	}
	return nil
}
