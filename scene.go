// Copyright 2026 The gpuproof Authors. All rights reserved.

// Package scene interprets declarative GPU scene
// descriptions: it realizes named resource declarations
// into real GPU objects, records one command buffer per
// named job, submits them in dependency order, and reads
// rendered image contents back for pixel-exact
// verification, all without a windowing surface.
package scene

import (
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gpuproof/scene/desc"
	"github.com/gpuproof/scene/driver"
)

const defaultFenceTimeout = time.Minute

// Option configures scene construction.
type Option func(*config)

type config struct {
	fenceTimeout time.Duration
	log          *slog.Logger
}

// WithFenceTimeout bounds the wait for read-back
// completion. The default is one minute; a wait that
// exceeds the bound fails with driver.ErrTimeout instead
// of blocking forever.
func WithFenceTimeout(d time.Duration) Option {
	return func(c *config) { c.fenceTimeout = d }
}

// WithLogger gives the scene its own logger instead of
// the package-level one configured with SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// Scene is a fully realized scene description: the
// resource table, the recorded job command buffers, and
// the device objects they live on.
// A Scene exclusively owns its device, queue and command
// pool; none of the objects it creates may outlive it, and
// it is not safe for concurrent use. Tests that must run
// in parallel use one Scene (and one adapter) each.
type Scene struct {
	res     *Resources
	jobs    map[string]driver.CmdBuffer
	initCmd driver.CmdBuffer

	dev          driver.Device
	queue        driver.Queue
	pool         driver.CmdPool
	uploads      map[string]*Buffer
	limits       driver.Limits
	uploadType   int
	downloadType int
	fenceTimeout time.Duration
	log          *slog.Logger
	freed        bool
}

// Resources returns the scene's resource table.
func (s *Scene) Resources() *Resources { return s.res }

// New realizes scn into a Scene on ad's device.
// Image and buffer data files are resolved relative to
// dataPath.
// Construction is all-or-nothing: any name-resolution or
// device failure aborts and releases whatever was built.
func New(ad driver.Adapter, scn *desc.Scene, dataPath string, opts ...Option) (*Scene, error) {
	cfg := config{fenceTimeout: defaultFenceTimeout}
	for _, o := range opts {
		o(&cfg)
	}
	log := cfg.log
	if log == nil {
		log = logger()
	}

	dev, err := ad.Open()
	if err != nil {
		return nil, errors.Wrap(err, "scene: open adapter")
	}
	log.Info("creating scene", "adapter", ad.Name(), "dataPath", dataPath,
		"resources", len(scn.Resources), "jobs", len(scn.Jobs))

	mtypes := dev.MemoryTypes()
	uploadType, ok := findMemoryType(mtypes, ^uint(0), driver.MHostVisible)
	if !ok {
		return nil, errors.Wrap(ErrNoMemoryType, "scene: no host-visible memory type")
	}
	downloadType, ok := findMemoryType(mtypes, ^uint(0), driver.MHostVisible|driver.MHostCached)
	if !ok {
		return nil, errors.Wrap(ErrNoMemoryType, "scene: no host-visible cached memory type")
	}

	queue := dev.Queue()
	pool, err := queue.NewPool(1 + len(scn.Jobs))
	if err != nil {
		return nil, errors.Wrap(err, "scene: command pool")
	}

	s := &Scene{
		res:          newResources(),
		jobs:         make(map[string]driver.CmdBuffer, len(scn.Jobs)),
		dev:          dev,
		queue:        queue,
		pool:         pool,
		uploads:      map[string]*Buffer{},
		limits:       dev.Limits(),
		uploadType:   uploadType,
		downloadType: downloadType,
		fenceTimeout: cfg.fenceTimeout,
		log:          log,
	}

	initCmd, err := pool.NewCmdBuffer()
	if err != nil {
		s.Free()
		return nil, errors.Wrap(err, "scene: init command buffer")
	}
	s.initCmd = initCmd
	if err := initCmd.Begin(); err != nil {
		s.Free()
		return nil, errors.Wrap(err, "scene: init command buffer")
	}

	b := builder{
		dev:        dev,
		limits:     s.limits,
		mtypes:     mtypes,
		uploadType: uploadType,
		initCmd:    initCmd,
		dataPath:   dataPath,
		res:        s.res,
		uploads:    s.uploads,
		log:        log,
	}
	if err := b.build(scn.Resources); err != nil {
		s.Free()
		return nil, err
	}
	if err := initCmd.End(); err != nil {
		s.Free()
		return nil, errors.Wrap(err, "scene: init command buffer")
	}

	if err := s.recordJobs(scn.Jobs); err != nil {
		s.Free()
		return nil, err
	}
	return s, nil
}

// Run submits the named jobs to the device queue as one
// ordered batch and returns without waiting for
// completion.
// The one-time initialization command buffer is submitted
// ahead of the batch the first time Run is called; no job
// ever executes before it, since jobs read images whose
// contents the initialization uploads establish.
// Command buffers are single-use: each named job is
// consumed by the submission and cannot run again without
// rebuilding the scene. Unknown or already-consumed names
// fail with ErrNameNotFound before anything is submitted.
func (s *Scene) Run(names ...string) error {
	batch := make([]driver.CmdBuffer, 0, len(names)+1)
	if s.initCmd != nil {
		batch = append(batch, s.initCmd)
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		cb, ok := s.jobs[n]
		// A repeated name counts as already consumed;
		// the buffer is single-use even within one batch.
		if !ok || seen[n] {
			return notFound("job", n)
		}
		seen[n] = true
		batch = append(batch, cb)
	}
	if err := s.queue.Submit(batch, nil); err != nil {
		return errors.Wrap(err, "scene: submit")
	}
	s.initCmd = nil
	for _, n := range names {
		delete(s.jobs, n)
	}
	s.log.Info("jobs submitted", "count", len(names))
	return nil
}

// Free releases everything the scene owns: transient
// upload buffers, the resource table, unconsumed command
// buffers, and the command pool.
// Free is idempotent. The adapter remains open; closing
// it is the caller's responsibility.
func (s *Scene) Free() {
	if s.freed {
		return
	}
	s.freed = true
	for _, up := range s.uploads {
		up.Handle.Destroy()
		up.mem.Free()
	}
	s.uploads = map[string]*Buffer{}
	if s.res != nil {
		s.res.free()
	}
	if s.initCmd != nil {
		s.initCmd.Destroy()
		s.initCmd = nil
	}
	for n, cb := range s.jobs {
		cb.Destroy()
		delete(s.jobs, n)
	}
	if s.pool != nil {
		s.pool.Destroy()
		s.pool = nil
	}
	s.log.Info("scene freed")
}
