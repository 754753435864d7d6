package handlers

import (
	"time"

	"reel-server/internal/artifacts"
	"reel-server/internal/clip"
	"reel-server/internal/pipeline"
	"reel-server/internal/source"
	"reel-server/internal/status"
	"reel-server/internal/streaming"
)

// Options wires the handlers to the rest of the server.
type Options struct {
	Pipeline         *pipeline.Pipeline
	Resolver         source.Resolver
	Store            *artifacts.Store
	Reporter         *status.Reporter
	Limits           clip.Limits
	MaxVideoDuration int
	Download         streaming.Config
}

// Handlers holds the dependencies shared by every endpoint.
type Handlers struct {
	pipeline         *pipeline.Pipeline
	resolver         source.Resolver
	store            *artifacts.Store
	reporter         *status.Reporter
	limits           clip.Limits
	maxVideoDuration int
	download         streaming.Config
	startedAt        time.Time
}

// New creates Handlers. An unset Download config means streaming.DefaultConfig.
func New(opts Options) *Handlers {
	dl := opts.Download
	if dl.WriteTimeout == 0 && dl.IdleTimeout == 0 && dl.ChunkSize == 0 {
		dl = streaming.DefaultConfig()
	}
	return &Handlers{
		pipeline:         opts.Pipeline,
		resolver:         opts.Resolver,
		store:            opts.Store,
		reporter:         opts.Reporter,
		limits:           opts.Limits,
		maxVideoDuration: opts.MaxVideoDuration,
		download:         dl,
		startedAt:        time.Now(),
	}
}
