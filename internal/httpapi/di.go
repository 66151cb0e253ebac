package httpapi

import (
	"github.com/foxseedlab/aivideoplayer/internal/config"
	"github.com/foxseedlab/aivideoplayer/internal/job"
	"github.com/foxseedlab/aivideoplayer/internal/stream"
	"github.com/foxseedlab/aivideoplayer/internal/transcription"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Router, error) {
		cfg := do.MustInvoke[*config.Config](i)
		svc := do.MustInvoke[*transcription.Service](i)
		tracker := do.MustInvoke[*job.Tracker](i)
		return NewRouter(RouterConfig{
			UploadDir:         cfg.UploadTempDir,
			MaxUploadBytes:    cfg.MaxUploadBytes(),
			CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		}, svc, stream.NewEmitter(cfg.SegmentPacing), tracker), nil
	})
}
