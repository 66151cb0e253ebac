package transcription

import (
	"github.com/foxseedlab/aivideoplayer/internal/config"
	"github.com/foxseedlab/aivideoplayer/internal/modelcache"
	"github.com/foxseedlab/aivideoplayer/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		models := do.MustInvoke[*modelcache.Cache](i)
		return NewService(models, transcriber.Options{
			BeamSize:  cfg.WhisperBeamSize,
			VADFilter: cfg.WhisperVADFilter,
		}), nil
	})
}
