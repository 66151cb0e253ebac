package modelcache

import (
	"github.com/foxseedlab/aivideoplayer/internal/config"
	"github.com/foxseedlab/aivideoplayer/internal/transcriber"
	"github.com/foxseedlab/aivideoplayer/internal/translator"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Cache, error) {
		cfg := do.MustInvoke[*config.Config](i)
		speech := do.MustInvoke[transcriber.Engine](i)
		loader := do.MustInvoke[translator.Loader](i)
		return New(speech, loader, cfg.TranslatorCacheSize)
	})
}
