package translator

import (
	"github.com/foxseedlab/aivideoplayer/internal/config"
	"github.com/foxseedlab/aivideoplayer/internal/translator"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (translator.Loader, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewMarianLoader(MarianConfig{
			PythonBin: c.PythonBin,
			ModelsDir: c.ModelsDir,
			ModelName: c.TranslationModelName,
		}), nil
	})
}
