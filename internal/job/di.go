package job

import (
	"github.com/foxseedlab/aivideoplayer/internal/repository"
	"github.com/foxseedlab/aivideoplayer/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Tracker, error) {
		repo := do.MustInvoke[repository.JobRepository](i)
		wh := do.MustInvoke[webhook.Sender](i)
		return NewTracker(repo, wh), nil
	})
}
