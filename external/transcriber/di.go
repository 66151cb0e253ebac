package transcriber

import (
	"context"

	"github.com/foxseedlab/aivideoplayer/internal/config"
	"github.com/foxseedlab/aivideoplayer/internal/modelcache"
	"github.com/foxseedlab/aivideoplayer/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Engine, error) {
		c := do.MustInvoke[*config.Config](i)
		ctx := context.Background()

		if c.SpeechBackend == config.SpeechBackendGoogleCloud {
			return modelcache.Provision(ctx, "google-cloud-speech-"+c.GoogleCloudSpeechModel, nil,
				func(ctx context.Context) (transcriber.Engine, error) {
					engine, err := NewCloudSpeechEngine(ctx, CloudSpeechConfig{
						ProjectID:       c.GoogleCloudProjectID,
						CredentialsJSON: c.GoogleCloudCredentialsJSON,
						Location:        c.GoogleCloudSpeechLocation,
						Model:           c.GoogleCloudSpeechModel,
						Languages:       c.GoogleCloudSpeechLanguages,
					})
					if err != nil {
						return nil, err
					}
					return engine, nil
				},
			)
		}
		engine, err := ProvisionFasterWhisper(ctx, FasterWhisperConfig{
			PythonBin:   c.PythonBin,
			ModelSize:   c.WhisperModelSize,
			Device:      c.WhisperDevice,
			ComputeType: c.WhisperComputeType,
			ModelsDir:   c.ModelsDir,
		})
		if err != nil {
			return nil, err
		}
		return engine, nil
	})
}
