package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/foxseedlab/aivideoplayer/internal/transcriber"
)

const (
	speechAPIEndpointPort = 443
	// Recognize accepts at most 10MB of inline audio.
	inlineAudioLimitBytes = 10 << 20
)

var ErrAudioTooLarge = errors.New("audio exceeds the inline recognition limit")

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Location        string
	Model           string
	Languages       []string
}

type speechRecognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

type CloudSpeechEngine struct {
	client     speechRecognizer
	recognizer string
	model      string
	languages  []string
}

func NewCloudSpeechEngine(ctx context.Context, cfg CloudSpeechConfig) (*CloudSpeechEngine, error) {
	location := strings.TrimSpace(cfg.Location)
	slog.Info("connecting cloud speech", "location", location, "model", cfg.Model, "languages", cfg.Languages)

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(cfg.CredentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", location, speechAPIEndpointPort)))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return newCloudSpeechEngine(client, cfg), nil
}

func newCloudSpeechEngine(client speechRecognizer, cfg CloudSpeechConfig) *CloudSpeechEngine {
	return &CloudSpeechEngine{
		client:     client,
		recognizer: fmt.Sprintf("projects/%s/locations/%s/recognizers/_", cfg.ProjectID, strings.TrimSpace(cfg.Location)),
		model:      strings.TrimSpace(cfg.Model),
		languages:  cfg.Languages,
	}
}

// Transcribe recognizes the whole file in one call. Beam size and VAD options do
// not apply to this backend.
func (e *CloudSpeechEngine) Transcribe(ctx context.Context, audioPath string, opts transcriber.Options) (transcriber.Transcription, error) {
	fi, err := os.Stat(audioPath)
	if err != nil {
		return nil, fmt.Errorf("stat audio: %w", err)
	}
	if fi.Size() > inlineAudioLimitBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrAudioTooLarge, fi.Size())
	}
	content, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	languages := e.languages
	if opts.Language != "" {
		languages = []string{opts.Language}
	}
	req := &speechpb.RecognizeRequest{
		Recognizer: e.recognizer,
		Config: &speechpb.RecognitionConfig{
			Model:         e.model,
			LanguageCodes: languages,
			DecodingConfig: &speechpb.RecognitionConfig_AutoDecodingConfig{
				AutoDecodingConfig: &speechpb.AutoDetectDecodingConfig{},
			},
			Features: &speechpb.RecognitionFeatures{
				EnableAutomaticPunctuation: true,
			},
		},
		AudioSource: &speechpb.RecognizeRequest_Content{Content: content},
	}

	resp, err := e.client.Recognize(ctx, req)
	if err != nil && isRetryableRecognizeError(err) {
		slog.Warn("cloud speech recognize failed with retryable error; retrying", "error", err)
		resp, err = e.client.Recognize(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("recognize (%s): %w", status.Code(err), err)
	}

	info, segments := resultsToSegments(resp)
	slog.Debug("cloud speech recognized", "results", len(resp.GetResults()), "segments", len(segments))
	return transcriber.FromSlice(info, segments), nil
}

func (e *CloudSpeechEngine) Close() error {
	return e.client.Close()
}

// resultsToSegments turns consecutive results into segments. A result only
// carries its end offset, so each segment starts where the previous one ended.
func resultsToSegments(resp *speechpb.RecognizeResponse) (transcriber.Info, []transcriber.Segment) {
	var info transcriber.Info
	if d := resp.GetMetadata().GetTotalBilledDuration(); d != nil {
		info.Duration = d.AsDuration().Seconds()
	}

	var segments []transcriber.Segment
	prevEnd := 0.0
	for _, result := range resp.GetResults() {
		end := prevEnd
		if off := result.GetResultEndOffset(); off != nil {
			end = max(off.AsDuration().Seconds(), prevEnd)
		}
		if info.Language == "" && result.GetLanguageCode() != "" {
			info.Language = primaryLanguage(result.GetLanguageCode())
		}
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			prevEnd = end
			continue
		}
		if info.LanguageProbability == 0 {
			info.LanguageProbability = float64(alts[0].GetConfidence())
		}
		segments = append(segments, transcriber.Segment{Start: prevEnd, End: end, Text: alts[0].GetTranscript()})
		prevEnd = end
	}
	if info.Duration < prevEnd {
		info.Duration = prevEnd
	}
	return info, segments
}

// primaryLanguage reduces a BCP-47 tag such as "en-US" to "en".
func primaryLanguage(code string) string {
	lang, _, _ := strings.Cut(strings.ToLower(code), "-")
	return lang
}

func isRetryableRecognizeError(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	return st.Code() == codes.Unavailable || st.Code() == codes.Aborted
}
