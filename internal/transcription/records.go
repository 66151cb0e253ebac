package transcription

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// TranslationErrorText replaces the translation of a segment whose translation failed.
const TranslationErrorText = "[Translation Error]"

// Record is one line of the response stream.
type Record interface {
	record()
}

type LanguageInfo struct {
	Language string `json:"language"`
	Status   Status `json:"status"`
}

type SegmentRecord struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Text        string  `json:"text"`
	Translation *string `json:"translation"`
}

type Completion struct {
	Status Status `json:"status"`
}

// Failure terminates a stream that hit an unrecovered error after it started.
type Failure struct {
	Status Status `json:"status"`
	Detail string `json:"detail"`
}

func (LanguageInfo) record()  {}
func (SegmentRecord) record() {}
func (Completion) record()    {}
func (Failure) record()       {}
