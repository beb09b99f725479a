package pipeline

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lingolens/platform/internal/errors"
	"github.com/lingolens/platform/internal/screen"
)

// Session is the immutable input of one capture run.
type Session struct {
	ID             string        `json:"id"`
	Monitor        int           `json:"monitor"`
	Region         screen.Region `json:"region"`
	SourceLanguage string        `json:"source_language"` // recognition code, e.g. "eng"
	TargetLanguage string        `json:"target_language"` // translation code, e.g. "fr"
	Voice          bool          `json:"voice"`
	LogPath        string        `json:"log_path,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
}

// LanguageValidator checks codes against the supported tables.
type LanguageValidator interface {
	ValidRecognition(code string) bool
	ValidTranslation(code string) bool
}

// validate checks preconditions for starting a session.
func (s Session) validate(langs LanguageValidator) error {
	if s.Region.Empty() {
		return apperrors.ErrNoRegion
	}
	if s.Monitor < 0 {
		return apperrors.Newf(apperrors.InvalidArgument, "monitor %d out of range", s.Monitor)
	}
	if s.SourceLanguage == "" || s.TargetLanguage == "" {
		return apperrors.New(apperrors.InvalidArgument, "source and target language are required")
	}
	if langs == nil {
		return nil
	}
	if !langs.ValidRecognition(s.SourceLanguage) {
		return apperrors.Newf(apperrors.InvalidArgument, "unsupported recognition language %q", s.SourceLanguage).
			WithMetadata("field", "source_language")
	}
	if !langs.ValidTranslation(s.TargetLanguage) {
		return apperrors.Newf(apperrors.InvalidArgument, "unsupported translation language %q", s.TargetLanguage).
			WithMetadata("field", "target_language")
	}
	return nil
}

// withDefaults assigns an ID and start time.
func (s Session) withDefaults() Session {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	return s
}
