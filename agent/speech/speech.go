package speech

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

var (
	ErrEmptyAudio = errors.New("audio is empty")
	ErrEmptyText  = errors.New("text is empty")
)

// DefaultLanguage is used when a synthesis request names no language or an
// unsupported one.
const DefaultLanguage = "en-US"

type Config struct {
	GoogleAPIKey    string        `envconfig:"GOOGLE_API_KEY" split_words:"true"`
	GoogleBaseURL   string        `envconfig:"GOOGLE_BASE_URL" split_words:"true" default:"https://texttospeech.googleapis.com/v1"`
	TranscribeModel string        `envconfig:"TRANSCRIBE_MODEL" split_words:"true" default:"whisper-1"`
	TTSModel        string        `envconfig:"TTS_MODEL" split_words:"true" default:"tts-1"`
	TTSVoice        string        `envconfig:"TTS_VOICE" split_words:"true" default:"alloy"`
	Timeout         time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

var _ contractx.Synthesizer = (*FallbackSynthesizer)(nil)

// FallbackSynthesizer tries Primary and, on any failure, Secondary.
type FallbackSynthesizer struct {
	Primary   contractx.Synthesizer
	Secondary contractx.Synthesizer
}

func (f *FallbackSynthesizer) Synthesize(ctx context.Context, text, languageTag string) ([]byte, error) {
	if f.Primary != nil {
		audio, err := f.Primary.Synthesize(ctx, text, languageTag)
		if err == nil {
			return audio, nil
		}
		if errors.Is(err, ErrEmptyText) {
			return nil, err
		}
		log.Warn().Err(err).Str("language", languageTag).Msg("primary speech synthesis failed, trying secondary")
	}
	if f.Secondary == nil {
		return nil, errors.New("speech: no synthesizer available")
	}
	audio, err := f.Secondary.Synthesize(ctx, text, languageTag)
	if err != nil {
		return nil, fmt.Errorf("speech: secondary synthesis: %w", err)
	}
	return audio, nil
}
