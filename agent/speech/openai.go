package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

var (
	_ contractx.Transcriber = (*OpenAITranscriber)(nil)
	_ contractx.Synthesizer = (*OpenAISynthesizer)(nil)
)

// OpenAITranscriber turns recorded audio into text with the transcription API.
type OpenAITranscriber struct {
	client *openaisdk.Client
	model  string
}

func NewOpenAITranscriber(client *openaisdk.Client, model string) *OpenAITranscriber {
	if strings.TrimSpace(model) == "" {
		model = "whisper-1"
	}
	return &OpenAITranscriber{client: client, model: model}
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}
	if strings.TrimSpace(filename) == "" {
		filename = "audio.webm"
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, openaisdk.AudioTranscriptionNewParams{
		File:  openaisdk.File(bytes.NewReader(audio), filename, "application/octet-stream"),
		Model: openaisdk.AudioModel(t.model),
	})
	if err != nil {
		return "", fmt.Errorf("speech: transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// OpenAISynthesizer speaks text with a single fixed voice; the language tag
// is ignored.
type OpenAISynthesizer struct {
	client *openaisdk.Client
	model  string
	voice  string
}

func NewOpenAISynthesizer(client *openaisdk.Client, model, voice string) *OpenAISynthesizer {
	if strings.TrimSpace(model) == "" {
		model = "tts-1"
	}
	if strings.TrimSpace(voice) == "" {
		voice = "alloy"
	}
	return &OpenAISynthesizer{client: client, model: model, voice: voice}
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	resp, err := s.client.Audio.Speech.New(ctx, openaisdk.AudioSpeechNewParams{
		Input:          text,
		Model:          openaisdk.SpeechModel(s.model),
		Voice:          openaisdk.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openaisdk.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("speech: openai synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech: openai synthesize: status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speech: read audio: %w", err)
	}
	return audio, nil
}
