package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

var _ contractx.Synthesizer = (*GoogleSynthesizer)(nil)

type voice struct {
	Name   string
	Gender string
}

var voices = map[string]voice{
	"hi-IN": {Name: "hi-IN-Neural2-A", Gender: "FEMALE"},
	"te-IN": {Name: "te-IN-Standard-A", Gender: "FEMALE"},
	"kn-IN": {Name: "kn-IN-Standard-A", Gender: "FEMALE"},
	"en-IN": {Name: "en-IN-Neural2-A", Gender: "FEMALE"},
	"en-US": {Name: "en-US-Neural2-F", Gender: "FEMALE"},
}

// VoiceFor maps a language tag to a voice. Unsupported tags get the en-US
// voice and language.
func VoiceFor(languageTag string) (string, string, string) {
	tag := strings.TrimSpace(languageTag)
	v, ok := voices[tag]
	if !ok {
		tag = DefaultLanguage
		v = voices[DefaultLanguage]
	}
	return tag, v.Name, v.Gender
}

// GoogleSynthesizer calls the Cloud Text-to-Speech REST endpoint with an API
// key and returns MP3 audio.
type GoogleSynthesizer struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewGoogleSynthesizer(baseURL, apiKey string, timeout time.Duration) (*GoogleSynthesizer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("speech: google api key is required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://texttospeech.googleapis.com/v1"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GoogleSynthesizer{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
		SsmlGender   string `json:"ssmlGender"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

func (g *GoogleSynthesizer) Synthesize(ctx context.Context, text, languageTag string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	var reqBody synthesizeRequest
	reqBody.Input.Text = text
	reqBody.Voice.LanguageCode, reqBody.Voice.Name, reqBody.Voice.SsmlGender = VoiceFor(languageTag)
	reqBody.AudioConfig.AudioEncoding = "MP3"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("speech: encode google request: %w", err)
	}

	endpoint := g.baseURL + "/text:synthesize?key=" + url.QueryEscape(g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("speech: build google request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech: google request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("speech: read google response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech: google status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out synthesizeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("speech: decode google response: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("speech: decode audio content: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("speech: google returned no audio")
	}
	return audio, nil
}
