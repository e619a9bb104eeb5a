package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/speech"
)

const (
	maxJSONBody  = 8 << 20
	maxAudioBody = 32 << 20
)

type chatRequest struct {
	Message    string `json:"message"`
	SessionID  string `json:"session_id"`
	Image      string `json:"image,omitempty"`
	BusinessID string `json:"business_id,omitempty"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type audioResponse struct {
	UserText    string `json:"user_text"`
	AIText      string `json:"ai_text"`
	AudioBase64 string `json:"audio_base64"`
}

type ttsRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The image is passed through as-is: either a URL or a data: URI.
	reply, err := s.deps.Turns.HandleTurn(r.Context(), contractx.TurnRequest{
		SessionKey: req.SessionID,
		TenantID:   s.tenantOrDefault(req.BusinessID),
		Text:       req.Message,
		ImageURL:   strings.TrimSpace(req.Image),
	})
	if err != nil {
		writeTurnError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: reply})
}

func (s *Server) handleProcessAudio(w http.ResponseWriter, r *http.Request) {
	if s.deps.Transcriber == nil || s.deps.Synthesizer == nil {
		sendJSONError(w, http.StatusServiceUnavailable, "speech is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBody)
	if err := r.ParseMultipartForm(maxAudioBody); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, "read audio")
		return
	}

	userText, err := s.deps.Transcriber.Transcribe(r.Context(), audio, header.Filename)
	if err != nil {
		log.Error().Err(err).Msg("transcription failed")
		sendJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	aiText, err := s.deps.Turns.HandleTurn(r.Context(), contractx.TurnRequest{
		SessionKey: r.FormValue("session_id"),
		TenantID:   s.tenantOrDefault(r.FormValue("business_id")),
		Text:       userText,
	})
	if err != nil {
		writeTurnError(w, r, err)
		return
	}

	speechAudio, err := s.deps.Synthesizer.Synthesize(r.Context(), aiText, speech.DefaultLanguage)
	if err != nil {
		log.Error().Err(err).Msg("speech synthesis failed")
		sendJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, audioResponse{
		UserText:    userText,
		AIText:      aiText,
		AudioBase64: base64.StdEncoding.EncodeToString(speechAudio),
	})
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if s.deps.Synthesizer == nil {
		sendJSONError(w, http.StatusServiceUnavailable, "speech is not configured")
		return
	}

	var req ttsRequest
	if err := decodeJSON(r, &req); err != nil {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Language) == "" {
		req.Language = speech.DefaultLanguage
	}

	audio, err := s.deps.Synthesizer.Synthesize(r.Context(), req.Text, req.Language)
	if errors.Is(err, speech.ErrEmptyText) {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Error().Err(err).Str("language", req.Language).Msg("speech synthesis failed")
		sendJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}
