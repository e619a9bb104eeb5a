package api

import (
	"encoding/xml"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

// VoiceGreeting opens every call.
const VoiceGreeting = "Welcome to the Application. How can I help you place an order today?"

type twimlResponse struct {
	XMLName  xml.Name      `xml:"Response"`
	Message  *twimlMessage `xml:"Message,omitempty"`
	Gather   *twimlGather  `xml:"Gather,omitempty"`
	Redirect string        `xml:"Redirect,omitempty"`
}

type twimlMessage struct {
	Body string `xml:",chardata"`
}

type twimlGather struct {
	Input    string `xml:"input,attr"`
	Action   string `xml:"action,attr"`
	Timeout  int    `xml:"timeout,attr"`
	Language string `xml:"language,attr"`
	Say      string `xml:"Say"`
}

func speechGather(say string) *twimlGather {
	return &twimlGather{Input: "speech", Action: "/voice", Timeout: 3, Language: "en-US", Say: say}
}

func writeTwiML(w http.ResponseWriter, resp twimlResponse) {
	body, err := xml.Marshal(resp)
	if err != nil {
		sendJSONError(w, http.StatusInternalServerError, "encode twiml")
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(body)
}

// handleWhatsApp answers a Twilio messaging webhook. The sender address is
// the session key.
func (s *Server) handleWhatsApp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid form")
		return
	}
	from := r.PostFormValue("From")
	log.Info().Str("session_key", from).Msg("whatsapp message")

	reply, err := s.deps.Turns.HandleTurn(r.Context(), contractx.TurnRequest{
		SessionKey: from,
		TenantID:   s.deps.DefaultTenantID,
		Text:       strings.TrimSpace(r.PostFormValue("Body")),
	})
	if err != nil {
		writeTurnError(w, r, err)
		return
	}
	writeTwiML(w, twimlResponse{Message: &twimlMessage{Body: reply}})
}

// handleVoice answers a Twilio voice webhook. The call id is the session
// key; a call without recognized speech gets the greeting.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid form")
		return
	}
	callSid := r.PostFormValue("CallSid")
	if strings.TrimSpace(callSid) == "" {
		sendJSONError(w, http.StatusBadRequest, "CallSid is required")
		return
	}

	say := VoiceGreeting
	if speech := strings.TrimSpace(r.PostFormValue("SpeechResult")); speech != "" {
		reply, err := s.deps.Turns.HandleTurn(r.Context(), contractx.TurnRequest{
			SessionKey: callSid,
			TenantID:   s.deps.DefaultTenantID,
			Text:       speech,
		})
		if err != nil {
			writeTurnError(w, r, err)
			return
		}
		say = reply
	}

	writeTwiML(w, twimlResponse{Gather: speechGather(say), Redirect: "/voice"})
}
