package orchestratornode

import (
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
	statex "github.com/tanpawarit/Chative-Ordering-Agent/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("session key is empty")
)

// DefaultImagePrompt is the user text sent with an image that has no caption.
const DefaultImagePrompt = "Please look at this image and identify the items."

type GraphInput struct {
	SessionKey string
	TenantID   string
	Text       string
	ImageURL   string
}

type GraphOutput struct {
	Reply string
}

type GraphState struct {
	SessionKey string
	TenantID   string
	Text       string
	ImageURL   string
	Now        time.Time

	Business contractx.Business
	Session  *statex.Session
	// Created marks a session built during this turn, new or reset after a
	// tenant switch.
	Created bool

	ModelReply  *schema.Message
	ToolResults []contractx.ToolResult
	Reply       string

	// SummarizeErr is a failure of the follow-up model call. The session is
	// still saved because tool effects already happened.
	SummarizeErr error
}

func ValidateRequest(in GraphInput, defaultTenant string, nowFn func() time.Time) (*GraphState, error) {
	sessionKey := strings.TrimSpace(in.SessionKey)
	if sessionKey == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	imageURL := strings.TrimSpace(in.ImageURL)
	if text == "" && imageURL == "" {
		return nil, ErrInvalidMessage
	}

	tenantID := strings.TrimSpace(in.TenantID)
	if tenantID == "" {
		tenantID = defaultTenant
	}

	return &GraphState{
		SessionKey: sessionKey,
		TenantID:   tenantID,
		Text:       text,
		ImageURL:   imageURL,
		Now:        nowFn().UTC(),
	}, nil
}
