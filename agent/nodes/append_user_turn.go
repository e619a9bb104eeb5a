package orchestratornode

import (
	"fmt"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

func AppendUserTurn(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	in.Session.Append(userMessage(in.Text, in.ImageURL))
	return in, nil
}

func userMessage(text, imageURL string) *schema.Message {
	if imageURL == "" {
		return schema.UserMessage(text)
	}
	if text == "" {
		text = DefaultImagePrompt
	}
	return &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: text},
			{Type: schema.ChatMessagePartTypeImageURL, ImageURL: &schema.ChatMessageImageURL{URL: imageURL}},
		},
	}
}
