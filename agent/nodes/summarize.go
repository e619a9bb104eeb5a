package orchestratornode

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

// Summarize asks the model, without tools, to turn the tool results into the
// user-facing reply.
func Summarize(ctx context.Context, in *GraphState, replyModel einomodel.BaseChatModel) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	msg, err := replyModel.Generate(ctx, in.Session.History)
	if err == nil && msg == nil {
		err = fmt.Errorf("model returned no message")
	}
	if err != nil {
		in.SummarizeErr = fmt.Errorf("%w: summarize tool results: %v", contractx.ErrModelInvoke, err)
		log.Error().Err(err).Str("session_key", in.SessionKey).Msg("follow-up model call failed")
		return in, nil
	}

	reply := schema.AssistantMessage(msg.Content, nil)
	in.Session.Append(reply)
	in.Reply = msg.Content
	return in, nil
}
