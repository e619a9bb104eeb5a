package orchestratornode

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

// InvokeModel runs the first model call of the turn with the tool set bound.
// A failure aborts the turn before anything is saved.
func InvokeModel(ctx context.Context, in *GraphState, toolModel einomodel.BaseChatModel) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	msg, err := toolModel.Generate(ctx, in.Session.History)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: model returned no message", contractx.ErrModelInvoke)
	}

	in.ModelReply = msg
	in.Session.Append(msg)
	return in, nil
}

// HasToolCalls decides the branch after InvokeModel.
func HasToolCalls(in *GraphState) bool {
	return in != nil && in.ModelReply != nil && len(in.ModelReply.ToolCalls) > 0
}

func DirectReply(in *GraphState) (*GraphState, error) {
	if in == nil || in.ModelReply == nil {
		return nil, fmt.Errorf("%w: model reply is missing", contractx.ErrValidation)
	}
	in.Reply = in.ModelReply.Content
	return in, nil
}
