package orchestratornode

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/tool"
)

// ToolExecutor runs a single tool call against the session cart.
type ToolExecutor interface {
	Execute(ctx context.Context, tenantID string, cart tool.Cart, call schema.ToolCall) contractx.ToolResult
}

// DispatchTools runs the model's tool calls in order and appends one tool
// turn per call.
func DispatchTools(ctx context.Context, in *GraphState, executor ToolExecutor) (*GraphState, error) {
	if in == nil || in.Session == nil || in.ModelReply == nil {
		return nil, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}

	for _, call := range in.ModelReply.ToolCalls {
		res := executor.Execute(ctx, in.Session.TenantID, in.Session, call)
		in.ToolResults = append(in.ToolResults, res)
		in.Session.Append(schema.ToolMessage(res.Content(), call.ID))
	}
	return in, nil
}
