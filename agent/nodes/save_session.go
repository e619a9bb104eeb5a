package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
	statex "github.com/tanpawarit/Chative-Ordering-Agent/agent/state"
)

func SaveSession(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	in.Session.Touch(in.Now)
	if err := in.Session.Validate(); err != nil {
		return nil, fmt.Errorf("session validation failed: %w", err)
	}

	if in.Created {
		return in, store.Create(ctx, in.Session)
	}
	err := store.Update(ctx, in.Session)
	if errors.Is(err, statex.ErrSessionNotFound) {
		// Evicted or expired while the turn ran.
		err = store.Create(ctx, in.Session)
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.SummarizeErr != nil {
		return GraphOutput{}, in.SummarizeErr
	}
	return GraphOutput{Reply: in.Reply}, nil
}
