package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/prompt"
	statex "github.com/tanpawarit/Chative-Ordering-Agent/agent/state"
)

// LoadOrCreateSession loads the stored session, or starts a fresh one when
// none exists or the session is bound to a different tenant.
func LoadOrCreateSession(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
	tenants contractx.TenantResolver,
	prompts prompt.Set,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	sess, err := store.Get(ctx, in.SessionKey)
	switch {
	case err == nil && sess.TenantID == in.TenantID:
		in.Session = sess
		return in, nil
	case err == nil:
		log.Info().
			Str("session_key", in.SessionKey).
			Str("from_tenant", sess.TenantID).
			Str("tenant_id", in.TenantID).
			Msg("tenant switch, resetting session")
	case !errors.Is(err, statex.ErrSessionNotFound):
		return nil, err
	}

	in.Business = tenants.Resolve(ctx, in.TenantID)
	system := prompts.System(ctx, in.Business, in.Now)
	in.Session = statex.NewSession(in.SessionKey, in.TenantID, system, in.Now)
	in.Created = true
	return in, nil
}
