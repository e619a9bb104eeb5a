package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
	nodex "github.com/tanpawarit/Chative-Ordering-Agent/agent/nodes"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/prompt"
	statex "github.com/tanpawarit/Chative-Ordering-Agent/agent/state"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/tool"
	metricsx "github.com/tanpawarit/Chative-Ordering-Agent/pkg/metrics"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
)

// DefaultTenantID is used for turns that name no tenant.
const DefaultTenantID = "electronics_default"

type Config struct {
	DefaultTenantID string
}

// Deps are the collaborators of an Orchestrator. ReplyModel, Locker and
// Metrics are optional.
type Deps struct {
	Store    statex.Store
	Tenants  contractx.TenantResolver
	Prompts  prompt.Set
	Executor nodex.ToolExecutor

	// Model answers the first call of a turn with the tool set bound.
	Model einomodel.ToolCallingChatModel
	// ReplyModel writes the reply after tools ran. Defaults to Model
	// without tools.
	ReplyModel einomodel.BaseChatModel

	Locker  *statex.KeyedLocker
	Metrics *metricsx.Metrics
}

type Orchestrator struct {
	store      statex.Store
	tenants    contractx.TenantResolver
	prompts    prompt.Set
	executor   nodex.ToolExecutor
	toolModel  einomodel.BaseChatModel
	replyModel einomodel.BaseChatModel
	locker     *statex.KeyedLocker
	metrics    *metricsx.Metrics

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	defaultTenant string

	now func() time.Time
}

func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, errors.New("session store is required")
	}
	if deps.Tenants == nil {
		return nil, errors.New("tenant resolver is required")
	}
	if deps.Executor == nil {
		return nil, errors.New("tool executor is required")
	}
	if deps.Model == nil {
		return nil, errors.New("chat model is required")
	}

	toolModel, err := deps.Model.WithTools(tool.Infos())
	if err != nil {
		return nil, fmt.Errorf("bind tools: %w", err)
	}
	replyModel := deps.ReplyModel
	if replyModel == nil {
		replyModel = deps.Model
	}
	locker := deps.Locker
	if locker == nil {
		locker = statex.NewKeyedLocker()
	}

	defaultTenant := strings.TrimSpace(cfg.DefaultTenantID)
	if defaultTenant == "" {
		defaultTenant = DefaultTenantID
	}

	o := &Orchestrator{
		store:         deps.Store,
		tenants:       deps.Tenants,
		prompts:       deps.Prompts,
		executor:      deps.Executor,
		toolModel:     toolModel,
		replyModel:    replyModel,
		locker:        locker,
		metrics:       deps.Metrics,
		defaultTenant: defaultTenant,
		now:           time.Now,
	}

	graphRunner, err := o.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleTurn runs one conversational turn. Turns for the same session key
// run one at a time.
func (o *Orchestrator) HandleTurn(ctx context.Context, req contractx.TurnRequest) (reply string, err error) {
	started := time.Now()
	defer func() { o.metrics.ObserveTurn(turnOutcome(err), started) }()

	if key := strings.TrimSpace(req.SessionKey); key != "" {
		unlock, lockErr := o.locker.Lock(ctx, key)
		if lockErr != nil {
			return "", lockErr
		}
		defer unlock()
	}

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionKey: req.SessionKey,
		TenantID:   req.TenantID,
		Text:       req.Text,
		ImageURL:   req.ImageURL,
	})
	if err != nil {
		log.Error().Err(err).
			Str("session_key", req.SessionKey).
			Str("tenant_id", req.TenantID).
			Msg("turn failed")
		return "", err
	}
	return out.Reply, nil
}

// Reset drops the stored session for key.
func (o *Orchestrator) Reset(ctx context.Context, key string) error {
	return o.store.Evict(ctx, key)
}

func turnOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidMessage), errors.Is(err, ErrInvalidSession):
		return "invalid"
	case errors.Is(err, contractx.ErrModelInvoke):
		return "model_error"
	default:
		return "error"
	}
}
