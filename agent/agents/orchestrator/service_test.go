package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/inventory"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/prompt"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/sheet"
	statex "github.com/tanpawarit/Chative-Ordering-Agent/agent/state"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/tool"
)

type fakeStep struct {
	msg *schema.Message
	err error
}

type fakeToolCallingModel struct {
	mu        sync.Mutex
	steps     []fakeStep
	idx       int
	inputs    [][]*schema.Message
	boundWith int
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, append([]*schema.Message(nil), input...))
	if f.idx >= len(f.steps) {
		return nil, errors.New("no fake response left")
	}
	step := f.steps[f.idx]
	f.idx++
	return step.msg, step.err
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boundWith = len(tools)
	return f, nil
}

type fakeTenants struct{}

func (fakeTenants) Resolve(_ context.Context, id string) contractx.Business {
	return contractx.Business{ID: id, Name: "Shop " + id, Type: contractx.BusinessRetail}
}

type mockCatalog struct{}

func (mockCatalog) Items(context.Context, string) ([]contractx.InventoryItem, error) {
	var items []contractx.InventoryItem
	for _, rec := range sheet.MockCatalog() {
		items = append(items, contractx.InventoryItem(rec))
	}
	return items, nil
}

// emptyIndex finds nothing, forcing the keyword fallback.
type emptyIndex struct{ queries int }

func (e *emptyIndex) Replace(context.Context, string, []contractx.InventoryItem) error { return nil }

func (e *emptyIndex) Query(context.Context, string, string, int) ([]contractx.InventoryItem, error) {
	e.queries++
	return nil, nil
}

type fakeOrders struct {
	placed []contractx.Order
}

func (f *fakeOrders) AddOrder(_ context.Context, _ string, o contractx.Order) error {
	f.placed = append(f.placed, o)
	return nil
}

func (f *fakeOrders) GetOrders(context.Context, string) ([]contractx.OrderRecord, error) {
	return nil, nil
}

type testHarness struct {
	o      *Orchestrator
	store  *statex.MemoryStore
	model  *fakeToolCallingModel
	orders *fakeOrders
	index  *emptyIndex
}

func newTestHarness(t *testing.T, steps ...fakeStep) *testHarness {
	t.Helper()

	h := &testHarness{
		store:  statex.NewMemoryStore(),
		model:  &fakeToolCallingModel{steps: steps},
		orders: &fakeOrders{},
		index:  &emptyIndex{},
	}
	searcher := inventory.NewSearcher(h.index, mockCatalog{})

	o, err := New(Deps{
		Store:    h.store,
		Tenants:  fakeTenants{},
		Prompts:  prompt.MustLoad(),
		Executor: tool.NewExecutor(searcher, h.orders, nil),
		Model:    h.model,
	}, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.o = o
	return h
}

func toolCall(id, name, args string) schema.ToolCall {
	return schema.ToolCall{
		ID:       id,
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(Deps{}, Config{}); err == nil {
		t.Fatal("expected error for missing store")
	}
}

func TestHandleTurnInvalidInput(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)

	_, err := h.o.HandleTurn(context.Background(), contractx.TurnRequest{SessionKey: "   ", Text: "hello"})
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}

	_, err = h.o.HandleTurn(context.Background(), contractx.TurnRequest{SessionKey: "s1", Text: "   "})
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
	if h.model.idx != 0 {
		t.Fatalf("model must not be called, got %d calls", h.model.idx)
	}
	if h.store.Len() != 0 {
		t.Fatalf("nothing should be stored, got %d sessions", h.store.Len())
	}
}

func TestHandleTurnDirectReply(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, fakeStep{msg: schema.AssistantMessage("Hello! What would you like to order?", nil)})

	reply, err := h.o.HandleTurn(context.Background(), contractx.TurnRequest{SessionKey: "u1", Text: "hi"})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if reply != "Hello! What would you like to order?" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if h.model.boundWith != 3 {
		t.Fatalf("expected 3 tools bound, got %d", h.model.boundWith)
	}

	sess, err := h.store.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if sess.TenantID != DefaultTenantID {
		t.Fatalf("expected default tenant, got %q", sess.TenantID)
	}
	if len(sess.History) != 3 {
		t.Fatalf("expected system, user, assistant turns, got %d", len(sess.History))
	}
	if sess.History[0].Role != schema.System || !strings.Contains(sess.History[0].Content, "Shop "+DefaultTenantID) {
		t.Fatalf("unexpected system turn: %#v", sess.History[0])
	}
}

func TestHandleTurnSearchFallsBackToKeyword(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t,
		fakeStep{msg: schema.AssistantMessage("", []schema.ToolCall{
			toolCall("call_1", tool.NameSearchInventory, `{"query":"fan"}`),
		})},
		fakeStep{msg: schema.AssistantMessage("Yes, we have a Fan for 1500.", nil)},
	)

	reply, err := h.o.HandleTurn(context.Background(), contractx.TurnRequest{SessionKey: "u1", Text: "Do you have a fan?"})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if reply != "Yes, we have a Fan for 1500." {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if h.index.queries != 1 {
		t.Fatalf("expected one semantic query, got %d", h.index.queries)
	}

	second := h.model.inputs[1]
	toolTurn := second[len(second)-1]
	if toolTurn.Role != schema.Tool || toolTurn.ToolCallID != "call_1" {
		t.Fatalf("expected tool turn for call_1, got %#v", toolTurn)
	}
	if !strings.HasPrefix(toolTurn.Content, "Found: ") || !strings.Contains(toolTurn.Content, "Fan") {
		t.Fatalf("unexpected tool content: %q", toolTurn.Content)
	}

	sess, err := h.store.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(sess.History) != 5 {
		t.Fatalf("expected 5 turns, got %d", len(sess.History))
	}
}

func TestHandleTurnCartAndConfirm(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t,
		fakeStep{msg: schema.AssistantMessage("", []schema.ToolCall{
			toolCall("call_1", tool.NameAddToCart, `{"items":[{"name":"Fan","quantity":2}]}`),
		})},
		fakeStep{msg: schema.AssistantMessage("Added 2 fans.", nil)},
		fakeStep{msg: schema.AssistantMessage("", []schema.ToolCall{
			toolCall("call_2", tool.NameConfirmOrder, `{}`),
		})},
		fakeStep{msg: schema.AssistantMessage("Your order is placed.", nil)},
	)
	ctx := context.Background()

	if _, err := h.o.HandleTurn(ctx, contractx.TurnRequest{SessionKey: "u1", TenantID: "t1", Text: "two fans"}); err != nil {
		t.Fatalf("first turn error = %v", err)
	}
	sess, _ := h.store.Get(ctx, "u1")
	if len(sess.Cart) != 1 || sess.Cart[0].Quantity != 2 {
		t.Fatalf("unexpected cart: %#v", sess.Cart)
	}

	reply, err := h.o.HandleTurn(ctx, contractx.TurnRequest{SessionKey: "u1", TenantID: "t1", Text: "confirm"})
	if err != nil {
		t.Fatalf("second turn error = %v", err)
	}
	if reply != "Your order is placed." {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if len(h.orders.placed) != 1 || h.orders.placed[0].Items[0].Name != "Fan" {
		t.Fatalf("unexpected orders: %#v", h.orders.placed)
	}
	sess, _ = h.store.Get(ctx, "u1")
	if len(sess.Cart) != 0 {
		t.Fatalf("cart should be cleared, got %#v", sess.Cart)
	}
	if len(sess.History) != 9 {
		t.Fatalf("expected 9 turns, got %d", len(sess.History))
	}
}

func TestHandleTurnTenantSwitchResetsSession(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, fakeStep{msg: schema.AssistantMessage("Welcome!", nil)})
	ctx := context.Background()

	old := statex.NewSession("u1", "tenant_a", "old prompt", h.o.now())
	old.Append(schema.UserMessage("earlier"))
	old.AddToCart(contractx.LineItem{Name: "Pipe", Quantity: 1})
	if err := h.store.Create(ctx, old); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := h.o.HandleTurn(ctx, contractx.TurnRequest{SessionKey: "u1", TenantID: "tenant_b", Text: "hi"}); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	sess, _ := h.store.Get(ctx, "u1")
	if sess.TenantID != "tenant_b" {
		t.Fatalf("expected tenant_b, got %q", sess.TenantID)
	}
	if len(sess.Cart) != 0 {
		t.Fatalf("cart should be reset, got %#v", sess.Cart)
	}
	if len(sess.History) != 3 || sess.History[0].Content == "old prompt" {
		t.Fatalf("history should be rebuilt, got %d turns", len(sess.History))
	}
}

func TestHandleTurnModelFailureLeavesSessionUntouched(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, fakeStep{err: errors.New("upstream 503")})
	ctx := context.Background()

	existing := statex.NewSession("u1", DefaultTenantID, "prompt", h.o.now())
	if err := h.store.Create(ctx, existing); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := h.o.HandleTurn(ctx, contractx.TurnRequest{SessionKey: "u1", Text: "hello"})
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}

	sess, _ := h.store.Get(ctx, "u1")
	if len(sess.History) != 1 {
		t.Fatalf("session must not change, got %d turns", len(sess.History))
	}
}

func TestHandleTurnSummarizeFailureKeepsToolEffects(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t,
		fakeStep{msg: schema.AssistantMessage("", []schema.ToolCall{
			toolCall("call_1", tool.NameAddToCart, `{"items":[{"name":"Plug","quantity":3}]}`),
		})},
		fakeStep{err: errors.New("timeout")},
	)
	ctx := context.Background()

	_, err := h.o.HandleTurn(ctx, contractx.TurnRequest{SessionKey: "u1", Text: "3 plugs"})
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}

	sess, err := h.store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("session should be saved, got %v", err)
	}
	if len(sess.Cart) != 1 || sess.Cart[0].Name != "Plug" {
		t.Fatalf("unexpected cart: %#v", sess.Cart)
	}
	last := sess.History[len(sess.History)-1]
	if last.Role != schema.Tool {
		t.Fatalf("expected tool turn last, got %s", last.Role)
	}
}

func TestHandleTurnImageMessage(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, fakeStep{msg: schema.AssistantMessage("That looks like a switch.", nil)})

	_, err := h.o.HandleTurn(context.Background(), contractx.TurnRequest{
		SessionKey: "u1",
		ImageURL:   "https://example.com/switch.jpg",
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	user := h.model.inputs[0][1]
	if len(user.MultiContent) != 2 {
		t.Fatalf("expected text and image parts, got %#v", user.MultiContent)
	}
	if user.MultiContent[0].Text != "Please look at this image and identify the items." {
		t.Fatalf("unexpected default text: %q", user.MultiContent[0].Text)
	}
	if user.MultiContent[1].ImageURL == nil || user.MultiContent[1].ImageURL.URL != "https://example.com/switch.jpg" {
		t.Fatalf("unexpected image part: %#v", user.MultiContent[1])
	}
}

func TestResetEvictsSession(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, fakeStep{msg: schema.AssistantMessage("hi", nil)})
	ctx := context.Background()

	if _, err := h.o.HandleTurn(ctx, contractx.TurnRequest{SessionKey: "u1", Text: "hello"}); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if err := h.o.Reset(ctx, "u1"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if _, err := h.store.Get(ctx, "u1"); !errors.Is(err, statex.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestHandleTurnSerializesSameSession(t *testing.T) {
	t.Parallel()

	const turns = 50
	steps := make([]fakeStep, 0, 2*turns)
	for i := 0; i < turns; i++ {
		steps = append(steps,
			fakeStep{msg: schema.AssistantMessage("", []schema.ToolCall{
				toolCall(fmt.Sprintf("call_%d", i), tool.NameAddToCart, `{"items":[{"name":"Fan","quantity":1}]}`),
			})},
			fakeStep{msg: schema.AssistantMessage("Added a fan.", nil)},
		)
	}
	h := newTestHarness(t, steps...)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, turns)
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.o.HandleTurn(ctx, contractx.TurnRequest{SessionKey: "shared", Text: "one more fan"}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	sess, err := h.store.Get(ctx, "shared")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(sess.Cart) != turns {
		t.Fatalf("cart length = %d, want %d", len(sess.Cart), turns)
	}
	if h.store.Len() != 1 {
		t.Fatalf("expected one session, got %d", h.store.Len())
	}
}
