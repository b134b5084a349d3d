package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/internal/knowledge"
	"Merem-Agent/internal/llm"
	"Merem-Agent/internal/memory"
	"Merem-Agent/internal/observability/alerting"
	"Merem-Agent/pkg/plugin"
)

type stubAction struct {
	spec    plugin.ActionSpec
	valid   bool
	reply   string
	ok      bool
	err     error
	panics  bool
	handled int
}

func (a *stubAction) Spec() plugin.ActionSpec { return a.spec }

func (a *stubAction) Validate(context.Context, plugin.Runtime, *plugin.Memory) bool { return a.valid }

func (a *stubAction) Handle(ctx context.Context, rt plugin.Runtime, msg *plugin.Memory, state *plugin.State, _ map[string]any, cb plugin.HandlerCallback) (bool, error) {
	a.handled++
	if a.panics {
		panic("boom")
	}
	if a.reply != "" {
		if err := cb(ctx, plugin.Content{Text: a.reply, Action: a.spec.Name}); err != nil {
			return false, err
		}
	}
	return a.ok, a.err
}

type stubProvider struct {
	name string
	text string
	err  error
}

func (p stubProvider) Name() string { return p.name }

func (p stubProvider) Get(context.Context, plugin.Runtime, *plugin.Memory, *plugin.State) (string, error) {
	return p.text, p.err
}

type countingEvaluator struct {
	always bool
	runs   int
}

func (e *countingEvaluator) Spec() plugin.EvaluatorSpec {
	return plugin.EvaluatorSpec{Name: "COUNT", AlwaysRun: e.always}
}

func (e *countingEvaluator) Validate(context.Context, plugin.Runtime, *plugin.Memory) bool {
	return false
}

func (e *countingEvaluator) Handle(context.Context, plugin.Runtime, *plugin.Memory, *plugin.State) error {
	e.runs++
	return nil
}

type recordingAlerter struct {
	events []alerting.Event
}

func (r *recordingAlerter) Notify(_ context.Context, event alerting.Event) error {
	r.events = append(r.events, event)
	return nil
}

func newRuntime(t *testing.T, client llm.Client, opts ...Option) (*Runtime, *memory.FileStore) {
	t.Helper()
	store, err := memory.NewFileStore(t.TempDir(), memory.TableMessages)
	require.NoError(t, err)
	rt := New(uuid.New(), plugin.Character{Name: "Merem", Bio: []string{"a trader"}}, client, store, opts...)
	return rt, store
}

func userMessage(room uuid.UUID, text, action string) plugin.Memory {
	return plugin.Memory{UserID: uuid.New(), RoomID: room, Content: plugin.Content{Text: text, Action: action, Source: "api"}}
}

func TestHandleMessageExplicitActionTag(t *testing.T) {
	rt, store := newRuntime(t, nil)
	news := &stubAction{
		spec:  plugin.ActionSpec{Name: "CURRENT_NEWS", Similes: []string{"NEWS"}},
		valid: true, ok: true, reply: "headlines",
	}
	require.NoError(t, rt.RegisterComponents(plugin.Components{Actions: []plugin.Action{news}}))

	room := uuid.New()
	result, err := rt.HandleMessage(context.Background(), userMessage(room, "what's new?", "news"))
	require.NoError(t, err)
	assert.Equal(t, "CURRENT_NEWS", result.Action)
	assert.True(t, result.Success)
	require.Len(t, result.Responses, 1)
	assert.Equal(t, "headlines", result.Responses[0].Text)

	stored, err := store.GetMemories(context.Background(), plugin.MemoryQuery{RoomID: room})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, rt.AgentID(), stored[0].AgentID)
	assert.NotZero(t, stored[0].CreatedAt)
}

func TestHandleMessageModelSelection(t *testing.T) {
	var requests []plugin.TextRequest
	client := llm.ClientFunc(func(_ context.Context, req plugin.TextRequest) (string, error) {
		requests = append(requests, req)
		return "`GET_TOKEN_PRICE`\n", nil
	})
	rt, _ := newRuntime(t, client)
	price := &stubAction{spec: plugin.ActionSpec{Name: "BIRDEYE_TOKEN", Similes: []string{"GET_TOKEN_PRICE"}}, valid: true, ok: true}
	require.NoError(t, rt.RegisterComponents(plugin.Components{Actions: []plugin.Action{price}}))

	result, err := rt.HandleMessage(context.Background(), userMessage(uuid.New(), "price of SOL?", ""))
	require.NoError(t, err)
	assert.Equal(t, "BIRDEYE_TOKEN", result.Action)
	assert.Equal(t, 1, price.handled)
	require.Len(t, requests, 1)
	assert.Equal(t, plugin.ModelSmall, requests[0].ModelClass)
	assert.Contains(t, requests[0].Context, "- BIRDEYE_TOKEN:")
}

func TestHandleMessageNoneAndModelFailure(t *testing.T) {
	answer := "NONE"
	client := llm.ClientFunc(func(context.Context, plugin.TextRequest) (string, error) {
		if answer == "" {
			return "", errors.New("model down")
		}
		return answer, nil
	})
	rt, _ := newRuntime(t, client)
	act := &stubAction{spec: plugin.ActionSpec{Name: "HELLO_WORLD"}, valid: true, ok: true}
	ev := &countingEvaluator{always: true}
	require.NoError(t, rt.RegisterComponents(plugin.Components{Actions: []plugin.Action{act}, Evaluators: []plugin.Evaluator{ev}}))

	result, err := rt.HandleMessage(context.Background(), userMessage(uuid.New(), "just chatting", ""))
	require.NoError(t, err)
	assert.Equal(t, NoAction, result.Action)
	assert.Empty(t, result.Responses)

	answer = ""
	result, err = rt.HandleMessage(context.Background(), userMessage(uuid.New(), "again", ""))
	require.NoError(t, err)
	assert.Equal(t, NoAction, result.Action)
	assert.Zero(t, act.handled)
	assert.Equal(t, 2, ev.runs)
}

func TestHandleMessageFailuresStayInsideResult(t *testing.T) {
	alerter := &recordingAlerter{}
	rt, _ := newRuntime(t, nil, WithAlertDispatcher(alerter))
	rejected := &stubAction{spec: plugin.ActionSpec{Name: "SOLANA_TOOLS"}, valid: false}
	failing := &stubAction{spec: plugin.ActionSpec{Name: "FAILING"}, valid: true,
		err: xerrors.New(xerrors.CodeWalletUnavailable, "wallet gone")}
	panicking := &stubAction{spec: plugin.ActionSpec{Name: "PANICS"}, valid: true, panics: true}
	require.NoError(t, rt.RegisterComponents(plugin.Components{Actions: []plugin.Action{rejected, failing, panicking}}))

	room := uuid.New()
	result, err := rt.HandleMessage(context.Background(), userMessage(room, "balance", "SOLANA_TOOLS"))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Zero(t, rejected.handled)

	result, err = rt.HandleMessage(context.Background(), userMessage(room, "x", "FAILING"))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "wallet gone")
	require.Len(t, alerter.events, 1)
	assert.Equal(t, xerrors.CodeWalletUnavailable, alerter.events[0].Code)
	assert.Equal(t, room.String(), alerter.events[0].RoomID)

	result, err = rt.HandleMessage(context.Background(), userMessage(room, "x", "PANICS"))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "handler panic")
}

func TestHandleMessageRejectsInvalidInput(t *testing.T) {
	rt, _ := newRuntime(t, nil)
	_, err := rt.HandleMessage(context.Background(), plugin.Memory{UserID: uuid.New(), RoomID: uuid.New()})
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))

	_, err = rt.HandleMessage(context.Background(), plugin.Memory{UserID: uuid.New(), Content: plugin.Content{Text: "hi"}})
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}

func TestRegisterComponentsRejectsDuplicates(t *testing.T) {
	rt, _ := newRuntime(t, nil)
	require.NoError(t, rt.RegisterComponents(plugin.Components{Actions: []plugin.Action{&stubAction{spec: plugin.ActionSpec{Name: "NONE"}}}}))
	err := rt.RegisterComponents(plugin.Components{Actions: []plugin.Action{&stubAction{spec: plugin.ActionSpec{Name: "none"}}}})
	assert.Equal(t, xerrors.CodeConflict, xerrors.CodeOf(err))
	assert.Len(t, rt.Actions(), 1)
}

func TestComposeState(t *testing.T) {
	rt, store := newRuntime(t, nil,
		WithKnowledgeProvider(knowledge.NewStaticProvider([]knowledge.Snippet{{Title: "SOL", Content: "native token", Keywords: []string{"sol"}}}, 1)))
	require.NoError(t, rt.RegisterComponents(plugin.Components{Providers: []plugin.Provider{
		stubProvider{name: "time", text: "It is noon."},
		stubProvider{name: "broken", err: errors.New("nope")},
		stubProvider{name: "empty"},
	}}))

	room := uuid.New()
	user := uuid.New()
	ctx := context.Background()
	require.NoError(t, store.CreateMemory(ctx, plugin.Memory{ID: uuid.New(), UserID: user, RoomID: room, Content: plugin.Content{Text: "gm"}, CreatedAt: 1}))
	require.NoError(t, store.CreateMemory(ctx, plugin.Memory{ID: uuid.New(), UserID: rt.AgentID(), RoomID: room, Content: plugin.Content{Text: "gm!"}, CreatedAt: 2}))

	msg := userMessage(room, "how is sol doing", "")
	state, err := rt.ComposeState(ctx, &msg)
	require.NoError(t, err)
	assert.Equal(t, "Merem", state.AgentName)
	assert.Equal(t, "a trader", state.Bio)
	assert.Equal(t, "It is noon.\n\nRelevant knowledge:\n- SOL: native token", state.Providers)
	assert.Equal(t, "user-"+user.String()[:8]+": gm\nMerem: gm!", state.RecentMessages)
	assert.Len(t, state.Recent, 2)
}

func TestGenerateTextTimeout(t *testing.T) {
	client := llm.ClientFunc(func(ctx context.Context, req plugin.TextRequest) (string, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return "late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	rt, _ := newRuntime(t, client, WithLLMTimeout(10*time.Millisecond))

	_, err := rt.GenerateText(context.Background(), plugin.TextRequest{Context: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, xerrors.CodeTimeout, xerrors.CodeOf(err))

	rt, _ = newRuntime(t, nil)
	_, err = rt.GenerateText(context.Background(), plugin.TextRequest{})
	assert.Equal(t, xerrors.CodeInitializationFailure, xerrors.CodeOf(err))
}

func TestSettingFallsBackToEnv(t *testing.T) {
	t.Setenv("MEREM_TEST_SETTING", "from-env")
	rt, _ := newRuntime(t, nil, WithSettings(map[string]string{"BIRDEYE_API_KEY": "cfg"}))
	assert.Equal(t, "cfg", rt.Setting("BIRDEYE_API_KEY"))
	assert.Equal(t, "from-env", rt.Setting("MEREM_TEST_SETTING"))
}

func TestHandleMessageDeadline(t *testing.T) {
	client := llm.ClientFunc(func(ctx context.Context, req plugin.TextRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	rt, _ := newRuntime(t, client, WithMessageTimeout(20*time.Millisecond))
	require.NoError(t, rt.RegisterComponents(plugin.Components{Actions: []plugin.Action{
		&stubAction{spec: plugin.ActionSpec{Name: "HELLO_WORLD"}, valid: true, ok: true},
	}}))

	start := time.Now()
	result, err := rt.HandleMessage(context.Background(), userMessage(uuid.New(), "hello?", ""))
	require.NoError(t, err)
	assert.Equal(t, NoAction, result.Action)
	assert.Less(t, time.Since(start), 2*time.Second)
}
