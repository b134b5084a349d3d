package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Merem-Agent/internal/agent"
	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/internal/web3"
	"Merem-Agent/pkg/plugin"
)

type fakeAgent struct {
	got     plugin.Memory
	err     error
	history []plugin.Memory
}

func (f *fakeAgent) HandleMessage(_ context.Context, msg plugin.Memory) (*agent.Result, error) {
	f.got = msg
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Result{
		MessageID: uuid.New(),
		RoomID:    msg.RoomID,
		Action:    "HELLO_WORLD",
		Success:   true,
		Responses: []plugin.Content{{Text: "hello world"}},
	}, nil
}

func (f *fakeAgent) ListMemories(_ context.Context, roomID uuid.UUID, limit int) ([]plugin.Memory, error) {
	if limit < len(f.history) {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func (f *fakeAgent) Actions() []plugin.ActionSpec {
	return []plugin.ActionSpec{{Name: "HELLO_WORLD", Similes: []string{"HELLO"}}}
}

type fakeInbox struct{ msgs []plugin.Memory }

func (f *fakeInbox) Enqueue(_ context.Context, msg plugin.Memory) (string, error) {
	f.msgs = append(f.msgs, msg)
	return "env-1", nil
}

type fakeChains struct{}

func (fakeChains) Snapshots(context.Context) ([]web3.ChainSnapshot, map[string]error) {
	return []web3.ChainSnapshot{{Name: "solana-mainnet", Type: web3.TypeSolana, Height: 42, Symbol: "SOL"}},
		map[string]error{"base": errors.New("dial failed")}
}

func body(t *testing.T, v any) *strings.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return strings.NewReader(string(data))
}

func TestCreateMessage(t *testing.T) {
	ag := &fakeAgent{}
	srv := NewServer(":0", ag).Handler()

	room := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", body(t, MessageRequest{
		UserID: uuid.NewString(), RoomID: room.String(), Text: "hello",
	}))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result agent.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "HELLO_WORLD", result.Action)
	require.Len(t, result.Responses, 1)
	assert.Equal(t, room, ag.got.RoomID)
	assert.Equal(t, "api", ag.got.Content.Source)
}

func TestCreateMessageValidation(t *testing.T) {
	srv := NewServer(":0", &fakeAgent{}).Handler()

	cases := []struct {
		name string
		body string
	}{
		{"malformed", "{"},
		{"missing room", `{"user_id":"` + uuid.NewString() + `","text":"hi"}`},
		{"bad uuid", `{"user_id":"nope","room_id":"` + uuid.NewString() + `","text":"hi"}`},
		{"no text or action", `{"user_id":"` + uuid.NewString() + `","room_id":"` + uuid.NewString() + `"}`},
		{"unknown field", `{"user_id":"` + uuid.NewString() + `","room_id":"` + uuid.NewString() + `","text":"hi","extra":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(tc.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateMessageMapsErrorCodes(t *testing.T) {
	ag := &fakeAgent{err: xerrors.New(xerrors.CodeStorageFailure, "disk full")}
	srv := NewServer(":0", ag).Handler()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/messages", body(t, MessageRequest{
		UserID: uuid.NewString(), RoomID: uuid.NewString(), Action: "HELLO",
	})))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(xerrors.CodeStorageFailure), resp.Code)
}

func TestEnqueueMessage(t *testing.T) {
	inbox := &fakeInbox{}
	srv := NewServer(":0", &fakeAgent{}, WithInbox(inbox)).Handler()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/messages/async", body(t, MessageRequest{
		UserID: uuid.NewString(), RoomID: uuid.NewString(), Text: "news please", Source: "discord",
	})))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"id":"env-1"}`, rec.Body.String())
	require.Len(t, inbox.msgs, 1)
	assert.Equal(t, "discord", inbox.msgs[0].Content.Source)

	rec = httptest.NewRecorder()
	NewServer(":0", &fakeAgent{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/messages/async", strings.NewReader("{}")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListMemoriesActionsAndChains(t *testing.T) {
	room := uuid.New()
	ag := &fakeAgent{history: []plugin.Memory{
		{ID: uuid.New(), RoomID: room, Content: plugin.Content{Text: "b"}},
		{ID: uuid.New(), RoomID: room, Content: plugin.Content{Text: "a"}},
	}}
	srv := NewServer(":0", ag, WithChains(fakeChains{})).Handler()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rooms/"+room.String()+"/memories?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var items []plugin.Memory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].Content.Text)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rooms/not-a-uuid/memories", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/actions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "HELLO_WORLD")

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/chains", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var chains ChainsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chains))
	require.Len(t, chains.Chains, 1)
	assert.Equal(t, uint64(42), chains.Chains[0].Height)
	assert.Equal(t, "dial failed", chains.Errors["base"])
}

func TestBearerTokenAndHealth(t *testing.T) {
	srv := NewServer(":0", &fakeAgent{}, WithAPIToken("s3cret")).Handler()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/actions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/actions", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "merem_http_requests_total")
}
