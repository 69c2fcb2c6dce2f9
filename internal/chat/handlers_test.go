package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/fdg312/fitswift-hub/internal/ai"
	"github.com/fdg312/fitswift-hub/internal/dispatch"
	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/fdg312/fitswift-hub/internal/storage/memory"
	"github.com/fdg312/fitswift-hub/internal/toolcall"
	"github.com/fdg312/fitswift-hub/internal/userctx"
)

type scriptedProvider struct {
	mu      sync.Mutex
	prompts []string
	resp    ai.GenerateResponse
	err     error

	entered chan struct{}
	release chan struct{}
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(ctx context.Context, req ai.GenerateRequest) (ai.GenerateResponse, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, req.Prompt)
	p.mu.Unlock()

	if p.entered != nil {
		p.entered <- struct{}{}
	}
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return ai.GenerateResponse{}, ctx.Err()
		}
	}
	return p.resp, p.err
}

func (p *scriptedProvider) lastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return ""
	}
	return p.prompts[len(p.prompts)-1]
}

type recordingDispatcher struct {
	mu       sync.Mutex
	sessions []dispatch.Session
	cmds     []toolcall.Command
}

func (d *recordingDispatcher) DispatchAll(ctx context.Context, session dispatch.Session, cmds []toolcall.Command) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cmd := range cmds {
		d.sessions = append(d.sessions, session)
		d.cmds = append(d.cmds, cmd)
	}
}

type chatFixture struct {
	handler    *Handler
	service    *Service
	mem        *memory.MemoryStorage
	dispatcher *recordingDispatcher
	profileA   uuid.UUID
	profileB   uuid.UUID
}

func setupChatHandler(t *testing.T, provider ai.Provider) *chatFixture {
	t.Helper()

	mem := memory.New()
	profileA := uuid.New()
	profileB := uuid.New()

	if err := mem.CreateProfile(context.Background(), &storage.Profile{
		ID:          profileA,
		OwnerUserID: "userA",
		Type:        "owner",
		Name:        "User A",
	}); err != nil {
		t.Fatalf("create profile A failed: %v", err)
	}

	if err := mem.CreateProfile(context.Background(), &storage.Profile{
		ID:          profileB,
		OwnerUserID: "userB",
		Type:        "owner",
		Name:        "User B",
	}); err != nil {
		t.Fatalf("create profile B failed: %v", err)
	}

	dispatcher := &recordingDispatcher{}
	service := NewService(mem.GetChatStorage(), mem, mem, provider, dispatcher, 10, nil)

	return &chatFixture{
		handler:    NewHandler(service),
		service:    service,
		mem:        mem,
		dispatcher: dispatcher,
		profileA:   profileA,
		profileB:   profileB,
	}
}

func (f *chatFixture) send(t *testing.T, userID string, profileID uuid.UUID, content string) *httptest.ResponseRecorder {
	t.Helper()

	data, _ := json.Marshal(SendMessageRequest{ProfileID: profileID, Content: content})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/messages", bytes.NewReader(data))
	req = req.WithContext(userctx.WithUserID(context.Background(), userID))
	w := httptest.NewRecorder()
	f.handler.HandleSendMessage(w, req)
	return w
}

func decodeSend(t *testing.T, w *httptest.ResponseRecorder) SendMessageResponse {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
	}
	var resp SendMessageResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	return resp
}

func TestSendMessageStoresUserAndAssistantMessages(t *testing.T) {
	f := setupChatHandler(t, ai.NewMockProvider())

	resp := decodeSend(t, f.send(t, "userA", f.profileA, "Any advice for today?"))
	if resp.AssistantMessage.Role != RoleAssistant || resp.AssistantMessage.IsUser {
		t.Fatalf("expected assistant message, got %+v", resp.AssistantMessage)
	}
	if !resp.UserMessage.IsUser || resp.UserMessage.Content != "Any advice for today?" {
		t.Fatalf("unexpected user message %+v", resp.UserMessage)
	}

	rows, _, err := f.mem.ListMessages(context.Background(), "userA", f.profileA, 50, nil)
	if err != nil {
		t.Fatalf("list messages failed: %v", err)
	}
	roles := make([]string, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, row.Role)
	}
	if diff := cmp.Diff([]string{RoleAssistant, RoleUser, RoleAssistant}, roles); diff != "" {
		t.Fatalf("stored roles mismatch (-want +got):\n%s", diff)
	}
	if rows[0].Content != WelcomeMessage {
		t.Errorf("expected welcome message first, got %q", rows[0].Content)
	}
}

func TestSendMessage_ChartRequestDispatchesCommand(t *testing.T) {
	f := setupChatHandler(t, ai.NewMockProvider())

	resp := decodeSend(t, f.send(t, "userA", f.profileA, "Show me a chart of my calories this month"))

	title := "Monthly Calories burned"
	description := "Your calories burned over the selected period"
	wantEnvelopes := []toolcall.Envelope{{
		Type:        toolcall.ToolShowChart,
		ChartType:   "bar",
		TimeRange:   "month",
		Metric:      "calories",
		Title:       &title,
		Description: &description,
	}}
	if diff := cmp.Diff(wantEnvelopes, resp.AssistantMessage.ToolResponses); diff != "" {
		t.Fatalf("tool responses mismatch (-want +got):\n%s", diff)
	}

	if len(f.dispatcher.cmds) != 1 {
		t.Fatalf("expected 1 dispatched command, got %d", len(f.dispatcher.cmds))
	}
	want := dispatch.Session{UserID: "userA", ProfileID: f.profileA.String()}
	if f.dispatcher.sessions[0] != want {
		t.Errorf("expected session %+v, got %+v", want, f.dispatcher.sessions[0])
	}
}

func TestSendMessage_TextEmbeddedCallIsSanitized(t *testing.T) {
	provider := &scriptedProvider{resp: ai.GenerateResponse{
		Text: "Here are your rings.\ntool_code {\"name\": \"showActivity\", \"arguments\": {}}",
	}}
	f := setupChatHandler(t, provider)

	resp := decodeSend(t, f.send(t, "userA", f.profileA, "show my rings"))

	if resp.AssistantMessage.Content != "Here are your rings." {
		t.Errorf("expected sanitized text, got %q", resp.AssistantMessage.Content)
	}
	if diff := cmp.Diff([]toolcall.Envelope{{Type: toolcall.ToolShowActivity}}, resp.AssistantMessage.ToolResponses); diff != "" {
		t.Errorf("tool responses mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]toolcall.Command{toolcall.ShowActivity{}}, f.dispatcher.cmds); diff != "" {
		t.Errorf("dispatched commands mismatch (-want +got):\n%s", diff)
	}
}

func TestSendMessage_ProseWithoutMarkupHasNoCommands(t *testing.T) {
	provider := &scriptedProvider{resp: ai.GenerateResponse{
		Text: "I would show you a chart of your steps, but let's talk about your goals first.",
	}}
	f := setupChatHandler(t, provider)

	resp := decodeSend(t, f.send(t, "userA", f.profileA, "chart please"))

	if len(resp.AssistantMessage.ToolResponses) != 0 {
		t.Fatalf("expected no tool responses, got %+v", resp.AssistantMessage.ToolResponses)
	}
	if len(f.dispatcher.cmds) != 0 {
		t.Fatalf("expected nothing dispatched, got %d", len(f.dispatcher.cmds))
	}
}

func TestSendMessage_GenerationFailure(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("upstream unavailable")}
	f := setupChatHandler(t, provider)

	resp := decodeSend(t, f.send(t, "userA", f.profileA, "hello"))

	if resp.AssistantMessage.Content != GenerationFailedMessage {
		t.Fatalf("expected failure message, got %q", resp.AssistantMessage.Content)
	}
	if len(resp.AssistantMessage.ToolResponses) != 0 {
		t.Errorf("expected no tool responses on failure")
	}
	if len(provider.prompts) != 1 {
		t.Errorf("expected a single generation attempt, got %d", len(provider.prompts))
	}

	rows, _, _ := f.mem.ListMessages(context.Background(), "userA", f.profileA, 50, nil)
	if len(rows) != 3 {
		t.Fatalf("expected welcome, user and failure messages, got %d", len(rows))
	}
}

func TestSendMessage_PromptCarriesContextAndHistory(t *testing.T) {
	provider := &scriptedProvider{resp: ai.GenerateResponse{Text: "Keep going!"}}
	f := setupChatHandler(t, provider)

	decodeSend(t, f.send(t, "userA", f.profileA, "first question"))
	decodeSend(t, f.send(t, "userA", f.profileA, "second question"))

	prompt := provider.lastPrompt()
	wantHistory := "Conversation history: User: first question\nAssistant: Keep going!\nUser's latest message: second question"
	if !strings.Contains(prompt, wantHistory) {
		t.Errorf("prompt is missing history section:\n%s", prompt)
	}
	if strings.Contains(prompt, WelcomeMessage) {
		t.Errorf("prompt must not contain the welcome message:\n%s", prompt)
	}
	// Без синхронизированных данных все метрики недоступны.
	if !strings.Contains(prompt, "User's fitness context: Steps today: Not available") {
		t.Errorf("prompt is missing fitness context:\n%s", prompt)
	}
}

func TestSendMessage_RejectsConcurrentRequest(t *testing.T) {
	provider := &scriptedProvider{
		resp:    ai.GenerateResponse{Text: "done"},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	f := setupChatHandler(t, provider)

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- f.send(t, "userA", f.profileA, "first")
	}()
	<-provider.entered

	second := f.send(t, "userA", f.profileA, "second")
	if second.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d body=%s", second.Code, second.Body.String())
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(second.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error failed: %v", err)
	}
	if errResp.Error.Code != "request_in_flight" {
		t.Errorf("expected request_in_flight, got %q", errResp.Error.Code)
	}

	close(provider.release)
	decodeSend(t, <-first)

	// После завершения первый запрос снимает блокировку.
	provider.entered = nil
	decodeSend(t, f.send(t, "userA", f.profileA, "third"))
}

func TestOwnershipForbiddenProfileReturns404(t *testing.T) {
	f := setupChatHandler(t, ai.NewMockProvider())

	w := f.send(t, "userB", f.profileA, "Trying someone else's profile")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestSendMessage_InvalidRequest(t *testing.T) {
	f := setupChatHandler(t, ai.NewMockProvider())

	w := f.send(t, "userA", f.profileA, "   ")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestListMessagesSeedsWelcomeOnce(t *testing.T) {
	f := setupChatHandler(t, ai.NewMockProvider())

	list := func() ListMessagesResponse {
		req := httptest.NewRequest(http.MethodGet, "/v1/chat/messages?profile_id="+f.profileA.String(), nil)
		req = req.WithContext(userctx.WithUserID(context.Background(), "userA"))
		w := httptest.NewRecorder()
		f.handler.HandleListMessages(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
		}
		var resp ListMessagesResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode list response failed: %v", err)
		}
		return resp
	}

	for i := 0; i < 2; i++ {
		resp := list()
		if len(resp.Messages) != 1 {
			t.Fatalf("call %d: expected 1 message, got %d", i, len(resp.Messages))
		}
		if resp.Messages[0].Content != WelcomeMessage || resp.Messages[0].IsUser {
			t.Fatalf("call %d: expected welcome message, got %+v", i, resp.Messages[0])
		}
	}
}

// slowChatStorage растягивает чтение переписки, чтобы параллельные первые загрузки пересекались.
type slowChatStorage struct {
	*memory.ChatMemoryStorage
}

func (s slowChatStorage) ListMessages(ctx context.Context, ownerUserID string, profileID uuid.UUID, limit int, before *time.Time) ([]storage.ChatMessage, *time.Time, error) {
	time.Sleep(20 * time.Millisecond)
	return s.ChatMemoryStorage.ListMessages(ctx, ownerUserID, profileID, limit, before)
}

func TestListMessagesConcurrentFirstLoadSeedsWelcomeOnce(t *testing.T) {
	f := setupChatHandler(t, ai.NewMockProvider())
	chatStore := slowChatStorage{memory.NewChatMemoryStorage()}
	service := NewService(chatStore, f.mem, f.mem, ai.NewMockProvider(), &recordingDispatcher{}, 10, nil)

	ctx := userctx.WithUserID(context.Background(), "userA")
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.ListMessages(ctx, f.profileA, 50, nil); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("list messages failed: %v", err)
	}

	rows, _, err := chatStore.ChatMemoryStorage.ListMessages(context.Background(), "userA", f.profileA, 50, nil)
	if err != nil {
		t.Fatalf("list stored messages failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Content != WelcomeMessage {
		t.Fatalf("expected exactly one welcome message, got %d: %+v", len(rows), rows)
	}
}

func TestListMessagesWithoutAuthUsesProfileOwner(t *testing.T) {
	f := setupChatHandler(t, ai.NewMockProvider())

	data, _ := json.Marshal(SendMessageRequest{ProfileID: f.profileA, Content: "show my rings"})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/messages", bytes.NewReader(data))
	w := httptest.NewRecorder()
	f.handler.HandleSendMessage(w, req)
	decodeSend(t, w)

	rows, _, _ := f.mem.ListMessages(context.Background(), "userA", f.profileA, 50, nil)
	if len(rows) != 3 {
		t.Fatalf("expected transcript stored under profile owner, got %d messages", len(rows))
	}
}

func TestHandleTip(t *testing.T) {
	f := setupChatHandler(t, ai.NewMockProvider())

	req := httptest.NewRequest(http.MethodGet, "/v1/chat/tip", nil)
	w := httptest.NewRecorder()
	f.handler.HandleTip(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp TipResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode tip failed: %v", err)
	}
	if !slices.Contains(Tips(), resp.Tip) {
		t.Fatalf("unexpected tip %q", resp.Tip)
	}
}
