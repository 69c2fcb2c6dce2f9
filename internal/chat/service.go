package chat

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/fdg312/fitswift-hub/internal/ai"
	"github.com/fdg312/fitswift-hub/internal/dispatch"
	"github.com/fdg312/fitswift-hub/internal/fitctx"
	"github.com/fdg312/fitswift-hub/internal/healthdata"
	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/fdg312/fitswift-hub/internal/toolcall"
	"github.com/fdg312/fitswift-hub/internal/userctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrProfileNotFound = errors.New("profile not found")
	// ErrRequestInFlight — в этой переписке уже идёт запрос к ассистенту.
	ErrRequestInFlight = errors.New("assistant request already in flight")
)

const (
	// GenerationFailedMessage сохраняется вместо ответа, если провайдер упал.
	GenerationFailedMessage = "Something went wrong. Please try again."
	emptyReplyMessage       = "I couldn't come up with a response. Please try rephrasing your question."

	DefaultHistoryWindow = 10
)

// commandDispatcher исполняет команды ассистента (dispatch.Dispatcher).
type commandDispatcher interface {
	DispatchAll(ctx context.Context, session dispatch.Session, cmds []toolcall.Command)
}

type Service struct {
	chatStorage     storage.ChatStorage
	profilesStorage storage.Storage
	metricsStorage  healthdata.MetricsReader
	aggregator      *fitctx.Aggregator
	provider        ai.Provider
	dispatcher      commandDispatcher
	historyWindow   int
	log             *zap.Logger
	now             func() time.Time
	intn            func(n int) int

	mu       sync.Mutex
	inFlight map[dispatch.Session]struct{}
}

func NewService(
	chatStorage storage.ChatStorage,
	profilesStorage storage.Storage,
	metricsStorage healthdata.MetricsReader,
	provider ai.Provider,
	dispatcher commandDispatcher,
	historyWindow int,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &Service{
		chatStorage:     chatStorage,
		profilesStorage: profilesStorage,
		metricsStorage:  metricsStorage,
		aggregator:      fitctx.NewAggregator(log),
		provider:        provider,
		dispatcher:      dispatcher,
		historyWindow:   historyWindow,
		log:             log,
		now:             time.Now,
		intn:            rand.IntN,
		inFlight:        make(map[dispatch.Session]struct{}),
	}
}

func (s *Service) ListMessages(ctx context.Context, profileID uuid.UUID, limit int, before *time.Time) (*ListMessagesResponse, error) {
	session, err := s.resolveSession(ctx, profileID)
	if err != nil {
		return nil, err
	}

	if before == nil {
		if err := s.ensureWelcome(ctx, session, profileID); err != nil {
			return nil, err
		}
	}

	limit = normalizeLimit(limit)
	rows, nextCursorTime, err := s.chatStorage.ListMessages(ctx, session.UserID, profileID, limit, before)
	if err != nil {
		return nil, err
	}

	messages := make([]ChatMessageDTO, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, messageToDTO(row))
	}

	var nextCursor *string
	if nextCursorTime != nil {
		cursor := nextCursorTime.UTC().Format(time.RFC3339Nano)
		nextCursor = &cursor
	}

	return &ListMessagesResponse{
		Messages:   messages,
		NextCursor: nextCursor,
	}, nil
}

// SendMessage сохраняет сообщение пользователя и проводит его через ассистента:
// контекст здоровья, промпт, генерация, разбор команд, очистка текста,
// сохранение ответа и рассылка команд в приложение.
func (s *Service) SendMessage(ctx context.Context, req SendMessageRequest) (*SendMessageResponse, error) {
	content := strings.TrimSpace(req.Content)
	if req.ProfileID == uuid.Nil || content == "" {
		return nil, ErrInvalidRequest
	}

	session, err := s.resolveSession(ctx, req.ProfileID)
	if err != nil {
		return nil, err
	}

	if !s.acquire(session) {
		return nil, ErrRequestInFlight
	}
	defer s.release(session)

	if err := s.ensureWelcome(ctx, session, req.ProfileID); err != nil {
		return nil, err
	}

	// История читается до записи нового сообщения: оно уходит в промпт отдельной секцией.
	historyRows, _, err := s.chatStorage.ListMessages(ctx, session.UserID, req.ProfileID, s.historyWindow+1, nil)
	if err != nil {
		return nil, err
	}
	history := FormatHistory(historyRows, s.historyWindow)

	userMessage, err := s.chatStorage.InsertMessage(ctx, session.UserID, req.ProfileID, RoleUser, content, nil)
	if err != nil {
		return nil, err
	}

	source := healthdata.NewStorageSource(s.metricsStorage, req.ProfileID, loadLocation(req.TimeZone)).WithClock(s.now)
	fitnessContext := s.aggregator.Aggregate(ctx, source)
	prompt := BuildPrompt(content, fitnessContext, history)

	reply, err := s.provider.Generate(ctx, ai.GenerateRequest{Prompt: prompt})
	if err != nil {
		s.log.Error("assistant generation failed",
			zap.String("provider", s.provider.Name()),
			zap.Stringer("profile_id", req.ProfileID),
			zap.Error(err),
		)
		failed, insertErr := s.chatStorage.InsertMessage(ctx, session.UserID, req.ProfileID, RoleAssistant, GenerationFailedMessage, nil)
		if insertErr != nil {
			return nil, insertErr
		}
		return &SendMessageResponse{
			UserMessage:      messageToDTO(userMessage),
			AssistantMessage: messageToDTO(failed),
		}, nil
	}

	cmds := toolcall.Extract(reply.Text, reply.FunctionCalls)
	text := toolcall.Sanitize(reply.Text)
	if text == "" && len(cmds) == 0 {
		text = emptyReplyMessage
	}

	encoded, err := toolcall.MarshalCommands(cmds)
	if err != nil {
		return nil, err
	}

	assistantMessage, err := s.chatStorage.InsertMessage(ctx, session.UserID, req.ProfileID, RoleAssistant, text, encoded)
	if err != nil {
		return nil, err
	}

	if s.dispatcher != nil && len(cmds) > 0 {
		s.dispatcher.DispatchAll(ctx, session, cmds)
	}

	s.log.Info("assistant replied",
		zap.String("provider", s.provider.Name()),
		zap.Stringer("profile_id", req.ProfileID),
		zap.Int("tool_commands", len(cmds)),
		zap.Int("structured_calls", len(reply.FunctionCalls)),
	)

	return &SendMessageResponse{
		UserMessage:      messageToDTO(userMessage),
		AssistantMessage: messageToDTO(assistantMessage),
	}, nil
}

// RandomTip возвращает случайный совет из списка.
func (s *Service) RandomTip() TipResponse {
	return TipResponse{Tip: fitnessTips[s.intn(len(fitnessTips))]}
}

func (s *Service) acquire(session dispatch.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[session]; busy {
		return false
	}
	s.inFlight[session] = struct{}{}
	return true
}

func (s *Service) release(session dispatch.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, session)
}

// ensureWelcome кладёт приветствие в пустую переписку.
func (s *Service) ensureWelcome(ctx context.Context, session dispatch.Session, profileID uuid.UUID) error {
	_, err := s.chatStorage.InsertMessageIfEmpty(ctx, session.UserID, profileID, RoleAssistant, WelcomeMessage)
	return err
}

// resolveSession проверяет владельца профиля. Без авторизации переписка
// принадлежит владельцу профиля.
func (s *Service) resolveSession(ctx context.Context, profileID uuid.UUID) (dispatch.Session, error) {
	profile, err := s.profilesStorage.GetProfile(ctx, profileID)
	if err != nil {
		return dispatch.Session{}, ErrProfileNotFound
	}

	userID := userIDFromContext(ctx)
	if userID != "" && profile.OwnerUserID != userID {
		return dispatch.Session{}, ErrProfileNotFound
	}
	if userID == "" {
		userID = profile.OwnerUserID
	}

	return dispatch.Session{UserID: userID, ProfileID: profileID.String()}, nil
}

func userIDFromContext(ctx context.Context) string {
	userID, ok := userctx.GetUserID(ctx)
	if !ok {
		return ""
	}
	return strings.TrimSpace(userID)
}

func loadLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}
