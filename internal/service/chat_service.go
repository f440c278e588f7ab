package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"law-of-the-land-be/internal/constant"
	"law-of-the-land-be/internal/dto"
	"law-of-the-land-be/internal/entity"
	"law-of-the-land-be/internal/pkg/logger"
	"law-of-the-land-be/internal/repository/memory"
	"law-of-the-land-be/internal/repository/specification"
	"law-of-the-land-be/internal/repository/unitofwork"
	"law-of-the-land-be/pkg/llm"
	"law-of-the-land-be/pkg/rag"
	"law-of-the-land-be/pkg/store"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found or access denied")
	ErrTurnInProgress  = errors.New("a turn is already in progress for this session")
)

// TurnStream is the streaming result of a turn. Fragments arrive in emission
// order and end with a terminal Done or Err chunk. The assistant turn is
// finalized internally once the stream ends, even if the caller goes away.
type TurnStream struct {
	ChatSessionId uuid.UUID
	Title         string
	Fragments     <-chan llm.StreamChunk
}

type IChatService interface {
	SubmitTurn(ctx context.Context, userId uuid.UUID, request *dto.AskRequest) (*dto.AskResponse, error)
	SubmitTurnStream(ctx context.Context, userId uuid.UUID, request *dto.AskRequest) (*TurnStream, error)
	GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllSessionsResponse, error)
	GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error)
	DeleteSession(ctx context.Context, userId uuid.UUID, request *dto.DeleteSessionRequest) error
}

type chatService struct {
	uowFactory       unitofwork.RepositoryFactory
	pipeline         *rag.Pipeline
	turnRepo         *memory.TurnRepository
	publisherService IPublisherService
	log              logger.ILogger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	pipeline *rag.Pipeline,
	turnRepo *memory.TurnRepository,
	publisherService IPublisherService,
	log logger.ILogger,
) IChatService {
	return &chatService{
		uowFactory:       uowFactory,
		pipeline:         pipeline,
		turnRepo:         turnRepo,
		publisherService: publisherService,
		log:              log,
	}
}

// MakeSessionTitle derives a session title from its first query.
func MakeSessionTitle(query string) string {
	runes := []rune(query)
	if len(runes) <= constant.SessionTitleMaxChars {
		return query
	}
	return string(runes[:constant.SessionTitleMaxChars]) + constant.SessionTitleSuffix
}

// SubmitTurn runs one complete conversation turn: persist the user message
// with a placeholder reply, run the pipeline, and finalize the placeholder
// with the answer or the generic error message.
func (cs *chatService) SubmitTurn(ctx context.Context, userId uuid.UUID, request *dto.AskRequest) (*dto.AskResponse, error) {
	turn, err := cs.beginTurn(ctx, userId, request)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now()
	contextText, meta := cs.pipeline.BuildContext(ctx, request.Query)
	answer, genErr := cs.pipeline.Answer(ctx, request.Query, contextText, turn.history)

	reply, err := cs.finalizeTurn(ctx, turn, answer, genErr, meta, startedAt)
	if err != nil {
		return nil, err
	}

	return &dto.AskResponse{
		ChatSessionId: turn.session.Id,
		Title:         turn.session.Title,
		Sent: &dto.AskResponseChat{
			Id:        turn.userMessage.Id,
			Role:      turn.userMessage.Role,
			Content:   turn.userMessage.Content,
			CreatedAt: turn.userMessage.CreatedAt,
		},
		Reply: &dto.AskResponseChat{
			Id:        reply.Id,
			Role:      reply.Role,
			Content:   reply.Content,
			CreatedAt: reply.CreatedAt,
		},
		Mode: meta.Mode,
	}, nil
}

// SubmitTurnStream is the streaming variant. Turn accounting matches
// SubmitTurn exactly: the persisted assistant message is the concatenation
// of every emitted fragment, or the generic error message on failure.
func (cs *chatService) SubmitTurnStream(ctx context.Context, userId uuid.UUID, request *dto.AskRequest) (*TurnStream, error) {
	turn, err := cs.beginTurn(ctx, userId, request)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now()
	contextText, meta := cs.pipeline.BuildContext(ctx, request.Query)
	stream, genErr := cs.pipeline.AnswerStream(ctx, request.Query, contextText, turn.history)
	if genErr != nil {
		if _, ferr := cs.finalizeTurn(ctx, turn, "", genErr, meta, startedAt); ferr != nil {
			cs.log.Error("chat.service", "failed to finalize failed turn", map[string]interface{}{
				"error":      ferr.Error(),
				"session_id": turn.session.Id,
			})
		}
		return nil, genErr
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)

		var accumulated []byte
		var streamErr error

		for chunk := range stream {
			if chunk.Err != nil {
				streamErr = chunk.Err
			} else if chunk.Delta != "" {
				accumulated = append(accumulated, chunk.Delta...)
			}
			out <- chunk
			if chunk.Err != nil || chunk.Done {
				break
			}
		}

		// Finalize with a fresh context so a dropped client still leaves
		// the session in a consistent state.
		finalizeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := cs.finalizeTurn(finalizeCtx, turn, string(accumulated), streamErr, meta, startedAt); err != nil {
			cs.log.Error("chat.service", "failed to finalize streamed turn", map[string]interface{}{
				"error":      err.Error(),
				"session_id": turn.session.Id,
			})
		}
	}()

	return &TurnStream{
		ChatSessionId: turn.session.Id,
		Title:         turn.session.Title,
		Fragments:     out,
	}, nil
}

func (cs *chatService) GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllSessionsResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	chatSessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.OwnedBy{UserID: userId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.GetAllSessionsResponse, 0, len(chatSessions))
	for _, s := range chatSessions {
		response = append(response, &dto.GetAllSessionsResponse{
			Id:           s.Id,
			Title:        s.Title,
			LastMessage:  s.LastMessage,
			MessageCount: s.MessageCount,
			CreatedAt:    s.CreatedAt,
			UpdatedAt:    s.UpdatedAt,
		})
	}

	return response, nil
}

func (cs *chatService) GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	sess, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.OwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	chatMessages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	resp := make([]*dto.GetChatHistoryResponse, 0, len(chatMessages))
	for _, msg := range chatMessages {
		resp = append(resp, &dto.GetChatHistoryResponse{
			Id:        msg.Id,
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}

	return resp, nil
}

func (cs *chatService) DeleteSession(ctx context.Context, userId uuid.UUID, request *dto.DeleteSessionRequest) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	sess, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: request.ChatSessionId},
		specification.OwnedBy{UserID: userId},
	)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().DeleteByChatSessionId(ctx, sess.Id); err != nil {
		return err
	}
	if err := uow.ChatSessionRepository().Delete(ctx, sess.Id); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	cs.turnRepo.Delete(sess.Id)
	return nil
}

// pendingTurn holds everything needed to finalize a started turn.
type pendingTurn struct {
	userId      uuid.UUID
	session     *entity.ChatSession
	userMessage *entity.ChatMessage
	placeholder *entity.ChatMessage
	history     []llm.Message
}

// beginTurn resolves or creates the session, claims the in-flight slot,
// loads the capped history, and persists the user message together with a
// placeholder assistant message. Session creation and the message pair share
// one transaction so a failed start leaves no orphaned session behind.
func (cs *chatService) beginTurn(ctx context.Context, userId uuid.UUID, request *dto.AskRequest) (*pendingTurn, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	now := time.Now()

	var session *entity.ChatSession
	isNewSession := request.ChatSessionId == nil
	if isNewSession {
		session = &entity.ChatSession{
			Id:        uuid.New(),
			UserId:    userId,
			Title:     MakeSessionTitle(request.Query),
			CreatedAt: now,
		}
	} else {
		found, err := uow.ChatSessionRepository().FindOne(ctx,
			specification.ByID{ID: *request.ChatSessionId},
			specification.OwnedBy{UserID: userId},
		)
		if err != nil {
			return nil, err
		}
		if found == nil {
			return nil, ErrSessionNotFound
		}
		session = found
	}

	claim := &store.TurnState{
		SessionID: session.Id,
		UserID:    userId,
		Query:     request.Query,
		StartedAt: now,
	}
	if !cs.turnRepo.Claim(claim) {
		return nil, ErrTurnInProgress
	}

	turn, err := cs.persistTurnStart(ctx, uow, session, isNewSession, userId, request, now)
	if err != nil {
		cs.turnRepo.Delete(session.Id)
		return nil, err
	}

	claim.PendingMessageID = turn.placeholder.Id
	cs.turnRepo.Save(claim)

	return turn, nil
}

func (cs *chatService) persistTurnStart(
	ctx context.Context,
	uow unitofwork.UnitOfWork,
	session *entity.ChatSession,
	isNewSession bool,
	userId uuid.UUID,
	request *dto.AskRequest,
	now time.Time,
) (*pendingTurn, error) {
	history, err := cs.loadHistory(ctx, uow, session.Id)
	if err != nil {
		return nil, err
	}

	userMessage := &entity.ChatMessage{
		Id:            uuid.New(),
		Role:          constant.ChatMessageRoleUser,
		Content:       request.Query,
		ChatSessionId: session.Id,
		CreatedAt:     now,
	}
	placeholder := &entity.ChatMessage{
		Id:            uuid.New(),
		Role:          constant.ChatMessageRoleAssistant,
		Content:       constant.AssistantPlaceholderMessage,
		ChatSessionId: session.Id,
		CreatedAt:     now.Add(1 * time.Millisecond),
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if isNewSession {
		if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
			return nil, err
		}
	}
	if err := uow.ChatMessageRepository().Create(ctx, userMessage); err != nil {
		return nil, err
	}
	if err := uow.ChatMessageRepository().Create(ctx, placeholder); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	return &pendingTurn{
		userId:      userId,
		session:     session,
		userMessage: userMessage,
		placeholder: placeholder,
		history:     history,
	}, nil
}

// loadHistory returns the most recent completed turns in chronological
// order, capped to the model's history window. Placeholder replies are
// skipped so a crashed turn never pollutes the context.
func (cs *chatService) loadHistory(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID) ([]llm.Message, error) {
	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: constant.MaxHistoryMessages},
	)
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role == constant.ChatMessageRoleAssistant && msg.Content == constant.AssistantPlaceholderMessage {
			continue
		}
		history = append(history, llm.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return history, nil
}

// finalizeTurn replaces the placeholder content with the answer (or the
// generic error message), updates the session summary fields, publishes the
// analytics event, and clears the in-flight state. The same assistant row
// is updated on both paths so each user turn has exactly one reply.
func (cs *chatService) finalizeTurn(
	ctx context.Context,
	turn *pendingTurn,
	answer string,
	genErr error,
	meta rag.Meta,
	startedAt time.Time,
) (*entity.ChatMessage, error) {
	failed := genErr != nil
	content := answer
	if failed {
		cs.log.Error("chat.service", "turn generation failed", map[string]interface{}{
			"error":      genErr.Error(),
			"session_id": turn.session.Id,
		})
		content = constant.GenericErrorMessage
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	reply := turn.placeholder
	reply.Content = content
	reply.Meta = map[string]interface{}{
		"mode": meta.Mode,
	}
	if meta.SearchQuery != "" {
		reply.Meta["search_query"] = meta.SearchQuery
	}
	if err := uow.ChatMessageRepository().Update(ctx, reply); err != nil {
		return nil, err
	}

	now := time.Now()
	turn.session.LastMessage = content
	turn.session.MessageCount += 2
	turn.session.UpdatedAt = &now
	if err := uow.ChatSessionRepository().Update(ctx, turn.session); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	cs.turnRepo.Delete(turn.session.Id)
	cs.publishTurnCompleted(ctx, turn, meta, startedAt, failed)

	return reply, nil
}

func (cs *chatService) publishTurnCompleted(ctx context.Context, turn *pendingTurn, meta rag.Meta, startedAt time.Time, failed bool) {
	payload := dto.TurnCompletedMessage{
		ChatSessionId: turn.session.Id,
		UserId:        turn.userId,
		Mode:          meta.Mode,
		SearchQuery:   meta.SearchQuery,
		DurationMs:    time.Since(startedAt).Milliseconds(),
		Failed:        failed,
	}
	msgJson, err := json.Marshal(payload)
	if err != nil {
		cs.log.Warn("chat.service", "failed to marshal turn event", map[string]interface{}{"error": err.Error()})
		return
	}
	// Analytics is auxiliary, the turn already succeeded
	if err := cs.publisherService.Publish(ctx, msgJson); err != nil {
		cs.log.Warn("chat.service", "failed to publish turn event", map[string]interface{}{"error": err.Error()})
	}
}
