package app

import (
	"context"
	"log"
	"strings"
	"time"

	"converge/internal/ai"
	"converge/internal/model"
)

const (
	// NoContextAnswer is returned when retrieval finds nothing relevant.
	// The orchestrator must still respond in that case and must never
	// fabricate sourced claims.
	NoContextAnswer = "I could not find relevant information in your documents to answer that."

	// RetryAnswer replaces raw transport errors from the delegated
	// conversation service.
	RetryAnswer = "There was an issue sending/answering your query, please try again."
)

const systemPrompt = `You are a productivity assistant with two capabilities:

Capability 1) Searching documents/files and answering questions.
- You can respond with answers only when a relevant question is asked,
and only when you have access to the specific documents or files.
- If the question is not relevant, or you do not have such access,
you must only respond with your capabilities.
- Else, make sure to be accurate, use prose and bullets where appropriate,
and cite the source file name of every fact you state.

Capability 2) Referencing speech writing guidelines to write speeches.
- You must reference relevant speech writing documents/files and cite them.

You are to only use one capability at any one time.
You are allowed to respond to follow up questions.`

// TextGenerator produces an answer from a chat transcript. Implemented by
// ai.Client.
type TextGenerator interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
	StreamComplete(ctx context.Context, messages []ai.ChatMessage, onChunk func(string) error) (string, error)
}

// ConversationAPI is the delegated conversation backend used when local
// retrieval is bypassed.
type ConversationAPI interface {
	CreateConversation(ctx context.Context, email string) (string, error)
	CreateMessage(ctx context.Context, conversationID, content string) (string, error)
}

type SessionStore interface {
	Create(session *model.Session) error
	ListByUserID(userID uint) ([]model.Session, error)
	GetByIDAndUserID(sessionID, userID uint) (*model.Session, error)
	DeleteByIDAndUserID(sessionID, userID uint) error
	SetConversationID(sessionID uint, conversationID string) error
}

type MessageStore interface {
	ListBySessionID(sessionID uint, limit int) ([]model.Message, error)
	DeleteBySessionID(sessionID uint) error
}

type AsyncMessagePublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, sessionID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, sessionID uint) error
	MarkDirty(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}

// ChatService orchestrates conversations. It runs in exactly one of two
// modes per deployment: local (retrieve context, prompt the generative
// model) or delegated (forward everything to the Converge conversation API).
type ChatService struct {
	sessionRepo  SessionStore
	messageRepo  MessageStore
	publisher    AsyncMessagePublisher
	historyCache HistoryCache
	generator    TextGenerator
	retriever    *Retriever
	convergeAPI  ConversationAPI // non-nil only in delegated mode
	historyTurns int
}

func NewChatService(
	sessionRepo SessionStore,
	messageRepo MessageStore,
	publisher AsyncMessagePublisher,
	historyCache HistoryCache,
	generator TextGenerator,
	retriever *Retriever,
	convergeAPI ConversationAPI,
	historyTurns int,
) *ChatService {
	if historyTurns <= 0 {
		historyTurns = 5
	}
	return &ChatService{
		sessionRepo:  sessionRepo,
		messageRepo:  messageRepo,
		publisher:    publisher,
		historyCache: historyCache,
		generator:    generator,
		retriever:    retriever,
		convergeAPI:  convergeAPI,
		historyTurns: historyTurns,
	}
}

type CreateSessionInput struct {
	UserID uint
	Title  string
}

func (s *ChatService) CreateSession(input CreateSessionInput) (*model.Session, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "New Chat"
	}

	session := &model.Session{
		UserID: input.UserID,
		Title:  title,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(userID uint) ([]model.Session, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.sessionRepo.ListByUserID(userID)
}

func (s *ChatService) DeleteSession(ctx context.Context, userID, sessionID uint) error {
	if userID == 0 || sessionID == 0 {
		return ErrInvalidInput
	}
	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if err := s.messageRepo.DeleteBySessionID(sessionID); err != nil {
		return err
	}
	if err := s.sessionRepo.DeleteByIDAndUserID(sessionID, userID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, sessionID)
	}
	return nil
}

type SendMessageInput struct {
	UserID    uint
	Email     string
	SessionID uint
	Content   string
}

type SendMessageResult struct {
	Messages []model.Message        `json:"messages"`
	Sources  []model.RetrievedChunk `json:"sources,omitempty"`
}

func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	session, content, err := s.validateMessage(input)
	if err != nil {
		return nil, err
	}

	var answer string
	var sources []model.RetrievedChunk
	if s.convergeAPI != nil {
		answer = s.answerDelegated(ctx, session, input.Email, content)
	} else {
		answer, sources, err = s.answerLocally(ctx, input.Email, content, input.SessionID, nil)
		if err != nil {
			return nil, err
		}
	}

	messages, err := s.persistExchange(ctx, input, content, answer)
	if err != nil {
		return nil, err
	}
	return &SendMessageResult{Messages: messages, Sources: sources}, nil
}

// StreamMessage behaves like SendMessage but forwards generated text to
// onChunk as it arrives. In delegated mode the upstream answer arrives whole
// and is forwarded as a single chunk.
func (s *ChatService) StreamMessage(
	ctx context.Context,
	input SendMessageInput,
	onChunk func(string) error,
) (string, error) {
	session, content, err := s.validateMessage(input)
	if err != nil {
		return "", err
	}

	var answer string
	if s.convergeAPI != nil {
		answer = s.answerDelegated(ctx, session, input.Email, content)
		if err := onChunk(answer); err != nil {
			return "", err
		}
	} else {
		answer, _, err = s.answerLocally(ctx, input.Email, content, input.SessionID, onChunk)
		if err != nil {
			return "", err
		}
	}

	if _, err := s.persistExchange(ctx, input, content, answer); err != nil {
		return "", err
	}
	return answer, nil
}

func (s *ChatService) validateMessage(input SendMessageInput) (*model.Session, string, error) {
	if input.UserID == 0 || input.SessionID == 0 || strings.TrimSpace(input.Email) == "" {
		return nil, "", ErrInvalidInput
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, "", ErrMessageEmpty
	}

	session, err := s.sessionRepo.GetByIDAndUserID(input.SessionID, input.UserID)
	if err != nil {
		return nil, "", err
	}
	if session == nil {
		return nil, "", ErrSessionNotFound
	}
	return session, content, nil
}

// answerDelegated forwards the question to the Converge API. Upstream
// failures are logged and converted into a retry answer rather than
// propagated.
func (s *ChatService) answerDelegated(ctx context.Context, session *model.Session, email, content string) string {
	conversationID := session.ConversationID
	if conversationID == "" {
		created, err := s.convergeAPI.CreateConversation(ctx, strings.ToLower(email))
		if err != nil {
			log.Printf("create conversation for session %d failed: %v", session.ID, err)
			return RetryAnswer
		}
		conversationID = created
		if err := s.sessionRepo.SetConversationID(session.ID, conversationID); err != nil {
			log.Printf("save conversation id for session %d failed: %v", session.ID, err)
		}
	}

	answer, err := s.convergeAPI.CreateMessage(ctx, conversationID, content)
	if err != nil {
		log.Printf("create message for session %d failed: %v", session.ID, err)
		return RetryAnswer
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return RetryAnswer
	}
	return answer
}

func (s *ChatService) answerLocally(
	ctx context.Context,
	email, content string,
	sessionID uint,
	onChunk func(string) error,
) (string, []model.RetrievedChunk, error) {
	chunks, err := s.retriever.Retrieve(ctx, email, content, 0)
	if err != nil {
		return "", nil, err
	}
	if len(chunks) == 0 {
		if onChunk != nil {
			if err := onChunk(NoContextAnswer); err != nil {
				return "", nil, err
			}
		}
		return NoContextAnswer, nil, nil
	}

	messages := s.buildPrompt(ctx, sessionID, content, chunks)

	var answer string
	if onChunk != nil {
		answer, err = s.generator.StreamComplete(ctx, messages, onChunk)
	} else {
		answer, err = s.generator.Complete(ctx, messages)
	}
	if err != nil {
		return "", nil, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = "The model returned an empty response."
	}
	return answer, chunks, nil
}

// buildPrompt assembles system instructions, the bounded recent history and
// the question grounded by the retrieved context.
func (s *ChatService) buildPrompt(ctx context.Context, sessionID uint, question string, chunks []model.RetrievedChunk) []ai.ChatMessage {
	messages := []ai.ChatMessage{{Role: "system", Content: systemPrompt}}

	history := s.recentHistory(ctx, sessionID)
	for _, msg := range history {
		messages = append(messages, ai.ChatMessage{Role: msg.Role, Content: msg.Content})
	}

	var contextBlock strings.Builder
	for i, c := range chunks {
		if i > 0 {
			contextBlock.WriteString("\n\n")
		}
		contextBlock.WriteString(c.Text)
		contextBlock.WriteString("\n(Source: ")
		contextBlock.WriteString(c.SourceName)
		contextBlock.WriteString(")")
	}

	messages = append(messages, ai.ChatMessage{
		Role: "user",
		Content: "Provide an answer related to the given documents only for this question: " + question +
			"\n\nContext:\n" + contextBlock.String(),
	})
	return messages
}

// recentHistory returns the newest turns for the session, bounded by the
// configured window. History failures degrade to an empty window.
func (s *ChatService) recentHistory(ctx context.Context, sessionID uint) []model.Message {
	limit := s.historyTurns * 2 // one turn = user + assistant

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return trimMessages(cached, limit)
			}
		}
	}

	messages, err := s.messageRepo.ListBySessionID(sessionID, 0)
	if err != nil {
		log.Printf("load history for session %d failed: %v", sessionID, err)
		return nil
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, messages)
		}
	}
	return trimMessages(messages, limit)
}

func (s *ChatService) persistExchange(ctx context.Context, input SendMessageInput, content, answer string) ([]model.Message, error) {
	if s.publisher == nil {
		return nil, ErrMessageEnqueue
	}

	userMessage := model.Message{
		SessionID: input.SessionID,
		UserID:    input.UserID,
		Role:      "user",
		Content:   content,
		CreatedAt: time.Now(),
	}
	assistantMessage := model.Message{
		SessionID: input.SessionID,
		UserID:    input.UserID,
		Role:      "assistant",
		Content:   answer,
		CreatedAt: time.Now(),
	}

	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, input.SessionID)
		_ = s.historyCache.DeleteHistory(ctx, input.SessionID)
	}
	if err := s.publisher.Publish(ctx, userMessage); err != nil {
		return nil, ErrMessageEnqueue
	}
	if err := s.publisher.Publish(ctx, assistantMessage); err != nil {
		return nil, ErrMessageEnqueue
	}
	return []model.Message{userMessage, assistantMessage}, nil
}

func (s *ChatService) GetHistory(ctx context.Context, userID, sessionID uint, limit int) ([]model.Message, error) {
	if userID == 0 || sessionID == 0 {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messageRepo.ListBySessionID(sessionID, limit)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, messages)
		}
	}
	return messages, nil
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}
