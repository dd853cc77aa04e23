package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Switch-is-case/ChatBots-for-Learning/internal/ai"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/config"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/model"
)

var (
	ErrInvalidAgent         = errors.New("invalid agent id")
	ErrMessageEmpty         = errors.New("message is empty")
	ErrConversationNotFound = errors.New("conversation not found")
)

const titleMaxRunes = 40

// ConversationStore persists conversation threads.
type ConversationStore interface {
	Create(conversation *model.Conversation) error
	ListByUserID(userID uint) ([]model.Conversation, error)
	GetByID(id uint) (*model.Conversation, error)
	GetByIDAndUserID(id, userID uint) (*model.Conversation, error)
	SetDifyConversationID(id uint, difyConversationID string) error
	DeleteByIDAndUserID(id, userID uint) error
}

// MessageStore persists the append-only message sequence.
type MessageStore interface {
	Create(message *model.Message) error
	ListByConversationID(conversationID uint) ([]model.Message, error)
	DeleteByConversationID(conversationID uint) error
}

// UpstreamClient is the blocking round trip to one agent endpoint.
type UpstreamClient interface {
	Chat(ctx context.Context, endpoint ai.AgentEndpoint, query, user, conversationID string) (ai.Answer, error)
}

// EventPublisher enqueues chat-turn audit events; failures are swallowed
// and never fail the turn.
type EventPublisher interface {
	Publish(ctx context.Context, event model.ChatEvent) error
}

// MessagesCache is the short-TTL Redis cache over a conversation's
// message list.
type MessagesCache interface {
	GetMessages(ctx context.Context, conversationID uint) ([]model.Message, bool, error)
	SetMessages(ctx context.Context, conversationID uint, messages []model.Message) error
	Delete(ctx context.Context, conversationID uint) error
	MarkDirty(ctx context.Context, conversationID uint) error
	IsDirty(ctx context.Context, conversationID uint) (bool, error)
}

type ChatService struct {
	conversationStore ConversationStore
	messageStore      MessageStore
	upstream          UpstreamClient
	publisher         EventPublisher
	cache             MessagesCache
	agents            map[string]config.AgentConfig
}

type SendMessageInput struct {
	UserID         uint
	AgentID        string
	Content        string
	ConversationID uint // 0 starts a new conversation
}

type SendMessageResult struct {
	Answer            string
	ConversationID    string // upstream-side id
	NewConversationID uint   // set only when a conversation was created
	Title             string
	Created           bool
}

func NewChatService(
	conversationStore ConversationStore,
	messageStore MessageStore,
	upstream UpstreamClient,
	publisher EventPublisher,
	cache MessagesCache,
	agents map[string]config.AgentConfig,
) *ChatService {
	return &ChatService{
		conversationStore: conversationStore,
		messageStore:      messageStore,
		upstream:          upstream,
		publisher:         publisher,
		cache:             cache,
		agents:            agents,
	}
}

// SendMessage runs one chat turn: persist the user message, call the
// upstream agent, persist its reply. The user message stays persisted
// even when the upstream call fails; there is no compensation.
func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	if input.Content == "" {
		return nil, ErrMessageEmpty
	}

	agent, ok := s.resolveAgent(input.AgentID)
	if !ok {
		return nil, ErrInvalidAgent
	}

	var conversation *model.Conversation
	created := false
	if input.ConversationID != 0 {
		existing, err := s.conversationStore.GetByID(input.ConversationID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, ErrConversationNotFound
		}
		conversation = existing
	} else {
		conversation = &model.Conversation{
			UserID:    input.UserID,
			AgentID:   input.AgentID,
			AgentName: agent.Name,
			Title:     makeTitle(input.Content),
		}
		if err := s.conversationStore.Create(conversation); err != nil {
			return nil, err
		}
		created = true
	}

	userMessage := &model.Message{
		ConversationID: conversation.ID,
		Sender:         model.SenderUser,
		Text:           input.Content,
		CreatedAt:      time.Now(),
	}
	s.invalidate(ctx, conversation.ID)
	if err := s.messageStore.Create(userMessage); err != nil {
		return nil, err
	}

	start := time.Now()
	answer, err := s.upstream.Chat(
		ctx,
		ai.AgentEndpoint{APIURL: agent.APIURL, APIKey: agent.APIKey},
		input.Content,
		strconv.FormatUint(uint64(input.UserID), 10),
		conversation.DifyConversationID,
	)
	if err != nil {
		s.publishEvent(ctx, input, conversation.ID, model.ChatOutcomeUpstreamError, start)
		return nil, fmt.Errorf("upstream chat failed: %w", err)
	}

	if answer.ConversationID != "" && answer.ConversationID != conversation.DifyConversationID {
		conversation.DifyConversationID = answer.ConversationID
		if err := s.conversationStore.SetDifyConversationID(conversation.ID, answer.ConversationID); err != nil {
			return nil, err
		}
	}

	aiMessage := &model.Message{
		ConversationID: conversation.ID,
		Sender:         model.SenderAI,
		Text:           answer.Text,
		CreatedAt:      time.Now(),
	}
	s.invalidate(ctx, conversation.ID)
	if err := s.messageStore.Create(aiMessage); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, input, conversation.ID, model.ChatOutcomeOK, start)

	result := &SendMessageResult{
		Answer:         answer.Text,
		ConversationID: conversation.DifyConversationID,
		Title:          conversation.Title,
		Created:        created,
	}
	if created {
		result.NewConversationID = conversation.ID
	}
	return result, nil
}

// GetWelcomeMessage asks the agent for its greeting with an empty query.
// Nothing is persisted.
func (s *ChatService) GetWelcomeMessage(ctx context.Context, userID uint, agentID string) (string, error) {
	if userID == 0 {
		return "", ErrInvalidInput
	}

	agent, ok := s.resolveAgent(agentID)
	if !ok {
		return "", ErrInvalidAgent
	}

	answer, err := s.upstream.Chat(
		ctx,
		ai.AgentEndpoint{APIURL: agent.APIURL, APIKey: agent.APIKey},
		"",
		strconv.FormatUint(uint64(userID), 10),
		"",
	)
	if err != nil {
		return "", fmt.Errorf("upstream welcome failed: %w", err)
	}
	if answer.Text == "" {
		return "Привет! Чем могу помочь?", nil
	}
	return answer.Text, nil
}

func (s *ChatService) ListConversations(userID uint) ([]model.Conversation, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.conversationStore.ListByUserID(userID)
}

// GetConversation enforces ownership and returns the thread with its
// messages, via the cache when it is clean.
func (s *ChatService) GetConversation(ctx context.Context, userID, conversationID uint) (*model.Conversation, []model.Message, error) {
	if userID == 0 || conversationID == 0 {
		return nil, nil, ErrInvalidInput
	}

	conversation, err := s.conversationStore.GetByIDAndUserID(conversationID, userID)
	if err != nil {
		return nil, nil, err
	}
	if conversation == nil {
		return nil, nil, ErrConversationNotFound
	}

	if s.cache != nil {
		if dirty, dirtyErr := s.cache.IsDirty(ctx, conversationID); dirtyErr == nil && !dirty {
			if cached, hit, cacheErr := s.cache.GetMessages(ctx, conversationID); cacheErr == nil && hit {
				return conversation, cached, nil
			}
		}
	}

	messages, err := s.messageStore.ListByConversationID(conversationID)
	if err != nil {
		return nil, nil, err
	}
	if s.cache != nil {
		if dirty, dirtyErr := s.cache.IsDirty(ctx, conversationID); dirtyErr == nil && !dirty {
			_ = s.cache.SetMessages(ctx, conversationID, messages)
		}
	}
	return conversation, messages, nil
}

func (s *ChatService) DeleteConversation(ctx context.Context, userID, conversationID uint) error {
	if userID == 0 || conversationID == 0 {
		return ErrInvalidInput
	}

	conversation, err := s.conversationStore.GetByIDAndUserID(conversationID, userID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return ErrConversationNotFound
	}

	if err := s.messageStore.DeleteByConversationID(conversationID); err != nil {
		return err
	}
	if err := s.conversationStore.DeleteByIDAndUserID(conversationID, userID); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, conversationID)
	}
	return nil
}

func (s *ChatService) resolveAgent(agentID string) (config.AgentConfig, bool) {
	agent, ok := s.agents[agentID]
	if !ok || agent.APIURL == "" {
		return config.AgentConfig{}, false
	}
	return agent, true
}

func (s *ChatService) invalidate(ctx context.Context, conversationID uint) {
	if s.cache == nil {
		return
	}
	_ = s.cache.MarkDirty(ctx, conversationID)
	_ = s.cache.Delete(ctx, conversationID)
}

func (s *ChatService) publishEvent(ctx context.Context, input SendMessageInput, conversationID uint, outcome string, start time.Time) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, model.ChatEvent{
		UserID:         input.UserID,
		ConversationID: conversationID,
		AgentID:        input.AgentID,
		Outcome:        outcome,
		LatencyMS:      time.Since(start).Milliseconds(),
		CreatedAt:      time.Now(),
	})
}

// makeTitle fixes the thread title from the first user message: first 40
// runes, ellipsis when truncated.
func makeTitle(message string) string {
	runes := []rune(message)
	if len(runes) <= titleMaxRunes {
		return message
	}
	return string(runes[:titleMaxRunes]) + "..."
}
