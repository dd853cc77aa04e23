package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Switch-is-case/ChatBots-for-Learning/internal/ai"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/app"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/config"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/model"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/transport/http/middleware"
)

type fakeUserStore struct {
	users  map[uint]*model.User
	nextID uint
}

func (s *fakeUserStore) Create(user *model.User) error {
	user.ID = s.nextID
	s.nextID++
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *fakeUserStore) GetByUsername(username string) (*model.User, error) {
	for _, user := range s.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeUserStore) GetByID(id uint) (*model.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

type fakeConversationStore struct {
	conversations map[uint]*model.Conversation
	nextID        uint
}

func (s *fakeConversationStore) Create(conversation *model.Conversation) error {
	conversation.ID = s.nextID
	s.nextID++
	copied := *conversation
	s.conversations[conversation.ID] = &copied
	return nil
}

func (s *fakeConversationStore) ListByUserID(userID uint) ([]model.Conversation, error) {
	var out []model.Conversation
	for _, conversation := range s.conversations {
		if conversation.UserID == userID {
			out = append(out, *conversation)
		}
	}
	return out, nil
}

func (s *fakeConversationStore) GetByID(id uint) (*model.Conversation, error) {
	conversation, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	copied := *conversation
	return &copied, nil
}

func (s *fakeConversationStore) GetByIDAndUserID(id, userID uint) (*model.Conversation, error) {
	conversation, ok := s.conversations[id]
	if !ok || conversation.UserID != userID {
		return nil, nil
	}
	copied := *conversation
	return &copied, nil
}

func (s *fakeConversationStore) SetDifyConversationID(id uint, difyConversationID string) error {
	if conversation, ok := s.conversations[id]; ok {
		conversation.DifyConversationID = difyConversationID
	}
	return nil
}

func (s *fakeConversationStore) DeleteByIDAndUserID(id, userID uint) error {
	if conversation, ok := s.conversations[id]; ok && conversation.UserID == userID {
		delete(s.conversations, id)
	}
	return nil
}

type fakeMessageStore struct {
	messages []model.Message
}

func (s *fakeMessageStore) Create(message *model.Message) error {
	message.ID = uint(len(s.messages) + 1)
	s.messages = append(s.messages, *message)
	return nil
}

func (s *fakeMessageStore) ListByConversationID(conversationID uint) ([]model.Message, error) {
	var out []model.Message
	for _, message := range s.messages {
		if message.ConversationID == conversationID {
			out = append(out, message)
		}
	}
	return out, nil
}

func (s *fakeMessageStore) DeleteByConversationID(conversationID uint) error {
	kept := s.messages[:0]
	for _, message := range s.messages {
		if message.ConversationID != conversationID {
			kept = append(kept, message)
		}
	}
	s.messages = kept
	return nil
}

type fakeUpstream struct {
	answer ai.Answer
	err    error
}

func (u *fakeUpstream) Chat(_ context.Context, _ ai.AgentEndpoint, _, _, _ string) (ai.Answer, error) {
	if u.err != nil {
		return ai.Answer{}, u.err
	}
	return u.answer, nil
}

type fixture struct {
	router   *gin.Engine
	upstream *fakeUpstream
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := &fakeUserStore{users: map[uint]*model.User{}, nextID: 1}
	conversations := &fakeConversationStore{conversations: map[uint]*model.Conversation{}, nextID: 1}
	messages := &fakeMessageStore{}
	upstream := &fakeUpstream{answer: ai.Answer{Text: "Hi there!", ConversationID: "dify-123"}}

	agents := map[string]config.AgentConfig{
		"agent1": {Name: "IELTS Writing Assistant", APIURL: "https://dify.example/v1/chat-messages", APIKey: "key1"},
	}

	authService := app.NewAuthService(users, "test-secret", 24*time.Hour)
	chatService := app.NewChatService(conversations, messages, upstream, nil, nil, agents)
	fileService, err := app.NewFileService(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileService() error = %v", err)
	}

	logger := zap.NewNop()
	authHandler := NewAuthHandler(authService, logger)
	chatHandler := NewChatHandler(chatService, logger)
	conversationHandler := NewConversationHandler(chatService, logger)
	fileHandler := NewFileHandler(fileService, logger)

	router := gin.New()
	api := router.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.GET("/status", authHandler.Status)

	protected := api.Group("")
	protected.Use(middleware.SessionAuth(authService))
	protected.POST("/chat", chatHandler.SendMessage)
	protected.POST("/chat/welcome", chatHandler.Welcome)
	protected.GET("/conversations", conversationHandler.List)
	protected.GET("/conversations/:id", conversationHandler.Get)
	protected.DELETE("/conversations/:id", conversationHandler.Delete)
	protected.POST("/upload", fileHandler.Upload)
	protected.GET("/file/:id", fileHandler.Download)

	return &fixture{router: router, upstream: upstream}
}

func (f *fixture) doJSON(method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) registerAndLogin(t *testing.T, username, password string) *http.Cookie {
	t.Helper()

	rec := f.doJSON(http.MethodPost, "/api/auth/register", gin.H{"username": username, "password": password}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status = %d, body %s", username, rec.Code, rec.Body)
	}

	rec = f.doJSON(http.MethodPost, "/api/auth/login", gin.H{"username": username, "password": password}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status = %d, body %s", username, rec.Code, rec.Body)
	}

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == middleware.SessionCookieName {
			return cookie
		}
	}
	t.Fatalf("login %s set no session cookie", username)
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %s: %v", rec.Body, err)
	}
	return body
}

func TestRegisterValidationAndConflict(t *testing.T) {
	f := newFixture(t)

	rec := f.doJSON(http.MethodPost, "/api/auth/register", gin.H{"username": "alice", "password": "12345"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("short password: status = %d, want 400", rec.Code)
	}

	rec = f.doJSON(http.MethodPost, "/api/auth/register", gin.H{"username": "alice", "password": "secret1"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status = %d, want 201", rec.Code)
	}

	rec = f.doJSON(http.MethodPost, "/api/auth/register", gin.H{"username": "alice", "password": "secret2"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate username: status = %d, want 400", rec.Code)
	}
}

func TestAuthStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.doJSON(http.MethodGet, "/api/auth/status", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without cookie = %d, want 401", rec.Code)
	}
	if body := decodeBody(t, rec); body["isAuthenticated"] != false {
		t.Errorf("body = %v, want isAuthenticated=false", body)
	}

	cookie := f.registerAndLogin(t, "alice", "secret1")
	if !cookie.HttpOnly {
		t.Error("session cookie is not httpOnly")
	}

	rec = f.doJSON(http.MethodGet, "/api/auth/status", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with cookie = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["isAuthenticated"] != true {
		t.Errorf("body = %v, want isAuthenticated=true", body)
	}
}

func TestChatFlow(t *testing.T) {
	f := newFixture(t)
	cookie := f.registerAndLogin(t, "alice", "secret1")

	rec := f.doJSON(http.MethodPost, "/api/chat", gin.H{"message": "Hello", "agentId": "agent1"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("chat without cookie = %d, want 401", rec.Code)
	}

	rec = f.doJSON(http.MethodPost, "/api/chat", gin.H{"message": "Hello", "agentId": "agent1"}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat = %d, body %s", rec.Code, rec.Body)
	}
	body := decodeBody(t, rec)
	if body["answer"] != "Hi there!" {
		t.Errorf("answer = %v", body["answer"])
	}
	if body["newConversationId"] == nil {
		t.Error("first turn returned no newConversationId")
	}
	if body["title"] != "Hello" {
		t.Errorf("title = %v, want Hello", body["title"])
	}

	rec = f.doJSON(http.MethodGet, "/api/conversations", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("list conversations = %d", rec.Code)
	}
	var summaries []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("decode summaries: %v", err)
	}
	if len(summaries) != 1 || summaries[0]["title"] != "Hello" {
		t.Errorf("summaries = %v, want one titled Hello", summaries)
	}
}

func TestChatErrorStatuses(t *testing.T) {
	f := newFixture(t)
	cookie := f.registerAndLogin(t, "alice", "secret1")

	tests := []struct {
		name string
		body gin.H
		want int
	}{
		{"missing message", gin.H{"agentId": "agent1"}, http.StatusBadRequest},
		{"unknown agent", gin.H{"message": "hi", "agentId": "agent9"}, http.StatusBadRequest},
		{"missing conversation", gin.H{"message": "hi", "agentId": "agent1", "conversationId": 42}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.doJSON(http.MethodPost, "/api/chat", tt.body, cookie)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}

	f.upstream.err = errors.New("upstream down")
	rec := f.doJSON(http.MethodPost, "/api/chat", gin.H{"message": "hi", "agentId": "agent1"}, cookie)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("upstream failure status = %d, want 500", rec.Code)
	}
}

func TestConversationOwnership(t *testing.T) {
	f := newFixture(t)
	alice := f.registerAndLogin(t, "alice", "secret1")
	bob := f.registerAndLogin(t, "bobby", "secret2")

	rec := f.doJSON(http.MethodPost, "/api/chat", gin.H{"message": "Hello", "agentId": "agent1"}, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat = %d", rec.Code)
	}
	id := decodeBody(t, rec)["newConversationId"]
	convPath := "/api/conversations/" + jsonNumberString(id)

	if rec := f.doJSON(http.MethodGet, convPath, nil, bob); rec.Code != http.StatusNotFound {
		t.Errorf("foreign get = %d, want 404", rec.Code)
	}
	if rec := f.doJSON(http.MethodDelete, convPath, nil, bob); rec.Code != http.StatusNotFound {
		t.Errorf("foreign delete = %d, want 404", rec.Code)
	}

	rec = f.doJSON(http.MethodGet, convPath, nil, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner get = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	messages, ok := body["messages"].([]interface{})
	if !ok || len(messages) != 2 {
		t.Errorf("messages = %v, want 2 entries", body["messages"])
	}

	if rec := f.doJSON(http.MethodDelete, convPath, nil, alice); rec.Code != http.StatusOK {
		t.Errorf("owner delete = %d, want 200", rec.Code)
	}
	if rec := f.doJSON(http.MethodGet, convPath, nil, alice); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestWelcome(t *testing.T) {
	f := newFixture(t)
	cookie := f.registerAndLogin(t, "alice", "secret1")

	rec := f.doJSON(http.MethodPost, "/api/chat/welcome", gin.H{"agentId": "agent1"}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("welcome = %d, body %s", rec.Code, rec.Body)
	}
	if body := decodeBody(t, rec); body["welcomeMessage"] != "Hi there!" {
		t.Errorf("welcomeMessage = %v", body["welcomeMessage"])
	}

	rec = f.doJSON(http.MethodPost, "/api/chat/welcome", gin.H{"agentId": "agent9"}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown agent welcome = %d, want 400", rec.Code)
	}
}

func TestUploadAndDownload(t *testing.T) {
	f := newFixture(t)
	alice := f.registerAndLogin(t, "alice", "secret1")
	bob := f.registerAndLogin(t, "bobby", "secret2")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("file body")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.AddCookie(alice)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload = %d, body %s", rec.Code, rec.Body)
	}

	body := decodeBody(t, rec)
	fileID, _ := body["fileId"].(string)
	if fileID == "" {
		t.Fatalf("upload body = %v, want fileId", body)
	}
	if body["originalName"] != "notes.txt" {
		t.Errorf("originalName = %v", body["originalName"])
	}

	if rec := f.doJSON(http.MethodGet, "/api/file/"+fileID, nil, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("download without cookie = %d, want 401", rec.Code)
	}

	// Any authenticated user may fetch any file id; ownership is not
	// checked.
	rec2 := f.doJSON(http.MethodGet, "/api/file/"+fileID, nil, bob)
	if rec2.Code != http.StatusOK {
		t.Errorf("download as other user = %d, want 200", rec2.Code)
	}
	if rec2.Body.String() != "file body" {
		t.Errorf("downloaded content = %q", rec2.Body.String())
	}

	if rec := f.doJSON(http.MethodGet, "/api/file/file-0-missing.txt", nil, alice); rec.Code != http.StatusNotFound {
		t.Errorf("missing file = %d, want 404", rec.Code)
	}
}

func jsonNumberString(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}
