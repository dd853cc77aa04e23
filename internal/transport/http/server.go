package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Switch-is-case/ChatBots-for-Learning/internal/ai"
	appsvc "github.com/Switch-is-case/ChatBots-for-Learning/internal/app"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/bootstrap"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/cache"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/platform/rabbitmq"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/repository"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/transport/http/handler"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	// Front-end shell, served the way the original served its public dir.
	router.NoRoute(gin.WrapH(http.FileServer(http.Dir("public"))))

	userRepo := repository.NewUserRepository(app.MySQL)
	conversationRepo := repository.NewConversationRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Session.CookieSecret,
		time.Duration(app.Config.Session.TTLHours)*time.Hour,
	)
	conversationCache := cache.NewConversationCache(
		app.Redis,
		time.Duration(app.Config.Redis.ConversationTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.ConversationDirtyTTLSecond)*time.Second,
	)
	eventPublisher := rabbitmq.NewEventPublisher(app.MQConn, app.Config.RabbitMQ.ChatEventQueue)
	chatService := appsvc.NewChatService(
		conversationRepo,
		messageRepo,
		ai.NewDifyClient(),
		eventPublisher,
		conversationCache,
		app.Config.Agents,
	)

	authHandler := handler.NewAuthHandler(authService, app.Logger)
	chatHandler := handler.NewChatHandler(chatService, app.Logger)
	conversationHandler := handler.NewConversationHandler(chatService, app.Logger)
	fileHandler := handler.NewFileHandler(app.Files, app.Logger)

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

	return router
}
