package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"converge/internal/ai"
	appsvc "converge/internal/app"
	"converge/internal/bootstrap"
	"converge/internal/cache"
	"converge/internal/converge"
	"converge/internal/extract"
	"converge/internal/platform/rabbitmq"
	"converge/internal/repository"
	"converge/internal/scan"
	"converge/internal/transport/http/handler"
	"converge/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	cfg := app.Config

	userRepo := repository.NewUserRepository(app.Postgres)
	sessionRepo := repository.NewSessionRepository(app.Postgres)
	messageRepo := repository.NewMessageRepository(app.Postgres)
	documentStore := repository.NewDocumentStore(app.Postgres)

	aiClient := ai.NewClient(ai.Config{
		BaseURL:             cfg.LLM.BaseURL,
		APIKey:              cfg.LLM.APIKey,
		Model:               cfg.LLM.Model,
		EmbeddingModel:      cfg.LLM.EmbeddingModel,
		EmbeddingDimensions: cfg.LLM.EmbeddingDimensions,
	})

	var docIntel *extract.DocIntelClient
	if cfg.DocIntel.Endpoint != "" {
		docIntel = extract.NewDocIntelClient(
			cfg.DocIntel.Endpoint,
			cfg.DocIntel.APIKey,
			cfg.DocIntel.Model,
			cfg.DocIntel.APIVersion,
			time.Duration(cfg.DocIntel.TimeoutSeconds)*time.Second,
		)
	}
	extractor := extract.NewExtractor(docIntel)

	var scanner appsvc.VirusScanner
	if cfg.ClamAV.Enabled {
		scanner = scan.NewClamAVClient(cfg.ClamAV.ScanURL)
	}

	ingestService := appsvc.NewIngestService(
		documentStore,
		extractor,
		aiClient,
		scanner,
		cfg.Upload.MaxFileSizeBytes,
	)

	publisher := rabbitmq.NewMessagePublisher(app.MQConn, cfg.RabbitMQ.MessagePersistQueue)
	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)

	// delegated mode hands the conversation to the external API; local mode
	// answers from the user's own documents
	var convergeAPI appsvc.ConversationAPI
	var provisioner appsvc.UserProvisioner
	var retriever *appsvc.Retriever
	if cfg.Converge.Enabled {
		client := converge.NewClient(cfg.Converge.BaseURL)
		convergeAPI = client
		provisioner = client
	} else {
		retriever = appsvc.NewRetriever(aiClient, documentStore, cfg.LLM.TopK)
	}

	authService := appsvc.NewAuthService(
		userRepo,
		provisioner,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
	chatService := appsvc.NewChatService(
		sessionRepo,
		messageRepo,
		publisher,
		historyCache,
		aiClient,
		retriever,
		convergeAPI,
		cfg.LLM.HistoryTurns,
	)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService)
	filesHandler := handler.NewFilesHandler(ingestService, cfg.Upload.MaxFileSizeBytes)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(cfg.Auth.JWTSecret), authHandler.Me)

	filesGroup := v1.Group("/files")
	filesGroup.Use(middleware.AuthJWT(cfg.Auth.JWTSecret))
	filesGroup.POST("", filesHandler.Upload)
	filesGroup.GET("", filesHandler.List)
	filesGroup.DELETE("/:id", filesHandler.Delete)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(middleware.AuthJWT(cfg.Auth.JWTSecret))
	chatGroup.POST("/sessions", chatHandler.CreateSession)
	chatGroup.GET("/sessions", chatHandler.ListSessions)
	chatGroup.DELETE("/sessions/:id", chatHandler.DeleteSession)
	chatGroup.POST("/messages", chatHandler.SendMessage)
	chatGroup.POST("/messages/stream", chatHandler.StreamMessage)
	chatGroup.GET("/history", chatHandler.GetHistory)

	return router
}
