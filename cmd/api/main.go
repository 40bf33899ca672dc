package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yourusername/quizroom-api/internal/config"
	"github.com/yourusername/quizroom-api/internal/handler"
	"github.com/yourusername/quizroom-api/internal/middleware"
	pgRepo "github.com/yourusername/quizroom-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/quizroom-api/internal/repository/redis"
	"github.com/yourusername/quizroom-api/internal/service"
	"github.com/yourusername/quizroom-api/internal/service/roommanager"
	ws "github.com/yourusername/quizroom-api/internal/websocket"
	"github.com/yourusername/quizroom-api/pkg/auth"
	"github.com/yourusername/quizroom-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis с использованием унифицированной конфигурации
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	userRepo := pgRepo.NewUserRepo(db)
	roomRepo := pgRepo.NewRoomRepo(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	sessionRepo := pgRepo.NewSessionRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Инициализируем JWT сервис
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs, cfg.JWT.WSTicketExpirySec)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// --- Инициализация WebSocket (PubSubProvider создается здесь) ---
	var pubSubProvider ws.PubSubProvider = ws.NewNoOpPubSub() // Провайдер по умолчанию

	// Создаем PubSubProvider только если кластеризация включена
	if cfg.WebSocket.ClusterEnabled {
		log.Println("Инициализация Redis PubSub для кластеризации WebSocket...")
		redisPubSubClient, errPubSub := database.NewUniversalRedisClient(cfg.Redis)
		if errPubSub != nil {
			log.Printf("Ошибка при инициализации Redis клиента для PubSub: %v. Кластеризация WS будет неактивна.", errPubSub)
		} else {
			pubSubProvider = ws.NewRedisPubSub(redisPubSubClient)
			log.Println("Redis PubSub провайдер успешно инициализирован")
		}
	}

	hub := ws.NewShardedHub(ws.ShardedHubConfig{
		ShardCount:  cfg.WebSocket.ShardCount,
		WorkerCount: cfg.WebSocket.WorkerCount,
	}, pubSubProvider)
	go hub.Run()

	wsManager := ws.NewManager(hub)
	// --- Конец инициализации WebSocket ---

	// --- Инициализация игрового движка комнат ---
	gameConfig := roommanager.DefaultConfig()
	gameConfig.CodeLength = cfg.Game.CodeLength
	gameConfig.MaxCodeAttempts = cfg.Game.MaxCodeAttempts
	gameConfig.CodeGracePeriod = time.Duration(cfg.Game.CodeGracePeriodSec) * time.Second
	gameConfig.MinPlayers = cfg.Game.MinPlayers
	gameConfig.AllowLateJoin = cfg.Game.AllowLateJoin
	gameConfig.AnswerWindow = time.Duration(cfg.Game.AnswerWindowSec) * time.Second
	gameConfig.AutoAdvance = cfg.Game.AutoAdvance
	gameConfig.BasePoints = cfg.Game.BasePoints
	gameConfig.MinPoints = cfg.Game.MinPoints
	gameConfig.MaxRetries = cfg.Game.PersistMaxRetries
	gameConfig.RetryInterval = time.Duration(cfg.Game.PersistRetryMs) * time.Millisecond

	gameDeps := &roommanager.Dependencies{
		RoomRepo:     roomRepo,
		QuestionRepo: questionRepo,
		SessionRepo:  sessionRepo,
		UserRepo:     userRepo,
		CacheRepo:    cacheRepo,
		Broadcaster:  wsManager,
		Config:       gameConfig,
	}

	roomRegistry := roommanager.NewRegistry(gameConfig, gameDeps)
	answerCollector := roommanager.NewAnswerCollector(gameConfig, gameDeps)
	gameFlow := roommanager.NewGameFlow(gameConfig, gameDeps, roomRegistry, answerCollector)
	// --- Конец инициализации игрового движка ---

	// Инициализируем сервисы
	authService := service.NewAuthService(userRepo, jwtService)
	roomService := service.NewRoomService(roomRegistry, gameFlow, roomRepo, sessionRepo, userRepo)
	questionService := service.NewQuestionService(questionRepo, roomRepo)
	soloService := service.NewSoloService(gameConfig, questionRepo, sessionRepo, userRepo)
	userService := service.NewUserService(userRepo)

	// Инициализируем обработчики
	authHandler := handler.NewAuthHandler(authService)
	roomHandler := handler.NewRoomHandler(roomService, questionService)
	questionHandler := handler.NewQuestionHandler(questionService)
	soloHandler := handler.NewSoloHandler(soloService)
	userHandler := handler.NewUserHandler(userService)
	wsHandler := handler.NewWSHandler(hub, wsManager, roomService, jwtService, cfg.CORS.AllowedOrigins)

	// Инициализируем middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Инициализируем роутер Gin
	router := gin.Default()

	// Настройка доверенных прокси для корректной работы c.ClientIP()
	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		// Production: не доверять прокси-заголовкам
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		// Development: доверяем localhost
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	allowedOrigins := cfg.CORS.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		// Health с числом живых комнат
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":     "ok",
				"live_rooms": roomService.LiveRoomCount(),
			})
		})

		// Аутентификация
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", rateLimiter.LimitByIP(middleware.StrictAuthRateLimitConfig()), authHandler.Register)
			authGroup.POST("/login", rateLimiter.LimitByIP(middleware.StrictAuthRateLimitConfig()), authHandler.Login)

			// Маршруты, требующие аутентификации
			authedAuth := authGroup.Group("/")
			authedAuth.Use(authMiddleware.RequireAuth())
			{
				authedAuth.POST("/logout", authHandler.Logout)
				authedAuth.GET("/me", authHandler.Me)
				authedAuth.PUT("/me", authHandler.UpdateProfile)
				authedAuth.POST("/ws-ticket", authHandler.WSTicket)
			}
		}

		// Лидерборд (публичный маршрут)
		api.GET("/leaderboard", userHandler.GetGlobalLeaderboard)

		// Комнаты
		rooms := api.Group("/rooms")
		rooms.Use(authMiddleware.RequireAuth())
		{
			rooms.POST("", rateLimiter.Limit(middleware.RoomCreateRateLimitConfig()), roomHandler.CreateRoom)
			rooms.GET("/my", roomHandler.ListMyRooms)

			// Группа маршрутов, требующих кода комнаты
			roomWithCode := rooms.Group("/:code")
			roomWithCode.Use(middleware.ExtractRoomCode("code"))
			{
				roomWithCode.GET("", roomHandler.GetRoom)
				roomWithCode.POST("/join", rateLimiter.Limit(middleware.RoomActionRateLimitConfig()), roomHandler.JoinRoom)
				roomWithCode.POST("/start", roomHandler.StartGame)
				roomWithCode.POST("/advance", roomHandler.AdvanceQuestion)
				roomWithCode.POST("/abort", roomHandler.AbortRoom)
				roomWithCode.POST("/answers", rateLimiter.Limit(middleware.RoomActionRateLimitConfig()), roomHandler.SubmitAnswer)
				roomWithCode.GET("/leaderboard", roomHandler.Leaderboard)
				roomWithCode.GET("/results/export", roomHandler.ExportResults)
				roomWithCode.POST("/questions", roomHandler.AddQuestion)
				roomWithCode.GET("/questions", roomHandler.ListQuestions)
			}
		}

		// Личный банк вопросов
		questions := api.Group("/questions")
		questions.Use(authMiddleware.RequireAuth())
		{
			questions.POST("", questionHandler.CreatePersonal)
			questions.GET("", questionHandler.ListPersonal)

			questionWithID := questions.Group("/:id")
			questionWithID.Use(middleware.ExtractUintParam("id", "question_id"))
			{
				questionWithID.DELETE("", questionHandler.Delete)
			}
		}

		// Одиночная игра
		solo := api.Group("/solo")
		solo.Use(authMiddleware.RequireAuth())
		{
			solo.POST("/start", soloHandler.Start)
			solo.GET("/current", soloHandler.Current)
			solo.POST("/answers", soloHandler.Answer)
			solo.POST("/abandon", soloHandler.Abandon)
		}
	}

	// WebSocket маршрут
	router.GET("/ws", wsHandler.HandleConnection)

	// Служебные эндпоинты хаба (метрики, health)
	for path, h := range hub.GetHttpHandlers() {
		router.GET(path, gin.WrapF(h))
	}

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	readTimeout := cfg.Server.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 15
	}
	writeTimeout := cfg.Server.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 15
	}
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	// После получения сигнала SIGINT или SIGTERM начинаем graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Останавливаем таймеры автоперехода, hub и PubSub
	gameFlow.Close()
	hub.Close()
	if err := pubSubProvider.Close(); err != nil {
		log.Printf("Error closing PubSub provider: %v", err)
	}

	// Контекст с таймаутом для graceful shutdown сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
