package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"stemset/cache"
	"stemset/config"
	"stemset/core/analysis"
	"stemset/core/auth"
	"stemset/core/mixer"
	"stemset/core/separation"
	"stemset/core/upload"
	"stemset/core/watcher"
	"stemset/db"
	"stemset/logger"
	"stemset/model"
	"stemset/repository"
	"stemset/storage"
)

// Start initializes every dependency, serves until interrupted, and tears
// the audio session down on the way out.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.InfoLevel,
		OutputPath: "logs/stemset.log",
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	})

	auth.Init(cfg.JWTSecret)

	store, err := storage.NewMinioStore(cfg)
	if err != nil {
		logger.Fatal("failed to initialize object storage", logger.ErrorField(err))
	}

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()
	if err := db.InitDB(); err != nil {
		logger.Fatal("failed to initialize database schema", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()
	if err := db.AutoMigrateModels(&model.Song{}); err != nil {
		logger.Fatal("failed to migrate models", logger.ErrorField(err))
	}

	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
	}
	defer cache.CloseRedis()

	userRepo := repository.NewMySQLUserRepository(db.DB)
	songRepo := repository.NewGormSongRepository(db.GormDB)
	progress := cache.NewProgressCache()

	sepClient := separation.NewClient(cfg.SeparationAPIURL)
	poller := separation.NewPoller(sepClient, cfg.PollInterval, cfg.MaxPollAttempts, cfg.StuckThreshold)
	orch := upload.NewOrchestrator(store, songRepo, sepClient, poller, progress)

	var analyzer analysis.Provider
	if cfg.AnalysisUseMock {
		analyzer = analysis.NewMockProvider(2 * time.Second)
	} else {
		analyzer = analysis.NewRemoteProvider(cfg.SeparationAPIURL, cfg.PollInterval, cfg.MaxPollAttempts)
	}

	songHub := NewSongHub(songRepo)
	apiHandler := NewAPIHandler(cfg, userRepo, songRepo, store, orch, sepClient, progress, analyzer, songHub)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	if cfg.IngestWatchDir != "" {
		w := watcher.New(cfg.IngestWatchDir, cfg.IngestOwnerID, orch)
		go func() {
			if err := w.Run(rootCtx); err != nil && rootCtx.Err() == nil {
				logger.Error("ingest watcher stopped", logger.ErrorField(err))
			}
		}()
	}

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// Auth
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)

	// Songs
	router.HandleFunc("/api/songs", apiHandler.AuthMiddleware(apiHandler.GetSongsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/upload", apiHandler.AuthMiddleware(apiHandler.UploadSongHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/songs/{id}", apiHandler.AuthMiddleware(apiHandler.GetSongHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/{id}", apiHandler.AuthMiddleware(apiHandler.DeleteSongHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/songs/{id}/status", apiHandler.AuthMiddleware(apiHandler.SongStatusHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/{id}/analyze", apiHandler.AuthMiddleware(apiHandler.AnalyzeSongHandler)).Methods(http.MethodPost)

	// WebSockets
	router.HandleFunc("/api/ws/songs", apiHandler.AuthMiddleware(apiHandler.SongsWebSocketHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/ws/mixer/{id}", apiHandler.AuthMiddleware(apiHandler.MixerWebSocketHandler)).Methods(http.MethodGet)

	// Audio streaming and health
	router.PathPrefix("/api/audio/").HandlerFunc(apiHandler.AudioProxyHandler).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/api/health", apiHandler.HealthHandler).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming responses manage their own deadlines
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down")
	rootCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", logger.ErrorField(err))
	}

	// Every live mixer element goes silent before the process exits.
	mixer.DefaultSession().TeardownAll()
	logger.Info("server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
