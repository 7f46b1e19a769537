package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"versecast/internal/domain/audio"
	"versecast/internal/domain/auth"
	"versecast/internal/domain/bible"
	"versecast/internal/domain/narration"
	"versecast/internal/domain/playback"
	timingstore "versecast/internal/domain/timing/store"
	"versecast/internal/domain/tts"
	ttsfactory "versecast/internal/domain/tts/factory"
	platformconfig "versecast/internal/platform/config"
	platformerrors "versecast/internal/platform/errors"
	platformlogging "versecast/internal/platform/logging"
	platformstorage "versecast/internal/platform/storage"
	httptransport "versecast/internal/transport/http"
	"versecast/internal/transport/http/narrationapi"
	httpsystem "versecast/internal/transport/http/system"
	"versecast/internal/transport/ws"

	"gorm.io/gorm"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	configPath string

	config      *platformconfig.Config
	logProvider *platformlogging.Logger
	logger      *slog.Logger
	db          *gorm.DB
	cache       *audio.Cache
	provider    tts.Provider
	timings     timingstore.Store
	engine      *playback.Engine
	bus         *narration.Bus
	coordinator *narration.Coordinator
	voices      *narration.VoiceSelector
	bibleClient *bible.Client
	tokens      *auth.AuthToken
}

// Run executes the init graph, starts the HTTP/WebSocket surface and
// blocks until a shutdown signal arrives.
func Run(ctx context.Context, configPath string) error {
	state := &appState{configPath: configPath}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	logger := state.logger
	logger.Info("initialisation complete", "steps", len(steps))

	defer func() {
		state.coordinator.Close()
		state.engine.Close()
		if err := state.timings.Close(context.Background()); err != nil {
			logger.Warn("timing store close failed", "error", err)
		}
		_ = state.logProvider.Close()
	}()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	return waitForShutdown(signalCtx, cancel, logger, group)
}

// InitGraph declares the dependency-ordered initialisation steps.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "storage:open-database",
			Title:     "Open database",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   openDatabaseStep,
		},
		{
			ID:        "cache:init",
			Title:     "Initialise audio cache",
			DependsOn: []string{"storage:open-database"},
			Kind:      platformerrors.KindCache,
			Execute:   initCacheStep,
		},
		{
			ID:        "tts:init-provider",
			Title:     "Initialise TTS provider",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindSynthesis,
			Execute:   initTTSStep,
		},
		{
			ID:        "timings:init-store",
			Title:     "Initialise timing store",
			DependsOn: []string{"storage:open-database"},
			Kind:      platformerrors.KindStorage,
			Execute:   initTimingStoreStep,
		},
		{
			ID:        "playback:init-engine",
			Title:     "Initialise playback engine",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindPlayback,
			Execute:   initEngineStep,
		},
		{
			ID:    "narration:init-coordinator",
			Title: "Initialise narration coordinator",
			DependsOn: []string{
				"cache:init", "tts:init-provider",
				"timings:init-store", "playback:init-engine",
			},
			Kind:    platformerrors.KindNarration,
			Execute: initCoordinatorStep,
		},
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "execute init steps", "nil bootstrap state")
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(platformerrors.KindBootstrap, step.ID, "missing execute function")
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}
			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader(state.configPath).Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load configuration", err)
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "logging:init-provider", "config not loaded")
	}

	logProvider, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialise logging", err)
	}

	state.logProvider = logProvider
	state.logger = logProvider.Slog()
	state.logger.Info("logging ready", "level", state.config.Log.Level, "config", state.configPath)
	return nil
}

func openDatabaseStep(_ context.Context, state *appState) error {
	db, err := platformstorage.Open(state.config.Storage.Dir)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:open-database", "failed to open database", err)
	}
	state.db = db
	return nil
}

func initCacheStep(_ context.Context, state *appState) error {
	cache, err := audio.NewCache(audio.Options{
		Dir:          state.config.Cache.Dir,
		CeilingBytes: state.config.Cache.CeilingBytes,
		DB:           state.db,
		Logger:       state.logProvider.With("cache"),
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindCache, "cache:init", "failed to initialise audio cache", err)
	}
	state.cache = cache
	return nil
}

func initTTSStep(_ context.Context, state *appState) error {
	name := state.config.Selected.TTS
	cfg, ok := state.config.TTS[name]
	if !ok {
		return platformerrors.New(
			platformerrors.KindConfig,
			"tts:init-provider",
			fmt.Sprintf("selected TTS provider %q not configured", name),
		)
	}

	provider, err := ttsfactory.New(name, cfg, state.logProvider.With("tts"))
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindSynthesis, "tts:init-provider", "failed to create TTS provider", err)
	}
	state.provider = provider
	state.logger.Info("tts provider ready", "provider", name, "type", cfg.Type)
	return nil
}

func initTimingStoreStep(_ context.Context, state *appState) error {
	cfg := timingstore.Config{Driver: state.config.Timings.Type}
	if cfg.Driver == "" || cfg.Driver == "database" {
		cfg.Driver = timingstore.DriverSQLite
	}
	if cfg.Driver == timingstore.DriverRedis {
		cfg.Redis = &timingstore.RedisConfig{
			Addr:     state.config.Timings.Redis.Addr,
			Username: state.config.Timings.Redis.Username,
			Password: state.config.Timings.Redis.Password,
			DB:       state.config.Timings.Redis.DB,
			Prefix:   state.config.Timings.Redis.Prefix,
		}
	}

	timings, err := timingstore.New(cfg, timingstore.Dependencies{SQLiteDB: state.db})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "timings:init-store", "failed to create timing store", err)
	}
	state.timings = timings
	state.logger.Info("timing store ready", "driver", cfg.Driver)
	return nil
}

func initEngineStep(_ context.Context, state *appState) error {
	var output playback.Output
	switch state.config.Playback.Output {
	case "speaker":
		output = playback.NewSpeakerOutput()
	default:
		output = playback.NullOutput{}
	}

	state.engine = playback.NewEngine(playback.Options{
		TickInterval: state.config.Playback.TickInterval,
		Output:       output,
		Logger:       state.logProvider.With("playback"),
	})
	return nil
}

func initCoordinatorStep(_ context.Context, state *appState) error {
	state.bus = narration.NewBus()
	state.coordinator = narration.NewCoordinator(narration.Options{
		Provider: state.provider,
		Cache:    state.cache,
		Engine:   state.engine,
		Timings:  state.timings,
		Bus:      state.bus,
		Logger:   state.logProvider.With("narration"),
		Config:   state.config.Narration,
	})

	catalog, err := state.provider.ListVoices(context.Background())
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindSynthesis, "narration:init-coordinator", "failed to list voices", err)
	}
	state.voices = narration.NewVoiceSelector(state.db, catalog, "")
	if err := state.voices.RefreshAutoAssigned(); err != nil {
		state.logger.Warn("voice preference refresh failed", "error", err)
	}

	state.bibleClient = bible.NewClient(bible.ClientOptions{
		BaseURL:     state.config.Bible.BaseURL,
		APIKey:      state.config.Bible.APIKey,
		Translation: state.config.Bible.DefaultTranslation,
		Timeout:     time.Duration(state.config.Bible.TimeoutSeconds) * time.Second,
	})

	state.tokens = auth.NewAuthToken(state.config.Server.Secret).
		WithTTL(state.config.Server.Auth.TTL)
	return nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	if !state.config.Web.Enabled {
		state.logger.Info("web surface disabled; running headless")
		return nil
	}

	var authMiddleware gin.HandlerFunc
	if state.config.Server.Auth.Enabled {
		authMiddleware = httptransport.BearerAuth(state.tokens, state.logger)
	}

	router, err := httptransport.Build(httptransport.Options{
		Config:         state.config,
		Logger:         state.logProvider.With("http"),
		AuthMiddleware: authMiddleware,
	})
	if err != nil {
		return err
	}

	apiService, err := narrationapi.NewService(narrationapi.Options{
		Config:   state.config,
		Logger:   state.logProvider.With("api"),
		Bible:    state.bibleClient,
		Coord:    state.coordinator,
		Cache:    state.cache,
		Voices:   state.voices,
		Provider: state.provider,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindTransport, "http:init-api", "failed to create narration api", err)
	}
	if err := apiService.Register(groupCtx, router.API, router.Secured); err != nil {
		return platformerrors.Wrap(platformerrors.KindTransport, "http:register-api", "failed to register narration api", err)
	}

	systemService := httpsystem.NewService(state.logProvider.With("system"))
	if err := systemService.Register(groupCtx, router.API); err != nil {
		return platformerrors.Wrap(platformerrors.KindTransport, "http:register-system", "failed to register system routes", err)
	}

	hub, err := ws.NewHub(state.bus, state.logProvider.With("ws"))
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindTransport, "ws:init-hub", "failed to create websocket hub", err)
	}
	hub.Register(router.Engine, "/ws")

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(state.config.Web.Port),
		Handler: router.Engine,
	}

	g.Go(func() error {
		state.logger.Info("http server listening", "port", state.config.Web.Port)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			hub.CloseAll()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				state.logger.Error("http shutdown failed", "error", err)
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			state.logger.Error("http server failed", "error", err)
			return err
		}
		return nil
	})

	return nil
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, g *errgroup.Group) error {
	<-ctx.Done()
	logger.Info("shutdown signal received", "cause", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("shutdown finished with error", "error", err)
			return err
		}
		logger.Info("all services stopped")
	case <-time.After(15 * time.Second):
		logger.Error("shutdown timed out")
		return errors.New("shutdown timed out")
	}
	return nil
}
