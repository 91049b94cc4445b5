package huddle

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/putto11262002/huddle/core"
	"github.com/putto11262002/huddle/pkg/router"
)

type App struct {
	config      *Config
	db          *core.SQLiteDB
	context     context.Context
	server      *http.Server
	logger      *slog.Logger
	router      *router.Router
	eventRouter *core.EventRouter
	wsManager   *core.ConnManager

	exit chan int

	messages core.MessageStore
	presence *core.PresenceTracker
	rooms    *core.RoomRegistry
	unread   *core.UnreadTracker

	apiHandler *APIHandler

	cleanupFuncs []func(context.Context)

	wg sync.WaitGroup
}

func New(ctx context.Context, config *Config) *App {
	var err error
	app := &App{
		exit: make(chan int),
	}
	if ctx == nil {
		ctx, _ = signal.NotifyContext(
			context.Background(),
			syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	}
	app.context = ctx

	if config == nil {
		var err error
		config, err = LoadConfig()
		if err != nil {
			failed(1, "failed to load config: %v\n", err)
		}
	}
	if err := config.Validate(); err != nil {
		failed(1, FormatValidationErrors(err))
	}
	app.config = config

	app.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				source, _ := a.Value.Any().(*slog.Source)
				if source != nil {
					source.File = filepath.Base(source.File)
				}
			}
			return a
		},
	}))

	sqliteOptions := &core.SQLiteDBOption{
		Mode:  "memory",
		Cache: "shared",
	}
	app.db, err = core.NewSQLiteDB(app.config.SQLite.File, app.config.SQLite.Migrations, sqliteOptions)
	if err != nil {
		failed(1, "failed to open database: %v\n", err)
	}
	app.AddCleanupFunc(func(ctx context.Context) {
		app.db.Close()
	})
	if err := app.db.Migrate(); err != nil {
		failed(1, "failed to migrate database: %v\n", err)
	}

	app.messages = core.NewSQLiteMessageStore(app.db.DB, app.config.Chat.HistoryLimit)
	app.presence = core.NewPresenceTracker()
	app.unread = core.NewUnreadTracker()
	app.rooms = core.NewRoomRegistry()
	app.rooms.Create("General")
	app.rooms.Create("Random")
	if _, ok := app.rooms.Name(app.config.Chat.DefaultRoom); !ok {
		app.rooms.Create(app.config.Chat.DefaultRoom)
	}

	app.wsManager = core.NewConnManager(app.context, &app.wg, app.logger)
	app.eventRouter = core.NewEventRouter(app.context, app.logger, app.wsManager)
	app.registerEventHandlers()

	app.apiHandler = NewAPIHandler(app.messages, app.presence, app.rooms)

	app.router = router.New(router.WithLogger(app.logger))

	app.router.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	app.router.Router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("huddle chat server is running"))
	})

	app.router.Router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		if _, err := app.wsManager.Connect(w, r); err != nil {
			app.logger.Error(fmt.Sprintf("Connect: %v", err))
		}
	})

	api := router.New(router.WithLogger(app.logger))
	api.Get("/messages", app.apiHandler.GetMessagesHandler)
	api.Get("/search", app.apiHandler.SearchMessagesHandler)
	api.Get("/users", app.apiHandler.GetUsersHandler)
	api.Get("/rooms", app.apiHandler.GetRoomsHandler)

	app.router.Mount("/api", api)

	app.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", app.config.Hostname, app.config.Port),
		Handler: app.router.Router,
		BaseContext: func(listener net.Listener) context.Context {
			return app.context
		},
	}

	return app
}

// registerEventHandlers binds every inbound event type, plus the transport
// lifecycle transitions, to its handler. All of them run serialized on the
// event router's dispatch goroutine.
func (app *App) registerEventHandlers() {
	app.eventRouter.On(core.EventConnected, app.ConnectedHandler)
	app.eventRouter.On(core.EventDisconnected, app.DisconnectedHandler)
	app.eventRouter.On(UserJoinEvent, app.UserJoinHandler)
	app.eventRouter.On(SendMessageEvent, app.SendMessageHandler)
	app.eventRouter.On(CreateRoomEvent, app.CreateRoomHandler)
	app.eventRouter.On(JoinRoomEvent, app.JoinRoomHandler)
	app.eventRouter.On(TypingEvent, app.TypingHandler)
	app.eventRouter.On(PrivateMessageEvent, app.PrivateMessageHandler)
	app.eventRouter.On(AddReactionEvent, app.AddReactionHandler)
	app.eventRouter.On(MessageReadEvent, app.MessageReadHandler)
	app.eventRouter.On(ShareFileEvent, app.ShareFileHandler)
	app.eventRouter.On(LoadMessagesEvent, app.LoadMessagesHandler)
	app.eventRouter.On(SearchMessagesEvent, app.SearchMessagesHandler)
}

func (app *App) Start() {
	app.eventRouter.Listen()
	app.AddCleanupFunc(func(ctx context.Context) {
		app.wsManager.Close()
		app.eventRouter.Close(ctx)
	})

	// listen for shutdown signal
	go func() {
		<-app.context.Done()
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		var wg sync.WaitGroup

		for _, f := range app.cleanupFuncs {
			wg.Add(1)
			go func(f func(context.Context)) {
				defer wg.Done()
				f(closeCtx)
			}(f)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			app.logger.Info("app shutdown gracefully")
			app.exit <- 0
		case <-closeCtx.Done():
			app.logger.Info("app shutdown timed out")
			app.exit <- 1
		}
	}()

	app.AddCleanupFunc(func(ctx context.Context) {
		app.server.Shutdown(ctx)
	})
	app.logger.Info(fmt.Sprintf("app running on %s:%d", app.config.Hostname, app.config.Port))

	err := app.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		failed(1, "server error: %v\n", err)
	}

	code := <-app.exit
	os.Exit(code)
}

func (app *App) AddCleanupFunc(f func(context.Context)) {
	app.cleanupFuncs = append(app.cleanupFuncs, f)
}

func failed(code int, s string, args ...interface{}) {
	fmt.Printf(s, args...)
	os.Exit(code)
}
