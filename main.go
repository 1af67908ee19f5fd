package main

import (
	"context"
	"log"
	"os"

	"github.com/example/support-chat-relay/config"
	"github.com/example/support-chat-relay/modules/api"
	"github.com/example/support-chat-relay/modules/cache"
	"github.com/example/support-chat-relay/modules/chat"
	"github.com/example/support-chat-relay/modules/relay"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== Support Chat Relay - Fiber + WebSocket + EventBus ===")

	cfg := config.Load()

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	// Create modules
	chatModule := chat.NewModule(cfg.DBPath, cfg.DBDebug, logger.WithModule("chat"))

	// The relay must receive a nil interface, not a nil *cache.Cache,
	// when the cache is disabled.
	var roomCache relay.RoomCache
	var cacheModule *cache.Module
	if cfg.CacheEnabled() {
		cacheModule = cache.NewModule(cfg.RedisAddr, cfg.RedisPassword, cfg.RoomCacheTTL, logger.WithModule("cache"))
		roomCache = cacheModule.GetCache()
	}

	relayModule := relay.NewModule(roomCache, logger.WithModule("relay"))
	apiModule := api.NewModule(cfg, logger.WithModule("api"))

	// Inject the relay into the API module
	// (the relay is not exposed via ServiceContainer)
	apiModule.SetRelay(relayModule)

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - chat: rooms and messages (ServiceProviderModule + EventEmitterModule)
	// - cache: optional redis room cache
	// - relay: live connections, typing, broadcast (EventConsumerModule)
	// - api: Fiber HTTP/WebSocket server, depends on chat and the relay
	modules := []mono.Module{chatModule}
	if cacheModule != nil {
		modules = append(modules, cacheModule)
	}
	modules = append(modules, relayModule, apiModule)
	for _, m := range modules {
		if err := app.Register(m); err != nil {
			log.Fatalf("Failed to register %s module: %v", m.Name(), err)
		}
	}

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg *config.Config) {
	cacheState := "disabled"
	if cfg.CacheEnabled() {
		cacheState = cfg.RedisAddr
	}
	authState := "disabled"
	if cfg.AuthEnabled() {
		authState = "JWT (HMAC), token subject must equal userId"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Printf("  - Storage: GORM + SQLite (%s)", cfg.DBPath)
	log.Printf("  - Room cache: %s", cacheState)
	log.Printf("  - Handshake auth: %s", authState)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", cfg.Port)
	log.Println("  GET    /health                              - Health check")
	log.Println("  GET    /metrics                             - Prometheus metrics")
	log.Println("  GET    /api/v1/rooms                        - List rooms")
	log.Println("  POST   /api/v1/rooms                        - Open a room {customerId}")
	log.Println("  GET    /api/v1/rooms/:id                    - Get room")
	log.Println("  PUT    /api/v1/rooms/:id                    - Change status {status}")
	log.Println("  PUT    /api/v1/rooms/:id/assign             - Assign employee {employeeId}")
	log.Println("  GET    /api/v1/rooms/:id/messages?since=    - Message history")
	log.Println("  PUT    /api/v1/rooms/:id/read?readerId=     - Mark messages read")
	log.Println("  GET    /api/v1/rooms/:id/typing             - Who is typing")
	log.Println("  GET    /api/v1/rooms/customer/:customerId   - Rooms of a customer")
	log.Println("  GET    /api/v1/rooms/employee/:employeeId   - Rooms of an employee")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", cfg.Port)
	log.Printf("  Connect with: ws://localhost:%s/ws?userId=<id>", cfg.Port)
	log.Println("  Client events: SEND_MESSAGE, TYPING, STOP_TYPING, ROOM_CLOSE")
	log.Println("  Server events: NEW_MESSAGE, USER_TYPING, USER_STOPPED_TYPING, ROOM_CLOSE")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
