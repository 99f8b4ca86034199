package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/group-chat-demo/modules/auth"
	"github.com/example/group-chat-demo/modules/directory"
	"github.com/example/group-chat-demo/modules/gateway"
	"github.com/example/group-chat-demo/modules/hub"
	"github.com/example/group-chat-demo/modules/relay"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Group Chat Demo - channel presence and message relay ===")

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules
	directoryModule := directory.NewModule()
	authModule := auth.NewModule()
	hubModule := hub.NewModule()
	relayModule := relay.NewModule(hubModule.Hub())
	gatewayModule := gateway.NewModule()

	// Inject hub and relay into the gateway. This is done manually
	// because they are shared in-process state, not container services.
	gatewayModule.SetHub(hubModule.Hub())
	gatewayModule.SetRelay(relayModule)

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - directory: persistent store (ServiceProviderModule + EventConsumerModule)
	// - auth: token issuing (depends on directory)
	// - hub: connection registry and room router
	// - relay: message/presence/signaling fan-out (EventEmitterModule)
	// - gateway: driving adapter (Fiber HTTP/WebSocket server)
	app.Register(directoryModule)
	app.Register(authModule)
	app.Register(hubModule)
	app.Register(relayModule)
	app.Register(gatewayModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
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

func printStartupInfo() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                                       - Health check")
	log.Println("  POST   /api/auth/login                               - Obtain a token")
	log.Println("  GET    /api/groups                                   - List groups")
	log.Println("  POST   /api/groups                                   - Create a group (super-admin)")
	log.Println("  GET    /api/groups/:groupId/channels                 - List channels")
	log.Println("  POST   /api/groups/:groupId/channels                 - Create a channel (admin)")
	log.Println("  DELETE /api/groups/:groupId/channels/:channelId      - Delete a channel (admin)")
	log.Println("  GET    /api/channels/:channelId/messages             - Message history")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws?token=...):", port)
	log.Println("  Frame types: joinChannel, leaveChannel, sendMessage,")
	log.Println("               offer, answer, ice-candidate, leave")
	log.Println("")
	log.Println("Seeded users: bailey/hello (super-admin), user/password")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
