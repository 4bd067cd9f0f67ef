// chattail connects to the chat socket as one user and prints every routed event.
// Usage: go run ./cmd/chattail --config configs/chatcore.local.yaml --join c1,c2
//
// Credentials come from the auth section of the config file, typically via
// ${CHAT_TOKEN} or ${CHAT_PRIVATE_KEY_PATH}.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/karmaloop/chatcore/internal/api"
	"github.com/karmaloop/chatcore/internal/auth"
	"github.com/karmaloop/chatcore/internal/config"
	"github.com/karmaloop/chatcore/internal/connection"
	"github.com/karmaloop/chatcore/internal/model"
	"github.com/karmaloop/chatcore/internal/router"
	"github.com/karmaloop/chatcore/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/chatcore.example.yaml", "path to config file")
	userID := flag.String("user", "", "user to connect as (overrides auth.user_id)")
	join := flag.String("join", "", "comma-separated chat IDs to join; all chats when empty")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Load config
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *userID != "" {
		cfg.Auth.UserID = *userID
	}
	if cfg.Auth.UserID == "" {
		logger.Error("no user to connect as", "hint", "set auth.user_id or pass --user")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	var tokens auth.TokenSource
	if cfg.Auth.Token != "" {
		tokens = auth.StaticToken(cfg.Auth.Token)
	} else {
		signer, err := auth.NewSigner(cfg.Auth.PrivateKeyPath, cfg.Auth.KeyID, cfg.Auth.Issuer,
			cfg.Auth.Audience, cfg.Auth.UserID, cfg.Auth.TokenTTL)
		if err != nil {
			logger.Error("failed to load credentials",
				"error", err,
				"token_set", cfg.Auth.Token != "",
				"private_key_path_set", cfg.Auth.PrivateKeyPath != "",
			)
			os.Exit(1)
		}
		tokens = signer
	}

	// Resolve chats to join
	var chatIDs []string
	if *join != "" {
		for _, id := range strings.Split(*join, ",") {
			if id = strings.TrimSpace(id); id != "" {
				chatIDs = append(chatIDs, id)
			}
		}
	} else {
		apiClient := api.NewClient(cfg.API.BaseURL, tokens,
			api.WithLogger(logger),
			api.WithTimeout(cfg.API.Timeout),
			api.WithUserAgent(version.UserAgent()),
		)
		chats, err := apiClient.GetChats(ctx)
		if err != nil {
			logger.Error("failed to list chats", "error", err)
			os.Exit(1)
		}
		for _, c := range chats {
			chatIDs = append(chatIDs, c.ID)
		}
	}
	logger.Info("chats resolved", "count", len(chatIDs))

	rtr := router.New(router.Config{QueueSize: cfg.Realtime.QueueSize}, logger)

	rtr.OnNewMessage(func(chatID string, msg model.Message) {
		if *verbose {
			data, _ := json.MarshalIndent(msg, "", "  ")
			fmt.Printf("[MESSAGE] %s\n", data)
			return
		}
		fmt.Printf("[MESSAGE] chat=%s id=%s from=%s attachments=%d content=%q\n",
			chatID, msg.ID, msg.SenderID, len(msg.Attachments), msg.Content)
	})
	rtr.OnTypingUpdate(func(chatID, userID string, isTyping bool) {
		fmt.Printf("[TYPING] chat=%s user=%s typing=%t\n", chatID, userID, isTyping)
	})
	rtr.OnPresenceUpdate(func(userID string, isOnline bool) {
		fmt.Printf("[PRESENCE] user=%s online=%t\n", userID, isOnline)
	})
	rtr.OnReadUpdate(func(chatID, userID, messageID string) {
		fmt.Printf("[READ] chat=%s user=%s message=%s\n", chatID, userID, messageID)
	})

	dialer := connection.NewWSDialer(connection.ClientConfig{
		HandshakeTimeout: cfg.Realtime.HandshakeTimeout,
		PingInterval:     cfg.Realtime.PingInterval,
		PingTimeout:      cfg.Realtime.PingTimeout,
		WriteTimeout:     cfg.Realtime.WriteTimeout,
		ReadLimit:        cfg.Realtime.ReadLimit,
	}, logger)

	connCfg := connection.DefaultManagerConfig()
	connCfg.BaseURL = cfg.SocketURL()
	connCfg.Reconnect = connection.ReconnectPolicy{
		BaseDelay:   cfg.Realtime.ReconnectBaseDelay,
		MaxDelay:    cfg.Realtime.ReconnectMaxDelay,
		MaxAttempts: cfg.Realtime.MaxReconnectAttempts,
	}
	connMgr := connection.NewManager(connCfg, dialer, tokens, rtr, logger)

	// Start Router
	logger.Info("starting router")
	if err := rtr.Start(ctx); err != nil {
		logger.Error("failed to start router", "error", err)
		os.Exit(1)
	}

	// Start Connection Manager
	logger.Info("starting connection manager")
	if err := connMgr.Start(ctx); err != nil {
		logger.Error("failed to start connection manager", "error", err)
		os.Exit(1)
	}

	// State printer; joins chats on every connect.
	states, stopWatch := connMgr.Watch(16)
	defer stopWatch()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-states:
				if !ok {
					return
				}
				reason := ""
				if st.Reason != nil {
					reason = st.Reason.Error()
				}
				fmt.Printf("[STATE] %s attempt=%d session=%s reason=%q\n",
					st.State, st.Attempt, st.SessionID, reason)
				if st.State == connection.Connected {
					for _, id := range chatIDs {
						connMgr.JoinChat(id)
					}
				}
			}
		}
	}()

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				routerStats := rtr.Stats()
				connStats := connMgr.Stats()
				logger.Info("stats",
					"state", connMgr.State().State.String(),
					"frames_read", connStats.FramesRead,
					"decode_errors", connStats.DecodeErrors,
					"frames_sent", connStats.FramesSent,
					"router_received", routerStats.Received,
					"router_dispatched", routerStats.Dispatched,
					"unknown", routerStats.Unknown,
					"queue", routerStats.Queue.Count,
					"queue_high_water", routerStats.Queue.HighWater,
				)
			}
		}
	}()

	connMgr.Connect(cfg.Auth.UserID)
	logger.Info("streaming started - press Ctrl+C to stop", "user_id", cfg.Auth.UserID)

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	connMgr.Stop(shutdownCtx)
	rtr.Stop(shutdownCtx)

	logger.Info("shutdown complete")
}
