package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/karmaloop/chatcore/internal/api"
	"github.com/karmaloop/chatcore/internal/auth"
	"github.com/karmaloop/chatcore/internal/config"
	"github.com/karmaloop/chatcore/internal/connection"
	"github.com/karmaloop/chatcore/internal/database"
	"github.com/karmaloop/chatcore/internal/inbox"
	"github.com/karmaloop/chatcore/internal/journal"
	"github.com/karmaloop/chatcore/internal/model"
	"github.com/karmaloop/chatcore/internal/netpath"
	"github.com/karmaloop/chatcore/internal/poller"
	"github.com/karmaloop/chatcore/internal/router"
	"github.com/karmaloop/chatcore/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/chatcore.local.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting chatcore",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)
	logger.Info("configuration loaded",
		"user_id", cfg.Auth.UserID,
		"api_url", cfg.API.BaseURL,
		"socket_url", cfg.SocketURL(),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("chatcore failed", "error", err)
		os.Exit(1)
	}

	logger.Info("chatcore stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	tokens, err := newTokenSource(cfg.Auth)
	if err != nil {
		return fmt.Errorf("credentials: %w", err)
	}

	apiClient := api.NewClient(
		cfg.API.BaseURL,
		tokens,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		api.WithUserAgent(version.UserAgent()),
	)

	rtr := router.New(router.Config{QueueSize: cfg.Realtime.QueueSize}, logger)

	dialer := connection.NewWSDialer(connection.ClientConfig{
		HandshakeTimeout: cfg.Realtime.HandshakeTimeout,
		PingInterval:     cfg.Realtime.PingInterval,
		PingTimeout:      cfg.Realtime.PingTimeout,
		WriteTimeout:     cfg.Realtime.WriteTimeout,
		ReadLimit:        cfg.Realtime.ReadLimit,
	}, logger)

	mgrCfg := connection.DefaultManagerConfig()
	mgrCfg.BaseURL = cfg.SocketURL()
	mgrCfg.Reconnect = connection.ReconnectPolicy{
		BaseDelay:   cfg.Realtime.ReconnectBaseDelay,
		MaxDelay:    cfg.Realtime.ReconnectMaxDelay,
		MaxAttempts: cfg.Realtime.MaxReconnectAttempts,
	}
	mgrCfg.SendPolicy = connection.SendPolicy(cfg.Realtime.MessageSendPolicy)
	mgrCfg.RearmOnRecovery = cfg.Realtime.RearmOnRecoveryEnabled()
	mgrCfg.RearmOnResume = cfg.Realtime.RearmOnResume
	mgr := connection.NewManager(mgrCfg, dialer, tokens, rtr, logger)

	inboxCfg := inbox.DefaultConfig()
	inboxCfg.UserID = cfg.Auth.UserID
	inboxCfg.ReconcileInterval = cfg.Inbox.ReconcileInterval
	inboxCfg.TypingTTL = cfg.Inbox.TypingTTL
	box := inbox.New(inboxCfg, apiClient, rtr, logger)
	box.SetStatusSource(mgr)

	unread := poller.New(poller.Config{
		Interval: cfg.Poller.Interval,
		Timeout:  cfg.Poller.Timeout,
	}, apiClient, box, logger)

	var observer *netpath.Observer
	if cfg.Network.Mode == "probe" {
		addr := cfg.Network.ProbeAddress
		if addr == "" {
			if addr, err = netpath.ProbeAddress(cfg.SocketURL()); err != nil {
				return fmt.Errorf("probe address: %w", err)
			}
		}
		prober := netpath.NewProber(netpath.ProberConfig{
			Address:          addr,
			Interval:         cfg.Network.ProbeInterval,
			Timeout:          cfg.Network.ProbeTimeout,
			FailureThreshold: cfg.Network.FailureThreshold,
		}, logger)
		observer = netpath.NewObserver(prober, mgr, logger)
	}

	var writer *journal.Writer
	if cfg.Journal.Enabled {
		logger.Info("connecting to journal database",
			"host", cfg.Journal.Database.Host,
			"port", cfg.Journal.Database.Port,
			"database", cfg.Journal.Database.Name,
		)

		pool, err := database.Connect(ctx, cfg.Journal.Database)
		if err != nil {
			return fmt.Errorf("journal database: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("journal schema: %w", err)
		}
		logger.Info("journal database connected")

		writer = journal.NewWriter(journal.Config{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
			BufferSize:    cfg.Journal.BufferSize,
		}, pool, cfg.Auth.UserID, logger)
		writer.FollowStatus(mgr)
		writer.FollowPresence(rtr)
	}

	// Start order: consumers before producers.
	if err := rtr.Start(ctx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}
	if writer != nil {
		if err := writer.Start(ctx); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
	}
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start connection manager: %w", err)
	}

	logger.Info("starting inbox (initial sync)...")
	if err := box.Start(ctx); err != nil {
		return fmt.Errorf("start inbox: %w", err)
	}
	logger.Info("inbox started", "chats", len(box.Chats()), "unread", box.UnreadCounts().Total)

	if err := unread.Start(ctx); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}
	if observer != nil {
		if err := observer.Start(ctx); err != nil {
			return fmt.Errorf("start network observer: %w", err)
		}
	}

	statusServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Status.Host, strconv.Itoa(cfg.Status.Port)),
		Handler:           newStatusHandler(mgr, box, unread, observer, writer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting status server", "addr", statusServer.Addr)
		if err := statusServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		keepJoined(gctx, mgr, box, logger)
		return nil
	})

	mgr.Connect(cfg.Auth.UserID)

	logger.Info("chatcore running",
		"user_id", cfg.Auth.UserID,
		"status_url", fmt.Sprintf("http://%s/health", statusServer.Addr),
	)

	// Wait for shutdown or a failed background task.
	<-gctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	statusServer.Shutdown(shutdownCtx)
	cancel()
	groupErr := g.Wait()

	// Stop order: producers before consumers.
	if observer != nil {
		observer.Stop(shutdownCtx)
	}
	unread.Stop(shutdownCtx)
	mgr.Stop(shutdownCtx)
	box.Stop(shutdownCtx)
	rtr.Stop(shutdownCtx)
	if writer != nil {
		writer.Stop(shutdownCtx)
		stats := writer.Stats()
		logger.Info("journal flushed",
			"inserts", stats.Inserts,
			"errors", stats.Errors,
		)
	}

	return groupErr
}

// session is the part of the connection manager keepJoined drives.
type session interface {
	State() connection.Status
	Watch(buffer int) (<-chan connection.Status, func())
	JoinChat(chatID string)
}

// chatFeed is the part of the inbox keepJoined reads.
type chatFeed interface {
	Chats() []model.Chat
	SubscribeChanges() <-chan inbox.Change
}

// keepJoined joins each chat once. The manager re-joins remembered chats
// after a reconnect, so later connects only join chats learned since.
func keepJoined(ctx context.Context, mgr session, box chatFeed, logger *slog.Logger) {
	states, stop := mgr.Watch(16)
	defer stop()
	changes := box.SubscribeChanges()

	joined := make(map[string]bool)
	join := func(chatID string) {
		if chatID == "" || joined[chatID] {
			return
		}
		joined[chatID] = true
		mgr.JoinChat(chatID)
	}
	joinKnown := func() {
		before := len(joined)
		for _, c := range box.Chats() {
			join(c.ID)
		}
		if n := len(joined) - before; n > 0 {
			logger.Debug("joined chats", "count", n)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if st.State == connection.Connected {
				joinKnown()
			}
		case ch, ok := <-changes:
			if !ok {
				return
			}
			if mgr.State().State != connection.Connected {
				continue
			}
			switch ch.Kind {
			case inbox.ChangeSynced:
				joinKnown()
			case inbox.ChangeMessage:
				join(ch.ChatID)
			}
		}
	}
}

func newTokenSource(cfg config.AuthConfig) (auth.TokenSource, error) {
	if cfg.Token != "" {
		return auth.StaticToken(cfg.Token), nil
	}
	signer, err := auth.NewSigner(cfg.PrivateKeyPath, cfg.KeyID, cfg.Issuer, cfg.Audience, cfg.UserID, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	return signer, nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
