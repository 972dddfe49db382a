package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"guest-relay-bot/config"
	"guest-relay-bot/internal/adapters/aimod"
	"guest-relay-bot/internal/adapters/chatapi"
	"guest-relay-bot/internal/audit"
	"guest-relay-bot/internal/events"
	"guest-relay-bot/internal/handlers"
	"guest-relay-bot/internal/services"
	"guest-relay-bot/internal/state"
	"guest-relay-bot/internal/store"
	"guest-relay-bot/pkg/logger"
)

func main() {
	logger.InitLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	// State store: Redis when configured, in-memory otherwise. All durable
	// state (relays, blocks, trust, rate limits, cache) lives here.
	var kv store.Store
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Redis store")
		}
		defer redisStore.Close()
		kv = redisStore
	} else {
		log.Warn().Msg("REDIS_URL not set; using in-memory store, state is lost on restart")
		kv = store.NewMemoryStore()
	}

	counters := state.NewCounters(kv)
	trust := state.NewTrust(kv, cfg.TrustThreshold)
	blocklist := state.NewBlocklist(kv, counters, trust)
	directory := state.NewDirectory(kv, counters)
	limiter := state.NewRateLimiter(kv, cfg.RateLimitMax, time.Duration(cfg.RateLimitWindowSeconds)*time.Second)
	modCache := state.NewModCache(kv, cfg.ModCacheMinLen, time.Duration(cfg.ModCacheTTLHours)*time.Hour)
	langs := state.NewLangPrefs(kv)

	chatClient, err := chatapi.NewClient(cfg.BotAPIBaseURL, cfg.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize chat API client")
	}

	rotor := aimod.NewKeyRotor(cfg.ModerationAPIKeys)
	moderator, err := aimod.NewClient(cfg.ModerationAPIBaseURL, rotor)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize moderation client")
	}

	var auditLog *audit.Log
	if cfg.AuditDBPath != "" {
		auditLog, err = audit.Open(cfg.AuditDBPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open audit log")
		}
	} else {
		log.Info().Msg("AUDIT_DB not set; audit logging disabled")
	}

	var publisher *events.Publisher
	if cfg.RabbitURL != "" {
		publisher, err = events.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Error().Err(err).Msg("Could not connect to RabbitMQ; event publishing disabled")
			publisher = nil
		} else {
			defer publisher.Close()
		}
	} else {
		log.Info().Msg("RABBITMQ_URL not set; event publishing disabled")
	}

	guestService, err := services.NewGuestService(
		chatClient, moderator,
		directory, blocklist, trust, limiter, modCache, langs, counters,
		auditLog, publisher,
		cfg.AdminChatID, cfg.AutoBlock,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize GuestService")
	}

	adminService, err := services.NewAdminService(
		chatClient,
		directory, blocklist, trust, langs, counters,
		auditLog, rotor.Usage,
		cfg.AdminChatID,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize AdminService")
	}

	callbackService, err := services.NewCallbackService(chatClient, blocklist, langs, auditLog, cfg.AdminChatID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize CallbackService")
	}

	services.RegisterCommandMenus(ctx, chatClient, cfg.AdminChatID)

	webhookHandler := handlers.NewWebhookHandler(guestService, adminService, callbackService, cfg.AdminChatID, cfg.WebhookSecret)

	router := mux.NewRouter()
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("guest-relay-bot is running"))
	}).Methods(http.MethodGet)
	router.HandleFunc(cfg.WebhookPath, webhookHandler.Handle).Methods(http.MethodPost)
	log.Info().Str("path", cfg.WebhookPath).Msg("Registered webhook handler")

	port := cfg.Port
	if port == "" {
		port = "8080"
		log.Info().Str("port", port).Msg("Defaulting to port")
	}

	log.Info().Str("port", port).Msg("Server starting")
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
