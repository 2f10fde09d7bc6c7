package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/taskdeck/backend/internal/client"
	"github.com/taskdeck/backend/internal/config"
	"github.com/taskdeck/backend/internal/db"
	"github.com/taskdeck/backend/internal/handler"
	"github.com/taskdeck/backend/internal/ratelimit"
	"github.com/taskdeck/backend/internal/service"
	"github.com/taskdeck/backend/internal/token"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres init failed")
	}
	defer pool.Close()

	repo := &db.Postgres{Pool: pool}
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema init failed")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis init failed")
	}
	defer redisClient.Close()

	codec, err := token.NewCodec(cfg.Auth.Secret, service.SessionCookieName, service.LegacySessionCookieName)
	if err != nil {
		log.Fatal().Err(err).Msg("token codec init failed")
	}

	mailer := client.LogMailer{Log: log}

	authService, err := service.NewAuthService(repo, repo, repo, codec, mailer, cfg.Auth, cfg.Server.BaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("auth service init failed")
	}

	createRule, err := ratelimit.ParseRule(cfg.RateLimit.CreateTask)
	if err != nil {
		log.Fatal().Err(err).Msg("rate limit config invalid")
	}

	failOpen := cfg.RateLimit.FailOpen == "true"
	if failOpen {
		log.Warn().Msg("rate limiter configured fail-open; store outages will admit traffic")
	}
	limiter := ratelimit.New(redisClient, failOpen, log)

	storeTimeout, err := time.ParseDuration(cfg.Auth.StoreTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("STORE_TIMEOUT invalid")
	}

	taskService := service.NewTaskService(repo, limiter, createRule, storeTimeout, log)

	var google *client.GoogleProvider
	if cfg.Google.ClientID != "" {
		google, err = client.NewGoogleProvider(ctx, cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
		if err != nil {
			log.Fatal().Err(err).Msg("google provider init failed")
		}
	} else {
		log.Info().Msg("google delegated login not configured")
	}

	router := handler.NewRouter(authService, taskService, google, handler.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	log.Info().Str("port", cfg.Server.Port).Msg("starting server")
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
