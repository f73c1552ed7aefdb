package main

import (
	"context"
	"fmt"

	"github.com/Sternrassler/mycase-client/pkg/auth"
	"github.com/Sternrassler/mycase-client/pkg/client"
	"github.com/Sternrassler/mycase-client/pkg/config"
	"github.com/Sternrassler/mycase-client/pkg/logging"
	"github.com/Sternrassler/mycase-client/pkg/mycase"
	"github.com/Sternrassler/mycase-client/pkg/pagination"
	"github.com/redis/go-redis/v9"
)

// app wires the configured components together. One per command run.
type app struct {
	cfg      *config.Config
	redis    *redis.Client // nil unless tokens live in Redis
	store    auth.Store
	oauth    *auth.OAuth2Provider // nil when a static access token is configured
	provider auth.Provider
	client   *client.Client
	pager    *pagination.Driver
	service  *mycase.Service
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	store, err := a.tokenStore()
	if err != nil {
		return nil, err
	}
	a.store = store

	if cfg.Auth.AccessToken != "" {
		a.provider = auth.NewStatic(cfg.Auth.AccessToken)
	} else {
		oauth, err := auth.NewOAuth2Provider(cfg.OAuth2Config(), store, logging.NewLogger(logging.ComponentAuth))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("configure OAuth2: %w", err)
		}
		a.oauth = oauth
		a.provider = oauth
	}

	c, err := client.New(cfg.ClientConfig(), a.provider)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create MyCase client: %w", err)
	}
	a.client = c
	a.pager = pagination.NewDriver(c, cfg.PaginationConfig())
	a.service = mycase.NewService(c, a.pager)

	return a, nil
}

func (a *app) tokenStore() (auth.Store, error) {
	if a.cfg.Auth.Store != config.StoreRedis {
		return auth.NewFileStore(a.cfg.Auth.TokenFile), nil
	}

	opts, err := a.cfg.RedisOptions()
	if err != nil {
		return nil, err
	}
	a.redis = redis.NewClient(opts)
	return auth.NewRedisStore(a.redis, a.cfg.Auth.FirmID), nil
}

// requireOAuth returns the OAuth2 provider or explains why there is none.
func (a *app) requireOAuth() (*auth.OAuth2Provider, error) {
	if a.oauth == nil {
		return nil, fmt.Errorf("OAuth2 is not in use: a static access token is configured")
	}
	return a.oauth, nil
}

// ready checks the token store connection and that a token can be obtained.
func (a *app) ready(ctx context.Context) error {
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if _, err := a.provider.Token(ctx); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

func (a *app) Close() {
	if a.client != nil {
		a.client.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
