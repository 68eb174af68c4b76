package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	wall "github.com/jimiolaniyan/gowall"
	"github.com/jimiolaniyan/gowall/auth"
	"github.com/jimiolaniyan/gowall/config"
)

type profileEvents struct {
	svc wall.Service
}

func (e profileEvents) AccountCreated(id string, username string, email string) {
	if err := e.svc.CreateProfile(id, username, email); err != nil {
		log.Printf("[auth] creating profile for %s failed: %v", username, err)
	}
}

type stores struct {
	users    wall.UserRepository
	posts    wall.PostStore
	accounts auth.Repository
	close    func()
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	s, err := openStores(ctx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer s.close()

	log.Printf("Server started (store: %s). Listening on %s\n", cfg.Store, cfg.Addr)
	return http.ListenAndServe(cfg.Addr, wall.LoggerMiddleware(newRouter(cfg, s)))
}

func openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	switch cfg.Store {
	case config.StoreMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return stores{}, fmt.Errorf("connecting to mongo: %w", err)
		}
		disconnect := func() { _ = client.Disconnect(context.Background()) }
		if err = client.Ping(ctx, nil); err != nil {
			disconnect()
			return stores{}, fmt.Errorf("pinging mongo: %w", err)
		}

		db := client.Database(cfg.MongoDB)
		accounts, err := auth.NewMongoAccountRepository(ctx, db.Collection("accounts"))
		if err != nil {
			disconnect()
			return stores{}, err
		}
		return stores{
			users:    wall.NewMongoUserRepository(db.Collection("users")),
			posts:    wall.NewMongoPostRepository(db.Collection("posts"), db.Collection("counters")),
			accounts: accounts,
			close:    disconnect,
		}, nil

	case config.StorePostgres:
		pcfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
		if err != nil {
			return stores{}, fmt.Errorf("parsing postgres dsn: %w", err)
		}
		pcfg.MaxConns = cfg.MaxConns

		pool, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			return stores{}, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := wall.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return stores{}, err
		}
		accounts, err := auth.NewPostgresAccountRepository(ctx, pool)
		if err != nil {
			pool.Close()
			return stores{}, err
		}
		return stores{
			users:    wall.NewPostgresUserRepository(pool),
			posts:    wall.NewPostgresPostRepository(pool),
			accounts: accounts,
			close:    pool.Close,
		}, nil

	default:
		return stores{
			users:    wall.NewUserRepository(),
			posts:    wall.NewPostRepository(),
			accounts: auth.NewAccountRepository(),
			close:    func() {},
		}, nil
	}
}

func newRouter(cfg *config.Config, s stores) http.Handler {
	svc := wall.NewService(s.users, s.posts, wall.Options{
		MaxMessageLength: cfg.MaxMessageLength,
		RecentLikers:     cfg.RecentLikers,
		ComposeTimeout:   cfg.ComposeTimeout,
		Composer: wall.ComposerConfig{
			FeedLimit:      cfg.FeedLimit,
			TrendingLimit:  cfg.TrendingLimit,
			TrendingWindow: cfg.TrendingWindow,
		},
	})
	authSvc := auth.NewService(s.accounts, profileEvents{svc: svc})

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = auth.DefaultTokenTTL
	}

	withViewer := func(h http.Handler) http.Handler {
		return wall.AuthMiddleware(h, svc, cfg.SigningKey)
	}
	signedIn := func(h http.Handler) http.Handler {
		return withViewer(wall.RequireAuth(h))
	}

	router := httprouter.New()
	router.Handler(http.MethodPost, "/auth/v1/accounts", auth.RegisterAccountHandler(authSvc))
	router.Handler(http.MethodPost, "/auth/v1/sessions", auth.LoginHandler(authSvc, cfg.SigningKey, ttl))
	router.Handler(http.MethodGet, "/v1/posts", withViewer(wall.GetFeedHandler(svc)))
	router.Handler(http.MethodPost, "/v1/posts", signedIn(wall.CreatePostHandler(svc)))
	router.Handler(http.MethodGet, "/v1/posts/:id", wall.GetPostHandler(svc))
	router.Handler(http.MethodPost, "/v1/posts/:id/likes", signedIn(wall.LikePostHandler(svc)))
	router.Handler(http.MethodDelete, "/v1/posts/:id/likes", signedIn(wall.UnlikePostHandler(svc)))
	router.Handler(http.MethodGet, "/v1/users/:username/posts", withViewer(wall.GetWallHandler(svc)))
	router.Handler(http.MethodPost, "/v1/users/:username/posts", signedIn(wall.CreatePostHandler(svc)))
	return router
}
