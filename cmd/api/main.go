package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/example/storefront/internal/api"
	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/identity"
	"github.com/example/storefront/internal/infrastructure/docstore"
	"github.com/example/storefront/internal/infrastructure/kafka"
	"github.com/example/storefront/internal/infrastructure/localcache"
	"github.com/example/storefront/internal/infrastructure/orderstore"
	"github.com/example/storefront/internal/session"
	"github.com/example/storefront/internal/shop"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[API] Invalid configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[API] Invalid configuration: %v", err)
	}

	log.Println("[API] ========================================")
	log.Println("[API] ProductVista Storefront")
	log.Println("[API] ========================================")
	log.Printf("[API] Document store: %s", cfg.DocStoreBackend)
	log.Printf("[API] Local cache:    %s", cfg.CacheBackend)
	log.Printf("[API] Identity:       %s", cfg.IdentityBackend)
	log.Printf("[API] Catalog:        %s", cfg.CatalogURL)

	cache, closeCache := openCache(cfg)
	defer closeCache()

	store, closeStore := openDocStore(ctx, cfg)
	defer closeStore()

	// Identity
	var accounts identity.Accounts
	if cfg.IdentityBackend == config.IdentityDocument {
		accounts = identity.NewDocumentAccounts(store)
	} else {
		accounts = identity.NewCacheAccounts(cache)
	}
	if err := identity.SeedDemo(ctx, accounts); err != nil {
		log.Printf("[API] Failed to seed demo account: %v", err)
	}
	provider := identity.NewProvider(accounts, cache)
	sess := session.New(provider, cache)
	defer sess.Close()

	// Order events
	var publisher shop.Publisher
	if cfg.EventsEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher = producer
		log.Printf("[API] Publishing order events to %s via %v", cfg.KafkaTopic, cfg.KafkaBrokers)
	}

	orders := orderstore.NewMirror(orderstore.NewDocumentRepository(store), orderstore.NewCacheRepository(cache))
	storefront := shop.New(catalog.NewClient(cfg.CatalogURL, cfg.CatalogTimeout), orders, cache, sess, publisher)
	defer storefront.Close()
	storefront.LoadCatalog(ctx)

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.TokenExpiry)
	router := api.NewRouter(api.RouterConfig{
		Handlers:     api.NewHandlers(storefront),
		AuthHandlers: api.NewAuthHandlers(sess, jwtService),
		JWTService:   jwtService,
		CurrentUserID: func() string {
			if user := sess.CurrentUser(); user != nil {
				return user.ID
			}
			return ""
		},
		WebDir: cfg.WebDir,
	})

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Printf("[API] Server started on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] Shutdown error: %v", err)
	}
}

func openCache(cfg *config.Config) (localcache.Cache, func()) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		client, err := localcache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("[API] Failed to connect to Redis: %v", err)
		}
		log.Printf("[API] Connected to Redis at %s", cfg.RedisAddr)
		return localcache.NewRedisCache(client, "storefront:"), func() { _ = client.Close() }
	case config.CacheMemory:
		return localcache.NewMemoryCache(), func() {}
	default:
		cache, err := localcache.NewFileCache(cfg.CachePath)
		if err != nil {
			log.Fatalf("[API] Failed to open cache file %s: %v", cfg.CachePath, err)
		}
		return cache, func() {}
	}
}

func openDocStore(ctx context.Context, cfg *config.Config) (docstore.Store, func()) {
	switch cfg.DocStoreBackend {
	case config.DocStorePostgres:
		db, err := docstore.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
		}
		store := docstore.NewPostgresStore(db, cfg.DocStorePollInterval)
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatalf("[API] Failed to prepare schema: %v", err)
		}
		log.Println("[API] Connected to PostgreSQL")
		return store, func() { _ = db.Close() }
	case config.DocStoreDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Fatalf("[API] Failed to load AWS configuration: %v", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.DynamoEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
			}
		})
		log.Printf("[API] Using DynamoDB table %s (%s)", cfg.DynamoTable, cfg.AWSRegion)
		return docstore.NewDynamoStore(client, cfg.DynamoTable, cfg.DocStorePollInterval), func() {}
	default:
		return docstore.NewMemoryStore(), func() {}
	}
}
