package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"profile-service/config"
	"profile-service/db"
	"profile-service/handlers"
	"profile-service/logger"
	"profile-service/middleware"
	"profile-service/routes"
	"profile-service/secretmanager"
	"profile-service/store"
	"profile-service/telemetry"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	loadEnv         = godotenv.Load
	loadConfig      = config.Load
	newLogger       = logger.New
	initTelemetry   = telemetry.Init
	connectPostgres = db.Connect
	migratePostgres = db.Migrate
	connectMongo    = db.ConnectMongo
	ensureIndexes   = db.EnsureIndexes
	newLoginLimiter = store.NewValkeyLoginLimiter
	setupRoutes     = routes.SetupRoutes
	getSecret       = secretmanager.GetSecret
	getSecretMap    = secretmanager.GetSecretMap
	setEnv          = os.Setenv
	listenAndServe  = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownSignals = func() (context.Context, context.CancelFunc) {
		return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	}
	logFatal = log.Fatal
)

type postgresSecret struct {
	Username             string `json:"username"`
	Password             string `json:"password"`
	Engine               string `json:"engine"`
	Host                 string `json:"host"`
	Port                 int    `json:"port"`
	DBInstanceIdentifier string `json:"dbInstanceIdentifier"`
}

func validatePostgresSecret(secret postgresSecret) error {
	var missing []string
	for _, field := range []struct{ name, value string }{
		{"username", secret.Username},
		{"password", secret.Password},
		{"host", secret.Host},
		{"dbInstanceIdentifier", secret.DBInstanceIdentifier},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("postgres secret missing fields: %v", missing)
	}
	if secret.Port <= 0 {
		return fmt.Errorf("postgres secret has invalid port %d", secret.Port)
	}
	return nil
}

func loadPostgresSecret(ctx context.Context) (postgresSecret, error) {
	raw, err := getSecret(ctx, "prod/postgres")
	if err != nil {
		return postgresSecret{}, fmt.Errorf("error retrieving Postgres secret: %w", err)
	}
	var secret postgresSecret
	if err := json.Unmarshal([]byte(raw), &secret); err != nil {
		return postgresSecret{}, fmt.Errorf("error parsing Postgres secret JSON: %w", err)
	}
	if err := validatePostgresSecret(secret); err != nil {
		return postgresSecret{}, err
	}
	return secret, nil
}

func setEnvFromMap(values map[string]string) error {
	for key, value := range values {
		if err := setEnv(key, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

// loadProdSecrets copies AWS Secrets Manager values into the environment
// before config.Load reads it. The Valkey secret is optional.
func loadProdSecrets(ctx context.Context, log *zap.Logger) error {
	jwtSecrets, err := getSecretMap(ctx, "prod/jwt")
	if err != nil {
		return fmt.Errorf("error retrieving JWT secret: %w", err)
	}
	if err := setEnvFromMap(jwtSecrets); err != nil {
		return err
	}

	if os.Getenv("DB_ENGINE") == config.EngineMongo {
		mongoSecrets, err := getSecretMap(ctx, "prod/mongodb")
		if err != nil {
			return fmt.Errorf("error retrieving MongoDB secret: %w", err)
		}
		if err := setEnvFromMap(mongoSecrets); err != nil {
			return err
		}
	} else {
		pg, err := loadPostgresSecret(ctx)
		if err != nil {
			return err
		}
		if err := setEnvFromMap(map[string]string{
			"DB_USERNAME":            pg.Username,
			"DB_PASSWORD":            pg.Password,
			"DB_HOST":                pg.Host,
			"DB_PORT":                strconv.Itoa(pg.Port),
			"DB_INSTANCE_IDENTIFIER": pg.DBInstanceIdentifier,
		}); err != nil {
			return err
		}
	}

	valkeySecrets, err := getSecretMap(ctx, "prod/valkey")
	if err != nil {
		log.Info("valkey secret not loaded", zap.Error(err))
		return nil
	}
	return setEnvFromMap(valkeySecrets)
}

type backend struct {
	users    store.UserStore
	profiles store.ProfileStore
	posts    store.PostStore
	accounts store.AccountStore
	close    func(context.Context) error
}

func openBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (*backend, error) {
	switch cfg.DB.Engine {
	case config.EngineMongo:
		client, err := connectMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("mongodb connection error: %w", err)
		}
		database := client.Database(cfg.Mongo.Database)
		if err := ensureIndexes(ctx, database); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("mongodb index error: %w", err)
		}
		log.Info("connected to mongodb", zap.String("database", cfg.Mongo.Database))
		return &backend{
			users:    store.NewMongoUserStore(database),
			profiles: store.NewMongoProfileStore(database),
			posts:    store.NewMongoPostStore(database),
			accounts: store.NewMongoAccountStore(client, database, log),
			close:    client.Disconnect,
		}, nil
	default:
		conn, err := connectPostgres(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("postgres connection error: %w", err)
		}
		if err := migratePostgres(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("postgres migration error: %w", err)
		}
		log.Info("connected to postgres", zap.String("host", cfg.DB.Host), zap.String("database", cfg.DB.Name))
		return &backend{
			users:    store.NewPostgresUserStore(conn),
			profiles: store.NewPostgresProfileStore(conn),
			posts:    store.NewPostgresPostStore(conn),
			accounts: store.NewPostgresAccountStore(conn),
			close:    func(context.Context) error { return conn.Close() },
		}, nil
	}
}

func newHTTPHandler(cfg config.Config, router http.Handler, log *zap.Logger) http.Handler {
	corsOpts := []gorillaHandlers.CORSOption{
		gorillaHandlers.AllowedOrigins(cfg.CORS.AllowedOrigins),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", cfg.Auth.HeaderName, "X-Requested-With"}),
	}
	handler := gorillaHandlers.CORS(corsOpts...)(middleware.RequestLogger(log)(router))
	return otelhttp.NewHandler(handler, cfg.Telemetry.ServiceName)
}

func serve(ctx context.Context, srv *http.Server, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(srv) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := run(); err != nil {
		logFatal(err)
	}
}

func run() error {
	envErr := loadEnv()
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}

	log, err := newLogger(appEnv)
	if err != nil {
		return fmt.Errorf("logger error: %w", err)
	}
	defer func() { _ = log.Sync() }()
	restore := zap.ReplaceGlobals(log)
	defer restore()

	if envErr != nil {
		log.Info("no .env file found; using system environment variables")
	}
	log.Info("starting", zap.String("env", appEnv))

	ctx, stop := shutdownSignals()
	defer stop()

	if appEnv == "prod" {
		if err := loadProdSecrets(ctx, log); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	shutdownTelemetry, err := initTelemetry(ctx, cfg.Telemetry, cfg.AppEnv, log)
	if err != nil {
		return fmt.Errorf("telemetry error: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	stores, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.close(context.Background()); err != nil {
			log.Warn("database close failed", zap.Error(err))
		}
	}()

	var limiter store.LoginLimiter
	if cfg.Valkey.Addr != "" {
		valkey, err := newLoginLimiter(ctx, cfg.Valkey, cfg.Login)
		if err != nil {
			return fmt.Errorf("valkey connection error: %w", err)
		}
		defer valkey.Close()
		limiter = valkey
	} else {
		log.Info("valkey not configured; login attempts are not limited")
	}

	router := setupRoutes(cfg, routes.Handlers{
		Auth:    handlers.NewAuthHandler(cfg.Auth, stores.users, limiter, log),
		Profile: handlers.NewProfileHandler(stores.profiles, stores.accounts, log),
		Post:    handlers.NewPostHandler(stores.posts, stores.users, log),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newHTTPHandler(cfg, router, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("listening",
		zap.String("port", cfg.Port),
		zap.String("engine", cfg.DB.Engine),
		zap.Strings("cors_origins", cfg.CORS.AllowedOrigins),
	)
	return serve(ctx, srv, log)
}
