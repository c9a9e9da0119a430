package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/klauspost/compress/gzhttp"
	"github.com/q-controller/mediarelay/src/mediarelayd/cmd/utils"
	"github.com/q-controller/mediarelay/src/pkg/auth"
	"github.com/q-controller/mediarelay/src/pkg/cache"
	"github.com/q-controller/mediarelay/src/pkg/logging"
	"github.com/q-controller/mediarelay/src/pkg/metrics"
	"github.com/q-controller/mediarelay/src/pkg/relay"
	"github.com/q-controller/mediarelay/src/pkg/store"
	"github.com/q-controller/mediarelay/src/pkg/transcode"
	"github.com/spf13/cobra"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

func createStore(config *Config) (store.Store, io.Closer, error) {
	switch config.Store.Type {
	case StoreLocal:
		st, err := store.NewLocalStore(config.Store.Local.Root)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case StoreS3:
		st, err := store.NewS3Store(store.S3Config{
			Bucket:   config.Store.S3.Bucket,
			Region:   config.Store.S3.Region,
			Endpoint: config.Store.S3.Endpoint,
			Insecure: config.Store.S3.Insecure,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, closerFunc(func() error { return nil }), nil
	}
	return nil, nil, fmt.Errorf("unknown store type %q", config.Store.Type)
}

func createSecret(config *Config) (*auth.Secret, error) {
	if config.Auth.SecretFile != "" {
		return auth.NewFromFile(config.Auth.SecretFile)
	}
	return auth.NewStatic(config.Auth.Secret)
}

// newRouter mounts the relay routes next to the operational endpoints.
func newRouter(handler *relay.Handler, m *metrics.Metrics) (http.Handler, error) {
	gw := runtime.NewServeMux()
	if err := handler.Register(gw); err != nil {
		return nil, fmt.Errorf("failed to register relay routes: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})
	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		doc, docErr := utils.GenerateOpenAPISpecs()
		if docErr != nil {
			logging.FromContext(r.Context()).Error("Failed to generate OpenAPI document", "error", docErr)
			http.Error(w, "Failed to generate document", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = io.WriteString(w, doc)
	})
	mux.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	mux.Handle("/", gw)

	return logging.Middleware(m.Middleware(gzhttp.GzipHandler(mux))), nil
}

type components struct {
	handler *relay.Handler
	metrics *metrics.Metrics
	secret  *auth.Secret
	closer  io.Closer
}

// build wires the store, cache and transcoders behind a relay handler.
func build(config *Config) (_ *components, retErr error) {
	st, closer, storeErr := createStore(config)
	if storeErr != nil {
		return nil, fmt.Errorf("failed to create store: %w", storeErr)
	}
	defer func() {
		if retErr != nil {
			if closeErr := closer.Close(); closeErr != nil {
				retErr = errors.Join(retErr, closeErr)
			}
		}
	}()

	secret, secretErr := createSecret(config)
	if secretErr != nil {
		return nil, fmt.Errorf("failed to load secret: %w", secretErr)
	}

	codec, codecErr := transcode.NewCodec(config.Transcode.Codec, config.Transcode.CjpegPath)
	if codecErr != nil {
		return nil, codecErr
	}
	slog.Info("Selected JPEG codec", "codec", codec.Name())

	m := metrics.New()
	c, cacheErr := cache.New(config.CachePath, st, transcode.DefaultRegistry(codec),
		cache.WithMetrics(m), cache.WithLogger(slog.Default()))
	if cacheErr != nil {
		return nil, cacheErr
	}

	svc, svcErr := relay.NewService(st, c, config.BaseURL, filepath.Join(config.CachePath, cache.TempDir), m)
	if svcErr != nil {
		return nil, svcErr
	}

	handler, handlerErr := relay.CreateHandler(svc, secret, config.MaxUploadBytes)
	if handlerErr != nil {
		return nil, handlerErr
	}

	return &components{
		handler: handler,
		metrics: m,
		secret:  secret,
		closer:  closer,
	}, nil
}

func serve(ctx context.Context, config *Config) (retErr error) {
	comps, buildErr := build(config)
	if buildErr != nil {
		return buildErr
	}
	defer func() {
		if closeErr := comps.closer.Close(); closeErr != nil {
			retErr = errors.Join(retErr, closeErr)
		}
	}()

	router, routerErr := newRouter(comps.handler, comps.metrics)
	if routerErr != nil {
		return routerErr
	}

	server := &http.Server{
		Addr:              config.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Listening", "address", config.Listen, "base_url", config.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		slog.Info("Shutting down")
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return comps.secret.Watch(gctx)
	})

	return g.Wait()
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the media relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, configPathErr := cmd.Flags().GetString("config")
		if configPathErr != nil {
			return fmt.Errorf("failed to get config: %w", configPathErr)
		}

		config, configErr := readConfig(configPath, os.LookupEnv)
		if configErr != nil {
			return fmt.Errorf("wrong configuration: %w", configErr)
		}
		slog.SetDefault(logging.CreateLogger(logging.LevelFromEnv(config.LogLevel)))
		slog.Debug("Read config", "listen", config.Listen, "cache_path", config.CachePath, "store", config.Store.Type)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, config)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "Path to the relay's config file")
}
