package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/ardanlabs/conf/v3"
	"github.com/sirupsen/logrus"
	"github.com/veciapp/marketplace/api"
	"github.com/veciapp/marketplace/catalog"
	"github.com/veciapp/marketplace/config"
	"github.com/veciapp/marketplace/database"
	"github.com/veciapp/marketplace/rate"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	const prefix = "MARKET"
	var cfg config.Config
	if _, err := conf.Parse(prefix, &cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Catalog.ConnectTimeout)
	defer cancel()
	mcl, err := catalog.Connect(ctx, cfg.Catalog.URI)
	if err != nil {
		return fmt.Errorf("failed to connect to the catalog store: %w", err)
	}
	cat := catalog.New(mcl, cfg.Catalog.Database, cfg.Catalog.QueryTimeout)

	sessionManager := scs.New()
	sessionManager.Lifetime = 24 * time.Hour

	limiter := rate.NewLimiter(cfg.Rate.Burst, cfg.Rate.ExpiryMins, cfg.Rate.LimitRPS)

	mux := api.APIMux(api.APIConfig{
		CorsOrigin: cfg.Cors.Origin,
		Log:        logger,
		DB:         db,
		Session:    sessionManager,
		Catalog:    cat,
		Limiter:    limiter,
		UploadDir:  cfg.Uploads.Dir,
	})

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		if err := mcl.Disconnect(ctx); err != nil {
			return fmt.Errorf("could not close the catalog connection: %w", err)
		}
	}
	return nil
}
