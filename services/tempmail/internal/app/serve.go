package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stoik/tempmail/services/tempmail/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the session over HTTP",
	Long:  "Runs one session and exposes it as a JSON API with a server-sent event stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, closeStore, err := openPrefs(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		manager, err := newManager(cfg)
		if err != nil {
			return err
		}
		defer manager.Close()
		manager.Start(ctx)

		if cfg.Log.Level != "debug" && cfg.Log.Level != "trace" {
			gin.SetMode(gin.ReleaseMode)
		}

		httpServer := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           server.New(manager, store).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errChan := make(chan error, 1)
		go func() {
			log.Infof("Starting tempmail API on %s", cfg.Server.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
			close(errChan)
		}()

		// Handle graceful shutdown
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigChan:
			fmt.Println("\nShutting down gracefully...")
			cancel()

			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			defer done()
			// Event streams end once the manager closes their subscriptions
			manager.Close()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				fmt.Println("Warning: Some requests may not have completed")
			}
			return nil
		case err, ok := <-errChan:
			if !ok {
				return nil
			}
			return err
		}
	},
}

func init() {
	serveCmd.Flags().String("server.addr", ":8090", "Listen address")
	if err := viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("server.addr")); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(serveCmd)
}
