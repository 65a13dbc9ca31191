package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/digitaljerry/mbus/api"
	"github.com/digitaljerry/mbus/config"
	"github.com/digitaljerry/mbus/metrics"
	"github.com/digitaljerry/mbus/model"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves departures over HTTP",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var (
	listenAddr      string
	refreshInterval time.Duration
)

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Listen address (default from MBUS_LISTEN)")
	serveCmd.Flags().DurationVarP(&refreshInterval, "refresh", "", 0, "Refresh all groups at this interval, keeping the cache warm")
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	if listenAddr == "" {
		listenAddr = appConfig.ListenAddr
	}

	groups := []model.JourneyGroup{}
	if _, err := os.Stat(groupsPath); err == nil {
		groups, err = config.ReadGroups(groupsPath)
		if err != nil {
			return err
		}
	} else {
		log.Warn().Str("path", groupsPath).Msg("No groups file, serving an empty board")
	}

	collector := metrics.NewCollector()
	resolver, closeStorage, err := buildResolver(collector)
	if err != nil {
		return err
	}
	defer closeStorage()

	server := api.NewServer(resolver, api.Options{
		Groups:         groups,
		Metrics:        collector,
		AllowedOrigins: appConfig.AllowedOrigins,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if refreshInterval > 0 && len(groups) > 0 {
		go func() {
			ticker := time.NewTicker(refreshInterval)
			defer ticker.Stop()
			for {
				resolver.Refresh(ctx, groups, "")
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", listenAddr).Int("groups", len(groups)).Msg("Serving")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
