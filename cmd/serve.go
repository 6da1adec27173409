package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KaramelBytes/soilfusion-cli/internal/history"
	"github.com/KaramelBytes/soilfusion-cli/internal/narrative"
	"github.com/KaramelBytes/soilfusion-cli/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API (health, upload, run-pipeline, predict, history)",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		addr := cfg.ServerAddr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		if !debug {
			gin.SetMode(gin.ReleaseMode)
		}
		log := logger()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var store *history.Store
		if cfg.HistoryDB != "" {
			if store, err = history.Open(ctx, cfg.HistoryDB); err != nil {
				return err
			}
			defer store.Close()
		}
		h := server.NewHandler(p, store, narrative.ParseLang(cfg.Language), log)
		srv := &http.Server{
			Addr:              addr,
			Handler:           server.NewRouter(h),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errc := make(chan error, 1)
		go func() { errc <- srv.ListenAndServe() }()
		log.Infow("server listening", "addr", addr, "data_dir", p.DataDir, "model_dir", p.ModelDir, "history", store != nil)
		fmt.Fprintf(cmd.OutOrStdout(), "Server running on %s\n", addr)

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}
		log.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :5001)")
}
