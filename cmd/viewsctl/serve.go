package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	views "github.com/goliatone/go-views"
	transporthttp "github.com/goliatone/go-views/pkg/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve views over HTTP",
	Long:  `Serve renders GET {prefix}/{view} with the query string as model until interrupted.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, engine, err := setup(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := transporthttp.NewServer(
			engine.Handler(views.RouterConfig(cfg, logger)),
			transporthttp.WithServerLogger(logger),
			transporthttp.WithServerConfig(transporthttp.ServerConfig{
				Addr:            cfg.Server.Addr,
				ReadTimeout:     cfg.Server.ReadTimeout,
				WriteTimeout:    cfg.Server.WriteTimeout,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
			}),
		)
		logger.Info("serving views", "addr", cfg.Server.Addr, "prefix", cfg.Server.Prefix, "views", len(engine.Views()))
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address, overrides server.addr")
	rootCmd.AddCommand(serveCmd)
}
