package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"findb/internal/cli"
	"findb/internal/config"
	"findb/internal/dolt"
	"findb/internal/serve"
	"findb/internal/storage"
	"findb/internal/storage/open"
)

var (
	envFile    string
	configFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Flags().Changed("config-file"))
	},
}

func init() {
	serveCmd.Flags().StringVarP(&envFile, "env-file", "e", ".env", "Environment file")
	serveCmd.Flags().StringVarP(&configFile, "config-file", "c", "conf.yml", "Config file")
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads the config file. A missing default file yields the defaults.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		return config.Parse(nil)
	}
	return config.Load(path)
}

func runServe(explicitConfig bool) error {
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lshortfile)

	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}
	cfg, err := loadConfig(configFile, explicitConfig)
	if err != nil {
		return err
	}
	logger.Printf("starting api on %s using %s", cfg.Server.Addr(), cfg.Database.DSN)

	ctx, done := cli.SignalContext(context.Background(), logger)
	defer done()

	if cfg.Dolt.Repository.StartServer != "" {
		command, err := cli.SplitCommand(cfg.Dolt.Repository.StartServer)
		if err != nil {
			return fmt.Errorf("parse start_server: %w", err)
		}
		logger.Printf("start dolt server %v", command)
		srv, err := dolt.StartServer(ctx, dolt.ServerOptions{
			Dir:     cfg.Dolt.Repository.Path,
			Command: command,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		defer srv.Stop()
	}

	stores, err := open.DSN(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer stores.Close()

	quotes, err := open.Need(stores.Quotes, stores.Backend, "quote")
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	server := serve.NewServer(serve.Options{
		Sources:  map[string]storage.QuoteStore{serve.DefaultSource: quotes},
		Symbols:  stores.Symbols,
		PageSize: cfg.Server.PageSize,
		Logger:   logger,
	})

	logger.Println("starting http server")
	if err := server.ListenAndServe(ctx, cfg.Server.Addr(), cfg.Server.ShutdownTimeout); err != nil {
		return err
	}
	logger.Println("Shutdown complete")
	return nil
}
