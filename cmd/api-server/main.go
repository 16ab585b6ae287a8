package main

import (
	"Swan/config"
	"Swan/pkg/database"
	"Swan/pkg/log"
	"Swan/pkg/server"
	"Swan/pkg/snowflake"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	cliApp := &cli.App{
		Name:  "api-server",
		Usage: "gamification api",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file, defaults to configs/config.$APP_ENV.yaml",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start http server",
				Action: func(ctx *cli.Context) error {
					cfg, err := loadConfig(ctx)
					if err != nil {
						return err
					}
					appProvider, cleanup, err := InitServer(cfg)
					if err != nil {
						return err
					}
					defer cleanup()
					return server.Run(ctx, appProvider)
				},
			},
			{
				Name:  "migrate",
				Usage: "create or update tables",
				Action: func(ctx *cli.Context) error {
					cfg, err := loadConfig(ctx)
					if err != nil {
						return err
					}
					db, err := database.NewDB(cfg)
					if err != nil {
						return err
					}
					if err := database.Migrate(db); err != nil {
						return fmt.Errorf("migrate: %w", err)
					}
					log.L.Info("migrate success", zap.String("driver", cfg.Database.Driver))
					return nil
				},
			},
		},
	}
	if err := cliApp.Run(os.Args); err != nil {
		log.L.Fatal("failed to start server", zap.Error(err))
	}
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	path := ctx.String("config")
	if path == "" {
		env := os.Getenv("APP_ENV")
		if env == "" {
			env = "dev"
		}
		path = fmt.Sprintf("configs/config.%s.yaml", env)
	}
	cfg := config.New(path)

	log.SetLevel(cfg.App.LogLevel)
	if err := snowflake.Init(cfg.App.NodeID); err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.App.NodeID, err)
	}
	return cfg, nil
}
