package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/m3rciful/makbot/app"
	"github.com/m3rciful/makbot/config"
	corebootstrap "github.com/m3rciful/makbot/core/bootstrap"
	"github.com/m3rciful/makbot/core/buildinfo"
	corecmd "github.com/m3rciful/makbot/core/cmd"
)

func main() {
	// Local development convenience; in production env vars come from the host.
	_ = godotenv.Load()

	log.Printf("makbot %s (%s)", buildinfo.Version, buildinfo.Commit)

	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config/config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg, ok := carrier.(*config.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", carrier)
			}
			res, err := corebootstrap.Run(corebootstrap.Options{
				Config:   cfg.CoreConfig(),
				Database: cfg.Database,
			})
			if err != nil {
				return nil, err
			}
			return app.New(cfg, res.DB)
		},
	})
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
}
