package main

import (
	app "ad-routing-service/internal/app/server"
	"ad-routing-service/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel)
	app.Run(cfg)
}
