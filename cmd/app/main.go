package main

import (
	"eventasap/config"
	"eventasap/di"
	"eventasap/shared/logger"
)

func main() {
	cfg := config.Get()

	logger.InitLogger()

	logger.SetLogLevel(cfg)

	http := di.InitializeService()
	http.Serve()
}
