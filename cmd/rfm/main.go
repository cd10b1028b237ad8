package main

import (
	"log"
	"os"

	"customer-segments/config"
	"customer-segments/internal/util"
)

func main() {
	cfg := config.Load()
	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	if err := newRootCmd(cfg).Execute(); err != nil {
		util.SyncLogger()
		os.Exit(1)
	}
}
