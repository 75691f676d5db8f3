// Command rosterctl administers the roster store from the terminal
package main

import (
	"context"
	"log"
	"os"

	"afterschool-toast/config"
	"afterschool-toast/internal/logger"
	"afterschool-toast/internal/repository"
	"afterschool-toast/internal/seed"
	"afterschool-toast/internal/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	// keep the terminal for command output
	cfg.Log.Level = "warn"
	zlog, err := logger.NewLogger(cfg.Log)
	errAndDie(err)

	ctx := context.Background()
	kv, err := repository.OpenKV(ctx, cfg.Store, zlog)
	errAndDie(err)

	store := repository.NewRosterStore(kv, seed.Default(), repository.StoreOptions(cfg.Store, zlog)...)
	cli := commandLine{
		kv:    kv,
		store: store,
		svc:   services.NewRosterService(store, nil, zlog),
		out:   os.Stdout,
	}

	err = cli.run(ctx, os.Args)
	_ = kv.Close()
	if err != nil {
		if err != errHelp {
			log.Printf("error: %s", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
