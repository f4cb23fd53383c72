package main

import (
	"fmt"
	"net/http"
	"os"

	"taskboard-backend/api"
	"taskboard-backend/pkg/config"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/realtime"
)

func main() {
	cfg := config.GetCached()
	if err := cfg.Validate(); err != nil {
		fmt.Printf("❌ Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	db := database.NewDatabase(database.DatabaseConfig{
		UseMemoryDB: cfg.UseMemoryDB,
		PostgresDSN: cfg.PostgresDSN,
		Debug:       cfg.Debug,
	})
	defer db.Close()

	if err := db.HealthCheck(); err != nil {
		fmt.Printf("❌ Database health check failed: %v\n", err)
		os.Exit(1)
	}

	hub := realtime.NewHub()
	router := api.NewRouter(cfg, db, hub)

	addr := ":" + cfg.Port
	fmt.Printf("🚀 Task board backend starting on %s (env=%s)\n", addr, cfg.Environment)
	fmt.Printf("📡 Realtime endpoint at ws://localhost%s/ws\n", addr)

	if err := http.ListenAndServe(addr, router); err != nil {
		fmt.Printf("❌ Server error: %v\n", err)
		os.Exit(1)
	}
}
