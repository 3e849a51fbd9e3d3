package main

import (
	"net/http"

	"lingopad/config/database"
	"lingopad/internal/collab"
	"lingopad/internal/document/delta"
	"lingopad/internal/document/repository"
	"lingopad/internal/document/service"
	"lingopad/pkg/logger"
	"lingopad/router"
	"lingopad/socket"

	"github.com/joho/godotenv"
)

func main() {
	logger.Init()
	defer logger.Log.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	db := database.Connect()
	defer db.Close()

	registry := collab.NewRegistry()
	hub := socket.NewHub(registry)

	repo := repository.NewDocumentRepository(db, delta.Codec{})
	coord := collab.NewCoordinator(repo, registry, hub)
	docService := service.NewDocumentService(repo, hub)

	logger.Sugar.Info("Backend listening on :8080")
	if err := http.ListenAndServe(":8080", router.Setup(hub, coord, docService)); err != nil {
		logger.Sugar.Fatalf("Server failed: %v", err)
	}
}
