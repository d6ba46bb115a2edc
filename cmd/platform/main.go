package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/storefrontlabs/reserveflow/internal/platform"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	handler := platform.NewHandler(logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /channels", handler.HandleCreateChannel)
	mux.HandleFunc("POST /channels/{scope}/show", handler.HandleShowChannel)
	mux.HandleFunc("POST /channels/{scope}/hide", handler.HandleHideChannel)
	mux.HandleFunc("PATCH /channels/{scope}/name", handler.HandleRenameChannel)
	mux.HandleFunc("POST /channels/{scope}/messages", handler.HandleSendMessage)
	mux.HandleFunc("PATCH /channels/{scope}/messages/{messageId}", handler.HandleEditMessage)
	mux.HandleFunc("GET /channels/{scope}/messages/{messageId}", handler.HandleGetMessage)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8084"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting platform service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
