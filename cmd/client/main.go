package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nandalalm/Fixeify-sub002/infrastructure/ws"
	"github.com/nandalalm/Fixeify-sub002/internal/entity"
	"github.com/nandalalm/Fixeify-sub002/internal/router"
	"github.com/nandalalm/Fixeify-sub002/internal/session"
	"github.com/nandalalm/Fixeify-sub002/internal/transport/rest"
)

// refreshClient exchanges the long-lived refresh token for a fresh access
// token through the auth endpoint.
type refreshClient struct {
	url          string
	refreshToken string
}

func (r *refreshClient) Refresh(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": r.refreshToken})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refresh: status %d", resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.AccessToken, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("godotenv: error loading .env file")
	}

	apiUrl := getenv("FIXEIFY_API_URL", "http://localhost:8080")
	wsUrl := getenv("FIXEIFY_WS_URL", "ws://localhost:8080/ws")
	accessToken := os.Getenv("FIXEIFY_TOKEN")
	refreshToken := os.Getenv("FIXEIFY_REFRESH_TOKEN")
	actorId := os.Getenv("FIXEIFY_ACTOR_ID")
	role := entity.Role(getenv("FIXEIFY_ROLE", string(entity.RoleUser)))

	if accessToken == "" || actorId == "" {
		log.Fatal("FIXEIFY_TOKEN and FIXEIFY_ACTOR_ID are required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	actor := entity.Actor{Id: actorId, Role: role}

	restClient := rest.NewClient(apiUrl, accessToken)
	stream := ws.NewClient(wsUrl, logger)
	refresher := &refreshClient{url: apiUrl + "/api/auth/refresh", refreshToken: refreshToken}

	sess := session.New(actor, restClient, stream, refresher, logger)
	sess.OnConnectionState(func(state router.ConnectionState) {
		logger.Info("connection state", slog.String("state", string(state)))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sess.Connect(ctx, accessToken); err != nil {
		log.Fatalf("connect: %v", err)
	}
	if err := sess.LoadConversations(ctx); err != nil {
		logger.Error("load conversations", slog.Any("error", err))
	}

	for _, c := range sess.Conversations().List() {
		preview := ""
		if c.LastMessage != nil {
			preview = c.LastMessage.Content
		}
		logger.Info("conversation",
			slog.String("id", c.Id),
			slog.String("with", c.Other(actor.Id).DisplayName),
			slog.Int("unread", c.UnreadCount),
			slog.String("lastMessage", preview),
		)
	}

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				logger.Info("unread notifications",
					slog.Int("all", sess.Notifications().UnreadCount(entity.ViewAll)),
					slog.Int("message", sess.Notifications().UnreadCount(entity.ViewMessage)),
				)
			case <-ctx.Done():
				return
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	if err := sess.Close(); err != nil {
		logger.Error("close session", slog.Any("error", err))
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
