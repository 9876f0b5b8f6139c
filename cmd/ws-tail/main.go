package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/luxfi/log"
)

type subscribeRequest struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
}

type message struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func main() {
	var (
		wsURL   = flag.String("url", "ws://localhost:8081/ws", "WebSocket URL")
		channel = flag.String("channel", "events:all", "Channel to subscribe")
		timeout = flag.Duration("timeout", 0, "Exit after this duration (0 runs until interrupted)")
	)
	flag.Parse()

	level, _ := log.ToLevel("info")
	logger := log.NewTestLogger(level)

	u, err := url.Parse(*wsURL)
	if err != nil {
		logger.Error("Invalid URL", "error", err)
		os.Exit(1)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		logger.Error("Failed to connect", "url", u.String(), "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	logger.Info("Connected", "url", u.String())

	sub := subscribeRequest{Type: "subscribe", Channels: []string{*channel}}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Error("Failed to subscribe", "error", err)
		os.Exit(1)
	}
	logger.Info("Subscribed", "channel", *channel)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, raw, err := conn.ReadMessage()
			if err != nil {
				logger.Warn("Read error", "error", err)
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			var msg message
			if err := json.Unmarshal(raw, &msg); err != nil {
				logger.Info("Raw message", "data", string(raw))
				continue
			}
			logger.Info("Event", "type", msg.Type, "channel", msg.Channel,
				"data", fmt.Sprintf("%+v", msg.Data))
		}
	}()

	var expired <-chan time.Time
	if *timeout > 0 {
		expired = time.After(*timeout)
	}
	select {
	case <-done:
		logger.Info("Connection closed")
	case <-interrupt:
		logger.Info("Interrupt received, closing connection")
		err := conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			logger.Warn("Failed to send close message", "error", err)
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	case <-expired:
		logger.Info("Timeout reached")
	}
}
