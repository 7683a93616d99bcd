package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"global-chat/pkg/logger"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type outgoing struct {
	ID   string `json:"id"`
	User string `json:"user"`
	Text string `json:"text"`
	Sent int64  `json:"clientTimestamp"`
}

type incoming struct {
	ID              string `json:"id"`
	User            string `json:"user"`
	Text            string `json:"text"`
	ServerTimestamp int64  `json:"serverTimestamp"`
}

var palette = []*color.Color{
	color.New(color.FgCyan),
	color.New(color.FgGreen),
	color.New(color.FgYellow),
	color.New(color.FgMagenta),
	color.New(color.FgBlue),
	color.New(color.FgRed),
}

func colorFor(user string) *color.Color {
	h := fnv.New32a()
	h.Write([]byte(user))
	return palette[h.Sum32()%uint32(len(palette))]
}

func main() {
	url := flag.String("url", "ws://localhost:8080/chat", "relay WebSocket URL")
	user := flag.String("user", "", "name sent in the user field (default: random)")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	log := logger.NewWithWriter(os.Stderr, *logLevel, "text")
	if *user == "" {
		*user = "guest-" + uuid.NewString()[:8]
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		log.Error("Failed to connect", "url", *url, "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	color.New(color.Faint).Printf("Connected to %s as %s\n", *url, *user)

	done := make(chan struct{})
	go readLoop(conn, log, done)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				closeConn(conn)
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			payload, _ := json.Marshal(outgoing{
				ID:   uuid.NewString(),
				User: *user,
				Text: line,
				Sent: time.Now().UnixMilli(),
			})
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Error("Failed to send message", "error", err)
				return
			}
		case <-done:
			color.New(color.Faint).Println("Disconnected from chat server")
			return
		case <-quit:
			closeConn(conn)
			return
		}
	}
}

func readLoop(conn *websocket.Conn, log *slog.Logger, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Debug("Read loop finished", "error", err)
			return
		}

		var msg incoming
		if err := json.Unmarshal(data, &msg); err != nil || msg.User == "" {
			fmt.Println(string(data))
			continue
		}

		ts := time.UnixMilli(msg.ServerTimestamp).Format("15:04:05")
		colorFor(msg.User).Printf("[%s] %s: ", ts, msg.User)
		fmt.Println(msg.Text)
	}
}

func closeConn(conn *websocket.Conn) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
