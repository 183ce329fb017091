// Probe is a terminal client for poking a running relay: it mints a token,
// connects to /ws, optionally fires a message into a chat, and pretty-prints
// every frame the relay pushes back.
//
// Usage:
//
//	AUTH_SECRET=dev-secret go run ./cmd/probe -user alice -chat chat-1 -text "hello"
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"

	"chat-relay/auth"
	"chat-relay/transport/ws"
)

type Config struct {
	RelayAddr string `envconfig:"RELAY_ADDR" default:"localhost:8080"`
	// AUTH_SECRET lets the probe mint its own token; PROBE_TOKEN overrides it.
	AuthSecret string        `envconfig:"AUTH_SECRET"`
	Token      string        `envconfig:"PROBE_TOKEN"`
	TokenTTL   time.Duration `envconfig:"PROBE_TOKEN_TTL" default:"1h"`
	Colours    bool          `envconfig:"PROBE_COLOURS" default:"true"`
}

func main() {
	userID := flag.String("user", "probe", "user id to connect as")
	chatID := flag.String("chat", "", "chat to send into (optional)")
	text := flag.String("text", "", "message content to send (requires -chat)")
	listen := flag.Duration("listen", 0, "stop after this duration (0 = until interrupt)")
	flag.Parse()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal("config: ", err)
	}

	token := cfg.Token
	if token == "" {
		if cfg.AuthSecret == "" {
			log.Fatal("either PROBE_TOKEN or AUTH_SECRET must be set")
		}
		var err error
		token, err = auth.GenerateToken([]byte(cfg.AuthSecret), *userID, cfg.TokenTTL)
		if err != nil {
			log.Fatal("minting token: ", err)
		}
	}

	target := url.URL{
		Scheme:   "ws",
		Host:     cfg.RelayAddr,
		Path:     "/ws",
		RawQuery: url.Values{"token": {token}}.Encode(),
	}
	conn, _, err := websocket.DefaultDialer.Dial(target.String(), nil)
	if err != nil {
		log.Fatalf("dialing %s: %v", cfg.RelayAddr, err)
	}
	defer conn.Close()
	banner(cfg, fmt.Sprintf("connected to %s as %s", cfg.RelayAddr, *userID))

	if *chatID != "" && *text != "" {
		if err := sendMessage(conn, *chatID, *text); err != nil {
			log.Fatal("sending message: ", err)
		}
	}

	frames := make(chan ws.Frame)
	go func() {
		defer close(frames)
		for {
			var frame ws.Frame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			frames <- frame
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var deadline <-chan time.Time
	if *listen > 0 {
		deadline = time.After(*listen)
	}

	counts := map[string]int{}
loop:
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				banner(cfg, "connection closed by relay")
				break loop
			}
			counts[frame.Event]++
			printFrame(cfg, frame)
		case <-interrupt:
			break loop
		case <-deadline:
			break loop
		}
	}

	summarize(counts)
}

func sendMessage(conn *websocket.Conn, chatID, text string) error {
	data, err := json.Marshal(map[string]string{"chatId": chatID, "content": text})
	if err != nil {
		return err
	}
	return conn.WriteJSON(ws.Frame{Event: ws.EventSendMessage, Data: data})
}

func banner(cfg Config, text string) {
	line := fmt.Sprintf("  ====== %s ======", text)
	if cfg.Colours {
		line = color.New(color.BgBlack, color.FgGreen).Render(line)
	}
	fmt.Println(line)
}

func printFrame(cfg Config, frame ws.Frame) {
	label := frame.Event
	if cfg.Colours {
		switch {
		case frame.Event == "error" || frame.Event == "call-error":
			label = color.FgRed.Render(label)
		case strings.HasPrefix(frame.Event, "call-"):
			label = color.FgYellow.Render(label)
		case strings.HasPrefix(frame.Event, "presence-"):
			label = color.FgCyan.Render(label)
		default:
			label = color.FgGreen.Render(label)
		}
	}
	fmt.Printf("%s %s %s\n", time.Now().Format("15:04:05"), label, string(frame.Data))
}

func summarize(counts map[string]int) {
	if len(counts) == 0 {
		fmt.Println("no frames received")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Event", "Count"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for event, count := range counts {
		table.Append([]string{event, fmt.Sprintf("%d", count)})
	}
	table.Render()
}
