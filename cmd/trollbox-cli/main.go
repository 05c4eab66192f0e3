// Command trollbox-cli is a terminal chat client. It keeps one managed
// connection to a trollbox server, prints broadcasts to stdout, and sends
// stdin lines as chat messages. "/nick <name>" requests a username change.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"trollbox/internal/client"
	"trollbox/internal/protocol"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "trollbox websocket url")
	address := flag.String("address", "", "wallet address to authenticate as")
	name := flag.String("name", "", "requested username (first auth only)")
	ref := flag.String("ref", "", "referral code to attribute on first auth")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	if *address == "" {
		fmt.Fprintln(os.Stderr, "-address is required")
		os.Exit(1)
	}

	mgr := client.New(client.DefaultConfig(), logger)
	defer mgr.Close()

	mgr.AddListener(func(ev client.Event) {
		switch ev.Type {
		case client.EventConnected:
			fmt.Println("* connected")
			mgr.SendMessage(map[string]string{
				"type":     protocol.TypeAuth,
				"address":  *address,
				"username": *name,
				"ref":      *ref,
			})

		case client.EventDisconnected:
			fmt.Println("* disconnected")

		case client.EventError:
			if ev.Err != nil {
				fmt.Fprintf(os.Stderr, "* transport error: %v\n", ev.Err)
			}
			var ef protocol.ErrorFrame
			if ev.Data != nil && json.Unmarshal(ev.Data, &ef) == nil && ef.Message != "" {
				fmt.Fprintf(os.Stderr, "! %s\n", ef.Message)
			}

		case protocol.TypeAuthenticated, protocol.TypeUsernameChanged:
			var res protocol.AuthResult
			if json.Unmarshal(ev.Data, &res) == nil {
				fmt.Printf("* you are %s", res.Username)
				if !res.CanChangeUsername {
					fmt.Printf(" (rename available in %s)", time.Duration(res.CooldownRemaining)*time.Millisecond)
				}
				fmt.Println()
			}

		case protocol.TypeMessage:
			var msg protocol.ChatMessage
			if json.Unmarshal(ev.Data, &msg) == nil {
				fmt.Printf("<%s> %s\n", msg.Username, msg.Content)
			}

		case protocol.TypeTradeAlert:
			var alert protocol.TradeAlert
			if json.Unmarshal(ev.Data, &alert) == nil {
				fmt.Println(alert.Content)
			}

		}
	})

	mgr.Connect(*url)
	mgr.StartPing()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if nick, ok := strings.CutPrefix(line, "/nick "); ok {
			mgr.SendMessage(map[string]string{
				"type":     protocol.TypeChangeUsername,
				"username": strings.TrimSpace(nick),
			})
			continue
		}

		if !mgr.SendMessage(map[string]string{"type": protocol.TypeMessage, "content": line}) {
			fmt.Fprintln(os.Stderr, "! not connected, message dropped")
		}
	}
}
