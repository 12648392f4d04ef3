// cmd/landlord is the interactive terminal client. It plays offline against
// two bots by default, or joins a relay room with -online.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"doudizhu/internal/session"
	"doudizhu/internal/transport"
)

func main() {
	var (
		online = flag.Bool("online", false, "join a relay room instead of playing offline")
		server = flag.String("server", envOr("RELAY_URL", "ws://localhost:8080"), "relay base URL")
		room   = flag.String("room", "lobby", "room code to join")
		name   = flag.String("name", envOr("PLAYER_NAME", "player"), "display name")
		debug  = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if *debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	if *online {
		runOnline(logger, *server, *room, *name)
		return
	}
	runOffline(logger, *name)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ---- offline ----

func runOffline(logger *logrus.Logger, name string) {
	s := session.NewLocalSession(name, logger)
	defer s.Close()

	updates := make(chan struct{}, 1)
	s.OnUpdate = func() { notify(updates) }

	fmt.Println("=== Fight the Landlord ===")
	fmt.Printf("Playing offline as %s against two bots.\n", name)
	if err := s.StartGame(); err != nil {
		fmt.Println("could not start:", err)
		return
	}

	ui := newUI(s, updates)
	ui.run()
}

// ---- online ----

func runOnline(logger *logrus.Logger, server, room, name string) {
	tr := transport.NewWSTransport(server, name, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	n, err := session.JoinRoom(ctx, tr, room, name, logger)
	if err != nil {
		fmt.Println("could not join room:", err)
		os.Exit(1)
	}
	defer n.Leave()

	updates := make(chan struct{}, 1)
	n.OnUpdate = func() { notify(updates) }

	fmt.Println("=== Fight the Landlord ===")
	if n.IsHost() {
		fmt.Printf("Hosting room %q as %s. Waiting for players...\n", room, name)
	} else {
		fmt.Printf("Joined room %q as %s.\n", room, name)
	}
	fmt.Println("Type 'r' to toggle ready once everyone is in.")

	ui := newUI(n, updates)
	ui.run()
}

// notify coalesces updates into a single pending redraw.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// readLines feeds stdin lines into a channel so the UI can select between
// user input and state updates.
func readLines() <-chan string {
	ch := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			ch <- strings.TrimSpace(scanner.Text())
		}
		close(ch)
	}()
	return ch
}

// parseIndexes turns "3 4 5" or "3,4,5" into hand indexes.
func parseIndexes(fields []string) ([]int, error) {
	var idx []int
	for _, f := range fields {
		for _, part := range strings.Split(f, ",") {
			if part == "" {
				continue
			}
			i, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("not a card number: %q", part)
			}
			idx = append(idx, i)
		}
	}
	return idx, nil
}
