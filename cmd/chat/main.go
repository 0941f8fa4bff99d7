// Command chat is a terminal client for the chat relay.
package main

import (
	"flag"
	"net/http"
	"path/filepath"
	"time"

	"chat_relay_go_backend/internal/client"
	"chat_relay_go_backend/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
)

func main() {
	dir, err := client.ConfigDir()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to locate config dir")
	}

	configPath := flag.String("config", filepath.Join(dir, "client.toml"), "path to the client config file")
	serverURL := flag.String("server", "", "relay base URL (overrides config)")
	flag.Parse()

	cfg, err := client.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}

	userID, err := client.LoadOrCreateUserID(dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load user id")
	}

	c := client.New(cfg.ServerURL, userID, client.NewSessionID(), &http.Client{Timeout: 2 * time.Minute})
	p := tea.NewProgram(tui.New(c, cfg.RevealInterval(), cfg.MaxWords), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatal().Err(err).Msg("Chat client exited with error")
	}
}
