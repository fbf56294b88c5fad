package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

type ConsoleConfig struct {
	APIBaseURL string
	ProfileID  uuid.UUID
	Timeout    time.Duration
}

func main() {
	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		Timeout:    30 * time.Second,
	}

	profile := os.Getenv("PROFILE_ID")
	if profile == "" {
		cfg.ProfileID = uuid.New()
		fmt.Printf("No PROFILE_ID set, using new profile %s\n", cfg.ProfileID)
	} else {
		id, err := uuid.Parse(profile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid PROFILE_ID: %v\n", err)
			os.Exit(1)
		}
		cfg.ProfileID = id
	}

	api := &apiClient{
		baseURL:   cfg.APIBaseURL,
		client:    &http.Client{Timeout: cfg.Timeout},
		profileID: cfg.ProfileID,
	}

	if !api.testConnection() {
		fmt.Fprintf(os.Stderr, "Could not connect to API at %s. Please ensure the API is running.\n", cfg.APIBaseURL)
		os.Exit(1)
	}

	hunts, err := api.listHunts()
	if err != nil || len(hunts) == 0 {
		fmt.Fprintf(os.Stderr, "Failed to list hunts: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(api, hunts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
