package cmd

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/benelink/benelink-go/internal/config"
)

// DoRefresh exchanges the stored refresh token for a new credential and
// persists it.
//
// Parameters:
//   - cfg: The application configuration
//   - tokens: Token persistence options
func DoRefresh(cfg *config.Config, tokens *TokenOptions) {
	client, err := newClient(cfg)
	if err != nil {
		fmt.Printf("BeneLink client setup failed: %v\n", err)
		return
	}
	store, err := newTokenStore(cfg, tokens)
	if err != nil {
		fmt.Printf("Token store setup failed: %v\n", err)
		return
	}

	token, err := loadToken(store, tokens)
	if err != nil {
		fmt.Printf("Failed to load token: %v\n", err)
		return
	}

	log.Debugf("refreshing access token for patient %s", token.Patient)
	refreshed, err := client.Refresh(context.Background(), token)
	if err != nil {
		fmt.Printf("Token refresh failed: %v\n", err)
		return
	}

	savedPath, err := saveToken(store, tokens, refreshed)
	if err != nil {
		fmt.Printf("Failed to save refreshed token: %v\n", err)
		return
	}

	fmt.Printf("Token refreshed and saved to %s\n", savedPath)
	fmt.Printf("New expiry: %s\n", refreshed.ExpiresAt.Format(time.RFC3339))
}
