package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/benelink/benelink-go/internal/config"
	"github.com/benelink/benelink-go/internal/tokenstore"
	"github.com/benelink/benelink-go/sdk/benelink"
)

// FetchOptions tunes resource fetches from the command line.
type FetchOptions struct {
	// Count limits the number of resources per page.
	Count int

	// StartIndex skips into the result set.
	StartIndex int
}

// DoUserinfo fetches and prints the authorized beneficiary's profile.
func DoUserinfo(cfg *config.Config, tokens *TokenOptions) {
	client, token, store, ok := fetchSetup(cfg, tokens)
	if !ok {
		return
	}
	token = freshToken(client, store, tokens, token)

	info, err := client.Userinfo(context.Background(), token)
	if err != nil {
		fmt.Printf("Userinfo request failed: %v\n", err)
		return
	}
	fmt.Printf("Subject:  %s\n", info.Sub)
	fmt.Printf("Name:     %s\n", info.Name)
	fmt.Printf("Patient:  %s\n", info.Patient)
}

// DoFetchResource fetches and prints one page of a FHIR resource.
//
// Parameters:
//   - cfg: The application configuration
//   - tokens: Token persistence options
//   - resource: One of Patient, Coverage, ExplanationOfBenefit
//   - options: Paging options; nil requests the server defaults
func DoFetchResource(cfg *config.Config, tokens *TokenOptions, resource string, options *FetchOptions) {
	client, token, store, ok := fetchSetup(cfg, tokens)
	if !ok {
		return
	}
	token = freshToken(client, store, tokens, token)

	var opts *benelink.ResourceOptions
	if options != nil {
		opts = &benelink.ResourceOptions{Count: options.Count, StartIndex: options.StartIndex}
	}

	ctx := context.Background()
	var bundle *benelink.Bundle
	var err error
	switch resource {
	case "Patient":
		bundle, err = client.Patient(ctx, token, opts)
	case "Coverage":
		bundle, err = client.Coverage(ctx, token, opts)
	case "ExplanationOfBenefit":
		bundle, err = client.ExplanationOfBenefit(ctx, token, opts)
	default:
		fmt.Printf("Unknown resource %q\n", resource)
		return
	}
	if err != nil {
		fmt.Printf("%s request failed: %v\n", resource, err)
		return
	}

	log.Debugf("fetched %s bundle: %d of %d entries", resource, len(bundle.Entries()), bundle.Total())
	printJSON(bundle.Raw())
	if next := bundle.NextURL(); next != "" {
		fmt.Printf("\nNext page: %s\n", next)
	}
}

// fetchSetup builds the client and loads the stored token shared by every
// fetch command.
func fetchSetup(cfg *config.Config, tokens *TokenOptions) (*benelink.Client, *benelink.AuthorizationToken, *tokenstore.Store, bool) {
	client, err := newClient(cfg)
	if err != nil {
		fmt.Printf("BeneLink client setup failed: %v\n", err)
		return nil, nil, nil, false
	}
	store, err := newTokenStore(cfg, tokens)
	if err != nil {
		fmt.Printf("Token store setup failed: %v\n", err)
		return nil, nil, nil, false
	}
	token, err := loadToken(store, tokens)
	if err != nil {
		fmt.Printf("Failed to load token: %v\n", err)
		return nil, nil, nil, false
	}
	return client, token, store, true
}

// freshToken refreshes an expiring token before use, best effort. The fetch
// proceeds with the stored token when the refresh fails; the resource server
// gives the authoritative answer on whether it still works.
func freshToken(client *benelink.Client, store *tokenstore.Store, tokens *TokenOptions, token *benelink.AuthorizationToken) *benelink.AuthorizationToken {
	if !token.ExpiresWithin(benelink.DefaultExpiryLead) || token.RefreshToken == "" {
		return token
	}
	log.Debug("stored token expires soon, refreshing")
	refreshed, err := client.Refresh(context.Background(), token)
	if err != nil {
		log.Warnf("token refresh failed, continuing with stored token: %v", err)
		return token
	}
	if _, err := saveToken(store, tokens, refreshed); err != nil {
		log.Warnf("failed to persist refreshed token: %v", err)
	}
	return refreshed
}

// printJSON pretty-prints a raw JSON document.
func printJSON(raw []byte) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(buf.String())
}
