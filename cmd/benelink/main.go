// Package main provides the entry point for the BeneLink command-line tool.
// It drives the interactive authorization flow, refreshes and inspects stored
// tokens, fetches the authorized beneficiary's FHIR resources, and hosts the
// local demonstration web application.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/benelink/benelink-go/internal/buildinfo"
	"github.com/benelink/benelink-go/internal/cmd"
	"github.com/benelink/benelink-go/internal/config"
	"github.com/benelink/benelink-go/internal/logging"
	"github.com/benelink/benelink-go/internal/util"
)

// Build metadata, injected via -ldflags at release time.
var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

// main parses command-line flags, loads configuration, and runs the selected
// mode: interactive login, token refresh, a resource fetch, or the web app.
func main() {
	var login bool
	var refresh bool
	var userinfo bool
	var patient bool
	var coverage bool
	var eob bool
	var webApp bool
	var showVersion bool
	var noBrowser bool
	var callbackPort int
	var configPath string
	var tokenFile string
	var encrypt bool
	var count int
	var startIndex int

	flag.BoolVar(&login, "login", false, "Authorize a BeneLink account and store the token")
	flag.BoolVar(&refresh, "refresh", false, "Refresh the stored token")
	flag.BoolVar(&userinfo, "userinfo", false, "Fetch the authorized beneficiary's profile")
	flag.BoolVar(&patient, "patient", false, "Fetch the Patient resource bundle")
	flag.BoolVar(&coverage, "coverage", false, "Fetch the Coverage resource bundle")
	flag.BoolVar(&eob, "eob", false, "Fetch the ExplanationOfBenefit resource bundle")
	flag.BoolVar(&webApp, "webapp", false, "Run the local demonstration web application")
	flag.BoolVar(&showVersion, "v", false, "Print version information and exit")
	flag.BoolVar(&noBrowser, "no-browser", false, "Don't open the browser automatically during login")
	flag.IntVar(&callbackPort, "callback-port", 0, "Override the local callback port during login")
	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configuration file path")
	flag.StringVar(&tokenFile, "token-file", "", "Token file path (defaults to the patient-derived path under token-dir)")
	flag.BoolVar(&encrypt, "encrypt", false, "Encrypt stored token files (requires BENELINK_TOKEN_PASSPHRASE)")
	flag.IntVar(&count, "count", 0, "Resources per page for resource fetches")
	flag.IntVar(&startIndex, "start-index", 0, "Result offset for resource fetches")
	flag.Parse()

	if showVersion {
		fmt.Printf("benelink version %s, commit %s, built at %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	// Determine and load the configuration file. A missing file is fine as
	// long as the BENELINK_* environment variables carry the credentials.
	configFilePath := configPath
	if configFilePath == "" {
		configFilePath = filepath.Join(wd, "config.yaml")
	}
	cfg, err := config.LoadConfigOptional(configFilePath)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return
	}

	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		return
	}
	util.SetLogLevel(cfg)

	options := &cmd.LoginOptions{
		NoBrowser:    noBrowser,
		CallbackPort: callbackPort,
	}
	tokens := &cmd.TokenOptions{
		File:       tokenFile,
		Encrypt:    encrypt,
		Passphrase: strings.TrimSpace(os.Getenv("BENELINK_TOKEN_PASSPHRASE")),
	}
	fetchOptions := &cmd.FetchOptions{
		Count:      count,
		StartIndex: startIndex,
	}

	// Handle different command modes based on the provided flags.
	if login {
		cmd.DoLogin(cfg, options, tokens)
	} else if refresh {
		cmd.DoRefresh(cfg, tokens)
	} else if userinfo {
		cmd.DoUserinfo(cfg, tokens)
	} else if patient {
		cmd.DoFetchResource(cfg, tokens, "Patient", fetchOptions)
	} else if coverage {
		cmd.DoFetchResource(cfg, tokens, "Coverage", fetchOptions)
	} else if eob {
		cmd.DoFetchResource(cfg, tokens, "ExplanationOfBenefit", fetchOptions)
	} else if webApp {
		cmd.DoWebApp(cfg, configFilePath)
	} else {
		flag.Usage()
	}
}
