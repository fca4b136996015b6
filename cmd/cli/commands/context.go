package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/soldier-roster/internal/config"
	"github.com/jakechorley/soldier-roster/pkg/clients/sheetsclient"
	"github.com/jakechorley/soldier-roster/pkg/core/services"
	"github.com/jakechorley/soldier-roster/pkg/db"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Env      string
	Cfg      *config.Config
	Database db.Database
	Manager  *services.Manager
	Options  services.RunOptions
	Logger   *zap.Logger
	Ctx      context.Context

	sheetsClient *sheetsclient.Client
}

// SheetsClient connects to Google Sheets on first use so the other commands never need OAuth
func (a *AppContext) SheetsClient() (*sheetsclient.Client, error) {
	if a.sheetsClient != nil {
		return a.sheetsClient, nil
	}

	a.Logger.Info("Loading OAuth client configuration")
	googleClient, err := config.LoadGoogleClient(a.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth client config: %w", err)
	}

	a.Logger.Info("Initializing sheets client")
	client, err := sheetsclient.NewClient(a.Ctx, googleClient, a.Env, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	a.sheetsClient = client
	return client, nil
}

// spreadsheetID returns the flag value, falling back to the configured spreadsheet
func (a *AppContext) spreadsheetID(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if a.Cfg.Sheets.SpreadsheetID == "" {
		return "", fmt.Errorf("no spreadsheet id: pass --spreadsheet or set sheets.spreadsheetID in the config")
	}
	return a.Cfg.Sheets.SpreadsheetID, nil
}
