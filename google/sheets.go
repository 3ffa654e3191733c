// Package google provides the optional direct Google Sheets row source.
// When enabled it replaces the Apps Script feed endpoints and reads the
// intake and sales sheets through the Sheets API instead.
package google

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/wfworld/dashboard/feed"
)

const (
	envEnabled     = "GOOGLE_SHEETS_ENABLED"
	envKeyFile     = "GOOGLE_SERVICE_ACCOUNT_KEY_FILE"
	envSpreadsheet = "GOOGLE_SHEETS_SPREADSHEET_ID"
	envClientRange = "GOOGLE_SHEETS_CLIENTS_RANGE"
	envSalesRange  = "GOOGLE_SHEETS_SALES_RANGE"
	defaultKeyFile = "google_sheets.json"

	defaultClientRange = "Clients!A:AZ"
	defaultSalesRange  = "Sales!A:AZ"
)

// IsEnabled returns true if the direct Sheets source is enabled via
// environment variable.
func IsEnabled() bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(envEnabled)))
	return val == "true" || val == "1"
}

// GetSpreadsheetID returns the configured spreadsheet ID.
func GetSpreadsheetID() string {
	return strings.TrimSpace(os.Getenv(envSpreadsheet))
}

// SheetsSource reads raw form rows straight from the spreadsheet.
type SheetsSource struct {
	service       *sheets.Service
	spreadsheetID string
	clientRange   string
	salesRange    string
}

// NewSheetsSource creates a Sheets-backed row source using service
// account credentials. Returns nil, nil when disabled (graceful
// degradation to the Apps Script feeds).
func NewSheetsSource(ctx context.Context) (*SheetsSource, error) {
	if !IsEnabled() {
		return nil, nil
	}

	spreadsheetID := GetSpreadsheetID()
	if spreadsheetID == "" {
		return nil, fmt.Errorf("%s not set", envSpreadsheet)
	}

	credJSON, err := getCredentialsJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credJSON, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &SheetsSource{
		service:       srv,
		spreadsheetID: spreadsheetID,
		clientRange:   envOr(envClientRange, defaultClientRange),
		salesRange:    envOr(envSalesRange, defaultSalesRange),
	}, nil
}

// ClientRows reads the intake sheet.
func (s *SheetsSource) ClientRows(ctx context.Context) ([]*feed.Row, error) {
	return s.readRange(ctx, s.clientRange)
}

// SaleRows reads the sales sheet.
func (s *SheetsSource) SaleRows(ctx context.Context) ([]*feed.Row, error) {
	return s.readRange(ctx, s.salesRange)
}

// readRange fetches a sheet range and converts it to rows keyed by the
// header row, preserving column order. Rows shorter than the header are
// padded with empty cells; fully empty rows are dropped.
func (s *SheetsSource) readRange(ctx context.Context, readRange string) ([]*feed.Row, error) {
	resp, err := s.service.Spreadsheets.Values.
		Get(s.spreadsheetID, readRange).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("reading range %s: %w", readRange, err)
	}

	if len(resp.Values) < 2 {
		return nil, nil
	}

	headers := make([]string, len(resp.Values[0]))
	for i, cell := range resp.Values[0] {
		headers[i] = strings.TrimSpace(fmt.Sprintf("%v", cell))
	}

	var rows []*feed.Row
	for _, values := range resp.Values[1:] {
		row := feed.NewRow()
		empty := true
		for i, header := range headers {
			if header == "" {
				continue
			}
			var cell interface{}
			if i < len(values) {
				cell = values[i]
			}
			if cell != nil {
				if str, ok := cell.(string); !ok || strings.TrimSpace(str) != "" {
					empty = false
				}
			}
			row.Set(header, cell)
		}
		if empty {
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func getCredentialsJSON() ([]byte, error) {
	keyFile := strings.TrimSpace(os.Getenv(envKeyFile))
	if keyFile == "" {
		keyFile = defaultKeyFile
	}

	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", keyFile, err)
	}
	return data, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
