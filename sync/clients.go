package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wfworld/dashboard/feed"
	"github.com/wfworld/dashboard/store"
)

// RowFetcher pulls one batch of raw rows from a feed endpoint.
type RowFetcher func(ctx context.Context, url string) ([]*feed.Row, error)

// SheetRows is an alternative row source that reads the spreadsheets
// directly (Google Sheets API) instead of the Apps Script endpoints.
type SheetRows interface {
	ClientRows(ctx context.Context) ([]*feed.Row, error)
	SaleRows(ctx context.Context) ([]*feed.Row, error)
}

// clientFields is the canonical client schema the mapper targets.
// Everything is stored as text; absent intake answers stay "".
var clientFields = []string{
	"full_name", "email", "phone", "country", "birth_date", "age",
	"weight", "height", "gender", "religion", "goal", "marital_status",
	"job", "activity_level", "injuries", "medical_conditions",
	"medications", "allergies", "surgeries", "smoking", "sleep_hours",
	"water_intake", "meals_per_day", "previous_diet", "diet_preference",
	"food_dislikes", "supplements", "training_place", "training_days",
	"training_history", "notes", "registration_date", "client_code",
}

// ClientsSync reconciles intake-form rows against the clients
// collection, keyed by email.
type ClientsSync struct {
	BaseSyncService
	fetch  RowFetcher
	sheets SheetRows
}

// NewClientsSync creates the client sync service using an Apps Script
// feed endpoint resolved from settings.
func NewClientsSync(st store.Gateway, settings *SettingsCache, fetch RowFetcher) *ClientsSync {
	return &ClientsSync{
		BaseSyncService: NewBaseSyncService(st, settings),
		fetch:           fetch,
	}
}

// NewClientsSyncFromSheets creates the client sync service reading rows
// straight from the spreadsheet.
func NewClientsSyncFromSheets(st store.Gateway, settings *SettingsCache, sheets SheetRows) *ClientsSync {
	return &ClientsSync{
		BaseSyncService: NewBaseSyncService(st, settings),
		sheets:          sheets,
	}
}

// Name returns the service identifier used in logs and job status.
func (s *ClientsSync) Name() string {
	return "clients"
}

// Sync fetches the intake feed and upserts every row. Row-level
// failures are recorded as skips; only fetch-level failures abort the
// run. The client watermark is stamped after any completed pass.
func (s *ClientsSync) Sync(ctx context.Context) error {
	s.Reset()
	start := time.Now()

	rows, err := s.fetchRows(ctx)
	if err != nil {
		return err
	}

	s.LogSyncStart(s.Name(), len(rows))
	s.Stats.Total = len(rows)

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.processRow(ctx, i, row)
	}

	if err := s.Settings.SetLastSyncDate(ctx, time.Now()); err != nil {
		slog.Warn("Failed to stamp client sync watermark", "error", err)
	}

	s.Stats.Duration = int(time.Since(start).Seconds())
	s.LogSyncComplete(s.Name())
	return nil
}

func (s *ClientsSync) fetchRows(ctx context.Context) ([]*feed.Row, error) {
	if s.sheets != nil {
		return s.sheets.ClientRows(ctx)
	}
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	url := strings.TrimSpace(settings.SheetsAPIURL)
	if url == "" {
		return nil, ErrNotConfigured
	}
	return s.fetch(ctx, url)
}

// processRow maps and reconciles a single row. A panic in row handling
// is contained here so one malformed row cannot take down the batch.
func (s *ClientsSync) processRow(ctx context.Context, idx int, row *feed.Row) {
	defer func() {
		if r := recover(); r != nil {
			s.Stats.Errors++
			s.RecordSkip(idx, fmt.Sprintf("unexpected failure: %v", r))
		}
	}()

	mapped := MapRow(row, ClientFieldRules)

	action, reason, err := s.reconcile(ctx, mapped)
	if err != nil {
		s.Stats.Errors++
		s.RecordSkip(idx, err.Error())
		return
	}

	switch action {
	case "added":
		s.Stats.Added++
	case "updated":
		s.Stats.Updated++
	case "unchanged":
		s.Stats.Unchanged++
	case "skipped":
		s.RecordSkip(idx, reason)
	}
}

// reconcile upserts one mapped row into the clients collection. Email is
// the dedup key; the stored client_code is never overwritten once set.
func (s *ClientsSync) reconcile(ctx context.Context, mapped map[string]interface{}) (action, reason string, err error) {
	fullName := mappedString(mapped, "full_name")
	email := strings.ToLower(mappedString(mapped, "email"))
	if fullName == "" || email == "" {
		return "skipped", "missing full name or email", nil
	}

	// normalize date-valued fields from their raw cell values
	if v, ok := mapped["registration_date"]; ok {
		mapped["registration_date"] = NormalizeDate(v)
	}
	if v, ok := mapped["birth_date"]; ok {
		mapped["birth_date"] = NormalizeDate(v)
	}

	existing, err := s.Store.FindOne(ctx, store.CollectionClients, store.Eq("email", email))
	if err != nil {
		return "", "", err
	}

	if existing != nil {
		updates := make(map[string]interface{})
		for _, field := range clientFields {
			if field == "client_code" || field == "email" {
				continue
			}
			incoming := mappedString(mapped, field)
			if incoming == "" {
				continue
			}
			if !s.FieldEquals(existing.Get(field), incoming) {
				updates[field] = incoming
			}
		}
		if len(updates) == 0 {
			return "unchanged", "", nil
		}
		if _, err := s.Store.Update(ctx, store.CollectionClients, existing.ID, updates); err != nil {
			return "", "", err
		}
		return "updated", "", nil
	}

	record := make(map[string]interface{}, len(clientFields)+3)
	for _, field := range clientFields {
		record[field] = ""
	}
	for field := range mapped {
		record[field] = mappedString(mapped, field)
	}
	record["email"] = email
	record["status"] = "active"
	record["created_at"] = time.Now().UTC().Format(time.RFC3339)
	if record["registration_date"] == "" {
		record["registration_date"] = time.Now().UTC().Format(time.RFC3339)
	}
	if record["client_code"] == "" {
		code, err := s.GenerateClientCode(ctx)
		if err != nil {
			return "", "", err
		}
		record["client_code"] = code
	}

	if _, err := s.Store.Insert(ctx, store.CollectionClients, record); err != nil {
		return "", "", err
	}
	return "added", "", nil
}
