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

// SalesSync reconciles sales-form rows against the subscriptions
// collection, keyed by (client_code, start_date).
type SalesSync struct {
	BaseSyncService
	fetch  RowFetcher
	sheets SheetRows
}

// NewSalesSync creates the sales sync service using an Apps Script feed
// endpoint resolved from settings.
func NewSalesSync(st store.Gateway, settings *SettingsCache, fetch RowFetcher) *SalesSync {
	return &SalesSync{
		BaseSyncService: NewBaseSyncService(st, settings),
		fetch:           fetch,
	}
}

// NewSalesSyncFromSheets creates the sales sync service reading rows
// straight from the spreadsheet.
func NewSalesSyncFromSheets(st store.Gateway, settings *SettingsCache, sheets SheetRows) *SalesSync {
	return &SalesSync{
		BaseSyncService: NewBaseSyncService(st, settings),
		sheets:          sheets,
	}
}

// Name returns the service identifier used in logs and job status.
func (s *SalesSync) Name() string {
	return "sales"
}

// Sync fetches the sales feed and upserts every row, then stamps the
// sales watermark. Row-level failures become skips.
func (s *SalesSync) Sync(ctx context.Context) error {
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

	if err := s.Settings.SetLastSalesSyncDate(ctx, time.Now()); err != nil {
		slog.Warn("Failed to stamp sales sync watermark", "error", err)
	}

	s.Stats.Duration = int(time.Since(start).Seconds())
	s.LogSyncComplete(s.Name())
	return nil
}

func (s *SalesSync) fetchRows(ctx context.Context) ([]*feed.Row, error) {
	if s.sheets != nil {
		return s.sheets.SaleRows(ctx)
	}
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	url := strings.TrimSpace(settings.SalesAPIURL)
	if url == "" {
		return nil, ErrNotConfigured
	}
	return s.fetch(ctx, url)
}

func (s *SalesSync) processRow(ctx context.Context, idx int, row *feed.Row) {
	defer func() {
		if r := recover(); r != nil {
			s.Stats.Errors++
			s.RecordSkip(idx, fmt.Sprintf("unexpected failure: %v", r))
		}
	}()

	mapped := MapRow(row, SaleFieldRules)

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

// reconcile upserts one sale row. A sale is identified by its client
// code plus normalized start date, so re-fetching the whole sheet never
// duplicates subscriptions. The end date is derived from duration plus
// bonus months and recomputed on update.
func (s *SalesSync) reconcile(ctx context.Context, mapped map[string]interface{}) (action, reason string, err error) {
	clientCode := mappedString(mapped, "client_code")
	if clientCode == "" {
		return "skipped", "missing client code", nil
	}

	startDate := NormalizeDate(mapped["start_date"])
	if startDate == "" {
		startDate = time.Now().UTC().Format(time.RFC3339)
	}

	duration := mappedInt(mapped, "duration", 1)
	if duration < 1 {
		duration = 1
	}
	bonus := mappedInt(mapped, "bonus_duration", 0)
	if bonus < 0 {
		bonus = 0
	}
	endDate := AddMonths(startDate, duration+bonus)

	matches, err := s.Store.FindMany(ctx, store.CollectionSubscriptions,
		store.Eq("client_code", clientCode),
		store.Eq("start_date", startDate),
	)
	if err != nil {
		return "", "", err
	}

	if len(matches) > 0 {
		existing := matches[0]
		updates := make(map[string]interface{})

		compare := map[string]interface{}{
			"client_name":    mappedString(mapped, "client_name"),
			"package":        mappedString(mapped, "package"),
			"currency":       mappedString(mapped, "currency"),
			"payment_method": mappedString(mapped, "payment_method"),
			"end_date":       endDate,
		}
		for field, incoming := range compare {
			str, _ := incoming.(string)
			if str == "" {
				continue
			}
			if !s.FieldEquals(existing.Get(field), incoming) {
				updates[field] = incoming
			}
		}
		if amount := mappedFloat(mapped, "amount", 0); amount > 0 &&
			!s.FieldEquals(existing.Get("amount"), amount) {
			updates["amount"] = amount
		}
		if !s.FieldEquals(existing.Get("duration"), duration) {
			updates["duration"] = duration
		}
		if !s.FieldEquals(existing.Get("bonus_duration"), bonus) {
			updates["bonus_duration"] = bonus
		}

		if len(updates) == 0 {
			return "unchanged", "", nil
		}
		if _, err := s.Store.Update(ctx, store.CollectionSubscriptions, existing.ID, updates); err != nil {
			return "", "", err
		}
		return "updated", "", nil
	}

	currency := mappedString(mapped, "currency")
	if currency == "" {
		currency = "EGP"
	}

	record := map[string]interface{}{
		"sub_id":         NewSubscriptionID(),
		"client_code":    clientCode,
		"client_name":    mappedString(mapped, "client_name"),
		"package":        mappedString(mapped, "package"),
		"amount":         mappedFloat(mapped, "amount", 0),
		"currency":       currency,
		"payment_method": mappedString(mapped, "payment_method"),
		"start_date":     startDate,
		"duration":       duration,
		"bonus_duration": bonus,
		"end_date":       endDate,
		"status":         "active",
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}

	if _, err := s.Store.Insert(ctx, store.CollectionSubscriptions, record); err != nil {
		return "", "", err
	}
	return "added", "", nil
}
