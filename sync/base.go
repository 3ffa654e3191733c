package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/wfworld/dashboard/store"
)

// ErrNotConfigured means a sync was requested before its feed endpoint
// was set in the settings record.
var ErrNotConfigured = errors.New("sync: feed endpoint not configured")

// Stats tracks the outcome of one sync run.
type Stats struct {
	Total     int `json:"total"`
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
	Duration  int `json:"duration_seconds"`
}

// BaseSyncService provides the shared machinery for the feed sync
// services: stats accounting, skip tracking and the field comparison
// used for compare-before-write upserts.
type BaseSyncService struct {
	Store       store.Gateway
	Settings    *SettingsCache
	Stats       Stats
	SkipReasons []string
}

// NewBaseSyncService creates a new base sync service.
func NewBaseSyncService(st store.Gateway, settings *SettingsCache) BaseSyncService {
	return BaseSyncService{
		Store:    st,
		Settings: settings,
	}
}

// Reset clears stats and skip reasons before a run.
func (b *BaseSyncService) Reset() {
	b.Stats = Stats{}
	b.SkipReasons = nil
}

// LogSyncStart logs the start of a sync with the row count.
func (b *BaseSyncService) LogSyncStart(serviceName string, rows int) {
	slog.Info("Starting sync", "service", serviceName, "rows", rows)
}

// LogSyncComplete logs the completion of a sync with standardized format.
func (b *BaseSyncService) LogSyncComplete(serviceName string) {
	statsStr := fmt.Sprintf("added=%d, updated=%d, unchanged=%d, skipped=%d, errors=%d",
		b.Stats.Added, b.Stats.Updated, b.Stats.Unchanged, b.Stats.Skipped, b.Stats.Errors)
	slog.Info("Sync complete", "service", serviceName, "stats", statsStr)
}

// GetStats returns the current stats for the sync service.
func (b *BaseSyncService) GetStats() Stats {
	return b.Stats
}

// GetSkipReasons returns the per-row skip messages from the last run.
func (b *BaseSyncService) GetSkipReasons() []string {
	out := make([]string, len(b.SkipReasons))
	copy(out, b.SkipReasons)
	return out
}

// RecordSkip notes a skipped row. rowIdx is the zero-based position in
// the fetched batch; the message reports the spreadsheet row number,
// which is offset by the header row.
func (b *BaseSyncService) RecordSkip(rowIdx int, reason string) {
	b.Stats.Skipped++
	b.SkipReasons = append(b.SkipReasons, fmt.Sprintf("row %d: %s", rowIdx+2, reason))
	slog.Warn("Row skipped", "row", rowIdx+2, "reason", reason)
}

// Summary renders the run outcome as a one-line message.
func (b *BaseSyncService) Summary() string {
	return fmt.Sprintf("%d added, %d updated, %d unchanged, %d skipped of %d rows",
		b.Stats.Added, b.Stats.Updated, b.Stats.Unchanged, b.Stats.Skipped, b.Stats.Total)
}

// GenerateClientCode produces a fresh C-<YY><NNNN> code, retrying on the
// rare collision with an existing client.
func (b *BaseSyncService) GenerateClientCode(ctx context.Context) (string, error) {
	year := time.Now().Year() % 100
	for attempt := 0; attempt < 20; attempt++ {
		code := fmt.Sprintf("C-%02d%04d", year, rand.Intn(10000))
		existing, err := b.Store.FindOne(ctx, store.CollectionClients, store.Eq("client_code", code))
		if err != nil {
			return "", fmt.Errorf("checking client code: %w", err)
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique client code")
}

// NewSubscriptionID produces a subscription identifier from the current
// millisecond clock.
func NewSubscriptionID() string {
	return fmt.Sprintf("SUB-%d", time.Now().UnixMilli())
}

// FieldEquals compares a stored field value against an incoming one,
// tolerating the representation drift between feed values and what the
// database hands back: nil vs empty, date format variants, float vs int,
// and SQLite's integer booleans.
//
//nolint:gocyclo // type comparison logic requires many branches
func (b *BaseSyncService) FieldEquals(existingValue interface{}, newValue interface{}) bool {
	// nil vs empty string equivalence
	if (existingValue == nil && newValue == "") || (existingValue == "" && newValue == nil) {
		return true
	}

	// nil vs 0 equivalence for numeric fields
	if existingValue == nil && newValue == 0 {
		return true
	}
	if existingValue == 0 && newValue == nil {
		return true
	}

	// PocketBase DateTime values arrive as Stringers
	if stringer, ok := existingValue.(fmt.Stringer); ok {
		existingStr := stringer.String()
		if newStr, ok := newValue.(string); ok {
			if looksLikeTimestamp(existingStr) && looksLikeTimestamp(newStr) {
				return normalizeDateString(existingStr) == normalizeDateString(newStr)
			}
			return existingStr == newStr
		}
	}

	if existingStr, ok := existingValue.(string); ok {
		if newStr, ok := newValue.(string); ok {
			if looksLikeTimestamp(existingStr) && looksLikeTimestamp(newStr) {
				return normalizeDateString(existingStr) == normalizeDateString(newStr)
			}
			return existingStr == newStr
		}
	}

	// float64 vs int (DB reads come back as float64)
	if existingFloat, ok := existingValue.(float64); ok {
		if newInt, ok := newValue.(int); ok {
			return int(existingFloat) == newInt
		}
		if newFloat, ok := newValue.(float64); ok {
			return existingFloat == newFloat
		}
	}
	if existingInt, ok := existingValue.(int); ok {
		if newFloat, ok := newValue.(float64); ok {
			return existingInt == int(newFloat)
		}
		if newInt, ok := newValue.(int); ok {
			return existingInt == newInt
		}
	}

	if existingBool, ok := existingValue.(bool); ok {
		if newBool, ok := newValue.(bool); ok {
			return existingBool == newBool
		}
	}

	// SQLite stores BOOLEAN as integer 0/1
	if existingInt, ok := existingValue.(float64); ok {
		if newBool, ok := newValue.(bool); ok {
			return (existingInt != 0) == newBool
		}
	}
	if existingBool, ok := existingValue.(bool); ok {
		if newFloat, ok := newValue.(float64); ok {
			return existingBool == (newFloat != 0)
		}
	}

	return existingValue == newValue
}

func looksLikeTimestamp(s string) bool {
	return strings.Contains(s, "-") && strings.Contains(s, ":")
}

// normalizeDateString normalizes an ISO 8601 date string for comparison.
func normalizeDateString(dateStr string) string {
	result := dateStr

	// strip fractional seconds: "2024-01-15T10:00:00.000Z"
	if idx := strings.Index(result, "."); idx != -1 {
		endIdx := idx + 1
		for endIdx < len(result) && result[endIdx] >= '0' && result[endIdx] <= '9' {
			endIdx++
		}
		result = result[:idx] + result[endIdx:]
	}

	result = strings.Replace(result, "T", " ", 1)
	result = strings.TrimSuffix(result, "Z")

	// strip a trailing offset like +02:00
	if len(result) > 6 {
		lastSix := result[len(result)-6:]
		if (lastSix[0] == '+' || lastSix[0] == '-') && lastSix[3] == ':' {
			result = result[:len(result)-6]
		}
	}

	return strings.TrimSpace(result)
}
