package sync

import (
	"context"
	"testing"
	"time"

	"github.com/wfworld/dashboard/store"
)

func TestSettingsSeedsDefaults(t *testing.T) {
	st := store.NewMemory()
	cache := NewSettingsCache(st)

	settings, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if len(settings.Packages) != 4 {
		t.Errorf("got %d default packages, want 4", len(settings.Packages))
	}
	if settings.Packages[0].Name != "Bronze" || settings.Packages[0].Duration != 1 {
		t.Errorf("first package = %+v", settings.Packages[0])
	}
	if len(settings.Currencies) == 0 || settings.Currencies[0] != "EGP" {
		t.Errorf("currencies = %v", settings.Currencies)
	}
	if settings.SheetsAPIURL != "" || settings.LastSyncDate != "" {
		t.Error("feed URL and watermark must start empty")
	}

	records, _ := st.GetAll(context.Background(), store.CollectionSettings)
	if len(records) != 1 {
		t.Errorf("settings records = %d, want exactly 1", len(records))
	}
}

func TestSettingsGetIsCached(t *testing.T) {
	st := store.NewMemory()
	cache := NewSettingsCache(st)

	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("Get: %v", err)
	}
	ops := st.Ops()
	for i := 0; i < 5; i++ {
		if _, err := cache.Get(context.Background()); err != nil {
			t.Fatalf("cached Get: %v", err)
		}
	}
	if st.Ops() != ops {
		t.Errorf("cached reads hit the store %d times", st.Ops()-ops)
	}
}

func TestSettingsUpdateMerges(t *testing.T) {
	st := store.NewMemory()
	cache := NewSettingsCache(st)

	updated, err := cache.Update(context.Background(), map[string]interface{}{
		"sheets_api_url": "https://script.example/clients",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if updated.SheetsAPIURL != "https://script.example/clients" {
		t.Errorf("SheetsAPIURL = %q", updated.SheetsAPIURL)
	}
	// untouched fields survive the merge
	if len(updated.Packages) != 4 {
		t.Errorf("packages lost on update: %v", updated.Packages)
	}

	// a fresh cache over the same store sees the persisted value
	fresh := NewSettingsCache(st)
	reloaded, err := fresh.Get(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.SheetsAPIURL != updated.SheetsAPIURL {
		t.Error("update was not persisted")
	}
}

func TestSettingsUpdateRejectsUnknownField(t *testing.T) {
	cache := NewSettingsCache(store.NewMemory())

	if _, err := cache.Update(context.Background(), map[string]interface{}{
		"favourite_color": "green",
	}); err == nil {
		t.Error("unknown settings field was accepted")
	}
}

func TestSettingsUpdateCatalogs(t *testing.T) {
	cache := NewSettingsCache(store.NewMemory())

	updated, err := cache.Update(context.Background(), map[string]interface{}{
		"packages": []Package{{Name: "Diamond", Duration: 6, Color: "#b9f2ff"}},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(updated.Packages) != 1 || updated.Packages[0].Name != "Diamond" {
		t.Errorf("packages = %+v", updated.Packages)
	}
}

func TestSettingsWatermarks(t *testing.T) {
	cache := NewSettingsCache(store.NewMemory())
	ctx := context.Background()

	stamp := time.Date(2026, time.August, 28, 3, 0, 0, 0, time.UTC)
	if err := cache.SetLastSyncDate(ctx, stamp); err != nil {
		t.Fatalf("SetLastSyncDate: %v", err)
	}
	if err := cache.SetLastSalesSyncDate(ctx, stamp.Add(time.Hour)); err != nil {
		t.Fatalf("SetLastSalesSyncDate: %v", err)
	}

	settings, err := cache.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if settings.LastSyncDate != "2026-08-28T03:00:00Z" {
		t.Errorf("LastSyncDate = %q", settings.LastSyncDate)
	}
	if settings.LastSalesSyncDate != "2026-08-28T04:00:00Z" {
		t.Errorf("LastSalesSyncDate = %q", settings.LastSalesSyncDate)
	}
}
