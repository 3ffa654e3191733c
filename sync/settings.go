package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/wfworld/dashboard/store"
)

// Package describes one entry of the package catalog kept in settings.
type Package struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"` // months
	Color    string `json:"color"`
}

// Settings is the single business-configuration record: feed endpoints,
// the package/currency/payment-method catalogs and the sync watermarks.
type Settings struct {
	SheetsAPIURL      string    `json:"sheets_api_url"`
	SalesAPIURL       string    `json:"sales_api_url"`
	Packages          []Package `json:"packages"`
	Currencies        []string  `json:"currencies"`
	PaymentMethods    []string  `json:"payment_methods"`
	LastSyncDate      string    `json:"last_sync_date"`
	LastSalesSyncDate string    `json:"last_sales_sync_date"`
}

// defaultSettings seeds the settings record on first access.
func defaultSettings() *Settings {
	return &Settings{
		Packages: []Package{
			{Name: "Bronze", Duration: 1, Color: "#cd7f32"},
			{Name: "Silver", Duration: 2, Color: "#c0c0c0"},
			{Name: "Gold", Duration: 3, Color: "#ffd700"},
			{Name: "Platinum", Duration: 4, Color: "#e5e4e2"},
		},
		Currencies:     []string{"EGP", "USD", "SAR", "AED", "EUR"},
		PaymentMethods: []string{"انستاباي", "فودافون كاش", "تحويل بنكي", "PayPal", "Wise"},
	}
}

// SettingsCache is the cached accessor for the settings record. The
// record is read once and kept in memory; updates write through and
// refresh the cache, so reads during a sync run cost nothing.
type SettingsCache struct {
	store store.Gateway

	mu       sync.Mutex
	recordID string
	current  *Settings
}

// NewSettingsCache creates a settings cache over the given store.
func NewSettingsCache(st store.Gateway) *SettingsCache {
	return &SettingsCache{store: st}
}

// Get returns the current settings, loading (and seeding on first run)
// the record if the cache is cold.
func (c *SettingsCache) Get(ctx context.Context) (*Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		out := *c.current
		return &out, nil
	}
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	out := *c.current
	return &out, nil
}

// Update shallow-merges the given fields into the settings record and
// returns the merged result. Unknown fields are rejected.
func (c *SettingsCache) Update(ctx context.Context, fields map[string]interface{}) (*Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		if err := c.load(ctx); err != nil {
			return nil, err
		}
	}

	updates := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		switch key {
		case "sheets_api_url", "sales_api_url", "last_sync_date", "last_sales_sync_date":
			updates[key] = stringValue(value)
		case "packages", "currencies", "payment_methods":
			encoded, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("settings: encoding %s: %w", key, err)
			}
			updates[key] = string(encoded)
		default:
			return nil, fmt.Errorf("settings: unknown field %q", key)
		}
	}

	record, err := c.store.Update(ctx, store.CollectionSettings, c.recordID, updates)
	if err != nil {
		return nil, err
	}
	c.apply(record)
	out := *c.current
	return &out, nil
}

// SetLastSyncDate stamps the client-feed watermark.
func (c *SettingsCache) SetLastSyncDate(ctx context.Context, t time.Time) error {
	return c.setWatermark(ctx, "last_sync_date", t)
}

// SetLastSalesSyncDate stamps the sales-feed watermark.
func (c *SettingsCache) SetLastSalesSyncDate(ctx context.Context, t time.Time) error {
	return c.setWatermark(ctx, "last_sales_sync_date", t)
}

// Invalidate drops the cache; the next Get reloads from the store.
func (c *SettingsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.recordID = ""
}

func (c *SettingsCache) setWatermark(ctx context.Context, field string, t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		if err := c.load(ctx); err != nil {
			return err
		}
	}

	stamp := t.UTC().Format(time.RFC3339)
	record, err := c.store.Update(ctx, store.CollectionSettings, c.recordID, map[string]interface{}{
		field: stamp,
	})
	if err != nil {
		return err
	}
	c.apply(record)
	return nil
}

// load reads the settings record, creating it with defaults when the
// collection is empty. Caller holds the mutex.
func (c *SettingsCache) load(ctx context.Context) error {
	records, err := c.store.GetAll(ctx, store.CollectionSettings)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		defaults := defaultSettings()
		packages, _ := json.Marshal(defaults.Packages)
		currencies, _ := json.Marshal(defaults.Currencies)
		methods, _ := json.Marshal(defaults.PaymentMethods)

		record, err := c.store.Insert(ctx, store.CollectionSettings, map[string]interface{}{
			"sheets_api_url":       "",
			"sales_api_url":        "",
			"packages":             string(packages),
			"currencies":           string(currencies),
			"payment_methods":      string(methods),
			"last_sync_date":       "",
			"last_sales_sync_date": "",
		})
		if err != nil {
			return err
		}
		c.apply(record)
		return nil
	}

	c.apply(records[0])
	return nil
}

// apply refreshes the cache from a stored record. Caller holds the mutex.
func (c *SettingsCache) apply(record *store.Record) {
	s := &Settings{
		SheetsAPIURL:      record.GetString("sheets_api_url"),
		SalesAPIURL:       record.GetString("sales_api_url"),
		LastSyncDate:      record.GetString("last_sync_date"),
		LastSalesSyncDate: record.GetString("last_sales_sync_date"),
	}
	decodeJSONField(record.Get("packages"), &s.Packages)
	decodeJSONField(record.Get("currencies"), &s.Currencies)
	decodeJSONField(record.Get("payment_methods"), &s.PaymentMethods)

	c.recordID = record.ID
	c.current = s
}

// decodeJSONField tolerates the shapes a JSON column comes back as:
// string, []byte, Stringer (types.JSONRaw) or an already-decoded value.
func decodeJSONField(raw interface{}, dst interface{}) {
	var data []byte
	switch v := raw.(type) {
	case nil:
		return
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case fmt.Stringer:
		data = []byte(v.String())
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return
		}
		data = encoded
	}
	if len(data) == 0 {
		return
	}
	_ = json.Unmarshal(data, dst)
}
