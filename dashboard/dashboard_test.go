package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/wfworld/dashboard/store"
)

func seedClient(t *testing.T, st *store.Memory, code, email, registered string) {
	t.Helper()
	_, err := st.Insert(context.Background(), store.CollectionClients, map[string]interface{}{
		"client_code":       code,
		"full_name":         "عميل " + code,
		"email":             email,
		"status":            "active",
		"registration_date": registered,
		"created_at":        registered,
	})
	if err != nil {
		t.Fatalf("seeding client: %v", err)
	}
}

func seedSub(t *testing.T, st *store.Memory, code, pkg, currency string, amount float64, start, end, created, status string) {
	t.Helper()
	_, err := st.Insert(context.Background(), store.CollectionSubscriptions, map[string]interface{}{
		"sub_id":      "SUB-" + code + start,
		"client_code": code,
		"package":     pkg,
		"amount":      amount,
		"currency":    currency,
		"start_date":  start,
		"end_date":    end,
		"status":      status,
		"created_at":  created,
	})
	if err != nil {
		t.Fatalf("seeding subscription: %v", err)
	}
}

func iso(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func TestToEGP(t *testing.T) {
	tests := []struct {
		amount   float64
		currency string
		want     float64
	}{
		{100, "EGP", 100},
		{100, "USD", 5000},
		{100, "usd", 5000},
		{100, "SAR", 1300},
		{100, "AED", 1400},
		{100, "EUR", 5500},
		{100, "XYZ", 100},
	}
	for _, tt := range tests {
		if got := ToEGP(tt.amount, tt.currency); got != tt.want {
			t.Errorf("ToEGP(%v, %q) = %v, want %v", tt.amount, tt.currency, got, tt.want)
		}
	}
}

func TestSweepExpired(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st)
	now := time.Now()

	seedSub(t, st, "C-250001", "Gold", "EGP", 3000,
		iso(now.AddDate(0, -2, 0)), iso(now.AddDate(0, 0, -3)), iso(now.AddDate(0, -2, 0)), "active")
	seedSub(t, st, "C-250002", "Silver", "EGP", 2000,
		iso(now.AddDate(0, 0, -10)), iso(now.AddDate(0, 1, 0)), iso(now.AddDate(0, 0, -10)), "active")
	seedSub(t, st, "C-250003", "Gold", "EGP", 3000,
		iso(now.AddDate(0, -6, 0)), iso(now.AddDate(0, -3, 0)), iso(now.AddDate(0, -6, 0)), "expired")

	expired, err := svc.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if expired != 1 {
		t.Errorf("expired = %d, want 1", expired)
	}

	subs, _ := st.FindMany(context.Background(), store.CollectionSubscriptions,
		store.Eq("status", "active"))
	if len(subs) != 1 || subs[0].GetString("client_code") != "C-250002" {
		t.Errorf("remaining active = %v", subs)
	}
}

func TestStatistics(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st)
	now := time.Now()

	seedClient(t, st, "C-250001", "a@example.com", iso(now.AddDate(0, -3, 0)))
	seedClient(t, st, "C-250002", "b@example.com", iso(now))

	// active, expiring within the warning window
	seedSub(t, st, "C-250001", "Gold", "EGP", 3000,
		iso(now.AddDate(0, -1, 0)), iso(now.AddDate(0, 0, 3)), iso(now.AddDate(0, -1, 0)), "active")
	// active, far from expiry, USD
	seedSub(t, st, "C-250002", "Silver", "USD", 100,
		iso(now), iso(now.AddDate(0, 2, 0)), iso(now), "active")
	// expired long ago
	seedSub(t, st, "C-250001", "Bronze", "EGP", 1000,
		iso(now.AddDate(-1, 0, 0)), iso(now.AddDate(0, -11, 0)), iso(now.AddDate(-1, 0, 0)), "expired")

	stats, err := svc.Statistics(context.Background())
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}

	if stats.TotalClients != 2 {
		t.Errorf("TotalClients = %d", stats.TotalClients)
	}
	if stats.ActiveSubscriptions != 2 {
		t.Errorf("ActiveSubscriptions = %d, want 2", stats.ActiveSubscriptions)
	}
	if stats.ExpiringSoon != 1 {
		t.Errorf("ExpiringSoon = %d, want 1", stats.ExpiringSoon)
	}
	// 3000 EGP + 100 USD * 50 + 1000 EGP
	if stats.TotalRevenue != 9000 {
		t.Errorf("TotalRevenue = %v, want 9000", stats.TotalRevenue)
	}
	if stats.NewClientsThisMonth < 1 {
		t.Errorf("NewClientsThisMonth = %d, want at least 1", stats.NewClientsThisMonth)
	}
}

func TestRevenueByPackage(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st)
	now := time.Now()

	seedSub(t, st, "C-1", "Gold", "EGP", 3000, iso(now), iso(now.AddDate(0, 3, 0)), iso(now), "active")
	seedSub(t, st, "C-2", "Gold", "USD", 100, iso(now), iso(now.AddDate(0, 3, 0)), iso(now), "active")
	seedSub(t, st, "C-3", "", "EGP", 500, iso(now), iso(now.AddDate(0, 1, 0)), iso(now), "active")

	revenue, err := svc.RevenueByPackage(context.Background())
	if err != nil {
		t.Fatalf("RevenueByPackage: %v", err)
	}
	if revenue["Gold"] != 8000 {
		t.Errorf("Gold = %v, want 8000", revenue["Gold"])
	}
	if revenue["Other"] != 500 {
		t.Errorf("Other = %v, want 500", revenue["Other"])
	}
}

func TestSalesTrend(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st)
	now := time.Now()

	seedSub(t, st, "C-1", "Gold", "EGP", 3000, iso(now), iso(now.AddDate(0, 3, 0)), iso(now), "active")
	seedSub(t, st, "C-2", "Silver", "EGP", 2000, iso(now), iso(now.AddDate(0, 2, 0)), iso(now), "active")
	// outside the window
	seedSub(t, st, "C-3", "Gold", "EGP", 9999, iso(now.AddDate(0, 0, -40)),
		iso(now.AddDate(0, 3, -40)), iso(now.AddDate(0, 0, -40)), "active")

	trend, err := svc.SalesTrend(context.Background(), 7)
	if err != nil {
		t.Fatalf("SalesTrend: %v", err)
	}
	if len(trend) != 7 {
		t.Fatalf("trend has %d points, want 7", len(trend))
	}

	today := trend[len(trend)-1]
	if today.Date != now.Format("2006-01-02") {
		t.Errorf("last point date = %q", today.Date)
	}
	if today.Revenue != 5000 || today.Count != 2 {
		t.Errorf("today = %+v, want revenue 5000 count 2", today)
	}
	for _, point := range trend[:len(trend)-1] {
		if point.Revenue != 0 {
			t.Errorf("unexpected revenue on %s: %v", point.Date, point.Revenue)
		}
	}
}

func TestClientOverview(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st)
	now := time.Now()
	ctx := context.Background()

	seedClient(t, st, "C-250001", "a@example.com", iso(now.AddDate(0, -3, 0)))
	seedSub(t, st, "C-250001", "Bronze", "EGP", 1000,
		iso(now.AddDate(0, -3, 0)), iso(now.AddDate(0, -2, 0)), iso(now.AddDate(0, -3, 0)), "expired")
	seedSub(t, st, "C-250001", "Gold", "EGP", 3000,
		iso(now.AddDate(0, -1, 0)), iso(now.AddDate(0, 0, 10)), iso(now.AddDate(0, -1, 0)), "active")

	if _, err := svc.AddPlan(ctx, PlanInput{ClientCode: "C-250001", DietPlan: "خطة غذائية"}); err != nil {
		t.Fatalf("AddPlan: %v", err)
	}
	if _, err := svc.AddUpdate(ctx, UpdateInput{ClientCode: "C-250001", Weight: 90.5}); err != nil {
		t.Fatalf("AddUpdate: %v", err)
	}

	overview, err := svc.ClientOverview(ctx, "C-250001")
	if err != nil {
		t.Fatalf("ClientOverview: %v", err)
	}

	if overview.Client.GetString("email") != "a@example.com" {
		t.Errorf("client email = %q", overview.Client.GetString("email"))
	}
	if len(overview.Subscriptions) != 2 {
		t.Fatalf("subscriptions = %d, want 2", len(overview.Subscriptions))
	}
	// newest subscription first
	if overview.Subscriptions[0].GetString("package") != "Gold" {
		t.Errorf("latest subscription = %q", overview.Subscriptions[0].GetString("package"))
	}
	if overview.Status != "active" {
		t.Errorf("status = %q", overview.Status)
	}
	if overview.DaysRemaining < 8 || overview.DaysRemaining > 10 {
		t.Errorf("DaysRemaining = %d, want about 9-10", overview.DaysRemaining)
	}
	if len(overview.Plans) != 1 || len(overview.Updates) != 1 {
		t.Errorf("plans = %d, updates = %d", len(overview.Plans), len(overview.Updates))
	}
}

func TestClientOverviewUnknownClient(t *testing.T) {
	svc := NewService(store.NewMemory())
	if _, err := svc.ClientOverview(context.Background(), "C-000000"); err == nil {
		t.Error("unknown client accepted")
	}
}

func TestAddPlanRequiresExistingClient(t *testing.T) {
	svc := NewService(store.NewMemory())
	if _, err := svc.AddPlan(context.Background(), PlanInput{ClientCode: "C-404404"}); err == nil {
		t.Error("plan accepted for missing client")
	}
	if _, err := svc.AddPlan(context.Background(), PlanInput{}); err == nil {
		t.Error("plan accepted without a client code")
	}
}

func TestAddUpdateRequiresExistingClient(t *testing.T) {
	svc := NewService(store.NewMemory())
	if _, err := svc.AddUpdate(context.Background(), UpdateInput{ClientCode: "C-404404"}); err == nil {
		t.Error("update accepted for missing client")
	}
}
