// Package dashboard computes the reporting views served to the UI:
// headline statistics, revenue breakdowns, sales trends and per-client
// overviews, plus the manually entered plans and check-in updates.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/wfworld/dashboard/store"
)

// currencyRates converts subscription amounts to EGP for aggregation.
// Rates are deliberately coarse; revenue reports are directional, not
// accounting-grade.
var currencyRates = map[string]float64{
	"EGP": 1,
	"USD": 50,
	"SAR": 13,
	"AED": 14,
	"EUR": 55,
}

// expiringSoonDays is the warning window for the expiring counter.
const expiringSoonDays = 7

// Service computes dashboard views over the store.
type Service struct {
	store store.Gateway
}

// NewService creates a dashboard service.
func NewService(st store.Gateway) *Service {
	return &Service{store: st}
}

// Statistics is the headline-numbers view.
type Statistics struct {
	TotalClients        int     `json:"total_clients"`
	ActiveSubscriptions int     `json:"active_subscriptions"`
	ExpiringSoon        int     `json:"expiring_soon"`
	TotalRevenue        float64 `json:"total_revenue"`
	MonthlyRevenue      float64 `json:"monthly_revenue"`
	NewClientsThisMonth int     `json:"new_clients_this_month"`
}

// ToEGP converts an amount in the given currency to EGP. Unknown
// currencies pass through unconverted.
func ToEGP(amount float64, currency string) float64 {
	rate, ok := currencyRates[strings.ToUpper(strings.TrimSpace(currency))]
	if !ok {
		return amount
	}
	return amount * rate
}

// SweepExpired marks active subscriptions whose end date has passed as
// expired and returns how many were updated.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	subs, err := s.store.FindMany(ctx, store.CollectionSubscriptions,
		store.Eq("status", "active"))
	if err != nil {
		return 0, err
	}

	now := time.Now()
	updated := 0
	for _, sub := range subs {
		end, ok := parseWhen(sub.GetString("end_date"))
		if !ok || !end.Before(now) {
			continue
		}
		if _, err := s.store.Update(ctx, store.CollectionSubscriptions, sub.ID,
			map[string]interface{}{"status": "expired"}); err != nil {
			slog.Warn("Failed to expire subscription", "sub", sub.GetString("sub_id"), "error", err)
			continue
		}
		updated++
	}
	return updated, nil
}

// Statistics computes the headline numbers. Revenue is converted to EGP.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	clients, err := s.store.GetAll(ctx, store.CollectionClients)
	if err != nil {
		return nil, err
	}
	subs, err := s.store.GetAll(ctx, store.CollectionSubscriptions)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	stats := &Statistics{TotalClients: len(clients)}

	for _, client := range clients {
		if reg, ok := parseWhen(client.GetString("registration_date")); ok && !reg.Before(monthStart) {
			stats.NewClientsThisMonth++
		}
	}

	for _, sub := range subs {
		amount := ToEGP(sub.GetFloat("amount"), sub.GetString("currency"))
		stats.TotalRevenue += amount

		created, hasCreated := parseWhen(sub.GetString("created_at"))
		if hasCreated && !created.Before(monthStart) {
			stats.MonthlyRevenue += amount
		}

		if sub.GetString("status") != "active" {
			continue
		}
		end, ok := parseWhen(sub.GetString("end_date"))
		if !ok || end.Before(now) {
			continue
		}
		stats.ActiveSubscriptions++
		if end.Before(now.AddDate(0, 0, expiringSoonDays)) {
			stats.ExpiringSoon++
		}
	}

	return stats, nil
}

// RevenueByPackage sums EGP revenue per package name. Subscriptions
// without a package name group under "Other".
func (s *Service) RevenueByPackage(ctx context.Context) (map[string]float64, error) {
	subs, err := s.store.GetAll(ctx, store.CollectionSubscriptions)
	if err != nil {
		return nil, err
	}

	revenue := make(map[string]float64)
	for _, sub := range subs {
		pkg := strings.TrimSpace(sub.GetString("package"))
		if pkg == "" {
			pkg = "Other"
		}
		revenue[pkg] += ToEGP(sub.GetFloat("amount"), sub.GetString("currency"))
	}
	return revenue, nil
}

// TrendPoint is one day of the sales trend.
type TrendPoint struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
	Count   int     `json:"count"`
}

// SalesTrend returns daily EGP revenue for the last days days, oldest
// first, including zero days.
func (s *Service) SalesTrend(ctx context.Context, days int) ([]TrendPoint, error) {
	if days <= 0 {
		days = 30
	}
	subs, err := s.store.GetAll(ctx, store.CollectionSubscriptions)
	if err != nil {
		return nil, err
	}

	today := time.Now()
	cutoff := today.AddDate(0, 0, -(days - 1))
	cutoffDay := time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, cutoff.Location())

	byDay := make(map[string]*TrendPoint)
	for _, sub := range subs {
		created, ok := parseWhen(sub.GetString("created_at"))
		if !ok || created.Before(cutoffDay) {
			continue
		}
		day := created.Format("2006-01-02")
		point := byDay[day]
		if point == nil {
			point = &TrendPoint{Date: day}
			byDay[day] = point
		}
		point.Revenue += ToEGP(sub.GetFloat("amount"), sub.GetString("currency"))
		point.Count++
	}

	trend := make([]TrendPoint, 0, days)
	for i := 0; i < days; i++ {
		day := cutoffDay.AddDate(0, 0, i).Format("2006-01-02")
		if point := byDay[day]; point != nil {
			trend = append(trend, *point)
		} else {
			trend = append(trend, TrendPoint{Date: day})
		}
	}
	return trend, nil
}

// Overview bundles everything known about one client.
type Overview struct {
	Client        *store.Record   `json:"client"`
	Subscriptions []*store.Record `json:"subscriptions"`
	Plans         []*store.Record `json:"plans"`
	Updates       []*store.Record `json:"updates"`
	DaysRemaining int             `json:"days_remaining"`
	Status        string          `json:"status"`
}

// ClientOverview assembles the complete picture for a client code:
// profile, subscription history, plans and check-in updates, plus the
// derived status of the most recent subscription.
func (s *Service) ClientOverview(ctx context.Context, clientCode string) (*Overview, error) {
	client, err := s.store.FindOne(ctx, store.CollectionClients, store.Eq("client_code", clientCode))
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("client %s not found", clientCode)
	}

	subs, err := s.store.FindMany(ctx, store.CollectionSubscriptions, store.Eq("client_code", clientCode))
	if err != nil {
		return nil, err
	}
	plans, err := s.store.FindMany(ctx, store.CollectionPlans, store.Eq("client_code", clientCode))
	if err != nil {
		return nil, err
	}
	updates, err := s.store.FindMany(ctx, store.CollectionUpdates, store.Eq("client_code", clientCode))
	if err != nil {
		return nil, err
	}

	sortByDateDesc(subs, "start_date")
	sortByDateDesc(plans, "created_at")
	sortByDateDesc(updates, "created_at")

	overview := &Overview{
		Client:        client,
		Subscriptions: subs,
		Plans:         plans,
		Updates:       updates,
		Status:        "none",
	}

	if len(subs) > 0 {
		latest := subs[0]
		overview.Status = latest.GetString("status")
		if end, ok := parseWhen(latest.GetString("end_date")); ok {
			remaining := int(time.Until(end).Hours() / 24)
			if remaining < 0 {
				remaining = 0
				overview.Status = "expired"
			}
			overview.DaysRemaining = remaining
		}
	}

	return overview, nil
}

// PlanInput is a manually entered diet/workout plan.
type PlanInput struct {
	ClientCode  string `json:"client_code"`
	DietPlan    string `json:"diet_plan"`
	WorkoutPlan string `json:"workout_plan"`
	Notes       string `json:"notes"`
}

// AddPlan stores a plan for a client, verifying the client exists.
func (s *Service) AddPlan(ctx context.Context, input PlanInput) (*store.Record, error) {
	if strings.TrimSpace(input.ClientCode) == "" {
		return nil, fmt.Errorf("client code is required")
	}
	client, err := s.store.FindOne(ctx, store.CollectionClients, store.Eq("client_code", input.ClientCode))
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("client %s not found", input.ClientCode)
	}

	return s.store.Insert(ctx, store.CollectionPlans, map[string]interface{}{
		"plan_id":      fmt.Sprintf("PLAN-%d", time.Now().UnixMilli()),
		"client_code":  input.ClientCode,
		"diet_plan":    input.DietPlan,
		"workout_plan": input.WorkoutPlan,
		"notes":        input.Notes,
		"created_at":   time.Now().UTC().Format(time.RFC3339),
	})
}

// UpdateInput is a manually entered client check-in.
type UpdateInput struct {
	ClientCode   string  `json:"client_code"`
	Weight       float64 `json:"weight"`
	Measurements string  `json:"measurements"`
	Notes        string  `json:"notes"`
}

// AddUpdate stores a check-in update for a client.
func (s *Service) AddUpdate(ctx context.Context, input UpdateInput) (*store.Record, error) {
	if strings.TrimSpace(input.ClientCode) == "" {
		return nil, fmt.Errorf("client code is required")
	}
	client, err := s.store.FindOne(ctx, store.CollectionClients, store.Eq("client_code", input.ClientCode))
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("client %s not found", input.ClientCode)
	}

	return s.store.Insert(ctx, store.CollectionUpdates, map[string]interface{}{
		"update_id":    fmt.Sprintf("UPD-%d", time.Now().UnixMilli()),
		"client_code":  input.ClientCode,
		"weight":       input.Weight,
		"measurements": input.Measurements,
		"notes":        input.Notes,
		"created_at":   time.Now().UTC().Format(time.RFC3339),
	})
}

// parseWhen parses the timestamp formats stored by the sync layer.
func parseWhen(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// sortByDateDesc orders records newest-first by a timestamp field.
func sortByDateDesc(records []*store.Record, field string) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, _ := parseWhen(records[i].GetString(field))
		tj, _ := parseWhen(records[j].GetString(field))
		return ti.After(tj)
	})
}
