// Package migrations defines the database schema for the dashboard.
package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// clientTextFields is every free-text column on the clients collection.
// Intake answers are stored verbatim as text; dates are ISO strings
// normalized by the sync layer.
var clientTextFields = []string{
	"client_code", "full_name", "email", "phone", "country", "birth_date",
	"age", "weight", "height", "gender", "religion", "goal",
	"marital_status", "job", "activity_level", "injuries",
	"medical_conditions", "medications", "allergies", "surgeries",
	"smoking", "sleep_hours", "water_intake", "meals_per_day",
	"previous_diet", "diet_preference", "food_dislikes", "supplements",
	"training_place", "training_days", "training_history", "notes",
	"registration_date", "status", "created_at",
}

func init() {
	m.Register(func(app core.App) error {
		clients := core.NewBaseCollection("clients")
		for _, name := range clientTextFields {
			clients.Fields.Add(&core.TextField{Name: name})
		}
		clients.AddIndex("idx_clients_email", true, "email", "")
		clients.AddIndex("idx_clients_code", true, "client_code", "")
		if err := app.Save(clients); err != nil {
			return err
		}

		subscriptions := core.NewBaseCollection("subscriptions")
		for _, name := range []string{
			"sub_id", "client_code", "client_name", "package", "currency",
			"payment_method", "start_date", "end_date", "status", "created_at",
		} {
			subscriptions.Fields.Add(&core.TextField{Name: name})
		}
		subscriptions.Fields.Add(&core.NumberField{Name: "amount"})
		subscriptions.Fields.Add(&core.NumberField{Name: "duration"})
		subscriptions.Fields.Add(&core.NumberField{Name: "bonus_duration"})
		subscriptions.AddIndex("idx_subs_identity", true, "client_code, start_date", "")
		subscriptions.AddIndex("idx_subs_status", false, "status", "")
		if err := app.Save(subscriptions); err != nil {
			return err
		}

		plans := core.NewBaseCollection("plans")
		for _, name := range []string{
			"plan_id", "client_code", "diet_plan", "workout_plan", "notes", "created_at",
		} {
			plans.Fields.Add(&core.TextField{Name: name})
		}
		plans.AddIndex("idx_plans_client", false, "client_code", "")
		if err := app.Save(plans); err != nil {
			return err
		}

		updates := core.NewBaseCollection("updates")
		for _, name := range []string{
			"update_id", "client_code", "measurements", "notes", "created_at",
		} {
			updates.Fields.Add(&core.TextField{Name: name})
		}
		updates.Fields.Add(&core.NumberField{Name: "weight"})
		updates.AddIndex("idx_updates_client", false, "client_code", "")
		if err := app.Save(updates); err != nil {
			return err
		}

		settings := core.NewBaseCollection("settings")
		for _, name := range []string{
			"sheets_api_url", "sales_api_url", "last_sync_date", "last_sales_sync_date",
		} {
			settings.Fields.Add(&core.TextField{Name: name})
		}
		for _, name := range []string{"packages", "currencies", "payment_methods"} {
			settings.Fields.Add(&core.JSONField{Name: name})
		}
		return app.Save(settings)
	}, func(app core.App) error {
		for _, name := range []string{"clients", "subscriptions", "plans", "updates", "settings"} {
			collection, err := app.FindCollectionByNameOrId(name)
			if err != nil {
				continue
			}
			if err := app.Delete(collection); err != nil {
				return err
			}
		}
		return nil
	})
}
