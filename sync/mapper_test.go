package sync

import (
	"testing"

	"github.com/wfworld/dashboard/feed"
)

func TestMapRowClientHeaders(t *testing.T) {
	row := feed.NewRow()
	row.Set("Timestamp", "25/12/2023 10:00:00")
	row.Set("الاسم بالكامل", "أحمد محمد")
	row.Set("البريد الإلكتروني", "ahmed@example.com")
	row.Set("رقم الواتساب", "+201001234567")
	row.Set("السن", float64(28))
	row.Set("الوزن الحالي", float64(92.5))
	row.Set("ما هو الهدف من الاشتراك؟", "خسارة الوزن")
	row.Set("عمود غير معروف", "ignored")

	mapped := MapRow(row, ClientFieldRules)

	want := map[string]interface{}{
		"registration_date": "25/12/2023 10:00:00",
		"full_name":         "أحمد محمد",
		"email":             "ahmed@example.com",
		"phone":             "+201001234567",
		"age":               float64(28),
		"weight":            float64(92.5),
		"goal":              "خسارة الوزن",
	}
	for field, expected := range want {
		if got := mapped[field]; got != expected {
			t.Errorf("mapped[%q] = %v, want %v", field, got, expected)
		}
	}
	if _, ok := mapped["notes"]; ok {
		t.Error("unmatched column leaked into mapping")
	}
}

func TestMapRowFirstRuleWins(t *testing.T) {
	// both rules target "age"; the earlier rule's header must win
	row := feed.NewRow()
	row.Set("العمر", float64(40))
	row.Set("السن", float64(30))

	mapped := MapRow(row, ClientFieldRules)
	if got := mapped["age"]; got != float64(30) {
		t.Errorf("age = %v, want the first matching rule's header value 30", got)
	}
}

func TestMapRowFirstHeaderWins(t *testing.T) {
	// two headers match the same keyword; column order decides
	row := feed.NewRow()
	row.Set("ملاحظات عامة", "first")
	row.Set("ملاحظات إضافية", "second")

	mapped := MapRow(row, ClientFieldRules)
	if got := mapped["notes"]; got != "first" {
		t.Errorf("notes = %v, want value from the earlier column", got)
	}
}

func TestMapRowSkipsEmptyValues(t *testing.T) {
	row := feed.NewRow()
	row.Set("البريد الإلكتروني", "   ")
	row.Set("ايميل التواصل", "real@example.com")

	mapped := MapRow(row, ClientFieldRules)
	if got := mapped["email"]; got != "real@example.com" {
		t.Errorf("email = %v, want the first non-empty match", got)
	}
}

func TestMapRowSaleHeaders(t *testing.T) {
	row := feed.NewRow()
	row.Set("كود العميل", "C-251234")
	row.Set("اسم العميل", "سارة علي")
	row.Set("الباقة", "Gold")
	row.Set("المبلغ المدفوع", float64(3000))
	row.Set("العملة", "EGP")
	row.Set("طريقة الدفع", "انستاباي")
	row.Set("تاريخ البداية", "1/11/2024")
	row.Set("مدة الاشتراك بالشهور", float64(3))
	row.Set("شهور إضافية هدية", float64(1))

	mapped := MapRow(row, SaleFieldRules)

	checks := map[string]interface{}{
		"client_code":    "C-251234",
		"client_name":    "سارة علي",
		"package":        "Gold",
		"amount":         float64(3000),
		"currency":       "EGP",
		"payment_method": "انستاباي",
		"start_date":     "1/11/2024",
		"duration":       float64(3),
		"bonus_duration": float64(1),
	}
	for field, expected := range checks {
		if got := mapped[field]; got != expected {
			t.Errorf("mapped[%q] = %v, want %v", field, got, expected)
		}
	}
}

func TestMapRowSpecificDateRuleBeatsGeneric(t *testing.T) {
	// a generic تاريخ column must not shadow the explicit start date
	row := feed.NewRow()
	row.Set("تاريخ التسجيل في الشيت", "5/5/2024")
	row.Set("تاريخ البداية", "1/11/2024")

	mapped := MapRow(row, SaleFieldRules)
	if got := mapped["start_date"]; got != "1/11/2024" {
		t.Errorf("start_date = %v, want the explicit start-date column", got)
	}
}

func TestStringValue(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{"string trimmed", "  hello ", "hello"},
		{"whole float", float64(70), "70"},
		{"fractional float", float64(92.5), "92.5"},
		{"bool", true, "true"},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stringValue(tt.input); got != tt.want {
				t.Errorf("stringValue(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMappedNumericHelpers(t *testing.T) {
	mapped := map[string]interface{}{
		"duration": float64(3),
		"amount":   "1,500.50",
		"bad":      "abc",
	}
	if got := mappedInt(mapped, "duration", 1); got != 3 {
		t.Errorf("mappedInt(duration) = %d, want 3", got)
	}
	if got := mappedInt(mapped, "missing", 1); got != 1 {
		t.Errorf("mappedInt(missing) = %d, want default 1", got)
	}
	if got := mappedFloat(mapped, "amount", 0); got != 1500.50 {
		t.Errorf("mappedFloat(amount) = %v, want 1500.50", got)
	}
	if got := mappedFloat(mapped, "bad", 7); got != 7 {
		t.Errorf("mappedFloat(bad) = %v, want default 7", got)
	}
}
