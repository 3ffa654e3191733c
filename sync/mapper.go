// Package sync reconciles the external intake and sales spreadsheet feeds
// against the canonical client and subscription collections.
package sync

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wfworld/dashboard/feed"
)

// FieldRule maps a spreadsheet-header keyword to a canonical field name.
// Rules are evaluated in table order and the first rule to fill a field
// wins, so specific phrases must come before generic ones.
type FieldRule struct {
	Keyword string
	Field   string
}

// ClientFieldRules maps intake-form headers to client fields. The keyword
// fragments are the live form's question vocabulary (mostly Arabic, plus
// the Google Forms defaults); matching is case-sensitive substring
// containment against the raw header text. This table encodes knowledge
// about the spreadsheet layout and is expected to drift with the form —
// keep all edits here.
var ClientFieldRules = []FieldRule{
	{"Timestamp", "registration_date"},
	{"تاريخ التسجيل", "registration_date"},
	{"كود العميل", "client_code"},
	{"الاسم", "full_name"},
	{"Email", "email"},
	{"البريد", "email"},
	{"ايميل", "email"},
	{"واتس", "phone"},
	{"هاتف", "phone"},
	{"موبايل", "phone"},
	{"الدولة", "country"},
	{"بلد", "country"},
	{"تاريخ الميلاد", "birth_date"},
	{"السن", "age"},
	{"العمر", "age"},
	{"الوزن", "weight"},
	{"الطول", "height"},
	{"النوع", "gender"},
	{"الجنس", "gender"},
	{"الديانة", "religion"},
	{"الهدف", "goal"},
	{"الحالة الاجتماعية", "marital_status"},
	{"طبيعة العمل", "job"},
	{"الوظيفة", "job"},
	{"النشاط", "activity_level"},
	{"إصابات", "injuries"},
	{"الاصابات", "injuries"},
	{"أمراض", "medical_conditions"},
	{"الامراض", "medical_conditions"},
	{"أدوية", "medications"},
	{"الادوية", "medications"},
	{"حساسية", "allergies"},
	{"عمليات جراحية", "surgeries"},
	{"التدخين", "smoking"},
	{"النوم", "sleep_hours"},
	{"المياه", "water_intake"},
	{"الماء", "water_intake"},
	{"عدد الوجبات", "meals_per_day"},
	{"نظام غذائي سابق", "previous_diet"},
	{"النظام الغذائي", "diet_preference"},
	{"أطعمة لا تحب", "food_dislikes"},
	{"مكملات", "supplements"},
	{"مكان التمرين", "training_place"},
	{"أيام التمرين", "training_days"},
	{"خبرة تدريبية", "training_history"},
	{"التمرين", "training_history"},
	{"ملاحظات", "notes"},
}

// SaleFieldRules maps sales-form headers to subscription fields.
var SaleFieldRules = []FieldRule{
	{"كود", "client_code"},
	{"Code", "client_code"},
	{"اسم العميل", "client_name"},
	{"الاسم", "client_name"},
	{"الباقة", "package"},
	{"باقة", "package"},
	{"Package", "package"},
	{"المبلغ", "amount"},
	{"السعر", "amount"},
	{"العملة", "currency"},
	{"طريقة الدفع", "payment_method"},
	{"تاريخ البداية", "start_date"},
	{"تاريخ البدء", "start_date"},
	{"بداية الاشتراك", "start_date"},
	{"تاريخ", "start_date"},
	{"مدة الاشتراك", "duration"},
	{"المدة", "duration"},
	{"شهور إضافية", "bonus_duration"},
	{"هدية", "bonus_duration"},
	{"بونص", "bonus_duration"},
}

// MapRow maps a raw spreadsheet row onto canonical fields.
//
// Rules run in table order; a rule whose field is already populated is
// skipped (first writer wins). For each rule the row's headers are
// scanned in their original column order and the first header containing
// the keyword with a non-empty value supplies the field. Headers that
// match no rule are dropped silently. Pure function over its inputs.
func MapRow(row *feed.Row, rules []FieldRule) map[string]interface{} {
	mapped := make(map[string]interface{})

	for _, rule := range rules {
		if _, done := mapped[rule.Field]; done {
			continue
		}
		for _, header := range row.Keys() {
			if !strings.Contains(header, rule.Keyword) {
				continue
			}
			value, _ := row.Get(header)
			if isEmptyValue(value) {
				continue
			}
			mapped[rule.Field] = value
			break
		}
	}

	return mapped
}

// isEmptyValue reports whether a raw cell value counts as absent.
func isEmptyValue(v interface{}) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(value) == ""
	default:
		return false
	}
}

// stringValue renders a mapped cell value for storage in a text field.
// Floats drop their trailing zeros so spreadsheet numbers like 70.0
// store as "70".
func stringValue(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", value))
	}
}

// mappedString returns a canonical field as a trimmed string.
func mappedString(mapped map[string]interface{}, field string) string {
	return stringValue(mapped[field])
}

// mappedInt returns a canonical field as a whole number, falling back to
// def when the cell is absent or unparseable.
func mappedInt(mapped map[string]interface{}, field string, def int) int {
	v, ok := mapped[field]
	if !ok {
		return def
	}
	switch value := v.(type) {
	case float64:
		return int(value)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return def
}

// mappedFloat returns a canonical field as a float, falling back to def.
func mappedFloat(mapped map[string]interface{}, field string, def float64) float64 {
	v, ok := mapped[field]
	if !ok {
		return def
	}
	switch value := v.(type) {
	case float64:
		return value
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return f
		}
	}
	return def
}
