// Package processing turns gateway requests into model prompts and model
// completions back into validated JSON payloads.
//
// A request flows through four stages, run by Processor:
//
//	Building → Completing → Normalizing → Validating
//
// Builder renders the prompt, a completion.Client produces raw text,
// Normalize strips formatting artifacts, and the Validate* functions parse
// and shape-check the result. Any stage failure ends the request; nothing is
// retried.
package processing

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Task identifies one of the three completion-backed operations.
type Task string

const (
	TaskDocuments Task = "recognize_documents"
	TaskDeal      Task = "parse_deal"
	TaskPlans     Task = "generate_buyout_plans"
)

// Country selects the identity-document variant being recognized.
type Country string

const (
	// CountryDomestic is a Russian internal passport: primary page,
	// registration page and a selfie.
	CountryDomestic Country = "domestic"

	// CountryForeign is a foreign citizen's passport with registration,
	// work permit (patent) and a selfie. Any page may be missing.
	CountryForeign Country = "foreign"
)

var (
	domesticFields = []string{
		"Фамилия",
		"Имя",
		"Отчество",
		"Дата рождения",
		"Серия и номер паспорта",
		"Кем выдан",
		"Дата выдачи",
		"Адрес регистрации",
	}
	foreignFields = []string{
		"ФИО",
		"Гражданство",
		"Номер паспорта",
		"Дата рождения",
		"Номер патента",
		"Адрес регистрации",
	}
)

// ParseCountry accepts exactly "domestic" or "foreign".
func ParseCountry(s string) (Country, error) {
	switch c := Country(s); c {
	case CountryDomestic, CountryForeign:
		return c, nil
	default:
		return "", fmt.Errorf("unsupported country %q", s)
	}
}

// Fields returns the document field names the model is asked to fill for c.
func (c Country) Fields() []string {
	switch c {
	case CountryDomestic:
		return append([]string(nil), domesticFields...)
	case CountryForeign:
		return append([]string(nil), foreignFields...)
	default:
		return nil
	}
}

// DocumentFields is a flat mapping of document field name to its recognized
// value. Values are strings or nil; other JSON scalars are passed through.
type DocumentFields map[string]interface{}

// Battery is one battery of a courier kit. Both fields are always encoded,
// as null when unknown.
type Battery struct {
	Capacity *string `json:"capacity"`
	Number   *string `json:"number"`
}

// DealComponents is the parsed content of a free-text deal description.
// Batteries is never nil, so it always encodes as a JSON list.
type DealComponents struct {
	ModelName  *string   `json:"model_name"`
	BikeNumber *string   `json:"bike_number"`
	Batteries  []Battery `json:"batteries"`
}

// BuyoutPlan is a single installment plan.
type BuyoutPlan struct {
	Label         string  `json:"label"`
	FullLabel     string  `json:"full_label"`
	FirstPayment  float64 `json:"first_payment"`
	TotalPayments int     `json:"total_payments"`
	PeriodDays    int     `json:"period_days"`
}

// PlanEntry pairs a caller-opaque plan id with the plan object as returned
// by the model.
type PlanEntry struct {
	ID   string
	Plan json.RawMessage
}

// Decode parses the plan object into a BuyoutPlan.
func (e PlanEntry) Decode() (BuyoutPlan, error) {
	var p BuyoutPlan
	if err := json.Unmarshal(e.Plan, &p); err != nil {
		return BuyoutPlan{}, fmt.Errorf("decode plan %q: %w", e.ID, err)
	}
	return p, nil
}

// PlanSet is an ordered set of plans. It encodes as a JSON object whose keys
// keep the order in which the model produced them.
type PlanSet []PlanEntry

// Get returns the plan with the given id.
func (s PlanSet) Get(id string) (json.RawMessage, bool) {
	for _, e := range s {
		if e.ID == id {
			return e.Plan, true
		}
	}
	return nil, false
}

// IDs lists the plan ids in order.
func (s PlanSet) IDs() []string {
	ids := make([]string, len(s))
	for i, e := range s {
		ids[i] = e.ID
	}
	return ids
}

// MarshalJSON writes the set as a single object in entry order.
func (s PlanSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.ID)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := json.Compact(&buf, e.Plan); err != nil {
			return nil, fmt.Errorf("plan %q: %w", e.ID, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
