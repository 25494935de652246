package processing

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/rentfleet/aigw/server/completion"
)

// Prompt is the rendered instruction text plus the attachments that go with
// it, in the order the instruction describes them.
type Prompt struct {
	Text        string
	Attachments []completion.Attachment
}

const jsonOnly = `Верни результат СТРОГО в формате JSON, без лишних слов, пояснений и без ` + "```json```" + `.
Ответ должен быть только чистым JSON объектом.`

const domesticTemplate = `Ты получаешь фотографии документов гражданина РФ в следующем порядке:
1. Главный разворот паспорта (фото, ФИО, дата рождения, серия и номер).
2. Страница паспорта с пропиской.
3. Селфи владельца с паспортом в руках.
Твоя задача - распознать данные паспорта.
` + jsonOnly + `
Ответ должен быть одним плоским объектом без вложенных объектов и списков.
Ключи: {{range $i, $f := .Fields}}{{if $i}}, {{end}}"{{$f}}"{{end}}.
Даты пиши в формате ДД.ММ.ГГГГ.
Если значение не удаётся прочитать, оно должно быть null.
`

const foreignTemplate = `Ты получаешь фотографии документов иностранного гражданина в следующем порядке:
1. Паспорт.
2. Регистрация (уведомление о прибытии).
3. Патент на работу.
4. Селфи владельца с паспортом в руках.
Некоторые фотографии могут отсутствовать, тогда соответствующие поля должны быть null.
Твоя задача - распознать данные документов.
` + jsonOnly + `
Ответ должен быть одним плоским объектом без вложенных объектов и списков.
Ключи: {{range $i, $f := .Fields}}{{if $i}}, {{end}}"{{$f}}"{{end}}.
ФИО пиши латиницей так, как в паспорте. Даты пиши в формате ДД.ММ.ГГГГ.
Если значение не удаётся прочитать, оно должно быть null.
`

const dealTemplate = `Проанализируй описание комплекта для курьера: "{{.Description}}".
Твоя задача - извлечь название/модель велосипеда, его серийный номер (VIN),
а также количество, емкость (Ah) и серийные номера аккумуляторов.
` + jsonOnly + `
Ключи: "model_name", "bike_number", "batteries".
"batteries" должен быть списком объектов, каждый с ключами "capacity" и "number".
Если аккумуляторов нет, "batteries" должен быть пустым списком.
Если что-то не найдено, значение должно быть null.

Пример ответа:
{
  "model_name": "Монстр-Гибрид",
  "bike_number": "12345",
  "batteries": [
    { "capacity": "30Ah", "number": "312123" },
    { "capacity": "30Ah", "number": "312312" }
  ]
}
`

const plansTemplate = `Проанализируй описание комплекта: "{{.Deal}}" и желаемый план рассрочки: "{{.Plan}}".
Рыночная стоимость комплекта 80,000-120,000 руб.
Твоя задача - сгенерировать ОДИН структурированный план рассрочки.
` + jsonOnly + `
Ответ - объект, где ключ это идентификатор плана, а значение - объект плана с ключами:
"label", "full_label", "first_payment", "total_payments", "period_days".
"first_payment" - число, "total_payments" и "period_days" - целые числа.

Пример твоего идеального ответа:
{
    "plan_1": {
        "label": "5 мес / 10000 ₽",
        "full_label": "5 месяцев: 10 платежей по 10 000 ₽ (раз в 2 недели)",
        "first_payment": 10000,
        "total_payments": 10,
        "period_days": 14
    }
}
`

// defaultPlan replaces an empty plan description.
const defaultPlan = "на твоё усмотрение, подбери разумный план"

// Builder renders the instruction text for each task. Templates are parsed
// once by NewBuilder; rendering is deterministic.
type Builder struct {
	domestic *template.Template
	foreign  *template.Template
	deal     *template.Template
	plans    *template.Template
}

// NewBuilder parses the task templates.
func NewBuilder() *Builder {
	return &Builder{
		domestic: template.Must(template.New("domestic").Parse(domesticTemplate)),
		foreign:  template.Must(template.New("foreign").Parse(foreignTemplate)),
		deal:     template.Must(template.New("deal").Parse(dealTemplate)),
		plans:    template.Must(template.New("plans").Parse(plansTemplate)),
	}
}

// Documents builds the document-recognition prompt for country. Images are
// attached in the given order; their number is not checked.
func (b *Builder) Documents(country Country, images []completion.Attachment) (Prompt, error) {
	var tmpl *template.Template
	switch country {
	case CountryDomestic:
		tmpl = b.domestic
	case CountryForeign:
		tmpl = b.foreign
	default:
		return Prompt{}, fmt.Errorf("unsupported country %q", country)
	}

	text, err := render(tmpl, struct{ Fields []string }{country.Fields()})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{Text: text, Attachments: images}, nil
}

// Deal builds the deal-parsing prompt.
func (b *Builder) Deal(description string) (Prompt, error) {
	text, err := render(b.deal, struct{ Description string }{description})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{Text: text}, nil
}

// BuyoutPlans builds the installment-plan prompt. An empty plan lets the
// model choose.
func (b *Builder) BuyoutPlans(deal, plan string) (Prompt, error) {
	if plan == "" {
		plan = defaultPlan
	}
	text, err := render(b.plans, struct{ Deal, Plan string }{deal, plan})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{Text: text}, nil
}

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
