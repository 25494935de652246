package processing

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateShapes(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		shape     Shape
		wantErr   error
	}{
		{"document object", `{"Фамилия":"Иванов"}`, ShapeDocument, nil},
		{"document with nulls and extra keys", `{"Фамилия":null,"Лишнее":"x","Номер":12}`, ShapeDocument, nil},
		{"document empty object", `{}`, ShapeDocument, nil},
		{"document list", `["Иванов"]`, ShapeDocument, ErrWrongShape},
		{"document scalar", `"Иванов"`, ShapeDocument, ErrWrongShape},
		{"document null", `null`, ShapeDocument, ErrWrongShape},
		{"document nested", `{"Адрес регистрации":{"город":"Москва"}}`, ShapeDocument, ErrWrongShape},

		{"deal complete", `{"model_name":"Kugoo","bike_number":"12345","batteries":[{"capacity":"30Ah","number":"1"}]}`, ShapeDeal, nil},
		{"deal nulls", `{"model_name":null,"bike_number":null,"batteries":[]}`, ShapeDeal, nil},
		{"deal missing batteries", `{"model_name":null,"bike_number":null}`, ShapeDeal, ErrWrongShape},
		{"deal batteries not a list", `{"model_name":null,"bike_number":null,"batteries":"two"}`, ShapeDeal, ErrWrongShape},
		{"deal battery not an object", `{"model_name":null,"bike_number":null,"batteries":["30Ah"]}`, ShapeDeal, ErrWrongShape},
		{"deal list", `[]`, ShapeDeal, ErrWrongShape},

		{"plans valid", `{"plan_1":{"label":"x","full_label":"y","first_payment":1,"total_payments":1,"period_days":30}}`, ShapePlans, nil},
		{"plans scalar value", `{"plan_1":123}`, ShapePlans, ErrWrongShape},
		{"plans list value", `{"plan_1":[1,2]}`, ShapePlans, ErrWrongShape},
		{"plans null value", `{"plan_1":null}`, ShapePlans, ErrWrongShape},
		{"plans mixed", `{"plan_1":{},"plan_2":"x"}`, ShapePlans, ErrWrongShape},
		{"plans empty", `{}`, ShapePlans, ErrWrongShape},

		{"truncated", `{"a":`, ShapeDocument, ErrMalformed},
		{"prose", `Вот ваш ответ: {"a":1}`, ShapeDeal, ErrMalformed},
		{"trailing data", `{"a":1} {"b":2}`, ShapePlans, ErrMalformed},
		{"empty input", ``, ShapeDocument, ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Validate(tt.candidate, tt.shape)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.JSONEq(t, tt.candidate, string(raw))
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, raw)
		})
	}
}

func TestMalformedErrorExposesOffset(t *testing.T) {
	_, err := Validate(`{"a": tru}`, ShapeDocument)
	require.Error(t, err)

	var malformed *MalformedError
	require.True(t, errors.As(err, &malformed))
	assert.Greater(t, malformed.Offset, int64(0))

	var syntaxErr *json.SyntaxError
	assert.True(t, errors.As(err, &syntaxErr), "parser error must stay reachable")
	assert.NotErrorIs(t, err, ErrWrongShape)
}

func TestShapeErrorListsViolations(t *testing.T) {
	_, err := Validate(`{"plan_1":123}`, ShapePlans)

	var shapeErr *ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, ShapePlans, shapeErr.Shape)
	assert.NotEmpty(t, shapeErr.Violations)
	assert.NotErrorIs(t, err, ErrMalformed)
}

func TestValidateDocument(t *testing.T) {
	fields, err := ValidateDocument(`{"Фамилия":"Иванов","Отчество":null,"Код":770}`)
	require.NoError(t, err)

	assert.Equal(t, "Иванов", fields["Фамилия"])
	assert.Nil(t, fields["Отчество"])
	assert.Contains(t, fields, "Отчество")

	out, err := json.Marshal(fields)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Фамилия":"Иванов","Отчество":null,"Код":770}`, string(out))
}

func TestValidateDeal(t *testing.T) {
	t.Run("batteries keep order and exactly two fields", func(t *testing.T) {
		deal, err := ValidateDeal(`{
			"model_name": "Монстр-Гибрид",
			"bike_number": 12345,
			"batteries": [
				{"capacity": "30Ah", "number": "312123", "color": "black"},
				{"capacity": 20},
				{}
			]
		}`)
		require.NoError(t, err)

		out, err := json.Marshal(deal)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"model_name": "Монстр-Гибрид",
			"bike_number": "12345",
			"batteries": [
				{"capacity": "30Ah", "number": "312123"},
				{"capacity": "20", "number": null},
				{"capacity": null, "number": null}
			]
		}`, string(out))
	})

	t.Run("null batteries become an empty list", func(t *testing.T) {
		deal, err := ValidateDeal(`{"model_name":null,"bike_number":null,"batteries":null}`)
		require.NoError(t, err)

		out, err := json.Marshal(deal)
		require.NoError(t, err)
		assert.JSONEq(t, `{"model_name":null,"bike_number":null,"batteries":[]}`, string(out))
	})

	t.Run("wrong shape", func(t *testing.T) {
		_, err := ValidateDeal(`{"description":"велосипед"}`)
		assert.ErrorIs(t, err, ErrWrongShape)
	})
}

func TestValidatePlansKeepsModelOrder(t *testing.T) {
	set, err := ValidatePlans(`{
		"zeta": {"label":"3 мес","full_label":"3 месяца","first_payment":15000,"total_payments":6,"period_days":14},
		"alpha": {"label":"5 мес","full_label":"5 месяцев","first_payment":10000,"total_payments":10,"period_days":14},
		"mid": {"label":"1 год","full_label":"12 месяцев","first_payment":5000,"total_payments":12,"period_days":30}
	}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, set.IDs())

	plan, err := set[1].Decode()
	require.NoError(t, err)
	assert.Equal(t, BuyoutPlan{
		Label:         "5 мес",
		FullLabel:     "5 месяцев",
		FirstPayment:  10000,
		TotalPayments: 10,
		PeriodDays:    14,
	}, plan)

	out, err := json.Marshal(set)
	require.NoError(t, err)
	assert.Regexp(t, `^\{"zeta":.*,"alpha":.*,"mid":.*\}$`, string(out))
}

func TestValidatePlansDuplicateIDs(t *testing.T) {
	set, err := ValidatePlans(`{"a":{"n":1},"b":{"n":2},"a":{"n":3}}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, set.IDs())

	plan, ok := set.Get("a")
	require.True(t, ok)
	assert.JSONEq(t, `{"n":3}`, string(plan))
}

func TestValidatePlansRejects(t *testing.T) {
	for _, candidate := range []string{`{}`, `{"plan_1":123}`, `[{"label":"x"}]`} {
		_, err := ValidatePlans(candidate)
		assert.ErrorIs(t, err, ErrWrongShape, candidate)
	}
}
