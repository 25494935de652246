package processing

import (
	"strings"
	"testing"

	"github.com/rentfleet/aigw/server/completion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDocuments(t *testing.T) {
	b := NewBuilder()
	images := []completion.Attachment{
		{MIMEType: "image/jpeg", Data: []byte("page")},
		{MIMEType: "image/png", Data: []byte("address")},
		{MIMEType: "image/jpeg", Data: []byte("selfie")},
	}

	tests := []struct {
		country Country
		present []string
		absent  []string
	}{
		{
			country: CountryDomestic,
			present: domesticFields,
			absent:  []string{`"ФИО"`, `"Номер патента"`},
		},
		{
			country: CountryForeign,
			present: foreignFields,
			absent:  []string{`"Отчество"`, `"Кем выдан"`},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.country), func(t *testing.T) {
			p, err := b.Documents(tt.country, images)
			require.NoError(t, err)

			for _, f := range tt.present {
				assert.Contains(t, p.Text, `"`+f+`"`)
			}
			for _, f := range tt.absent {
				assert.NotContains(t, p.Text, f)
			}
			assert.Contains(t, p.Text, "JSON")
			assert.Equal(t, images, p.Attachments, "attachments keep their order")
		})
	}
}

func TestBuilderDocumentsAcceptsAnyImageCount(t *testing.T) {
	p, err := NewBuilder().Documents(CountryForeign, []completion.Attachment{{MIMEType: "image/jpeg", Data: []byte{1}}})
	require.NoError(t, err)
	assert.Len(t, p.Attachments, 1)
}

func TestBuilderDocumentsRejectsUnknownCountry(t *testing.T) {
	_, err := NewBuilder().Documents(Country("martian"), nil)
	assert.Error(t, err)
}

func TestBuilderDeal(t *testing.T) {
	p, err := NewBuilder().Deal("эл.велосипед, 2 акб по 30Ah")
	require.NoError(t, err)

	assert.Contains(t, p.Text, `"эл.велосипед, 2 акб по 30Ah"`)
	for _, key := range []string{`"model_name"`, `"bike_number"`, `"batteries"`, `"capacity"`, `"number"`} {
		assert.Contains(t, p.Text, key)
	}
	assert.Empty(t, p.Attachments)
}

func TestBuilderBuyoutPlans(t *testing.T) {
	b := NewBuilder()

	p, err := b.BuyoutPlans("Монстр-Гибрид + 2 акб", "на 5 месяцев")
	require.NoError(t, err)
	assert.Contains(t, p.Text, `"Монстр-Гибрид + 2 акб"`)
	assert.Contains(t, p.Text, `"на 5 месяцев"`)
	for _, key := range []string{"label", "full_label", "first_payment", "total_payments", "period_days"} {
		assert.Contains(t, p.Text, `"`+key+`"`)
	}

	p, err = b.BuyoutPlans("Монстр-Гибрид", "")
	require.NoError(t, err)
	assert.Contains(t, p.Text, defaultPlan)
}

func TestBuilderIsDeterministic(t *testing.T) {
	b := NewBuilder()
	a1, _ := b.Deal("x")
	a2, _ := b.Deal("x")
	assert.Equal(t, a1, a2)
	assert.False(t, strings.Contains(a1.Text, "<no value>"))
}

func TestParseCountry(t *testing.T) {
	tests := []struct {
		in      string
		want    Country
		wantErr bool
	}{
		{in: "domestic", want: CountryDomestic},
		{in: "foreign", want: CountryForeign},
		{in: "Domestic", wantErr: true},
		{in: " foreign", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCountry(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
