package processing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"fenced with tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced without tag", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"uppercase tag", "```JSON\n{\"a\":1}```", `{"a":1}`},
		{"single backticks", "`json\n{\"a\":1}\n`", `{"a":1}`},
		{"surrounding whitespace", "  \n\t{\"a\":1}  \n", `{"a":1}`},
		{"already clean", `{"a":1}`, `{"a":1}`},
		{"backticks inside values are removed too", "{\"a\":\"x`y\"}", `{"a":"xy"}`},
		{"prose is left alone", "Извините, я не могу помочь.", "Извините, я не могу помочь."},
		{"no repair of broken json", "```json\n{\"a\":\n```", `{"a":`},
		{"tag only", "```json```", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalizeFencedJSONParses(t *testing.T) {
	inner := []string{
		`{"a":1}`,
		`{"model_name":null,"bike_number":"12345","batteries":[]}`,
		`{"plan_1":{"label":"5 мес","first_payment":10000}}`,
		`["Иванов"]`,
	}
	wrappers := []struct{ prefix, suffix string }{
		{"```json\n", "\n```"},
		{"```json", "```"},
		{"```\n", "\n```"},
		{"`json\n", "\n`"},
		{"\n  ```Json\n", "\n```  \n"},
	}

	for _, body := range inner {
		for _, w := range wrappers {
			got := Normalize(w.prefix + body + w.suffix)
			assert.True(t, json.Valid([]byte(got)), "normalize(%q) = %q is not valid JSON", w.prefix+body+w.suffix, got)
			assert.JSONEq(t, body, got)
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"```json\n{\"a\":1}\n```",
		"json json {\"a\":1}",
		"  json\n\n",
		"`` ` json `{}`",
		"plain text",
		"JSONjson[1]",
		"",
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}
