package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `  {"a":1}  `, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"single line fence", "```{\"a\":1}```", `{"a":1}`},
		{"crlf fence", "```json\r\n{\"a\":1}\r\n```", `{"a":1}`},
		{"unterminated fence", "```json\n{\"a\":1}", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripCodeFence(tc.in))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	got, ok := ExtractJSONObject(`Sure! Here it is: {"a":{"b":2}} Enjoy.`)
	require.True(t, ok)
	assert.Equal(t, `{"a":{"b":2}}`, got)

	_, ok = ExtractJSONObject("no braces here")
	assert.False(t, ok)

	_, ok = ExtractJSONObject("} backwards {")
	assert.False(t, ok)
}

func TestParseJSONKeepsNumbers(t *testing.T) {
	var obj map[string]interface{}
	require.NoError(t, ParseJSON(`{"calories": 500}`, &obj))
	n, ok := obj["calories"].(json.Number)
	require.True(t, ok)
	assert.Equal(t, "500", n.String())
}

func TestParseJSONRejectsTrailingData(t *testing.T) {
	var obj map[string]interface{}
	assert.Error(t, ParseJSON(`{"a":1} {"b":2}`, &obj))
}

func TestQuoteJSONKeys(t *testing.T) {
	fixed := QuoteJSONKeys(`{description: "Rice", calories: 200}`)
	var obj map[string]interface{}
	require.NoError(t, ParseJSON(fixed, &obj))
	assert.Equal(t, "Rice", obj["description"])
}

func TestCustomErrorWrapKeepsIdentity(t *testing.T) {
	err := ErrQueueFull.Wrap(assert.AnError)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, ErrCacheFull)

	ce := AsCustomError(err)
	assert.Equal(t, "QUEUE_FULL", ce.Code)
	assert.Equal(t, ErrCodeInternalError, AsCustomError(assert.AnError).Code)

	resp := ce.ToResponse(true)
	assert.NotEmpty(t, resp.Details)
	assert.Empty(t, ce.ToResponse(false).Details)
}
