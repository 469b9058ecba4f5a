package itsperfect

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRecord(t *testing.T, raw string) Record {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var r Record
	require.NoError(t, dec.Decode(&r))
	return r
}

func TestRecordScalarAccess(t *testing.T) {
	r := decodeRecord(t, `{
		"id": 100001,
		"date": "2024-04-02",
		"amount_lcy": "12,50",
		"nullfield": null
	}`)

	assert.Equal(t, "100001", r.Str("id"))
	assert.Equal(t, "2024-04-02", r.Str("date"))
	assert.Equal(t, "12,50", r.Str("amount_lcy"))
	assert.Equal(t, "", r.Str("nullfield"))
	assert.Equal(t, "", r.Str("missing"))

	code, ok := r.Int("id")
	require.True(t, ok)
	assert.Equal(t, int64(100001), code)

	_, ok = r.Int("date")
	assert.False(t, ok)
}

func TestRecordNestedAccessNeverPanics(t *testing.T) {
	r := decodeRecord(t, `{
		"country": {"iso2": "NL"},
		"customer": {"id": 55, "customer_name": "Jane"},
		"marketplace_channel": {"channel": null},
		"scalar": "not an object"
	}`)

	assert.Equal(t, "NL", r.Object("country").Str("iso2"))
	assert.Equal(t, "55", r.Object("customer").Str("id"))
	assert.Equal(t, "Jane", r.Object("customer").Str("customer_name"))

	// Absent object, absent field, wrong-shaped field: all yield "".
	assert.Equal(t, "", r.Object("warehouse").Str("warehouse"))
	assert.Equal(t, "", r.Object("country").Str("iso3"))
	assert.Equal(t, "", r.Object("scalar").Str("anything"))

	assert.False(t, r.Object("marketplace_channel").Has("channel"))
	assert.False(t, r.Object("missing").Has("channel"))
}

func TestRecordListAccess(t *testing.T) {
	r := decodeRecord(t, `{
		"payments": [
			{"date": "2024-04-03", "amount_rcy": "10.00",
			 "payment_method": {"payment_method": "iDEAL"}},
			{"date": "2024-04-02", "amount_rcy": "5.00"}
		],
		"lines": "not a list"
	}`)

	payments := r.List("payments")
	require.Len(t, payments, 2)
	assert.Equal(t, "iDEAL", payments[0].Object("payment_method").Str("payment_method"))
	assert.Equal(t, "", payments[1].Object("payment_method").Str("payment_method"))

	assert.Nil(t, r.List("lines"))
	assert.Nil(t, r.List("missing"))
}
