package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const returnFixture = `[
  {
    "id": 500001,
    "date": "2024-04-10",
    "warehouse": {"warehouse": "Main"},
    "customer": {"id": 55, "customer_name": "Jane"},
    "return_costs_lcy": "2,50",
    "discount_lcy": "0",
    "remarks": "#2001",
    "country": {"iso2": "NL"},
    "subsidiary": {"subsidiary": "Fab BV"},
    "quantity": 1,
    "amount_lcy": "40,00",
    "postage_costs_lcy": "0,00",
    "marketplace_channel": {},
    "b2b_b2c_order": 2
  },
  {
    "id": 500002,
    "subsidiary": {"subsidiary": "Fab BV"},
    "marketplace_channel": {},
    "b2b_b2c_order": 1
  },
  {
    "id": 500003,
    "subsidiary": {"subsidiary": "Other BV"},
    "marketplace_channel": {},
    "b2b_b2c_order": 2
  },
  {
    "id": 500004,
    "subsidiary": {"subsidiary": "Fab BV"},
    "marketplace_channel": {"channel": "amazon"},
    "b2b_b2c_order": 2
  }
]`

func TestReturnsNormalizesAndFilters(t *testing.T) {
	table := Returns(decodeRecords(t, returnFixture), "Fab BV")

	require.Equal(t, ReturnColumns, table.Columns)
	require.Len(t, table.Rows, 1)

	assert.Equal(t, "500001", table.Cell(0, "Order no."))
	assert.Equal(t, "2024-04-10", table.Cell(0, "Date"))
	assert.Equal(t, "Main", table.Cell(0, "Warehouse"))
	assert.Equal(t, "#2001", table.Cell(0, "Comments"))
	assert.Equal(t, "NL", table.Cell(0, "Country"))
	assert.Equal(t, "Fab BV", table.Cell(0, "Subsidiary"))
	assert.Equal(t, "1", table.Cell(0, "Quantity"))
	assert.Equal(t, "2.5", table.Cell(0, "Return costs"))
	assert.Equal(t, "40", table.Cell(0, "Amount"))
	assert.Equal(t, "0", table.Cell(0, "Postage costs"))
}

func TestReturnsEmptyInput(t *testing.T) {
	table := Returns(nil, "Fab BV")
	assert.Equal(t, ReturnColumns, table.Columns)
	assert.True(t, table.Empty())
}
