package normalize

import "github.com/fabgroup/recon-cli/pkg/itsperfect"

// Enum translations for the ERP's integer-coded fields. Codes without an
// entry normalize to an absent value, never an error.
var (
	orderTypes = map[int64]string{
		1: "Pre-order",
		2: "Direct order",
		3: "Receipt",
		4: "Sample order",
	}

	orderStatuses = map[int64]string{
		0: "Quantity to ship",
		1: "Sent",
		2: "Canceled",
		3: "Draft",
		4: "Quote",
	}

	channelKinds = map[int64]string{
		0: "Unknown",
		1: "B2B order",
		2: "B2C order",
	}
)

// StatusCanceled is the normalized label of the cancelled order status.
const StatusCanceled = "Canceled"

const channelCodeB2C = 2

func enumLabel(m map[int64]string, r itsperfect.Record, field string) string {
	code, ok := r.Int(field)
	if !ok {
		return ""
	}
	return m[code]
}
