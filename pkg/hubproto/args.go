package hubproto

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/kothawaleganesh/signalr-stock-demo/pkg/models"
)

// PriceText renders a price argument for display. A missing argument is empty.
func PriceText(raw json.RawMessage) models.Price {
	return models.Price(Text(raw))
}

// Text renders a raw JSON argument the way a browser prints a parsed value:
// strings unquoted, numbers in shortest decimal form (150.50 as 150.5, 1e3
// as 1000). Any other value keeps its literal text.
func Text(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case c == '-' || (c >= '0' && c <= '9'):
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return formatNumber(f)
		}
	}
	return string(raw)
}

// formatNumber switches to exponent form outside [1e-6, 1e21), as browsers do.
func formatNumber(f float64) string {
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
