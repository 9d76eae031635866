package dashboard

import (
	"io"
	"text/template"

	"github.com/kothawaleganesh/signalr-stock-demo/pkg/models"
)

const Heading = "Live Stock Dashboard"

var page = template.Must(template.New("dashboard").Parse(
	`{{.Heading}}
{{range .Rows}}
  {{.Symbol}}
  Price: ${{.Price}}
{{end}}`))

type row struct {
	Symbol string
	Price  models.Price
}

// Render writes the dashboard for prices: the heading, then one block per
// symbol in map order.
func Render(w io.Writer, prices models.PriceMap) error {
	rows := make([]row, 0, prices.Len())
	prices.Range(func(symbol string, price models.Price) bool {
		rows = append(rows, row{Symbol: symbol, Price: price})
		return true
	})

	return page.Execute(w, struct {
		Heading string
		Rows    []row
	}{Heading, rows})
}
