package dashboard_test

import (
	"bytes"
	"testing"

	"github.com/kothawaleganesh/signalr-stock-demo/cmd/dashboard/internal/dashboard"
	"github.com/kothawaleganesh/signalr-stock-demo/pkg/models"
)

func TestRender_Empty(t *testing.T) {
	var out bytes.Buffer
	if err := dashboard.Render(&out, models.PriceMap{}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out.String() != "Live Stock Dashboard\n" {
		t.Errorf("Expected heading only, got %q", out.String())
	}
}

func TestRender_Blocks(t *testing.T) {
	prices := models.PriceMap{}.With("AAPL", "151").With("GOOG", "2800")

	var out bytes.Buffer
	if err := dashboard.Render(&out, prices); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	want := "Live Stock Dashboard\n" +
		"\n  AAPL\n  Price: $151\n" +
		"\n  GOOG\n  Price: $2800\n"
	if out.String() != want {
		t.Errorf("Unexpected output:\n%q\nwant:\n%q", out.String(), want)
	}
}
