package models_test

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/kothawaleganesh/signalr-stock-demo/pkg/models"
)

func TestPriceMap_LastWriteWins(t *testing.T) {
	var m models.PriceMap
	m = m.With("AAPL", "150")
	m = m.With("GOOG", "2800")
	m = m.With("AAPL", "151")

	if m.Len() != 2 {
		t.Fatalf("Expected 2 symbols, got %d", m.Len())
	}
	if p, _ := m.Get("AAPL"); p != "151" {
		t.Errorf("Expected AAPL 151, got %s", p)
	}
	if p, _ := m.Get("GOOG"); p != "2800" {
		t.Errorf("Expected GOOG 2800, got %s", p)
	}

	syms := m.Symbols()
	if syms[0] != "AAPL" || syms[1] != "GOOG" {
		t.Errorf("Expected first-seen order [AAPL GOOG], got %v", syms)
	}
}

func TestPriceMap_CopyOnWrite(t *testing.T) {
	base := models.PriceMap{}.With("AAPL", "150")
	next := base.With("AAPL", "151").With("TSLA", "700")

	if p, _ := base.Get("AAPL"); p != "150" {
		t.Errorf("Older map changed: AAPL=%s", p)
	}
	if _, ok := base.Get("TSLA"); ok {
		t.Error("Older map gained TSLA")
	}
	if next.Len() != 2 {
		t.Errorf("Expected 2 symbols in new map, got %d", next.Len())
	}
}

func TestPriceMap_FoldMatchesSequence(t *testing.T) {
	events := []struct {
		sym   string
		price models.Price
	}{
		{"A", "1"}, {"B", "2"}, {"A", "3"}, {"C", "4"}, {"B", "5"}, {"A", "6"},
	}

	var m models.PriceMap
	want := map[string]models.Price{}
	for _, e := range events {
		m = m.With(e.sym, e.price)
		want[e.sym] = e.price
	}

	if m.Len() != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), m.Len())
	}
	m.Range(func(sym string, p models.Price) bool {
		if want[sym] != p {
			t.Errorf("%s: expected %s, got %s", sym, want[sym], p)
		}
		return true
	})
}

func TestPriceMap_RandomFold(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	alphabet := []string{"AAPL", "GOOG", "TSLA", "AMZN", "MSFT"}

	for round := 0; round < 20; round++ {
		var m models.PriceMap
		want := map[string]models.Price{}
		var order []string

		for i := 0; i < 1000; i++ {
			sym := alphabet[rnd.Intn(len(alphabet))]
			price := models.Price(strconv.Itoa(rnd.Intn(10000)))
			if _, seen := want[sym]; !seen {
				order = append(order, sym)
			}
			m = m.With(sym, price)
			want[sym] = price
		}

		if m.Len() != len(want) {
			t.Fatalf("Round %d: expected %d entries, got %d", round, len(want), m.Len())
		}
		for sym, price := range want {
			if got, ok := m.Get(sym); !ok || got != price {
				t.Errorf("Round %d: %s expected %s, got %s", round, sym, price, got)
			}
		}
		for i, sym := range m.Symbols() {
			if sym != order[i] {
				t.Errorf("Round %d: expected first-seen order %v, got %v", round, order, m.Symbols())
				break
			}
		}
	}
}

func TestPriceMap_Empty(t *testing.T) {
	var m models.PriceMap
	if m.Len() != 0 || len(m.Symbols()) != 0 {
		t.Error("Zero PriceMap should be empty")
	}
	if _, ok := m.Get("AAPL"); ok {
		t.Error("Zero PriceMap should not contain AAPL")
	}
}
