package main

import (
	"context"
	"errors"
	"testing"

	"kioskpos/internal/cart"
	"kioskpos/internal/models"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		arg     string
		id      string
		qty     int
		wantErr bool
	}{
		{"abc", "abc", 1, false},
		{"abc:3", "abc", 3, false},
		{"abc:0", "", 0, true},
		{"abc:x", "", 0, true},
		{":2", "", 0, true},
	}
	for _, tc := range cases {
		id, qty, err := parseLine(tc.arg)
		if (err != nil) != tc.wantErr {
			t.Fatalf("parseLine(%q) err=%v, wantErr %v", tc.arg, err, tc.wantErr)
		}
		if id != tc.id || qty != tc.qty {
			t.Fatalf("parseLine(%q)=(%q,%d), want (%q,%d)", tc.arg, id, qty, tc.id, tc.qty)
		}
	}
}

func TestMoney(t *testing.T) {
	cases := map[int64]string{
		0:       "$0",
		950:     "$950",
		25000:   "$25.000",
		1234567: "$1.234.567",
		-5000:   "-$5.000",
	}
	for amount, want := range cases {
		if got := money(amount); got != want {
			t.Fatalf("money(%d)=%q, want %q", amount, got, want)
		}
	}
}

func TestFillCartMergesRepeatedProducts(t *testing.T) {
	catalogue := map[string]models.Product{
		"p": {ProductID: "p", Name: "Combo", Price: 10000},
		"q": {ProductID: "q", Name: "Soda", Price: 2500},
	}
	lookup := func(ctx context.Context, id string) (models.Product, error) {
		product, ok := catalogue[id]
		if !ok {
			return models.Product{}, errors.New("not found")
		}
		return product, nil
	}

	cases := []struct {
		args  []string
		want  map[string]int
		total int64
	}{
		{[]string{"p", "p"}, map[string]int{"p": 2}, 20000},
		{[]string{"p:2", "p:3"}, map[string]int{"p": 5}, 50000},
		{[]string{"p", "q:2", "p:2"}, map[string]int{"p": 3, "q": 2}, 35000},
	}
	for _, tc := range cases {
		c := cart.New()
		if err := fillCart(context.Background(), c, tc.args, lookup); err != nil {
			t.Fatalf("fillCart(%v): %v", tc.args, err)
		}
		lines := c.Lines()
		if len(lines) != len(tc.want) {
			t.Fatalf("fillCart(%v): %d lines, want %d", tc.args, len(lines), len(tc.want))
		}
		for _, line := range lines {
			if line.Quantity != tc.want[line.Product.ProductID] {
				t.Fatalf("fillCart(%v): %s quantity %d, want %d", tc.args, line.Product.ProductID, line.Quantity, tc.want[line.Product.ProductID])
			}
		}
		if c.Total() != tc.total {
			t.Fatalf("fillCart(%v): total %d, want %d", tc.args, c.Total(), tc.total)
		}
	}

	if err := fillCart(context.Background(), cart.New(), []string{"missing"}, lookup); err == nil {
		t.Fatalf("expected unknown product to fail")
	}
}
