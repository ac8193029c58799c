package match

import (
	"math"
	"math/big"
	"testing"
)

func TestCrossAmount(t *testing.T) {
	tests := []struct {
		name      string
		price     uint64
		counter   uint64
		precision uint64
		want      uint64
	}{
		{"whole price", 2_000_000_000, 10, 1_000_000_000, 20},
		{"fractional price floors", 1_500_000_000, 3, 1_000_000_000, 4},
		{"zero counter", 2_000_000_000, 0, 1_000_000_000, 0},
		{"sub-unit price", 500_000_000, 10, 1_000_000_000, 5},
		{"truncates remainder", 1, 999_999_999, 1_000_000_000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CrossAmount(tt.price, tt.counter, tt.precision)
			if !got.IsUint64() || got.Uint64() != tt.want {
				t.Fatalf("CrossAmount(%d, %d, %d) = %s, want %d",
					tt.price, tt.counter, tt.precision, got, tt.want)
			}
		})
	}
}

func TestCrossAmountWideIntermediate(t *testing.T) {
	// price * counter overflows 64 bits but the reduced result does not.
	price := uint64(math.MaxUint32) * 1_000_000_000
	counter := uint64(8)
	got := CrossAmount(price, counter, 1_000_000_000)
	want := uint64(math.MaxUint32) * 8
	if !got.IsUint64() || got.Uint64() != want {
		t.Fatalf("CrossAmount = %s, want %d", got, want)
	}
}

func TestExceedsCeiling(t *testing.T) {
	max := new(big.Int).SetUint64(math.MaxInt64)
	if ExceedsCeiling(max) {
		t.Fatal("2^63-1 must not exceed the ceiling")
	}
	over := new(big.Int).Add(max, big.NewInt(1))
	if !ExceedsCeiling(over) {
		t.Fatal("2^63 must exceed the ceiling")
	}
	if ExceedsCeiling(big.NewInt(0)) {
		t.Fatal("zero must not exceed the ceiling")
	}
}
