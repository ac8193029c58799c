package rollup

import (
	"reflect"
	"testing"
)

func TestEncodeCommandWordLayout(t *testing.T) {
	tests := []struct {
		name     string
		nonce    uint64
		op       Op
		params   []uint64
		wantHead uint64
	}{
		{
			name:     "limit order",
			nonce:    7,
			op:       OpAddLimitOrder,
			params:   []uint64{1, 1, 2_000_000_000, 100},
			wantHead: 7<<16 | 4<<8 | 5,
		},
		{
			name:     "market order",
			nonce:    42,
			op:       OpAddMarketOrder,
			params:   []uint64{3, 0, 500, 0},
			wantHead: 42<<16 | 4<<8 | 6,
		},
		{
			name:     "cancel",
			nonce:    1,
			op:       OpCancelOrder,
			params:   []uint64{9},
			wantHead: 1<<16 | 1<<8 | 7,
		},
		{
			name:     "add trade",
			nonce:    100,
			op:       OpAddTrade,
			params:   []uint64{10, 9, 100, 50},
			wantHead: 100<<16 | 4<<8 | 11,
		},
		{
			name:     "no params",
			nonce:    0,
			op:       OpCloseMarket,
			params:   nil,
			wantHead: 0<<16 | 0<<8 | 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := EncodeCommand(tt.nonce, tt.op, tt.params)
			if len(cmd) != 1+len(tt.params) {
				t.Fatalf("len = %d, want %d", len(cmd), 1+len(tt.params))
			}
			if cmd[0] != tt.wantHead {
				t.Errorf("head word = %#x, want %#x", cmd[0], tt.wantHead)
			}
			if len(tt.params) > 0 && !reflect.DeepEqual(cmd[1:], tt.params) {
				t.Errorf("params = %v, want %v", cmd[1:], tt.params)
			}
		})
	}
}

func TestEncodeCommandDoesNotAliasParams(t *testing.T) {
	params := []uint64{1, 2, 3}
	cmd := EncodeCommand(5, OpDeposit, params)
	cmd[1] = 99
	if params[0] != 1 {
		t.Errorf("caller's params mutated: %v", params)
	}
}
