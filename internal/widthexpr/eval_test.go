package widthexpr

import (
	"errors"
	"testing"
)

func TestEval(t *testing.T) {
	env := Env{"width": 8, "depth": 16}
	tests := []struct {
		expr string
		want int
	}{
		{"7", 7},
		{"width-1", 7},
		{"width * 2 - 1", 15},
		{"2*width-1", 15},
		{"(width+depth)/2", 12},
		{"-1+width", 7},
		{"8'd7", 7},
		{"'hf", 15},
		{"4'b1010", 10},
		{"$clog2(depth)-1", 3},
		{"1<<3", 8},
		{"depth % 5", 1},
		{"1_000", 1000},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr, env)
			if err != nil {
				t.Fatalf("Eval(%q): %v", tt.expr, err)
			}
			if got != tt.want {
				t.Fatalf("Eval(%q) = %d, want %d", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	if _, err := Eval("addr_w-1", Env{}); !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}
	for _, expr := range []string{"", "a ? b : c", "4/0", "$bits(x)"} {
		if _, err := Eval(expr, Env{"x": 1, "a": 1, "b": 1, "c": 1}); err == nil {
			t.Fatalf("Eval(%q) should fail", expr)
		}
	}
}

func TestWidth(t *testing.T) {
	tests := []struct {
		msb, lsb string
		want     int
	}{
		{"7", "0", 8},
		{"3", "0", 4},
		{"0", "7", 8},
		{"width-1", "0", 8},
	}
	for _, tt := range tests {
		got, err := Width(tt.msb, tt.lsb, Env{"width": 8})
		if err != nil {
			t.Fatalf("Width(%s,%s): %v", tt.msb, tt.lsb, err)
		}
		if got != tt.want {
			t.Fatalf("Width(%s,%s) = %d, want %d", tt.msb, tt.lsb, got, tt.want)
		}
	}
}
