// Package widthexpr evaluates the integer constant expressions used as
// vector bounds, e.g. the WIDTH*2-1 in [WIDTH*2-1:0].
package widthexpr

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

var (
	// ErrUnresolved is returned when an identifier has no binding.
	ErrUnresolved = errors.New("unresolved identifier")
	// ErrSyntax is returned when the text is not a supported expression.
	ErrSyntax = errors.New("unsupported expression")
)

// Env maps parameter names to their declared values.
type Env map[string]int

// Eval parses and evaluates text against env.
func Eval(text string, env Env) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("%w: empty", ErrSyntax)
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n, nil
	}
	expr, err := parser.ParseString("", text)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return expr.eval(env)
}

// Width returns |msb-lsb|+1 for a range whose bounds are both resolvable.
func Width(msb, lsb string, env Env) (int, error) {
	hi, err := Eval(msb, env)
	if err != nil {
		return 0, err
	}
	lo, err := Eval(lsb, env)
	if err != nil {
		return 0, err
	}
	d := hi - lo
	if d < 0 {
		d = -d
	}
	return d + 1, nil
}

func (e *Expr) eval(env Env) (int, error) {
	v, err := e.Head.eval(env)
	if err != nil {
		return 0, err
	}
	for _, op := range e.Tail {
		r, err := op.Sum.eval(env)
		if err != nil {
			return 0, err
		}
		if r < 0 || r > 62 {
			return 0, fmt.Errorf("%w: shift by %d", ErrSyntax, r)
		}
		if op.Op == "<<" {
			v <<= uint(r)
		} else {
			v >>= uint(r)
		}
	}
	return v, nil
}

func (s *Sum) eval(env Env) (int, error) {
	v, err := s.Head.eval(env)
	if err != nil {
		return 0, err
	}
	for _, op := range s.Tail {
		r, err := op.Term.eval(env)
		if err != nil {
			return 0, err
		}
		if op.Op == "+" {
			v += r
		} else {
			v -= r
		}
	}
	return v, nil
}

func (t *Term) eval(env Env) (int, error) {
	v, err := t.Head.eval(env)
	if err != nil {
		return 0, err
	}
	for _, op := range t.Tail {
		r, err := op.Factor.eval(env)
		if err != nil {
			return 0, err
		}
		switch op.Op {
		case "*":
			v *= r
		case "/", "%":
			if r == 0 {
				return 0, fmt.Errorf("%w: division by zero", ErrSyntax)
			}
			if op.Op == "/" {
				v /= r
			} else {
				v %= r
			}
		}
	}
	return v, nil
}

func (f *Factor) eval(env Env) (int, error) {
	switch {
	case f.Neg != nil:
		v, err := f.Neg.eval(env)
		return -v, err
	case f.Call != nil:
		return f.Call.eval(env)
	case f.Based != nil:
		return parseBased(*f.Based)
	case f.Number != nil:
		return strconv.Atoi(strings.ReplaceAll(*f.Number, "_", ""))
	case f.Ident != nil:
		v, ok := env[strings.ToLower(*f.Ident)]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnresolved, *f.Ident)
		}
		return v, nil
	case f.Sub != nil:
		return f.Sub.eval(env)
	}
	return 0, ErrSyntax
}

func (c *Call) eval(env Env) (int, error) {
	arg, err := c.Arg.eval(env)
	if err != nil {
		return 0, err
	}
	switch strings.ToLower(c.Name) {
	case "$clog2":
		if arg <= 1 {
			return 0, nil
		}
		return bits.Len(uint(arg - 1)), nil
	}
	return 0, fmt.Errorf("%w: %s", ErrSyntax, c.Name)
}

// parseBased converts literals like 8'd7, 'hff or 4'b1010.
func parseBased(lit string) (int, error) {
	i := strings.IndexByte(lit, '\'')
	rest := strings.TrimLeft(lit[i+1:], "sS")
	if rest == "" {
		return 0, fmt.Errorf("%w: %s", ErrSyntax, lit)
	}
	base := 10
	switch rest[0] {
	case 'h', 'H':
		base = 16
	case 'b', 'B':
		base = 2
	case 'o', 'O':
		base = 8
	}
	digits := strings.ReplaceAll(rest[1:], "_", "")
	v, err := strconv.ParseInt(digits, base, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrSyntax, lit)
	}
	return int(v), nil
}
