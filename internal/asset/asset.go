// Package asset defines the asset record emitted for every classified signal.
package asset

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Category is the security-relevant role of a signal
type Category string

const (
	Control Category = "Control"
	Status  Category = "Status"
	Config  Category = "Config"
	Data    Category = "Data"
	Param   Category = "Param"
)

// Categories lists every category in emission order
var Categories = []Category{Control, Status, Config, Data, Param}

// ErrUnknownCategory is returned by ParseCategory
var ErrUnknownCategory = errors.New("unknown category")

// ParseCategory accepts a category name in any case; "configuration" and
// "parameter" are accepted as long forms.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "control":
		return Control, nil
	case "status":
		return Status, nil
	case "config", "configuration":
		return Config, nil
	case "data":
		return Data, nil
	case "param", "parameter":
		return Param, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// ParseCategories parses a list, splitting comma-separated entries
func ParseCategories(values []string) ([]Category, error) {
	var out []Category
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			c, err := ParseCategory(part)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// Context labels written to the "Appeared in" column
const (
	ContextIfElse       = "if_else"
	ContextCase         = "case"
	ContextAssignment   = "assignment(lhs)"
	ContextParameterBit = "parameter bit"
	ContextParameter    = "parameter"
)

// Width labels used for parameters
const (
	LabelOneBit   = "1-bit"
	LabelMultiBit = "multi-bit"
)

// Width is either a bit count or a categorical label
type Width struct {
	Bits  int
	Label string
}

// Bits returns a numeric width
func Bits(n int) Width {
	return Width{Bits: n}
}

// Labeled returns a categorical width
func Labeled(label string) Width {
	return Width{Label: label}
}

func (w Width) String() string {
	if w.Label != "" {
		return w.Label
	}
	return strconv.Itoa(w.Bits)
}

// MarshalJSON writes a number for bit widths and a string for labels
func (w Width) MarshalJSON() ([]byte, error) {
	if w.Label != "" {
		return json.Marshal(w.Label)
	}
	return json.Marshal(w.Bits)
}

// UnmarshalJSON accepts either form
func (w *Width) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*w = Width{Bits: n}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("width must be a number or label: %w", err)
	}
	*w = ParseWidth(s)
	return nil
}

// ParseWidth reads the textual form produced by String
func ParseWidth(s string) Width {
	if n, err := strconv.Atoi(s); err == nil {
		return Width{Bits: n}
	}
	return Width{Label: s}
}

// Record is one asset row
type Record struct {
	Signal     string   `json:"signal"`
	Width      Width    `json:"width"`
	Category   Category `json:"category"`
	AppearedIn string   `json:"appeared_in"`
	SourceFile string   `json:"source_file"`
	CIA        string   `json:"cia"`
}

// Key identifies a record within a scan: signal, category and context per file
func (r Record) Key() string {
	return r.SourceFile + "|" + r.Signal + "|" + string(r.Category) + "|" + r.AppearedIn
}

// Counts tallies records per category
func Counts(records []Record) map[Category]int {
	out := make(map[Category]int, len(Categories))
	for _, r := range records {
		out[r.Category]++
	}
	return out
}
