// Package extract turns rendered elements into typed field values. A field
// that cannot be located or coerced is Absent; extraction never fails a
// whole record.
package extract

import (
	"math"
	"strconv"
	"strings"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/browser"
)

// Kind is the coercion applied to a located element's text.
type Kind string

const (
	KindText    Kind = "text"
	KindNumeric Kind = "numeric"
	KindInteger Kind = "integer"
)

// Field declares where a value lives inside an item node and how to read it.
type Field struct {
	Name     string
	Locator  browser.Locator
	Kind     Kind
	Cleaners []Cleaner
}

// Value is the result of Extract: a typed value or Absent.
type Value struct {
	kind    Kind
	text    string
	num     float64
	integer int
	present bool
}

// Absent is the zero Value.
var Absent = Value{}

// Absent reports whether the field could not be determined.
func (v Value) Absent() bool { return !v.present }

// Text returns the cleaned text of a present value.
func (v Value) Text() (string, bool) {
	return v.text, v.present
}

// Float returns a numeric value, or nil when absent.
func (v Value) Float() *float64 {
	if !v.present || v.kind != KindNumeric {
		return nil
	}
	f := v.num
	return &f
}

// Int returns an integer value, or nil when absent.
func (v Value) Int() *int {
	if !v.present || v.kind != KindInteger {
		return nil
	}
	i := v.integer
	return &i
}

// Extract locates f inside node, cleans its text and coerces it to f.Kind.
// A locator miss, unreadable text or failed coercion yields Absent.
func Extract(node browser.Node, f Field) Value {
	if node == nil {
		return Absent
	}
	el, ok := node.Find(f.Locator)
	if !ok {
		return Absent
	}
	raw, err := el.Text()
	if err != nil {
		return Absent
	}
	return Coerce(raw, f.Kind, f.Cleaners...)
}

// Coerce applies cleaners to raw and converts the result to kind.
func Coerce(raw string, kind Kind, cleaners ...Cleaner) Value {
	s := raw
	for _, c := range cleaners {
		s = c.Apply(s)
	}
	s = strings.TrimSpace(s)

	switch kind {
	case KindNumeric:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return Absent
		}
		return Value{kind: kind, text: s, num: n, present: true}
	case KindInteger:
		n, err := strconv.Atoi(s)
		if err != nil {
			return Absent
		}
		return Value{kind: kind, text: s, integer: n, present: true}
	default:
		return Value{kind: KindText, text: s, present: true}
	}
}
