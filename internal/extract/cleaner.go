package extract

import (
	"fmt"
	"strings"
	"unicode"
)

// Cleaner rewrites raw element text before coercion.
type Cleaner struct {
	name string
	fn   func(string) string
}

// Apply runs the cleaner on s.
func (c Cleaner) Apply(s string) string {
	if c.fn == nil {
		return s
	}
	return c.fn(s)
}

func (c Cleaner) String() string { return c.name }

// Remove deletes every occurrence of sub.
func Remove(sub string) Cleaner {
	return Cleaner{
		name: "remove:" + sub,
		fn:   func(s string) string { return strings.ReplaceAll(s, sub, "") },
	}
}

// Trim strips leading and trailing whitespace.
func Trim() Cleaner {
	return Cleaner{name: "trim", fn: strings.TrimSpace}
}

// FirstToken keeps the first whitespace-separated token ("23 Seats left" -> "23").
func FirstToken() Cleaner {
	return Cleaner{
		name: "first_token",
		fn: func(s string) string {
			f := strings.Fields(s)
			if len(f) == 0 {
				return ""
			}
			return f[0]
		},
	}
}

// Digits keeps only digits, '.' and '-'.
func Digits() Cleaner {
	return Cleaner{
		name: "digits",
		fn: func(s string) string {
			return strings.Map(func(r rune) rune {
				if unicode.IsDigit(r) || r == '.' || r == '-' {
					return r
				}
				return -1
			}, s)
		},
	}
}

// ParseCleaner builds a cleaner from its configuration form:
// "trim", "first_token", "digits" or "remove:<substring>".
func ParseCleaner(rule string) (Cleaner, error) {
	switch {
	case rule == "trim":
		return Trim(), nil
	case rule == "first_token":
		return FirstToken(), nil
	case rule == "digits":
		return Digits(), nil
	case strings.HasPrefix(rule, "remove:"):
		sub := strings.TrimPrefix(rule, "remove:")
		if sub == "" {
			return Cleaner{}, fmt.Errorf("cleaner %q: empty substring", rule)
		}
		return Remove(sub), nil
	default:
		return Cleaner{}, fmt.Errorf("unknown cleaner %q", rule)
	}
}

// ParseCleaners parses rules in order.
func ParseCleaners(rules []string) ([]Cleaner, error) {
	out := make([]Cleaner, 0, len(rules))
	for _, rule := range rules {
		c, err := ParseCleaner(rule)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
