package labels

import (
	"errors"
	"fmt"
	"strings"
)

// Separator splits a class label into plant type and condition.
const Separator = "___"

var (
	ErrMalformed  = errors.New("label must be <plant>___<condition>")
	ErrOutOfRange = errors.New("class index out of range")
)

// Label is a class name in the form <PlantType>___<Condition>.
type Label string

// Split returns the raw plant type and condition parts.
func (l Label) Split() (plant, condition string, err error) {
	parts := strings.Split(string(l), Separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformed, string(l))
	}
	return parts[0], parts[1], nil
}

// Plant returns the plant type, or the whole label if it is malformed.
func (l Label) Plant() string {
	plant, _, err := l.Split()
	if err != nil {
		return string(l)
	}
	return plant
}

// Condition returns the condition with underscores replaced by spaces.
func (l Label) Condition() string {
	_, cond, err := l.Split()
	if err != nil {
		return ""
	}
	return strings.ReplaceAll(cond, "_", " ")
}

// IsHealthy reports whether the label names a healthy plant.
func (l Label) IsHealthy() bool {
	return strings.Contains(strings.ToLower(string(l)), "healthy")
}

func (l Label) String() string { return string(l) }

// Table maps class indices to labels. Its order must match the order of the
// classifier's output scores.
type Table struct {
	labels []Label
}

// NewTable validates names and builds a table from them.
func NewTable(names []string) (Table, error) {
	if len(names) == 0 {
		return Table{}, errors.New("label table is empty")
	}
	seen := make(map[string]int, len(names))
	out := make([]Label, len(names))
	for i, n := range names {
		l := Label(n)
		if _, _, err := l.Split(); err != nil {
			return Table{}, fmt.Errorf("label %d: %w", i, err)
		}
		if j, dup := seen[n]; dup {
			return Table{}, fmt.Errorf("label %d duplicates label %d: %q", i, j, n)
		}
		seen[n] = i
		out[i] = l
	}
	return Table{labels: out}, nil
}

// Len returns the number of classes.
func (t Table) Len() int { return len(t.labels) }

// Lookup returns the label at index i.
func (t Table) Lookup(i int) (Label, error) {
	if i < 0 || i >= len(t.labels) {
		return "", fmt.Errorf("%w: %d (table has %d entries)", ErrOutOfRange, i, len(t.labels))
	}
	return t.labels[i], nil
}

// Labels returns a copy of the table contents.
func (t Table) Labels() []Label {
	return append([]Label(nil), t.labels...)
}

// Strings returns the labels as plain strings.
func (t Table) Strings() []string {
	out := make([]string, len(t.labels))
	for i, l := range t.labels {
		out[i] = string(l)
	}
	return out
}

// Equal reports whether both tables hold the same labels in the same order.
func (t Table) Equal(o Table) bool {
	if len(t.labels) != len(o.labels) {
		return false
	}
	for i := range t.labels {
		if t.labels[i] != o.labels[i] {
			return false
		}
	}
	return true
}

// Plants returns the distinct plant types in table order, with the
// parenthesised qualifiers and underscores cleaned up for display.
func (t Table) Plants() []string {
	var out []string
	seen := map[string]bool{}
	for _, l := range t.labels {
		p := l.Plant()
		if i := strings.IndexAny(p, "(,"); i > 0 {
			p = p[:i]
		}
		p = strings.TrimSpace(strings.ReplaceAll(p, "_", " "))
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
