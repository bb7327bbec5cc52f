package experiment

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Floats is a flag value which appends each occurrence of the flag to the list.
// A comma separated list of values is also accepted.
type Floats []float64

func (l *Floats) String() string {
	if l == nil {
		return ""
	}
	s := make([]string, len(*l))
	for i, x := range *l {
		s[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(s, ",")
}

func (l *Floats) Set(val string) error {
	for _, item := range strings.Split(val, ",") {
		x, err := strconv.ParseFloat(strings.TrimSpace(item), 64)
		if err != nil {
			return errors.Errorf("invalid float value %q", item)
		}
		*l = append(*l, x)
	}
	return nil
}

// Or returns the list, or the defaults if it is empty.
func (l Floats) Or(defaults ...float64) []float64 {
	if len(l) == 0 {
		return defaults
	}
	return l
}

// Ints is a flag value which appends each occurrence of the flag to the list.
type Ints []int

func (l *Ints) String() string {
	if l == nil {
		return ""
	}
	s := make([]string, len(*l))
	for i, x := range *l {
		s[i] = strconv.Itoa(x)
	}
	return strings.Join(s, ",")
}

func (l *Ints) Set(val string) error {
	for _, item := range strings.Split(val, ",") {
		x, err := strconv.Atoi(strings.TrimSpace(item))
		if err != nil {
			return errors.Errorf("invalid integer value %q", item)
		}
		*l = append(*l, x)
	}
	return nil
}

// Or returns the list, or the defaults if it is empty.
func (l Ints) Or(defaults ...int) []int {
	if len(l) == 0 {
		return defaults
	}
	return l
}

// Settings is a flag value which collects each name=value occurrence of the flag.
type Settings []string

func (l *Settings) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, " ")
}

func (l *Settings) Set(val string) error {
	if name, _, _ := strings.Cut(val, "="); strings.TrimSpace(name) == "" {
		return errors.Errorf("invalid setting %q", val)
	}
	*l = append(*l, val)
	return nil
}
