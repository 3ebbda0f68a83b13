package complexity

import "fmt"

// Class is a coarse asymptotic time-complexity label.
type Class string

// Known complexity classes, ordered from cheapest to most expensive.
const (
	Constant     Class = "O(1)"
	Logarithmic  Class = "O(log n)"
	Linear       Class = "O(n)"
	Linearithmic Class = "O(n log n)"
	Quadratic    Class = "O(n²)"
	Exponential  Class = "O(2^n)"
)

var classes = []Class{Constant, Logarithmic, Linear, Linearithmic, Quadratic, Exponential}

// Classes returns the closed set of classes the estimator can produce.
func Classes() []Class {
	out := make([]Class, len(classes))
	copy(out, classes)
	return out
}

// ParseClass validates a class label submitted by a client.
func ParseClass(s string) (Class, error) {
	for _, c := range classes {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown complexity class %q", s)
}

// Variant returns the badge variant used to render the class.
func (c Class) Variant() string {
	switch c {
	case "":
		return "outline"
	case Constant, Logarithmic:
		return "default"
	case Linear, Linearithmic:
		return "secondary"
	case Quadratic:
		return "outline"
	default:
		return "destructive"
	}
}

func (c Class) String() string {
	return string(c)
}
