package eventstore

import "fmt"

// Expected is a concurrency-control check performed when appending events.
type Expected struct {
	version uint32
	exact   bool
}

// AnyVersion is an Expected that never conflicts.
var AnyVersion = Expected{}

// ExactVersion returns an Expected that conflicts unless the source is
// currently at version v. A source with no events is at version 0.
func ExactVersion(v uint32) Expected {
	return Expected{v, true}
}

// Check returns an error if current does not satisfy the expectation.
func (e Expected) Check(current uint32) error {
	if e.exact && e.version != current {
		return ConflictError{
			Expected: e.version,
			Actual:   current,
		}
	}

	return nil
}

// String returns a human-readable representation of the expectation.
func (e Expected) String() string {
	if e.exact {
		return fmt.Sprintf("version %d", e.version)
	}

	return "any version"
}
