package gomegax

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/onsi/gomega/format"
	"github.com/onsi/gomega/types"
)

// EqualX is a more powerful and safer alternative to gomega.Equal() for
// comparing whether two values are semantically equal.
//
// If no options are given, nil and empty maps and slices are considered equal.
func EqualX(expected any, options ...cmp.Option) types.GomegaMatcher {
	if len(options) == 0 {
		options = append(options, cmpopts.EquateEmpty())
	}

	return &equalMatcher{
		expected: expected,
		options:  options,
	}
}

type equalMatcher struct {
	expected any
	options  cmp.Options
}

func (matcher *equalMatcher) Match(actual any) (success bool, err error) {
	return cmp.Equal(actual, matcher.expected, matcher.options), nil
}

func (matcher *equalMatcher) FailureMessage(actual any) (message string) {
	diff := cmp.Diff(matcher.expected, actual, matcher.options)
	return format.Message(actual, "to equal", matcher.expected) +
		"\n\nDiff (-want +got):\n" + format.IndentString(diff, 1)
}

func (matcher *equalMatcher) NegatedFailureMessage(actual any) (message string) {
	return format.Message(actual, "not to equal", matcher.expected)
}
