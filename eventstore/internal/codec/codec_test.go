package codec_test

import (
	. "github.com/dogmatiq/projector/eventstore/internal/codec"
	. "github.com/dogmatiq/projector/internal/fixtures"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func MarshalEvent()", func() {
	It("produces data that can be unmarshaled by UnmarshalEvent()", func() {
		ev := NewEvent(42, 100)

		data, err := MarshalEvent(ev)
		Expect(err).ShouldNot(HaveOccurred())

		out, err := UnmarshalEvent[AccountID, Transaction](data)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(out).To(Equal(ev))
	})
})

var _ = Describe("func UnmarshalEvent()", func() {
	It("returns an error if the data is malformed", func() {
		_, err := UnmarshalEvent[AccountID, Transaction]([]byte("<garbage>"))
		Expect(err).To(MatchError(ContainSubstring("unable to unmarshal event")))
	})
})

var _ = Describe("func Marshal()", func() {
	It("produces identical output for equal values", func() {
		a, err := Marshal(map[string]int{"a": 1, "b": 2, "c": 3})
		Expect(err).ShouldNot(HaveOccurred())

		b, err := Marshal(map[string]int{"c": 3, "b": 2, "a": 1})
		Expect(err).ShouldNot(HaveOccurred())

		Expect(a).To(Equal(b))
	})
})
