package main

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func parseConfig()", func() {
	setenv := func(k, v string) {
		prev, ok := os.LookupEnv(k)
		Expect(os.Setenv(k, v)).To(Succeed())

		DeferCleanup(func() {
			if ok {
				os.Setenv(k, prev)
			} else {
				os.Unsetenv(k)
			}
		})
	}

	It("uses defaults when the environment is empty", func() {
		cfg, err := parseConfig()
		Expect(err).ShouldNot(HaveOccurred())
		Expect(cfg.Store).To(Equal("bolt"))
		Expect(cfg.ListenAddress).To(Equal("127.0.0.1:7770"))
		Expect(cfg.DemoInterval).To(BeZero())
		Expect(cfg.ShutdownTimeout).To(Equal(5 * time.Second))
	})

	It("reads values from the environment", func() {
		setenv("PROJECTORD_STORE", "sqlite")
		setenv("PROJECTORD_DEMO_INTERVAL", "250ms")
		setenv("PROJECTORD_REMOTE", "example.org:7770")
		setenv("PROJECTORD_DEBUG", "true")

		cfg, err := parseConfig()
		Expect(err).ShouldNot(HaveOccurred())
		Expect(cfg.Store).To(Equal("sqlite"))
		Expect(cfg.DemoInterval).To(Equal(250 * time.Millisecond))
		Expect(cfg.Remote).To(Equal("example.org:7770"))
		Expect(cfg.Debug).To(BeTrue())
	})

	It("returns an error if the store is not supported", func() {
		setenv("PROJECTORD_STORE", "<unsupported>")

		_, err := parseConfig()
		Expect(err).To(MatchError(`unsupported store "<unsupported>", expected bolt, sqlite or memory`))
	})

	It("returns an error if a value can not be parsed", func() {
		setenv("PROJECTORD_SHUTDOWN_TIMEOUT", "<not a duration>")

		_, err := parseConfig()
		Expect(err).To(MatchError(ContainSubstring("parse env: ")))
	})
})
