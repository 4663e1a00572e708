package otel_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"chatconnect.app/assistant/common/otel"
	"chatconnect.app/assistant/core/config"
)

var _ = Describe("Resource", func() {
	cfg := config.OTelConfig{
		ServiceName:    "chatconnect-assistant",
		ServiceVersion: "1.4.0",
		Environment:    "staging",
	}

	value := func(cfg config.OTelConfig, key attribute.Key) string {
		res, err := otel.Resource(cfg)
		Expect(err).NotTo(HaveOccurred())
		v, ok := res.Set().Value(key)
		if !ok {
			return ""
		}
		return v.AsString()
	}

	It("names the assistant service and its deployment", func() {
		Expect(value(cfg, semconv.ServiceNameKey)).To(Equal("chatconnect-assistant"))
		Expect(value(cfg, semconv.ServiceVersionKey)).To(Equal("1.4.0"))
		Expect(value(cfg, semconv.ServiceNamespaceKey)).To(Equal(otel.ServiceNamespace))
		Expect(value(cfg, semconv.DeploymentEnvironmentKey)).To(Equal("staging"))
	})

	It("leaves the environment out when unset", func() {
		Expect(value(config.OTelConfig{ServiceName: "a"}, semconv.DeploymentEnvironmentKey)).To(BeEmpty())
	})

	It("adds resource attributes from the environment without losing the service name", func() {
		GinkgoT().Setenv("OTEL_RESOURCE_ATTRIBUTES", "team=web,service.name=other")
		Expect(value(cfg, attribute.Key("team"))).To(Equal("web"))
		Expect(value(cfg, semconv.ServiceNameKey)).To(Equal("chatconnect-assistant"))
	})
})

var _ = Describe("Sampler", func() {
	DescribeTable("root sampling",
		func(ratio float64, want string) {
			Expect(otel.Sampler(ratio).Description()).To(ContainSubstring(want))
		},
		Entry("keeps everything by default", 0.0, "AlwaysOnSampler"),
		Entry("keeps everything at one", 1.0, "AlwaysOnSampler"),
		Entry("samples a share of new traces", 0.25, "TraceIDRatioBased{0.25}"),
	)
})

var _ = Describe("Setup", func() {
	It("does nothing without an endpoint", func() {
		telemetry, err := otel.Setup(context.Background(), config.OTelConfig{ServiceName: "a"})
		Expect(err).NotTo(HaveOccurred())
		Expect(telemetry).To(BeNil())
	})
})
