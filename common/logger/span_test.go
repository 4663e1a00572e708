package logger_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"chatconnect.app/assistant/common/logger"
)

var _ = Describe("StartSpanFromTraceID", func() {
	const (
		traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
		spanID  = "00f067aa0ba902b7"
	)

	var recorder *tracetest.SpanRecorder

	BeforeEach(func() {
		recorder = tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		prev := otel.GetTracerProvider()
		otel.SetTracerProvider(tp)
		DeferCleanup(func() {
			otel.SetTracerProvider(prev)
			_ = tp.Shutdown(context.Background())
		})
	})

	It("continues the remote trace", func() {
		sc := logger.StartSpanFromTraceID(context.Background(), traceID, spanID, "page.result")
		sc.End()

		ended := recorder.Ended()
		Expect(ended).To(HaveLen(1))
		Expect(ended[0].SpanContext().TraceID().String()).To(Equal(traceID))
		Expect(ended[0].Parent().SpanID().String()).To(Equal(spanID))
		Expect(ended[0].Parent().IsRemote()).To(BeTrue())
	})

	DescribeTable("starts a fresh trace without a usable remote parent",
		func(trace, span string) {
			sc := logger.StartSpanFromTraceID(context.Background(), trace, span, "page.result")
			sc.End()

			ended := recorder.Ended()
			Expect(ended).To(HaveLen(1))
			Expect(ended[0].SpanContext().IsValid()).To(BeTrue())
			Expect(ended[0].SpanContext().TraceID().String()).NotTo(Equal(traceID))
			Expect(ended[0].Parent().IsValid()).To(BeFalse())
		},
		Entry("empty ids", "", ""),
		Entry("trace id only", traceID, ""),
		Entry("malformed trace id", "not-hex", spanID),
	)

	It("keeps the local parent when the remote one is missing", func() {
		parent := logger.StartSpan(context.Background(), "http.request")
		sc := logger.StartSpanFromTraceID(parent.Context(), "", "", "page.result")
		sc.End()
		parent.End()

		Expect(sc.Span().SpanContext().TraceID()).To(Equal(parent.Span().SpanContext().TraceID()))
	})
})
