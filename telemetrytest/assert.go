package telemetrytest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/codes"
)

func spanNames(spans []SpanRecord) []string {
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name)
	}
	return names
}

// AssertSpanExists fails tb unless a finished span called name exists, and
// returns the first match.
func (h *Harness) AssertSpanExists(tb testing.TB, name string) (SpanRecord, bool) {
	tb.Helper()

	spans := h.FinishedSpans()
	for _, s := range spans {
		if s.Name == name {
			return s, true
		}
	}
	assert.Fail(tb, "span not found", "no finished span named %q, have %v", name, spanNames(spans))
	return SpanRecord{}, false
}

// AssertSpanAttribute fails tb unless the span called name carries key with
// a value equal to want. want is compared against the attribute's Go value,
// so pass int64 for integer attributes.
func (h *Harness) AssertSpanAttribute(tb testing.TB, name, key string, want any) bool {
	tb.Helper()

	span, ok := h.AssertSpanExists(tb, name)
	if !ok {
		return false
	}
	got, ok := span.Attr(key)
	if !assert.Truef(tb, ok, "span %q has no attribute %q", name, key) {
		return false
	}
	return assert.Equalf(tb, want, got.AsInterface(), "span %q attribute %q", name, key)
}

// AssertSpanCount fails tb unless exactly n spans have finished.
func (h *Harness) AssertSpanCount(tb testing.TB, n int) bool {
	tb.Helper()

	spans := h.FinishedSpans()
	return assert.Lenf(tb, spans, n, "finished spans: %v", spanNames(spans))
}

// AssertSpanStatus fails tb unless the span called name ended with code.
func (h *Harness) AssertSpanStatus(tb testing.TB, name string, code codes.Code) bool {
	tb.Helper()

	span, ok := h.AssertSpanExists(tb, name)
	if !ok {
		return false
	}
	return assert.Equalf(tb, code, span.Status.Code, "span %q status (%s)", name, span.Status.Description)
}
