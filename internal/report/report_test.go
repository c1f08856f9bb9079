package report

import (
	"bytes"
	"testing"

	"github.com/busybuild/busy/internal/reperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_EmitsStructuredEvent(t *testing.T) {
	events := make(chan Event, 4)
	r := New(WithEvents(events))

	err := reperrors.New(reperrors.ResolveUnknownIdent, "unknown identifier \"foo\"")
	r.Report(err)

	select {
	case ev := <-events:
		assert.Equal(t, reperrors.ResolveUnknownIdent, ev.Code)
		assert.Equal(t, reperrors.SevError, ev.Severity)
	default:
		t.Fatal("expected one event")
	}
}

func TestReportAll(t *testing.T) {
	events := make(chan Event, 4)
	r := New(WithEvents(events))

	var list reperrors.List
	list.Add(reperrors.New(reperrors.ParseUnexpectedToken, "boom"))
	list.Add(reperrors.New(reperrors.TypeUndeclaredField, "bad field"))
	r.ReportAll(&list)

	require.Len(t, events, 2)
}

func TestSummary(t *testing.T) {
	r := New()
	var buf bytes.Buffer
	r.Summary(true, &buf)
	assert.Contains(t, buf.String(), "build succeeded")

	buf.Reset()
	r.Summary(false, &buf)
	assert.Contains(t, buf.String(), "build failed")
}
