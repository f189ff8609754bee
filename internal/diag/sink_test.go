package diag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectingSinkWarnings(t *testing.T) {
	sink := NewCollectingSink()
	assert.Nil(t, sink.Warnings(), "empty sink should report no warnings")

	sink.Push(Diagnostic{Code: TruncatedWarning, Message: "read past EOF"})
	sink.Push(Diagnostic{Code: DirSectorWarning, Message: "bad start sector"})

	err := sink.Warnings()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TruncatedWarning")
	assert.Contains(t, err.Error(), "DirSectorWarning")
	assert.Len(t, sink.Diagnostics(), 2)
}

func TestDiagnosticUnwrap(t *testing.T) {
	inner := errors.New("boom")
	d := Diagnostic{Code: HeaderWarning, Message: "odd minor version", Err: inner}
	assert.ErrorIs(t, d, inner)
	assert.Equal(t, "HeaderWarning: odd minor version", d.Error())
}

func TestEscalatingSink(t *testing.T) {
	collecting := NewCollectingSink()
	esc := NewEscalatingSink(collecting, MasterSectorWarning)

	esc.Push(Diagnostic{Code: TruncatedWarning, Message: "ok, not escalated"})
	assert.NoError(t, esc.Fatal())

	esc.Push(Diagnostic{Code: MasterSectorWarning, Message: "escalated"})
	require.Error(t, esc.Fatal())
	assert.Contains(t, esc.Fatal().Error(), "MasterSectorWarning")

	// Both diagnostics still reach the inner sink.
	assert.Len(t, collecting.Diagnostics(), 2)
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	assert.NotPanics(t, func() {
		s.Push(Diagnostic{Code: HeaderWarning})
	})
}
