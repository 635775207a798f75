// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trace

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDisabled(t *testing.T) {
	require := require.New(t)

	tracer, err := New(Config{})
	require.NoError(err)
	require.Equal(Noop, tracer)

	_, span := tracer.Start(context.Background(), "test")
	require.False(span.IsRecording())
	span.End()
	require.NoError(tracer.Close())
}

func TestNewUnknownExporter(t *testing.T) {
	_, err := New(Config{
		Enabled:        true,
		ExporterConfig: ExporterConfig{Type: NoOp},
	})
	require.ErrorIs(t, err, errUnknownExporterType)
}

func TestExporterTypeJSON(t *testing.T) {
	require := require.New(t)

	for _, typ := range []ExporterType{GRPC, HTTP} {
		b, err := json.Marshal(typ)
		require.NoError(err)

		var parsed ExporterType
		require.NoError(json.Unmarshal(b, &parsed))
		require.Equal(typ, parsed)
	}

	var parsed ExporterType
	err := json.Unmarshal([]byte(`"carrier-pigeon"`), &parsed)
	require.ErrorIs(err, errUnknownExporterType)
	err = json.Unmarshal([]byte(`5`), &parsed)
	require.ErrorIs(err, errInvalidFormat)
}
