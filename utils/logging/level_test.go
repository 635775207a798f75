// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package logging

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevelRoundTrip(t *testing.T) {
	levels := []Level{Off, Fatal, Error, Warn, Info, Trace, Debug, Verbo}
	for _, l := range levels {
		t.Run(l.String(), func(t *testing.T) {
			require := require.New(t)

			parsed, err := ToLevel(l.String())
			require.NoError(err)
			require.Equal(l, parsed)

			b, err := json.Marshal(l)
			require.NoError(err)
			var unmarshalled Level
			require.NoError(json.Unmarshal(b, &unmarshalled))
			require.Equal(l, unmarshalled)
		})
	}
}

func TestLevelOrdering(t *testing.T) {
	require := require.New(t)

	require.Less(Verbo, Debug)
	require.Less(Debug, Trace)
	require.Less(Trace, Info)
	require.Less(Error, Fatal)
	require.Less(Fatal, Off)

	// zap exits the process on its own fatal level.
	require.Equal(zapcore.DPanicLevel, zapcore.Level(Fatal))
	require.Less(zapcore.Level(Off), zapcore.FatalLevel)

	_, err := ToLevel("loud")
	require.Error(err)
}
