// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type closeBuffer struct {
	bytes.Buffer
}

func (*closeBuffer) Close() error {
	return nil
}

func TestLog(t *testing.T) {
	log := NewLogger("", NewWrappedCore(Info, Discard, Plain.ConsoleEncoder()))

	recovered := new(bool)
	panicFunc := func() {
		panic("DON'T PANIC!")
	}
	exitFunc := func() {
		*recovered = true
	}
	log.RecoverAndExit(panicFunc, exitFunc)

	require.True(t, *recovered)
}

func TestRecoverAndPanic(t *testing.T) {
	require := require.New(t)

	buf := &closeBuffer{}
	log := NewLogger("", NewWrappedCore(Info, buf, JSON.FileEncoder()))

	require.PanicsWithValue("boom", func() {
		log.RecoverAndPanic(func() {
			panic("boom")
		})
	})
	require.Contains(buf.String(), `"level":"FATAL"`)
	require.Contains(buf.String(), "panicking")
}

func TestLogLevels(t *testing.T) {
	require := require.New(t)

	buf := &closeBuffer{}
	log := NewLogger("journal", NewWrappedCore(Trace, buf, JSON.FileEncoder()))

	log.Debug("hidden")
	require.Empty(buf.String())

	log.Trace("shown", zap.Uint64("height", 8))
	require.Contains(buf.String(), "shown")
	require.Contains(buf.String(), `"height":8`)
	require.Contains(buf.String(), `"level":"TRACE"`)

	buf.Reset()
	log.SetLevel(Error)
	log.Warn("hidden")
	require.Empty(buf.String())
	require.True(log.Enabled(Fatal))
	require.False(log.Enabled(Info))

	// Fatal must not exit the process.
	log.Fatal("fatal")
	require.Contains(buf.String(), "FATAL")
}

func TestLogWith(t *testing.T) {
	require := require.New(t)

	var messages []string
	buf := &closeBuffer{}
	l := NewLogger("", NewWrappedCore(Info, buf, JSON.FileEncoder()))
	l.(*log).internalLogger = l.(*log).internalLogger.WithOptions(zap.Hooks(func(entry zapcore.Entry) error {
		messages = append(messages, entry.Message)
		return nil
	}))

	child := l.With(zap.String("component", "chain"))
	child.Info("committed")
	require.Equal([]string{"committed"}, messages)
	require.Contains(buf.String(), `"component":"chain"`)
}

func TestFactory(t *testing.T) {
	require := require.New(t)

	factory := NewFactory(Config{
		RotatingWriterConfig: RotatingWriterConfig{
			Directory: t.TempDir(),
			MaxSize:   1,
		},
		DisableWriterDisplaying: true,
		DisplayLevel:            Off,
		LogLevel:                Info,
	})
	defer factory.Close()

	_, err := factory.Make("chain")
	require.NoError(err)
	_, err = factory.Make("chain")
	require.ErrorContains(err, "already exists")

	require.NoError(factory.SetLogLevel("chain", Debug))
	require.NoError(factory.SetDisplayLevel("chain", Off))
	require.Error(factory.SetLogLevel("missing", Debug))
	require.Equal([]string{"chain"}, factory.GetLoggerNames())
}
