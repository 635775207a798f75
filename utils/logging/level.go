// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package logging

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level is a zapcore.Level extended with the Trace and Verbo levels and a
// level that disables logging entirely.
//
// Fatal sits on zapcore.DPanicLevel rather than zapcore.FatalLevel, so
// logging at Fatal never exits the process. Callers decide how to shut down.
type Level zapcore.Level

const (
	Verbo Level = iota - 3
	Debug
	Trace
	Info
	Warn
	Error
	Fatal
	Off
)

const (
	fatalStr   = "FATAL"
	errorStr   = "ERROR"
	warnStr    = "WARN"
	infoStr    = "INFO"
	traceStr   = "TRACE"
	debugStr   = "DEBUG"
	verboStr   = "VERBO"
	offStr     = "OFF"
	unknownStr = "UNKNO"
)

// ToLevel is the inverse of Level.String()
func ToLevel(l string) (Level, error) {
	switch strings.ToUpper(l) {
	case offStr:
		return Off, nil
	case fatalStr:
		return Fatal, nil
	case errorStr:
		return Error, nil
	case warnStr:
		return Warn, nil
	case infoStr:
		return Info, nil
	case traceStr:
		return Trace, nil
	case debugStr:
		return Debug, nil
	case verboStr:
		return Verbo, nil
	default:
		return Off, fmt.Errorf("unknown log level: %q", l)
	}
}

func (l Level) String() string {
	switch l {
	case Fatal:
		return fatalStr
	case Error:
		return errorStr
	case Warn:
		return warnStr
	case Info:
		return infoStr
	case Trace:
		return traceStr
	case Debug:
		return debugStr
	case Verbo:
		return verboStr
	case Off:
		return offStr
	default:
		// This should never happen
		return unknownStr
	}
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	var err error
	*l, err = ToLevel(str)
	return err
}

func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(Level(l).String())
}

var levelColors = map[Level]string{
	Verbo: "\x1b[35m", // magenta
	Debug: "\x1b[35m",
	Trace: "\x1b[36m", // cyan
	Info:  "\x1b[34m", // blue
	Warn:  "\x1b[33m", // yellow
	Error: "\x1b[31m", // red
	Fatal: "\x1b[31m",
}

func colorLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	level := Level(l)
	color, ok := levelColors[level]
	if !ok {
		enc.AppendString(level.String())
		return
	}
	enc.AppendString(color + level.String() + "\x1b[0m")
}
