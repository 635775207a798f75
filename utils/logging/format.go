// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package logging

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Highlighting modes available
const (
	Plain Format = iota
	Colors
	JSON
)

var (
	errUnknownFormat = errors.New("unknown format")

	defaultEncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		EncodeLevel:    levelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("[01-02|15:04:05.000]"),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	jsonEncoderConfig = func() zapcore.EncoderConfig {
		c := defaultEncoderConfig
		c.EncodeTime = zapcore.ISO8601TimeEncoder
		return c
	}()
)

// Format modes available
type Format int

// ToFormat chooses a highlighting mode. "auto" picks Colors if [fd] is a
// terminal and Plain otherwise.
func ToFormat(h string, fd uintptr) (Format, error) {
	switch strings.ToUpper(h) {
	case "AUTO":
		if !term.IsTerminal(int(fd)) {
			return Plain, nil
		}
		return Colors, nil
	case "PLAIN":
		return Plain, nil
	case "COLORS":
		return Colors, nil
	case "JSON":
		return JSON, nil
	default:
		return Plain, fmt.Errorf("%w: %s", errUnknownFormat, h)
	}
}

func (f Format) ConsoleEncoder() zapcore.Encoder {
	switch f {
	case JSON:
		return zapcore.NewJSONEncoder(jsonEncoderConfig)
	case Colors:
		c := defaultEncoderConfig
		c.EncodeLevel = colorLevelEncoder
		return zapcore.NewConsoleEncoder(c)
	default:
		return zapcore.NewConsoleEncoder(defaultEncoderConfig)
	}
}

func (f Format) FileEncoder() zapcore.Encoder {
	switch f {
	case JSON:
		return zapcore.NewJSONEncoder(jsonEncoderConfig)
	default:
		return zapcore.NewConsoleEncoder(defaultEncoderConfig)
	}
}

// WrapPrefix formats [prefix] as the name every entry of a logger carries.
func (f Format) WrapPrefix(prefix string) string {
	if prefix == "" || f == JSON {
		return prefix
	}
	return fmt.Sprintf("<%s>", prefix)
}
