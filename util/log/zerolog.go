// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package waLog

import (
	"github.com/rs/zerolog"
)

type zeroLogger struct {
	mod string
	zerolog.Logger
}

// Zerolog wraps a zerolog.Logger in the Logger interface.
//
// Subloggers are created with a str("sublogger", name) context. Log format strings
// are rendered with fmt before being passed to zerolog.
func Zerolog(log zerolog.Logger) Logger {
	return &zeroLogger{Logger: log}
}

func (z *zeroLogger) Errorf(msg string, args ...any) { z.Error().Msgf(msg, args...) }
func (z *zeroLogger) Warnf(msg string, args ...any)  { z.Warn().Msgf(msg, args...) }
func (z *zeroLogger) Infof(msg string, args ...any)  { z.Info().Msgf(msg, args...) }
func (z *zeroLogger) Debugf(msg string, args ...any) { z.Debug().Msgf(msg, args...) }

func (z *zeroLogger) Sub(module string) Logger {
	mod := module
	if z.mod != "" {
		mod = z.mod + "/" + module
	}
	return &zeroLogger{mod: mod, Logger: z.Logger.With().Str("sublogger", mod).Logger()}
}
