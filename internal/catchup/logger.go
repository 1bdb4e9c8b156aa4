// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catchup

// Logger represents the logging methods called.
type Logger interface {
	Warningf(message string, args ...any)
	Debugf(message string, args ...any)
	Tracef(message string, args ...any)
}
