// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package script

import "github.com/juju/loggo"

var logger = loggo.GetLogger("factstore.script")
