package functions

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/room4-2/accessai/functions"

var logger = otelslog.NewLogger(scopeName)
