package gemini

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/room4-2/accessai/gemini"

var logger = otelslog.NewLogger(scopeName)
