package audio

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/room4-2/accessai/audio"

var logger = otelslog.NewLogger(scopeName)
