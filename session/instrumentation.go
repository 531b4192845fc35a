package session

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/room4-2/accessai/session"

var (
	logger = otelslog.NewLogger(scopeName)
	tracer = otel.Tracer(scopeName)
)
