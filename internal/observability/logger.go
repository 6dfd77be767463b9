package observability

import "github.com/tphakala/sightline-go/internal/logger"

var log = logger.Global().Module("telemetry")
