package config

import "time"

// Server
const (
	ServerReadTimeout    = 15 * time.Second
	ServerWriteTimeout   = 30 * time.Second
	ServerIdleTimeout    = 60 * time.Second
	ServerMaxHeaderBytes = 1 << 20
	ShutdownTimeout      = 10 * time.Second
)

// Rendering
const (
	LayoutTemplate  = "layout"
	SVGExtension    = ".svg"
	HTMLContentType = "text/html; charset=utf-8"

	// PageFailureBody is the only thing a client learns about a failed render.
	PageFailureBody = "failed to render page"
)

// Logging
const (
	LogDir         = "./logs"
	LogFilePrefix  = "svgpages-"
	LogFilePattern = "svgpages-%s.log" // %s = YYYY-MM-DD
	LogMaxAgeDays  = 30
)

// Database
const (
	DBBusyTimeout     = 5000 // milliseconds
	StatsRecentLimit  = 10
	RenderOutcomeOK   = "ok"
	RenderOutcomeFail = "error"
)
