package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35

	colorBold = 1
)

func colorize(s interface{}, c int) string {
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

// New creates a logger for the given environment name. Development
// environments ("development", "dev", "local" or empty) get colored console
// output, everything else gets JSON. An unknown level falls back to info.
func New(env, level string) zerolog.Logger {
	var l zerolog.Logger
	switch env {
	case "development", "dev", "local", "":
		l = NewDevelopment(os.Stderr)
	default:
		l = NewProduction(os.Stderr)
	}

	return l.Level(ParseLevel(level))
}

// ParseLevel maps a level name onto zerolog, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewDevelopment creates a console logger with colored levels.
func NewDevelopment(out io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
		FormatLevel: func(i interface{}) string {
			ll, ok := i.(string)
			if !ok {
				return strings.ToUpper(fmt.Sprintf("%s", i))
			}
			switch ll {
			case "trace":
				return colorize("TRC", colorMagenta)
			case "debug":
				return colorize("DBG", colorYellow)
			case "info":
				return colorize("INF", colorGreen)
			case "warn":
				return colorize("WRN", colorRed)
			case "error":
				return colorize("ERR", colorRed)
			case "fatal":
				return colorize("FTL", colorRed)
			case "panic":
				return colorize("PNC", colorRed)
			}
			if len(ll) > 3 {
				ll = ll[:3]
			}
			return colorize(strings.ToUpper(ll), colorBold)
		},
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

// NewProduction creates a JSON logger with UNIX timestamps.
func NewProduction(out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(out).With().Timestamp().Logger()
}

// TokenPreview shortens a token for logs: the first and last six characters
// of long tokens, a fixed mask for short ones.
func TokenPreview(token string) string {
	token = strings.TrimSpace(token)
	switch {
	case token == "":
		return "<none>"
	case len(token) > 12:
		return token[:6] + "…" + token[len(token)-6:]
	default:
		return "***"
	}
}
