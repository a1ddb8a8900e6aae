package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
)

// LevelTrace is a custom log level for trace logs, used for per-relay and
// per-instance attempt chatter that is too noisy even for debug.
const LevelTrace = slog.LevelDebug - 4

var levelNames = map[slog.Level]string{
	LevelTrace:      "TRACE",
	slog.LevelDebug: "DEBUG",
	slog.LevelInfo:  "INFO ",
	slog.LevelWarn:  "WARN ",
	slog.LevelError: "ERROR",
}

var levelColors = map[slog.Level]*color.Color{
	LevelTrace:      color.New(color.FgMagenta),
	slog.LevelDebug: color.New(color.FgBlue),
	slog.LevelInfo:  color.New(color.FgGreen),
	slog.LevelWarn:  color.New(color.FgYellow),
	slog.LevelError: color.New(color.FgRed),
}

// Handler is a compact single-line slog handler for terminal output.
type Handler struct {
	w      io.Writer
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	groups []string
}

func NewHandler(w io.Writer, opts slog.HandlerOptions) *Handler {
	return &Handler{w: w, opts: opts}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	levelName := levelNames[r.Level]
	if levelName == "" {
		levelName = r.Level.String()
	}

	levelStr := levelName
	if c := levelColors[r.Level]; c != nil {
		levelStr = c.Sprint(levelName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s > %s", r.Time.Format("15:04:05.000"), levelStr, r.Message)

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s%s=%v", prefix, a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s%s=%v", prefix, a.Key, a.Value)
		return true
	})
	b.WriteByte('\n')

	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &nh
}

func (h *Handler) WithGroup(name string) slog.Handler {
	nh := *h
	nh.groups = append(append([]string{}, h.groups...), name)
	return &nh
}

// InitDefaultLogger initializes the global logger with the specified debug
// level, optionally teeing output to a log file.
func InitDefaultLogger(debug bool, logFilePath string) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var writer io.Writer = os.Stderr

	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		} else {
			writer = io.MultiWriter(os.Stderr, f)
		}
	}

	handler := NewHandler(writer, slog.HandlerOptions{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}
