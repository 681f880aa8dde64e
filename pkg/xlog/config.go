package xlog

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewConfig returns the default logging config.
func NewConfig() Config {
	return Config{
		Level:        slog.LevelInfo,
		AddSource:    true,
		AttrReplacer: NormalizeSourceAttrReplacer(),
		StdFormat:    "text",
		StdWriter:    os.Stdout,
		Path:         "",
		MaxSize:      30,
		MaxAge:       0,
		MaxBackups:   0,
		Compress:     false,
	}
}

// Config is the logging config.
type Config struct {
	// Level is the output level, default LevelInfo.
	Level slog.Level
	// AddSource enables the source file and position attribute.
	AddSource bool
	// AttrReplacer rewrites specific attributes, default NormalizeSourceAttrReplacer.
	AttrReplacer AttrReplacer

	// StdFormat is the standard output format, oneof ["text", "json"].
	StdFormat string
	// StdWriter is the io.Writer for standard output, default os.Stdout.
	StdWriter io.Writer

	// Path is the log file path, empty means no file output.
	Path string
	// MaxSize is the max size of a single log file in MB before rotation, default 30 MB.
	MaxSize int
	// MaxAge is the max days to retain log files, default keeps forever.
	MaxAge int
	// MaxBackups is the max count of rotated log files, default keeps forever.
	MaxBackups int
	// Compress enables compression of rotated log files.
	Compress bool
}

// BuildHandler creates a new slog.Handler with config.
func (c *Config) BuildHandler() slog.Handler {
	opts := c.buildHandlerOptions()
	if c.StdFormat == "json" {
		writer := c.StdWriter
		if fw := c.buildFileWriter(); fw != nil {
			writer = io.MultiWriter(c.StdWriter, fw)
		}
		return NewLeveledHandlerCreator(JSONHandlerCreator)(writer, opts)
	}

	// console output format as "text"
	handlers := []slog.Handler{}

	stdHandler := NewLeveledHandlerCreator(TextHandlerCreator)(c.StdWriter, opts)
	handlers = append(handlers, stdHandler)

	if fw := c.buildFileWriter(); fw != nil {
		fileHandler := NewLeveledHandlerCreator(JSONHandlerCreator)(fw, opts)
		handlers = append(handlers, fileHandler)
	}
	return MultiHandler(handlers...)
}

func (c *Config) buildFileWriter() io.Writer {
	if c.Path == "" {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   c.Path,
		MaxSize:    c.MaxSize,
		MaxAge:     c.MaxAge,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
	}
}

func (c *Config) buildHandlerOptions() *slog.HandlerOptions {
	return &slog.HandlerOptions{
		AddSource:   c.AddSource,
		Level:       c.Level,
		ReplaceAttr: c.AttrReplacer,
	}
}
