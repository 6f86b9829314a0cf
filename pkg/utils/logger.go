package utils

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	Level         string `json:"level" yaml:"level"`
	Format        string `json:"format" yaml:"format"`
	Output        string `json:"output" yaml:"output"`
	FileLocation  string `json:"file_location" yaml:"file_location"`
	MaxSize       int    `json:"max_size" yaml:"max_size"`
	MaxBackups    int    `json:"max_backups" yaml:"max_backups"`
	MaxAge        int    `json:"max_age" yaml:"max_age"`
	Compress      bool   `json:"compress" yaml:"compress"`
	EnableConsole bool   `json:"enable_console" yaml:"enable_console"`
}

type Logger struct {
	*logrus.Logger
	config   LogConfig
	mu       sync.Mutex
	fileSink *lumberjack.Logger
}

func NewLogger(config LogConfig, service, version string) (*Logger, error) {
	l := &Logger{
		Logger: logrus.New(),
		config: normalizeConfig(config),
	}

	level, err := logrus.ParseLevel(l.config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch l.config.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "severity",
				logrus.FieldKeyMsg:   "message",
			},
		})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
		})
	}

	if err := l.setOutput(); err != nil {
		return nil, err
	}

	l.AddHook(&ServiceHook{
		Service:  service,
		Version:  version,
		Hostname: getHostname(),
	})

	return l, nil
}

func normalizeConfig(c LogConfig) LogConfig {
	c.Level = strings.ToLower(strings.TrimSpace(c.Level))
	if c.Level == "" {
		c.Level = "info"
	}
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format == "" {
		c.Format = "text"
	}
	c.Output = strings.ToLower(strings.TrimSpace(c.Output))
	if c.Output == "" {
		if c.EnableConsole {
			c.Output = "both"
		} else {
			c.Output = "file"
		}
	}
	return c
}

func (l *Logger) setOutput() error {
	var writers []io.Writer

	wantConsole := l.config.Output == "console" || l.config.Output == "both"
	wantFile := l.config.Output == "file" || l.config.Output == "both"

	if wantFile && l.config.FileLocation != "" {
		if err := os.MkdirAll(filepath.Dir(l.config.FileLocation), 0o755); err != nil {
			return err
		}
		l.fileSink = &lumberjack.Logger{
			Filename:   l.config.FileLocation,
			MaxSize:    max(1, l.config.MaxSize),
			MaxBackups: max(0, l.config.MaxBackups),
			MaxAge:     max(0, l.config.MaxAge),
			Compress:   l.config.Compress,
		}
		writers = append(writers, l.fileSink)
	}

	if wantConsole || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	l.SetOutput(io.MultiWriter(writers...))
	return nil
}

func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fileSink != nil {
		return l.fileSink.Rotate()
	}
	return nil
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fileSink != nil {
		return l.fileSink.Close()
	}
	return nil
}

func (l *Logger) UpdateLevel(level string) {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		l.Warnf("invalid log level %q, keeping %s", level, l.Level.String())
		return
	}
	l.SetLevel(lvl)
}

func (l *Logger) WithRunID(runID string) *logrus.Entry {
	return l.WithField("run_id", runID)
}

func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.WithField("component", component)
}

type ServiceHook struct {
	Service  string
	Version  string
	Hostname string
}

func (h *ServiceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *ServiceHook) Fire(entry *logrus.Entry) error {
	entry.Data["service"] = h.Service
	entry.Data["version"] = h.Version
	entry.Data["hostname"] = h.Hostname
	return nil
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

func DefaultLogger() *Logger {
	cfg := LogConfig{
		Level:        "info",
		Format:       "text",
		Output:       "both",
		FileLocation: "./logs/sitelynx.log",
		MaxSize:      50,
		MaxBackups:   5,
		MaxAge:       30,
		Compress:     true,
	}
	logger, err := NewLogger(cfg, "sitelynx", "1.0.0")
	if err != nil {
		fb := logrus.New()
		fb.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return &Logger{Logger: fb}
	}
	return logger
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
