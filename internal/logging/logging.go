package logging

import (
	"fmt"
	"log/syslog"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options of the node logger.
type Options struct {
	Level       zapcore.Level
	Development bool
	// Console enables logging to stderr.
	Console bool
	// FilePath, if set, enables logging to a rotated file.
	FilePath string
	// SyslogAddr, if set, enables logging to a syslog server over UDP.
	SyslogAddr string
	// Tag identifies the node in syslog.
	Tag string
}

// ParseLevel parses a severity name such as "debug", "info", "warn" or "error".
func ParseLevel(severity string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(severity)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown severity %q", severity)
	}
	return level, nil
}

// New builds the node logger.
func New(opts Options) (*zap.Logger, error) {
	logCfg := zap.NewProductionConfig()
	logCfg.Level = zap.NewAtomicLevelAt(opts.Level)
	if opts.Development {
		logCfg = zap.NewDevelopmentConfig()
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {}
		logCfg.DisableCaller = true
		logCfg.DisableStacktrace = true
		logCfg.Level = zap.NewAtomicLevelAt(opts.Level)
	}
	if !opts.Console {
		logCfg.OutputPaths = []string{}
	}

	extra := []zapcore.Core{}
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	if opts.FilePath != "" {
		extra = append(extra, zapcore.NewCore(encoder, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
		}), logCfg.Level))
	}

	if opts.SyslogAddr != "" {
		writer, err := syslog.Dial("udp", opts.SyslogAddr, syslog.LOG_INFO|syslog.LOG_DAEMON, opts.Tag)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to syslog server %s: %s", opts.SyslogAddr, err)
		}
		extra = append(extra, zapcore.NewCore(encoder, zapcore.AddSync(writer), logCfg.Level))
	}

	return logCfg.Build(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(append([]zapcore.Core{core}, extra...)...)
	}))
}
