package logutil

import (
    "os"
    "sync/atomic"

    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
)

var jsonMode atomic.Bool

func init() {
    if os.Getenv("SEEDER_LOG_JSON") == "1" || os.Getenv("SEEDER_LOG_FORMAT") == "json" {
        jsonMode.Store(true)
    }
}

func SetJSON(enabled bool) { jsonMode.Store(enabled) }

// New builds the process logger: JSON (production encoder) when JSON mode is
// on, a console encoder otherwise. debug lowers the level to Debug.
func New(debug bool) (*zap.Logger, error) {
    var cfg zap.Config
    if jsonMode.Load() {
        cfg = zap.NewProductionConfig()
        cfg.EncoderConfig.TimeKey = "ts"
        cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
    } else {
        cfg = zap.NewDevelopmentConfig()
        cfg.DisableStacktrace = true
    }
    if debug {
        cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
    } else {
        cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
    }
    return cfg.Build()
}

func sugar(l *zap.Logger) *zap.SugaredLogger {
    if l == nil { l = zap.L() }
    return l.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

func Debugf(l *zap.Logger, f string, args ...any) { sugar(l).Debugf(f, args...) }
func Infof(l *zap.Logger, f string, args ...any)  { sugar(l).Infof(f, args...) }
func Warnf(l *zap.Logger, f string, args ...any)  { sugar(l).Warnf(f, args...) }
func Errorf(l *zap.Logger, f string, args ...any) { sugar(l).Errorf(f, args...) }
