package ember

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the engine's root *zap.Logger from Config. When
// LogPath is empty, logs go to stdout only; when set, a lumberjack-backed
// rotating file logger is multiplexed alongside stdout. This mirrors
// nakama's SetupLogging (JSON encoder, configurable level, optional
// rotation) without the multi-node/Stackdriver format concerns that don't
// apply to an embedded library.
func newLogger(cfg Config) *zap.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}

	level := zapcore.InfoLevel
	if cfg.LogLevel != "" {
		_ = level.Set(cfg.LogLevel)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level),
	}

	if cfg.LogPath != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogPath,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...))
}
