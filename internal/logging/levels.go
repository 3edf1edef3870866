package logging

import "go.uber.org/zap/zapcore"

// TraceLevel sits below Debug for per-hypothesis detail, such as the
// raw score computed for every candidate. Almost always filtered out.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a level name, accepting "trace" in addition
// to the standard Zap levels.
func LevelFromString(level string) (zapcore.Level, error) {
	if level == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}
