package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEntryLeveller(t *testing.T) {
	tests := []struct {
		name   string
		levels map[string]zapcore.Level
		logger string
		level  zapcore.Level
		want   bool
	}{
		{
			name:   "unconfigured falls through to core",
			levels: map[string]zapcore.Level{"cfn": zapcore.DebugLevel},
			logger: "publish",
			level:  zapcore.DebugLevel,
			want:   false,
		},
		{
			name:   "configured logger lowers level",
			levels: map[string]zapcore.Level{"cfn": zapcore.DebugLevel},
			logger: "cfn",
			level:  zapcore.DebugLevel,
			want:   true,
		},
		{
			name:   "child inherits",
			levels: map[string]zapcore.Level{"cfn": zapcore.DebugLevel},
			logger: "cfn.translate",
			level:  zapcore.DebugLevel,
			want:   true,
		},
		{
			name:   "configured logger raises level",
			levels: map[string]zapcore.Level{"publish": zapcore.WarnLevel},
			logger: "publish.upload",
			level:  zapcore.InfoLevel,
			want:   false,
		},
		{
			name:   "root applies to all",
			levels: map[string]zapcore.Level{"": zapcore.ErrorLevel},
			logger: "stack",
			level:  zapcore.WarnLevel,
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.InfoLevel)
			log := zap.New(NewEntryLeveller(core, tt.levels)).Named(tt.logger)

			log.Check(tt.level, "message").Write()

			if tt.want {
				assert.Equal(t, 1, logs.Len())
			} else {
				assert.Equal(t, 0, logs.Len())
			}
		})
	}
}

func TestParseLevels(t *testing.T) {
	assert.Equal(t,
		map[string]zapcore.Level{"cfn": zapcore.DebugLevel, "publish": zapcore.WarnLevel},
		ParseLevels("cfn=debug, publish=warn,bogus,bad=notalevel"),
	)
}
