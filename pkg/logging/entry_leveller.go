package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// EntryLeveller is a zapcore.Core that filters log entries based on the logger name, so `cfn=debug` applies to
// `cfn` and any `cfn.*` child logger.
type EntryLeveller struct {
	zapcore.Core

	levels *sync.Map // map[string]zapcore.Level
}

func NewEntryLeveller(core zapcore.Core, levels map[string]zapcore.Level) *EntryLeveller {
	el := &EntryLeveller{Core: core, levels: &sync.Map{}}
	for k, v := range levels {
		el.levels.Store(k, v)
	}
	return el
}

func (el *EntryLeveller) With(f []zapcore.Field) zapcore.Core {
	return &EntryLeveller{
		Core:   el.Core.With(f),
		levels: el.levels,
	}
}

// levelFor finds the level of the closest configured ancestor of the logger, caching the result under the
// full name.
func (el *EntryLeveller) levelFor(name string) (zapcore.Level, bool) {
	if level, ok := el.levels.Load(name); ok {
		return level.(zapcore.Level), true
	}
	parts := strings.Split(name, ".")
	for i := len(parts) - 1; i >= 0; i-- {
		module := strings.Join(parts[:i], ".")
		if level, ok := el.levels.Load(module); ok {
			el.levels.Store(name, level)
			return level.(zapcore.Level), true
		}
	}
	return zapcore.InfoLevel, false
}

// Enabled must allow any level a configured logger allows, otherwise the logger drops the entry before Check.
func (el *EntryLeveller) Enabled(lvl zapcore.Level) bool {
	if el.Core.Enabled(lvl) {
		return true
	}
	enabled := false
	el.levels.Range(func(_, v any) bool {
		enabled = lvl >= v.(zapcore.Level)
		return !enabled
	})
	return enabled
}

func (el *EntryLeveller) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	level, ok := el.levelFor(e.LoggerName)
	if !ok {
		return el.Core.Check(e, ce)
	}
	if e.Level < level {
		return ce
	}
	return ce.AddCore(e, el)
}
