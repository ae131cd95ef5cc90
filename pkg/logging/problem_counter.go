package logging

import (
	"go.uber.org/atomic"
	"go.uber.org/zap/zapcore"
)

// ProblemCounter wraps a core and records whether any warnings or errors went through it, so a command can
// fail after logging problems without stopping at the first one.
type ProblemCounter struct {
	zapcore.Core

	Warnings *atomic.Int64
	Errors   *atomic.Int64
}

func NewProblemCounter(core zapcore.Core) *ProblemCounter {
	return &ProblemCounter{
		Core:     core,
		Warnings: atomic.NewInt64(0),
		Errors:   atomic.NewInt64(0),
	}
}

func (c *ProblemCounter) With(fields []zapcore.Field) zapcore.Core {
	return &ProblemCounter{
		Core:     c.Core.With(fields),
		Warnings: c.Warnings,
		Errors:   c.Errors,
	}
}

func (c *ProblemCounter) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	switch {
	case e.Level == zapcore.WarnLevel:
		c.Warnings.Inc()
	case e.Level >= zapcore.ErrorLevel:
		c.Errors.Inc()
	}
	return c.Core.Check(e, ce)
}

func (c *ProblemCounter) HadWarnings() bool {
	return c.Warnings.Load() > 0
}

func (c *ProblemCounter) HadErrors() bool {
	return c.Errors.Load() > 0
}
