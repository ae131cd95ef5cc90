package logging

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// StackField names the stack a log line belongs to.
func StackField(name string) zap.Field {
	return zap.String("stack", name)
}

// ResourceField logs a resource id by its text form without this package depending on the graph types.
func ResourceField(id fmt.Stringer) zap.Field {
	return zap.Stringer("resource", id)
}

func FileField(path string) zap.Field {
	return zap.String("file", path)
}

// SizeField logs a byte count in human readable form (eg "12 kB").
func SizeField(key string, bytes int64) zap.Field {
	if bytes < 0 {
		bytes = 0
	}
	return zap.String(key, humanize.Bytes(uint64(bytes)))
}
