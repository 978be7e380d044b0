// Package zap adapts a *zap.Logger to synthcache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/synthcache"
)

var _ synthcache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New returns an adapter that tags every line with component=synthcache.
func New(l *zap.Logger) Logger { return Logger{L: l.With(zap.String("component", "synthcache"))} }

func (z Logger) Debug(msg string, f synthcache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f synthcache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f synthcache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f synthcache.Fields) { z.L.Error(msg, fields(f)...) }

// fields sorts keys so lines are stable; an error under "err" becomes
// zap's error field.
func fields(f synthcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok && k == "err" {
			out = append(out, zap.Error(err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
