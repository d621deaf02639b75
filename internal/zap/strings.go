package zap

import (
	"sort"

	"go.uber.org/zap/zapcore"
)

// Strings is a string array that implements MarshalLogArray.
type Strings []string

// MarshalLogArray implementation
func (ss Strings) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, s := range ss {
		enc.AppendString(s)
	}
	return nil
}

// StringMap is a string map that implements MarshalLogObject. Keys are written in sorted order.
type StringMap map[string]string

// MarshalLogObject implementation
func (sm StringMap) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	keys := make([]string, 0, len(sm))
	for key := range sm {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		enc.AddString(key, sm[key])
	}
	return nil
}
