package logger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestNewConfig(t *testing.T) {
	dev := NewConfig("debug")
	assert.True(t, dev.Development)
	assert.Equal(t, zapcore.DebugLevel, dev.Level.Level())

	prod := NewConfig("error")
	assert.False(t, prod.Development)
	assert.Equal(t, []string{"stderr"}, prod.OutputPaths)
}

func TestFieldAttribute(t *testing.T) {
	tests := []struct {
		field zap.Field
		want  attribute.KeyValue
	}{
		{zap.Bool("ok", true), attribute.Bool("ok", true)},
		{zap.Float64("ratio", 0.5), attribute.Float64("ratio", 0.5)},
		{zap.Float32("f32", 1.5), attribute.Float64("f32", 1.5)},
		{zap.Int("jobs", 4), attribute.Int64("jobs", 4)},
		{zap.Int32("neg", -3), attribute.Int64("neg", -3)},
		{zap.Uint8("u8", 200), attribute.Int64("u8", 200)},
		{zap.Uint64("u64", 7), attribute.Int64("u64", 7)},
		{zap.String("target", "a"), attribute.String("target", "a")},
		{zap.Duration("elapsed", 2*time.Second), attribute.String("elapsed", "2s")},
		{zap.Error(errors.New("boom")), attribute.String("error", "boom")},
		{zap.Strings("args", []string{"-runs=1"}), attribute.String("args", "[-runs=1]")},
	}
	for _, test := range tests {
		got, ok := fieldAttribute(test.field)
		assert.True(t, ok, test.field.Key)
		assert.Equal(t, test.want, got, test.field.Key)
	}

	_, ok := fieldAttribute(zap.Skip())
	assert.False(t, ok)
	_, ok = fieldAttribute(zap.Error(nil))
	assert.False(t, ok)
}
