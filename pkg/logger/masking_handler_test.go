package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskingHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewJSONHandler(&buf, nil)))

	log.Info("booking submitted",
		slog.String("token", "123:abc"),
		slog.String("client_phone", "+7 999 123-45-67"),
		slog.Group("request", slog.String("password", "hunter2"), slog.Int64("user_id", 42)),
	)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "***", record["token"])
	assert.Equal(t, "***67", record["client_phone"])

	group, ok := record["request"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "***", group["password"])
	assert.EqualValues(t, 42, group["user_id"])
}

func TestMaskPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "+79991234567", want: "***67"},
		{in: "8 999 123-45-68", want: "***68"},
		{in: "1", want: "***"},
		{in: "", want: "***"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskPhone(tt.in))
		})
	}
}

func TestWithCorrelationID(t *testing.T) {
	ctx, id := WithCorrelationID(context.Background())
	require.NotEmpty(t, id)
	assert.Equal(t, id, CorrelationIDFromContext(ctx))

	same, again := WithCorrelationID(ctx)
	assert.Equal(t, id, again)
	assert.Equal(t, ctx, same)
}
