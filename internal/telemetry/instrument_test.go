package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"

	"github.com/fyrsmithlabs/ghsock/pkg/channel"
	"github.com/fyrsmithlabs/ghsock/pkg/command"
	"github.com/fyrsmithlabs/ghsock/pkg/tree"
)

func TestInstruments_Seeker(t *testing.T) {
	rec := NewRecorder()
	in, err := NewInstruments(rec.Telemetry)
	require.NoError(t, err)

	list := command.List{
		{Command: "op__a", Tree: tree.Tree{}},
		{Command: "op__b", Tree: tree.Tree{}},
	}
	seek := in.Seeker("release", func(context.Context, map[string]string) (channel.SeekResult, error) {
		return channel.SeekResult{Commands: list, Delay: 2 * time.Second}, nil
	})

	res, err := seek(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, res.Commands, 2)

	assert.Equal(t, "release", rec.SpanAttr(t, SpanSeek, "source.kind"))
	assert.Equal(t, int64(2), rec.SpanAttr(t, SpanSeek, "commands"))
	assert.Equal(t, int64(2000), rec.SpanAttr(t, SpanSeek, "delay_ms"))
	assert.Equal(t, int64(1), rec.Counter(t, "ghsock.seeks"))
	assert.Equal(t, int64(2), rec.Counter(t, "ghsock.commands"))
}

func TestInstruments_SeekerError(t *testing.T) {
	rec := NewRecorder()
	in, err := NewInstruments(rec.Telemetry)
	require.NoError(t, err)

	boom := errors.New("HTTP 401")
	seek := in.Seeker("issues", func(context.Context, map[string]string) (channel.SeekResult, error) {
		return channel.SeekResult{}, boom
	})

	_, err = seek(context.Background(), nil)
	assert.ErrorIs(t, err, boom)

	span := rec.Span(SpanSeek)
	require.NotNil(t, span)
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "HTTP 401", span.Status().Description)
	assert.Equal(t, int64(1), rec.Counter(t, "ghsock.seeks"))
	assert.Equal(t, int64(0), rec.Counter(t, "ghsock.commands"))
}

func TestInstruments_Sender(t *testing.T) {
	rec := NewRecorder()
	in, err := NewInstruments(rec.Telemetry)
	require.NoError(t, err)

	var got command.List
	send := in.Sender("dispatch", func(_ context.Context, l command.List) error {
		got = l
		return nil
	})

	list := command.List{{Command: "noop__name", Tree: tree.Tree{}}}
	require.NoError(t, send(context.Background(), list))
	assert.Equal(t, list, got)

	assert.Equal(t, "dispatch", rec.SpanAttr(t, SpanSend, "sink.kind"))
	assert.Equal(t, int64(1), rec.SpanAttr(t, SpanSend, "commands"))
	assert.Equal(t, []string{"noop__name"}, rec.SpanAttr(t, SpanSend, "command.names"))
	assert.Equal(t, int64(1), rec.Counter(t, "ghsock.sends"))
	assert.Equal(t, int64(1), rec.Counter(t, "ghsock.commands"))
}

func TestInstruments_SenderError(t *testing.T) {
	rec := NewRecorder()
	in, err := NewInstruments(rec.Telemetry)
	require.NoError(t, err)

	send := in.Sender("secret", func(context.Context, command.List) error {
		return errors.New("put secret: 422")
	})
	assert.Error(t, send(context.Background(), command.List{{Command: "op__x", Tree: tree.Tree{}}}))

	span := rec.Span(SpanSend)
	require.NotNil(t, span)
	assert.Equal(t, codes.Error, span.Status().Code)
}

func TestNewInstruments_Disabled(t *testing.T) {
	in, err := NewInstruments(nil)
	require.NoError(t, err)

	seek := in.Seeker("file", func(context.Context, map[string]string) (channel.SeekResult, error) {
		return channel.SeekResult{}, nil
	})
	_, err = seek(context.Background(), nil)
	assert.NoError(t, err)
}
