package delta

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustText(t *testing.T, content json.RawMessage) string {
	t.Helper()
	text, err := Text(content)
	require.NoError(t, err)
	return text
}

func rawOps(ops ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(ops))
	for _, op := range ops {
		out = append(out, json.RawMessage(op))
	}
	return out
}

func TestApplyInsertIntoEmpty(t *testing.T) {
	var codec Codec

	content, err := codec.Apply(Empty(), rawOps(`{"insert":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", mustText(t, content))
}

func TestApplyRetainInsertDelete(t *testing.T) {
	var codec Codec

	content, err := codec.Apply(
		json.RawMessage(`{"ops":[{"insert":"hello world"}]}`),
		rawOps(`{"retain":5}`, `{"delete":6}`, `{"insert":"!"}`),
	)
	require.NoError(t, err)
	assert.Equal(t, "hello!", mustText(t, content))
}

func TestApplyTrailingTextRetained(t *testing.T) {
	var codec Codec

	content, err := codec.Apply(
		json.RawMessage(`{"ops":[{"insert":"hello world"}]}`),
		rawOps(`{"retain":5}`, `{"insert":","}`),
	)
	require.NoError(t, err)
	assert.Equal(t, "hello, world", mustText(t, content))
}

func TestApplyMultiByteRunes(t *testing.T) {
	var codec Codec

	content, err := codec.Apply(
		json.RawMessage(`{"ops":[{"insert":"héllo"}]}`),
		rawOps(`{"retain":2}`, `{"delete":3}`, `{"insert":"y"}`),
	)
	require.NoError(t, err)
	assert.Equal(t, "héy", mustText(t, content))
}

func TestApplyRetainPastEnd(t *testing.T) {
	var codec Codec

	_, err := codec.Apply(
		json.RawMessage(`{"ops":[{"insert":"hi"}]}`),
		rawOps(`{"retain":3}`, `{"insert":"x"}`),
	)
	assert.ErrorContains(t, err, "retain of 3 exceeds document length 2")
}

func TestApplyDeletePastEnd(t *testing.T) {
	var codec Codec

	_, err := codec.Apply(
		json.RawMessage(`{"ops":[{"insert":"hi"}]}`),
		rawOps(`{"delete":5}`),
	)
	assert.ErrorContains(t, err, "delete of 5 exceeds document length 2")
}

func TestApplyRejectsMaxIntRetain(t *testing.T) {
	var codec Codec

	// A count near math.MaxInt must fail the bounds check, not wrap the
	// cursor negative and panic on the following insert.
	_, err := codec.Apply(
		json.RawMessage(`{"ops":[{"insert":"hello"}]}`),
		rawOps(`{"retain":1}`, fmt.Sprintf(`{"retain":%d}`, math.MaxInt), `{"insert":"x"}`),
	)
	assert.ErrorContains(t, err, "exceeds document length 5")
}

func TestApplyRejectsMaxIntDelete(t *testing.T) {
	var codec Codec

	_, err := codec.Apply(
		json.RawMessage(`{"ops":[{"insert":"hello"}]}`),
		rawOps(`{"retain":2}`, fmt.Sprintf(`{"delete":%d}`, math.MaxInt)),
	)
	assert.ErrorContains(t, err, "exceeds document length 5")
}

func TestApplyRetainThenDeletePastEnd(t *testing.T) {
	var codec Codec

	_, err := codec.Apply(
		json.RawMessage(`{"ops":[{"insert":"hello"}]}`),
		rawOps(`{"retain":3}`, `{"delete":3}`),
	)
	assert.ErrorContains(t, err, "delete of 3 exceeds document length 5")
}

func TestApplyRejectsAmbiguousOp(t *testing.T) {
	var codec Codec

	_, err := codec.Apply(Empty(), rawOps(`{"retain":1,"insert":"x"}`))
	assert.ErrorContains(t, err, "exactly one")

	_, err = codec.Apply(Empty(), rawOps(`{}`))
	assert.ErrorContains(t, err, "exactly one")
}

func TestApplyRejectsNonPositiveCounts(t *testing.T) {
	var codec Codec

	_, err := codec.Apply(Empty(), rawOps(`{"retain":0}`))
	assert.ErrorContains(t, err, "retain must be positive")

	_, err = codec.Apply(Empty(), rawOps(`{"delete":-1}`))
	assert.ErrorContains(t, err, "delete must be positive")
}

func TestApplyMalformedContent(t *testing.T) {
	var codec Codec

	_, err := codec.Apply(json.RawMessage(`not json`), rawOps(`{"insert":"x"}`))
	assert.ErrorContains(t, err, "malformed content")
}

func TestEmptyDocumentRoundTrip(t *testing.T) {
	var codec Codec

	content, err := codec.Apply(
		json.RawMessage(`{"ops":[{"insert":"gone"}]}`),
		rawOps(`{"delete":4}`),
	)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ops":[]}`, string(content))
}
