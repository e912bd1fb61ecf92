package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageIDCodecRoundtrip(t *testing.T) {
	cases := [][]int{
		{12345},
		{12345, 12346, 12347},
		{12345, 12340},
		{1000000, 1000002, 1000004, 1000006},
	}
	for _, ids := range cases {
		decoded, err := decodeMessageIDs(encodeMessageIDs(ids))
		require.NoError(t, err)
		assert.Equal(t, ids, decoded)
	}
}

func TestMessageIDEncodingIsCompact(t *testing.T) {
	// Consecutive ids collapse into single-digit offsets.
	assert.Equal(t, "987654321,1,2,3", encodeMessageIDs([]int{987654321, 987654322, 987654323, 987654324}))
}

func TestDecodeMessageIDsRejectsGarbage(t *testing.T) {
	_, err := decodeMessageIDs("abc")
	assert.Error(t, err)
	_, err = decodeMessageIDs("123,x")
	assert.Error(t, err)
}

func TestCallbackDataFitsPlatformLimit(t *testing.T) {
	// Telegram rejects callback data beyond 64 bytes; a clear confirmation
	// over a long conversation must stay inside it.
	ids := []int{987654321, 987654323, 987654325, 987654327, 987654329}
	data := callbackData("clear", "yes", ids, -1001234567890, 1234567890)
	assert.LessOrEqual(t, len(data), 64, data)
	assert.Equal(t, "clear:yes:987654321,2,4,6,8:-1001234567890:1234567890", data)
}
