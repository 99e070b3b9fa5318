package compression

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/continuum/internal/conversation"
)

func TestMessageCompressor_CompressBatch(t *testing.T) {
	compressor := NewMessageCompressor()

	messages := []conversation.Message{
		{Role: "user", Content: "please help me", Timestamp: "2025-11-09T14:00:00Z"},
		{Role: "assistant", Content: "Here's how it works: step 1, step 2, step 3"},
		{Role: "user", Content: "thanks"},
		{Role: "assistant", Content: "Let me know if you need anything else!"},
	}

	compressed := compressor.CompressBatch(messages)
	require.Len(t, compressed, 2)

	assert.Equal(t, conversation.Message{
		Role: "user", Content: "please help me", Timestamp: "2025-11-09T14:00:00Z",
	}, compressed[0])
	assert.Equal(t, "assistant", compressed[1].Role)
	assert.Contains(t, compressed[1].Content, "step 1")

	// Input is untouched
	assert.Equal(t, "thanks", messages[2].Content)
}

func TestMessageCompressor_CompressBatch_TrimsContent(t *testing.T) {
	compressor := NewMessageCompressor()

	compressed := compressor.CompressBatch([]conversation.Message{
		{Role: "tool", Content: "<system-reminder>ctx</system-reminder>\n  exit status 1: missing go.sum entry  \n"},
	})
	require.Len(t, compressed, 1)
	assert.Equal(t, "tool", compressed[0].Role)
	assert.Equal(t, "exit status 1: missing go.sum entry", compressed[0].Content)
}

func TestMessageCompressor_CompressBatch_PreservesOrder(t *testing.T) {
	compressor := NewMessageCompressor()
	noise := []string{"ok", "thanks", "Done", "Noted.", "Great!"}
	roles := []string{"user", "assistant", "system", "tool", "custom"}

	var messages []conversation.Message
	for i := 0; i < 50; i++ {
		content := fmt.Sprintf("step %d: update handler %d", i, i*7)
		if i%3 == 0 {
			content = noise[i%len(noise)]
		}
		messages = append(messages, conversation.Message{Role: roles[i%len(roles)], Content: content})
	}

	compressed := compressor.CompressBatch(messages)

	// Output must be a subsequence of the input with roles unchanged
	j := 0
	for _, out := range compressed {
		for j < len(messages) && !(messages[j].Role == out.Role && messages[j].Content == out.Content) {
			j++
		}
		require.Less(t, j, len(messages), "message %q not found in order", out.Content)
		j++
	}
	assert.Len(t, compressed, 50-17)
}

func TestMessageCompressor_CompressBatch_Empty(t *testing.T) {
	compressor := NewMessageCompressor()

	compressed := compressor.CompressBatch(nil)
	assert.NotNil(t, compressed)
	assert.Empty(t, compressed)
	assert.Equal(t, 0, compressor.EstimateTokens(nil))
}

func TestMessageCompressor_EstimateTokens(t *testing.T) {
	compressor := NewMessageCompressor()

	messages := []conversation.Message{
		conversation.NewMessage("user", "Hello world this is a test message"),
	}
	// 34 chars -> 9 tokens, plus 5 for the role framing
	assert.Equal(t, 14, compressor.EstimateTokens(messages))

	messages = append(messages, conversation.NewMessage("assistant", ""))
	assert.Equal(t, 19, compressor.EstimateTokens(messages))
}

func TestMessageCompressor_CompressionRatio(t *testing.T) {
	compressor := NewMessageCompressor()

	tests := []struct {
		original   int
		compressed int
		want       float64
	}{
		{0, 0, 0.0},
		{0, 10, 0.0},
		{100, 50, 50.0},
		{100, 25, 75.0},
		{100, 100, 0.0},
		{200, 0, 100.0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d", tt.original, tt.compressed), func(t *testing.T) {
			assert.Equal(t, tt.want, compressor.CompressionRatio(tt.original, tt.compressed))
		})
	}
}

func TestMessageCompressor_Summarize(t *testing.T) {
	compressor := NewMessageCompressor()

	original := []conversation.Message{
		conversation.NewMessage("user", "Add a retry with jitter to the uploader"),
		conversation.NewMessage("assistant", "Sure!"),
		conversation.NewMessage("user", "thanks"),
	}
	compressed := compressor.CompressBatch(original)

	stats := compressor.Summarize(original, compressed)
	assert.Equal(t, 3, stats.OriginalMessages)
	assert.Equal(t, 1, stats.KeptMessages)
	assert.Equal(t, 2, stats.DroppedMessages)
	assert.Equal(t, compressor.EstimateTokens(original), stats.OriginalTokens)
	assert.Equal(t, compressor.EstimateTokens(compressed), stats.CompressedTokens)
	assert.InDelta(t, compressor.CompressionRatio(stats.OriginalTokens, stats.CompressedTokens), stats.RatioPercent, 1e-9)
	assert.Greater(t, stats.RatioPercent, 0.0)
}
