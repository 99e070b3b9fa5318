package compression

import (
	"github.com/fyrsmithlabs/continuum/internal/conversation"
)

// messageOverheadTokens approximates the role prefix and framing per message.
const messageOverheadTokens = 5

// MessageCompressor filters noise out of an ordered message batch.
type MessageCompressor struct {
	filter *NoiseFilter
}

// NewMessageCompressor creates a compressor using the default ruleset.
func NewMessageCompressor() *MessageCompressor {
	return &MessageCompressor{filter: NewNoiseFilter()}
}

// Filter returns the noise filter backing the compressor.
func (c *MessageCompressor) Filter() *NoiseFilter {
	return c.filter
}

// CompressBatch drops noise messages and trims the rest. Survivors keep their
// role, timestamp and relative order.
func (c *MessageCompressor) CompressBatch(messages []conversation.Message) []conversation.Message {
	kept := make([]conversation.Message, 0, len(messages))
	for _, msg := range messages {
		cleaned, ok := c.filter.Filter(msg.Content)
		if !ok {
			continue
		}
		msg.Content = cleaned
		kept = append(kept, msg)
	}
	return kept
}

// EstimateTokens estimates total tokens for a batch: 5 tokens of framing per
// message plus ~4 characters per token of content.
func (c *MessageCompressor) EstimateTokens(messages []conversation.Message) int {
	total := 0
	for _, msg := range messages {
		total += messageOverheadTokens + EstimateTextTokens(msg.Content)
	}
	return total
}

// CompressionRatio returns the percentage of tokens removed. It is 0 when
// there was nothing to compress.
func (c *MessageCompressor) CompressionRatio(originalTokens, compressedTokens int) float64 {
	if originalTokens == 0 {
		return 0.0
	}
	return (1.0 - float64(compressedTokens)/float64(originalTokens)) * 100.0
}

// Stats summarizes one compression run for reporting.
type Stats struct {
	OriginalMessages int     `json:"original_messages"`
	KeptMessages     int     `json:"kept_messages"`
	DroppedMessages  int     `json:"dropped_messages"`
	OriginalTokens   int     `json:"original_tokens"`
	CompressedTokens int     `json:"compressed_tokens"`
	RatioPercent     float64 `json:"ratio_percent"`
}

// Summarize computes Stats for a batch and its compressed form.
func (c *MessageCompressor) Summarize(original, compressed []conversation.Message) Stats {
	originalTokens := c.EstimateTokens(original)
	compressedTokens := c.EstimateTokens(compressed)
	return Stats{
		OriginalMessages: len(original),
		KeptMessages:     len(compressed),
		DroppedMessages:  len(original) - len(compressed),
		OriginalTokens:   originalTokens,
		CompressedTokens: compressedTokens,
		RatioPercent:     c.CompressionRatio(originalTokens, compressedTokens),
	}
}
