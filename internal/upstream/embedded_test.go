package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// emitStrings flattens a slice of emissions into (reasoning, content) pairs
// for easy comparison against the spec's worked examples.
func emitStrings(emissions []embeddedEmission) []string {
	out := make([]string, 0, len(emissions))
	for _, e := range emissions {
		if e.reasoningContent != "" {
			out = append(out, "R:"+e.reasoningContent)
		}
		if e.content != "" {
			out = append(out, "C:"+e.content)
		}
	}
	return out
}

func TestEmbeddedReasoning_SingleChunk(t *testing.T) {
	var st embeddedReasoningState
	got := emitStrings(st.process("<think>abc</think>def"))
	assert.Equal(t, []string{"R:abc", "C:def"}, got)
	assert.Nil(t, st.flush())
}

func TestEmbeddedReasoning_SplitAcrossThreeChunks(t *testing.T) {
	var st embeddedReasoningState
	var got []string
	got = append(got, emitStrings(st.process("<think>"))...)
	got = append(got, emitStrings(st.process("why"))...)
	got = append(got, emitStrings(st.process("</think>hi"))...)
	assert.Equal(t, []string{"R:why", "C:hi"}, got)
	assert.Nil(t, st.flush())
}

func TestEmbeddedReasoning_TagSplitAcrossChunkBoundary(t *testing.T) {
	// "<thi" / "nk>abc</th" / "ink>def" -> reasoning "abc" then content "def"
	var st embeddedReasoningState
	var got []string
	got = append(got, emitStrings(st.process("<thi"))...)
	got = append(got, emitStrings(st.process("nk>abc</th"))...)
	got = append(got, emitStrings(st.process("ink>def"))...)
	assert.Equal(t, []string{"R:abc", "C:def"}, got)
	assert.Nil(t, st.flush())
}

func TestEmbeddedReasoning_NoTagsIsPlainContent(t *testing.T) {
	var st embeddedReasoningState
	got := emitStrings(st.process("just plain text"))
	assert.Equal(t, []string{"C:just plain text"}, got)
}

func TestEmbeddedReasoning_FlushEmitsWithheldCarryAtStreamEnd(t *testing.T) {
	var st embeddedReasoningState
	// "<th" alone could still become "<think>" - it must be withheld.
	got := emitStrings(st.process("<th"))
	assert.Empty(t, got)

	final := st.flush()
	if assert.NotNil(t, final) {
		assert.Equal(t, "<th", final.content)
	}
}

func TestEmbeddedReasoning_ContentDuringReasoningEmitsAsReasoning(t *testing.T) {
	var st embeddedReasoningState
	got := emitStrings(st.process("<think>partial"))
	assert.Equal(t, []string{"R:partial"}, got)
	assert.True(t, st.collectingThink)
}
