package upstream

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// embeddedReasoningState implements the reasoner-family embedded-reasoning
// extractor (spec.md §4.2): the upstream emits only delta.content, but the
// content stream opens with "<think>" and closes with "</think>"; everything
// between belongs in reasoning_content instead.
//
// carry holds a content fragment that might be the prefix of "<think>" or
// "</think>" split across a window/chunk boundary — it's withheld from
// emission until enough of the next delta arrives to tell whether it really
// is a tag.
type embeddedReasoningState struct {
	collectingThink bool
	carry           string
}

type embeddedEmission struct {
	reasoningContent string
	content          string
}

// process consumes one upstream content delta and returns zero or more
// canonical emissions, in order. A delta that only opens a tag (or only
// continues one already open) yields zero emissions.
func (st *embeddedReasoningState) process(s string) []embeddedEmission {
	s = st.carry + s
	st.carry = ""

	var emissions []embeddedEmission
	for {
		if idx := strings.Index(s, thinkOpen); idx >= 0 {
			st.collectingThink = true
			s = s[:idx] + s[idx+len(thinkOpen):]
			continue
		}
		if idx := strings.Index(s, thinkClose); idx >= 0 {
			before := s[:idx]
			after := s[idx+len(thinkClose):]
			if before != "" {
				emissions = append(emissions, embeddedEmission{reasoningContent: before})
			}
			st.collectingThink = false
			s = after
			continue
		}
		break
	}

	emit, pending := splitPendingTagPrefix(s)
	st.carry = pending
	if emit == "" {
		return emissions
	}
	if st.collectingThink {
		emissions = append(emissions, embeddedEmission{reasoningContent: emit})
	} else {
		emissions = append(emissions, embeddedEmission{content: emit})
	}
	return emissions
}

// flush is called at stream end: any withheld carry turns out not to be a
// tag after all (there's no more input to complete it) and is emitted as
// ordinary content or reasoning, per whichever state was active.
func (st *embeddedReasoningState) flush() *embeddedEmission {
	if st.carry == "" {
		return nil
	}
	s := st.carry
	st.carry = ""
	if st.collectingThink {
		return &embeddedEmission{reasoningContent: s}
	}
	return &embeddedEmission{content: s}
}

// splitPendingTagPrefix splits s into (safe-to-emit, withheld-suffix), where
// the withheld suffix is the longest tail of s that is a proper prefix of
// either tag string — i.e. it might complete into a tag once more bytes
// arrive, so it isn't safe to emit yet.
func splitPendingTagPrefix(s string) (emit string, pending string) {
	maxLen := len(thinkClose) - 1
	if len(s) < maxLen {
		maxLen = len(s)
	}
	for l := maxLen; l > 0; l-- {
		suf := s[len(s)-l:]
		if strings.HasPrefix(thinkOpen, suf) || strings.HasPrefix(thinkClose, suf) {
			return s[:len(s)-l], suf
		}
	}
	return s, ""
}
