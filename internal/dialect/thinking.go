package dialect

import "strings"

// maxThinkingBlocks bounds the strip loop the way picoclaw's
// maxReasoningBlocks bounds its extraction loop — a malformed or endless
// stream of open tags must not spin forever.
const maxThinkingBlocks = 10

// thinkingTagPairs is the paired-tag family from spec.md §4.3. Declared as
// data, per spec.md §9's "escape hatches via string matching → data, not
// code" note, so new vendor tag names are a table edit, not a code change.
var thinkingTagPairs = []struct{ open, close string }{
	{"<think>", "</think>"},
	{"<thinking>", "</thinking>"},
	{"<thought>", "</thought>"},
	{"<antthinking>", "</antthinking>"},
}

// strayThinkingTags covers a lone opening or closing tag of any of the
// above, with no matching partner, which must still be removed.
var strayThinkingTags = []string{
	"<think>", "</think>",
	"<thinking>", "</thinking>",
	"<thought>", "</thought>",
	"<antthinking>", "</antthinking>",
}

// sentinelOpen/sentinelClose match the full-width-bar sentinel family:
// "<｜begin_…｜> … <｜end_…｜>". The vendor suffix between begin_/end_ and
// the closing bar varies (e.g. "of_thinking", "thinking"), so these are
// prefix/suffix markers, not exact tags.
const (
	sentinelBeginPrefix = "<｜begin_"
	sentinelEndPrefix   = "<｜end_"
	sentinelBarSuffix   = "｜>"
)

// StripThinking removes every private chain-of-thought block from content
// so the client never sees it (spec.md §4.3, invariant 10: translated
// content never contains <think>, <thinking>, <｜begin, or <｜end).
func StripThinking(content string) string {
	for _, pair := range thinkingTagPairs {
		content = stripPairedBlocks(content, pair.open, pair.close)
	}
	content = stripSentinelBlocks(content)
	content = stripStrayTags(content)
	return strings.TrimSpace(content)
}

func stripPairedBlocks(content, open, close string) string {
	for i := 0; i < maxThinkingBlocks; i++ {
		start := strings.Index(content, open)
		if start == -1 {
			break
		}
		endRel := strings.Index(content[start:], close)
		if endRel == -1 {
			// Unterminated block: drop everything from the open tag
			// onward rather than forward a partial thinking fragment.
			content = content[:start]
			break
		}
		end := start + endRel
		content = content[:start] + content[end+len(close):]
	}
	return content
}

func stripSentinelBlocks(content string) string {
	for i := 0; i < maxThinkingBlocks; i++ {
		start := strings.Index(content, sentinelBeginPrefix)
		if start == -1 {
			break
		}
		barEnd := strings.Index(content[start:], sentinelBarSuffix)
		if barEnd == -1 {
			content = content[:start]
			break
		}
		openTagEnd := start + barEnd + len(sentinelBarSuffix)

		endStart := strings.Index(content[openTagEnd:], sentinelEndPrefix)
		if endStart == -1 {
			content = content[:start]
			break
		}
		absEndStart := openTagEnd + endStart
		endBar := strings.Index(content[absEndStart:], sentinelBarSuffix)
		if endBar == -1 {
			content = content[:start]
			break
		}
		absEnd := absEndStart + endBar + len(sentinelBarSuffix)
		content = content[:start] + content[absEnd:]
	}
	return content
}

// stripStrayTags removes any lone sentinel begin/end tokens and any
// unmatched paired tag left over after the bounded block-stripping passes
// above gave up on a malformed stream.
func stripStrayTags(content string) string {
	for _, tag := range strayThinkingTags {
		content = strings.ReplaceAll(content, tag, "")
	}
	for {
		start := strings.Index(content, sentinelBeginPrefix)
		if start == -1 {
			start = strings.Index(content, sentinelEndPrefix)
			if start == -1 {
				break
			}
		}
		barEnd := strings.Index(content[start:], sentinelBarSuffix)
		if barEnd == -1 {
			content = content[:start]
			break
		}
		content = content[:start] + content[start+barEnd+len(sentinelBarSuffix):]
	}
	return content
}
