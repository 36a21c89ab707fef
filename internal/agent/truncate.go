package agent

import "strings"

const ellipsis = "..."

// TruncateAtSentence shortens text to at most budget characters. It prefers
// the last sentence end, then the last space followed by an ellipsis, then a
// hard cut followed by an ellipsis. Lengths are counted in runes.
func TruncateAtSentence(text string, budget int) string {
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	if budget <= len(ellipsis) {
		if budget < 0 {
			budget = 0
		}
		return string(runes[:budget])
	}

	head := string(runes[:budget-len(ellipsis)])
	if i := strings.LastIndexAny(head, ".?!"); i >= 0 {
		return strings.TrimRight(head[:i+1], " \t\n")
	}
	if i := strings.LastIndexByte(head, ' '); i >= 0 {
		return head[:i] + ellipsis
	}
	return head + ellipsis
}
