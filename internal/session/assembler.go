package session

import (
	"strings"

	"github.com/voxnote/dictation-gateway/internal/engine"
)

// Merge folds a result batch into the confirmed final text and returns the
// new final text plus the live text (final text followed by the current
// interim fragment). Slots are processed in ascending result-index order;
// already-final text is never mutated or reordered, so the final text only
// ever grows within a run.
func Merge(batch engine.ResultBatch, priorFinal string) (finalText string, liveText string) {
	finalText = priorFinal
	interim := ""

	for _, slot := range batch.Slots {
		if len(slot.Alternatives) == 0 {
			continue
		}
		// The first alternative is the best hypothesis.
		text := slot.Alternatives[0].Text
		if slot.IsFinal {
			finalText = joinFragment(finalText, text)
		} else {
			interim = joinFragment(interim, text)
		}
	}

	liveText = joinFragment(finalText, interim)
	return finalText, liveText
}

// batchHasFinal reports whether any slot in the batch is final.
func batchHasFinal(batch engine.ResultBatch) bool {
	for _, slot := range batch.Slots {
		if slot.IsFinal {
			return true
		}
	}
	return false
}

// joinFragment appends a fragment to base with exactly one separating space
// between non-empty parts. The base is returned unchanged for an empty
// fragment, so liveText always keeps finalText as its prefix.
func joinFragment(base string, fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return base
	}
	if base == "" {
		return fragment
	}
	if strings.HasSuffix(base, " ") {
		return base + fragment
	}
	return base + " " + fragment
}
