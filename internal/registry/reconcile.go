package registry

import (
	"strings"

	"github.com/Aman-CERP/paperrag/internal/citation"
)

// Action is the outcome of reconciling a candidate against the registry.
type Action string

const (
	ActionNew          Action = "new"
	ActionMergeByKey   Action = "merge-by-key"
	ActionMergeByDOI   Action = "merge-by-doi"
	ActionMergeByTitle Action = "merge-by-title"
)

// Reconcile matches candidate against records by citation key, then DOI,
// then normalized title. A match has its empty fields filled from the
// candidate; non-empty fields are never replaced. Without a match the
// candidate is appended. changed reports whether records differ from the
// input, so a second pass with the same candidate returns false.
func Reconcile(records []Record, candidate Record) ([]Record, Action, bool) {
	if i := FindByKey(records, candidate.CitationKey); i >= 0 {
		return records, ActionMergeByKey, fillByKey(&records[i], candidate)
	}
	if i := FindByDOI(records, candidate.DOI); i >= 0 {
		return records, ActionMergeByDOI, fillByDOI(&records[i], candidate)
	}
	if i := FindByTitle(records, candidate.Title); i >= 0 {
		return records, ActionMergeByTitle, fillByTitle(&records[i], candidate)
	}
	return append(records, candidate), ActionNew, true
}

func fillByKey(dst *Record, src Record) bool {
	changed := fillDOI(dst, src)
	changed = fillTitle(dst, src) || changed
	changed = fillCSL(dst, src) || changed
	return fillTopic(dst, src) || changed
}

func fillByDOI(dst *Record, src Record) bool {
	changed := fillKey(dst, src)
	changed = fillCSL(dst, src) || changed
	changed = fillTitle(dst, src) || changed
	return fillTopic(dst, src) || changed
}

func fillByTitle(dst *Record, src Record) bool {
	changed := fillKey(dst, src)
	changed = fillCSL(dst, src) || changed
	changed = fillDOI(dst, src) || changed
	return fillTopic(dst, src) || changed
}

func fillKey(dst *Record, src Record) bool {
	if dst.CitationKey != "" || src.CitationKey == "" {
		return false
	}
	dst.CitationKey = src.CitationKey
	return true
}

func fillDOI(dst *Record, src Record) bool {
	if dst.DOI != "" || src.DOI == "" || src.DOI == citation.NotAvailable {
		return false
	}
	dst.DOI = src.DOI
	return true
}

func fillTitle(dst *Record, src Record) bool {
	if dst.Title != "" || src.Title == "" || strings.EqualFold(src.Title, "unknown") {
		return false
	}
	dst.Title = src.Title
	return true
}

func fillCSL(dst *Record, src Record) bool {
	if dst.CSL != nil || src.CSL == nil {
		return false
	}
	dst.CSL = src.CSL
	return true
}

func fillTopic(dst *Record, src Record) bool {
	if dst.Topic != "" || src.Topic == "" {
		return false
	}
	dst.Topic = src.Topic
	return true
}
