// Package canvas reconstructs the visual hierarchy of a sermon's flat
// block list: anchor blocks followed by the insight blocks soft-linked to
// them via parentVerseId.
package canvas

import (
	"sort"

	"pulpito/api/internal/store"
)

// Mode selects how strictly insights are filtered when grouping.
type Mode int

const (
	// ModeEdit shows every linked insight, including pending ones.
	ModeEdit Mode = iota
	// ModePulpit hides insights still marked PENDING.
	ModePulpit
)

// Group is one anchor with its linked insights. An orphan insight shows up
// as a group whose Anchor is the insight itself with no children.
type Group struct {
	Anchor   store.Block   `json:"anchor"`
	Insights []store.Block `json:"insights"`
}

func isInsight(b store.Block) bool {
	return b.Metadata.ParentVerseID != ""
}

// BuildGroups turns a flat block list into ordered anchor groups. Groups
// follow block order; equal orders break ties by block id so the result is
// deterministic. Anchors with empty content and no linked insights are
// dropped. Orphan insights become singleton groups, except pending ones,
// which belong to the inbox only.
func BuildGroups(blocks []store.Block, mode Mode) []Group {
	anchors := make([]store.Block, 0, len(blocks))
	insights := make([]store.Block, 0)
	anchorIDs := make(map[string]bool)
	for _, b := range blocks {
		if isInsight(b) {
			insights = append(insights, b)
			continue
		}
		anchors = append(anchors, b)
		anchorIDs[b.ID] = true
	}

	byParent := make(map[string][]store.Block)
	orphans := make([]store.Block, 0)
	for _, insight := range insights {
		pending := insight.Metadata.InsightStatus == store.InsightPending
		if mode == ModePulpit && pending {
			continue
		}
		if anchorIDs[insight.Metadata.ParentVerseID] {
			byParent[insight.Metadata.ParentVerseID] = append(byParent[insight.Metadata.ParentVerseID], insight)
			continue
		}
		if pending {
			continue
		}
		orphans = append(orphans, insight)
	}

	groups := make([]Group, 0, len(anchors)+len(orphans))
	for _, anchor := range anchors {
		linked := byParent[anchor.ID]
		if anchor.Content == "" && len(linked) == 0 {
			continue
		}
		sortBlocks(linked)
		groups = append(groups, Group{Anchor: anchor, Insights: linked})
	}
	for _, orphan := range orphans {
		groups = append(groups, Group{Anchor: orphan, Insights: nil})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].Anchor, groups[j].Anchor
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
	return groups
}

// PendingInbox lists insight blocks still marked PENDING, which never
// appear inside pulpit groups.
func PendingInbox(blocks []store.Block) []store.Block {
	pending := make([]store.Block, 0)
	for _, b := range blocks {
		if isInsight(b) && b.Metadata.InsightStatus == store.InsightPending {
			pending = append(pending, b)
		}
	}
	sortBlocks(pending)
	return pending
}

func sortBlocks(blocks []store.Block) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Order != blocks[j].Order {
			return blocks[i].Order < blocks[j].Order
		}
		return blocks[i].ID < blocks[j].ID
	})
}

// DanglingRef describes a block whose soft reference points nowhere.
type DanglingRef struct {
	BlockID string `json:"blockId"`
	Field   string `json:"field"`
	Ref     string `json:"ref"`
}

// ValidateReferences checks the soft references of an incoming block set
// against itself and the sermon's bible sources. parentVerseId must point
// at a TEXTO_BASE block in the same set; bibleSourceId must point at a
// known source. Returned refs are reported, not repaired.
func ValidateReferences(blocks []store.Block, sourceIDs map[string]bool) []DanglingRef {
	baseIDs := make(map[string]bool)
	for _, b := range blocks {
		if b.Type == BlockTypeTextoBase {
			baseIDs[b.ID] = true
		}
	}

	var dangling []DanglingRef
	for _, b := range blocks {
		if ref := b.Metadata.ParentVerseID; ref != "" && !baseIDs[ref] {
			dangling = append(dangling, DanglingRef{BlockID: b.ID, Field: "parentVerseId", Ref: ref})
		}
		if ref := b.Metadata.BibleSourceID; ref != "" && !sourceIDs[ref] {
			dangling = append(dangling, DanglingRef{BlockID: b.ID, Field: "bibleSourceId", Ref: ref})
		}
	}
	return dangling
}
