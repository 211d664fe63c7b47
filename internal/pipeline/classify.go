package pipeline

import (
	"ssr/internal/util"
)

type RowRole string

const (
	RoleBlank            RowRole = "blank"
	RoleCompoundItem     RowRole = "compound_item"
	RoleSectionHeader    RowRole = "section_header"
	RoleSubSectionHeader RowRole = "sub_section_header"
	RoleAutoSubSection   RowRole = "auto_sub_section"
	RoleRateItem         RowRole = "rate_item"
	RoleRateOnly         RowRole = "rate_only"
	RoleSkip             RowRole = "skip"
	RolePendingItem      RowRole = "pending_item"
	RoleIgnored          RowRole = "ignored"
)

// RowContext is the builder state the classifier is allowed to see.
type RowContext struct {
	InSection bool
}

// Classify maps a row to exactly one role. Rules are checked in a fixed
// order and the first match wins.
func (r *Rules) Classify(row NormalizedRow, ctx RowContext) RowRole {
	hasUnit := row.Unit != nil
	hasRate := row.Rate != nil

	switch {
	case row.IsBlank():
		return RoleBlank
	case r.IsCompound(row.ItemKey):
		return RoleCompoundItem
	case row.HasItemNo() && !hasUnit && !hasRate && r.looksLikeSection(row):
		return RoleSectionHeader
	case ctx.InSection && row.HasItemNo() && !hasUnit && !hasRate && r.subSectionRe.MatchString(row.ItemKey):
		return RoleSubSectionHeader
	case ctx.InSection && !row.HasItemNo() && row.Description != nil && !r.IsSkip(row) && r.isAutoSubSection(*row.Description):
		return RoleAutoSubSection
	case ctx.InSection && hasUnit && hasRate:
		return RoleRateItem
	case ctx.InSection && hasRate && !hasUnit && !row.HasItemNo():
		return RoleRateOnly
	case r.IsSkip(row):
		return RoleSkip
	case r.isSingleRateSection(row, ctx):
		return RoleSectionHeader
	case ctx.InSection && hasUnit && !hasRate:
		return RolePendingItem
	default:
		return RoleIgnored
	}
}

func (r *Rules) IsCompound(itemKey string) bool {
	if itemKey == "" {
		return false
	}
	_, ok := r.compound[itemKey]
	return ok
}

func (r *Rules) looksLikeSection(row NormalizedRow) bool {
	if row.ItemNo.IsInteger() {
		return true
	}
	if !row.ItemNo.IsText() {
		return false
	}
	return r.sectionRe.MatchString(row.ItemNo.Text)
}

// isSingleRateSection claims priced section rows seen before any section is
// open; the rules above leave those unmatched.
func (r *Rules) isSingleRateSection(row NormalizedRow, ctx RowContext) bool {
	if !r.singleRateRows || ctx.InSection || !row.HasItemNo() {
		return false
	}
	return (row.Unit != nil || row.Rate != nil) && r.looksLikeSection(row)
}

func (r *Rules) isAutoSubSection(description string) bool {
	for _, re := range r.autoSubRe {
		if re.MatchString(description) {
			return true
		}
	}
	return false
}

// IsSkip reports notes, pipe-diameter captions and indented continuation text.
func (r *Rules) IsSkip(row NormalizedRow) bool {
	if r.skipIndent > 0 && util.LeadingSpaces(row.RawDescription) >= r.skipIndent {
		return true
	}
	if row.Description == nil {
		return false
	}
	for _, re := range r.skipRe {
		if re.MatchString(*row.Description) {
			return true
		}
	}
	return false
}
