package pipeline

import (
	"fmt"
	"strings"

	"ssr/internal"
)

// Builder assembles sections from classified rows. It owns the section and
// sub-section cursors for a single run; the whole tree stays in memory until
// Sections is called, so back-filled rates are never observed half-written.
type Builder struct {
	rules    *Rules
	sections []*internal.Section
	section  *internal.Section
	sub      *internal.SubSection
	counts   map[RowRole]int
}

func NewBuilder(rules *Rules) *Builder {
	return &Builder{rules: rules, counts: map[RowRole]int{}}
}

// Build skips the profile's header rows and feeds the rest in order.
func (r *Rules) Build(rows []internal.Row) *Builder {
	b := NewBuilder(r)
	for i, row := range rows {
		if i < r.HeaderRows {
			continue
		}
		b.Feed(r.Normalize(i, row))
	}
	return b
}

// Feed classifies one row and applies it. Rows that fit no rule leave the
// state untouched.
func (b *Builder) Feed(row NormalizedRow) RowRole {
	role := b.rules.Classify(row, RowContext{InSection: b.section != nil})
	b.counts[role]++

	switch role {
	case RoleCompoundItem, RoleSectionHeader:
		b.openSection(row)
	case RoleSubSectionHeader:
		b.openSubSection(row.ItemKey, row.Description)
	case RoleAutoSubSection:
		b.openSubSection(fmt.Sprintf("auto_%d", len(b.section.SubSections)+1), row.Description)
	case RoleRateItem, RolePendingItem:
		b.appendItem(b.newItem(row.Description, row.Unit, row.Rate))
	case RoleRateOnly:
		b.applyRateOnly(row)
	}
	return role
}

func (b *Builder) openSection(row NormalizedRow) {
	s := &internal.Section{
		ItemNo:      row.ItemNo,
		ItemKey:     row.ItemKey,
		Category:    b.rules.categories.Resolve(row.ItemKey, row.ItemNo),
		Title:       row.Description,
		Unit:        row.Unit,
		Rate:        row.Rate,
		RateType:    internal.RateTypeOf(row.Rate),
		SubSections: []*internal.SubSection{},
		Items:       []*internal.RateItem{},
	}
	b.sections = append(b.sections, s)
	b.section = s
	b.sub = nil
}

func (b *Builder) openSubSection(id string, description *string) {
	sub := &internal.SubSection{
		SubID:       id,
		Description: description,
		Items:       []*internal.RateItem{},
	}
	b.section.SubSections = append(b.section.SubSections, sub)
	b.sub = sub
}

func (b *Builder) target() []*internal.RateItem {
	if b.sub != nil {
		return b.sub.Items
	}
	return b.section.Items
}

func (b *Builder) appendItem(item *internal.RateItem) {
	if b.sub != nil {
		b.sub.Items = append(b.sub.Items, item)
		return
	}
	b.section.Items = append(b.section.Items, item)
}

func (b *Builder) newItem(description, unit *string, rate *internal.Cell) *internal.RateItem {
	item := &internal.RateItem{
		SectionItemNo: b.section.ItemNo,
		Dimension:     b.dimension(description),
		Unit:          unit,
	}
	item.SetRate(rate)
	return item
}

// applyRateOnly repairs rows where the rate sits alone below its unit row.
func (b *Builder) applyRateOnly(row NormalizedRow) {
	items := b.target()
	if len(items) == 0 && row.Description != nil {
		b.appendItem(b.newItem(row.Description, nil, row.Rate))
		return
	}
	if len(items) > 0 && items[len(items)-1].Rate == nil {
		items[len(items)-1].SetRate(row.Rate)
		return
	}
	b.appendItem(b.newItem(row.Description, nil, row.Rate))
}

func (b *Builder) dimension(description *string) *string {
	if description == nil {
		return nil
	}
	d := strings.TrimSpace(b.rules.dimensionRe.ReplaceAllString(*description, ""))
	if d == "" {
		return nil
	}
	return &d
}

// Sections returns the sections in input order.
func (b *Builder) Sections() []*internal.Section {
	if b.sections == nil {
		return []*internal.Section{}
	}
	return b.sections
}

// Counts returns how many rows fell into each role.
func (b *Builder) Counts() map[RowRole]int {
	out := make(map[RowRole]int, len(b.counts))
	for k, v := range b.counts {
		out[k] = v
	}
	return out
}
