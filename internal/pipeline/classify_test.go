package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ssr/internal"
)

func row(cells ...any) internal.Row {
	out := make(internal.Row, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case nil:
		case string:
			out[i] = internal.TextCell(v)
		case int:
			out[i] = internal.NumberCell(float64(v))
		case float64:
			out[i] = internal.NumberCell(v)
		default:
			panic("unsupported cell")
		}
	}
	return out
}

func TestClassify(t *testing.T) {
	rules := DefaultProfile().MustCompile()
	in := RowContext{InSection: true}
	out := RowContext{}

	tests := []struct {
		name string
		row  internal.Row
		ctx  RowContext
		want RowRole
	}{
		{"blank", row(nil, nil, "  ", nil, nil), in, RoleBlank},
		{"serial only is blank", row(3, nil, nil, nil, nil), in, RoleBlank},
		{"compound", row(nil, "8a", "Shoring and strutting", nil, nil), out, RoleCompoundItem},
		{"compound with punctuation", row(nil, "11.a.", "Providing D.I. specials", nil, nil), in, RoleCompoundItem},
		{"compound wins over single rate", row(nil, "18 b", "Air valve", "each", 950), in, RoleCompoundItem},
		{"integer section", row(nil, 1, "RATES OF LABOUR", nil, nil), out, RoleSectionHeader},
		{"lettered section", row(nil, "12.b", "Laying G.I. pipes", nil, nil), in, RoleSectionHeader},
		{"spaced lettered section", row(nil, "3 a.", "Carriage of pipes", nil, nil), in, RoleSectionHeader},
		{"single rate section before first section", row(nil, 5, "Excavation in trench", "cum", 150), out, RoleSectionHeader},
		{"priced row inside section is an item", row(nil, 2, "Mason", "day", 650), in, RoleRateItem},
		{"rate without unit inside section", row(nil, 3, "Helper", nil, 400), in, RoleIgnored},
		{"sub-section", row(nil, "a", "Upto 1.5 m depth", nil, nil), in, RoleSubSectionHeader},
		{"sub-section needs open section", row(nil, "a", "Upto 1.5 m depth", nil, nil), out, RoleIgnored},
		{"auto sub-section G.I.", row(nil, nil, "G.I. PIPES", nil, nil), in, RoleAutoSubSection},
		{"auto sub-section PVC/HDPE", row(nil, nil, "PVC / HDPE PIPES", nil, nil), in, RoleAutoSubSection},
		{"auto sub-section HDPE/PVC", row(nil, nil, "HDPE/PVC pipes", nil, nil), in, RoleAutoSubSection},
		{"lone PVC pipes is free text", row(nil, nil, "Supply of PVC pipes", nil, nil), in, RoleIgnored},
		{"auto sub-section needs open section", row(nil, nil, "G.I. PIPES", nil, nil), out, RoleIgnored},
		{"rate item", row(nil, nil, "80", "rm", 120), in, RoleRateItem},
		{"rate item formula", row(nil, nil, "110 mm", "rm", "As per Common SSR"), in, RoleRateItem},
		{"rate item outside section", row(nil, nil, "80", "rm", 120), out, RoleIgnored},
		{"rate only", row(nil, nil, nil, nil, 245.5), in, RoleRateOnly},
		{"rate only with description", row(nil, nil, "Lump sum", nil, 500), in, RoleRateOnly},
		{"rate only wins over note", row(nil, nil, "NOTE: extra for night work", nil, 50), in, RoleRateOnly},
		{"note", row(nil, nil, "NOTE: rates include carriage", nil, nil), in, RoleSkip},
		{"DIA in caption", row(nil, nil, "DIA in mm", nil, nil), in, RoleSkip},
		{"DIA of caption", row(nil, nil, "Dia of pipe", nil, nil), in, RoleSkip},
		{"DIA prefix needs word", row(nil, nil, "Diaphragm valve", nil, nil), in, RoleIgnored},
		{"diameter caption", row(nil, nil, "Diameter of pipe in mm", nil, nil), in, RoleSkip},
		{"indented continuation", row(nil, nil, "    and making good the road", nil, nil), in, RoleSkip},
		{"skipped auto caption", row(nil, nil, "    G.I. PIPES", nil, nil), in, RoleSkip},
		{"pending item", row(nil, nil, "100mm", "rm", nil), in, RolePendingItem},
		{"pending needs open section", row(nil, nil, "100mm", "rm", nil), out, RoleIgnored},
		{"free text", row(nil, nil, "Providing and fixing", nil, nil), in, RoleIgnored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rules.Classify(rules.Normalize(0, tt.row), tt.ctx)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifySingleRateSectionsDisabled(t *testing.T) {
	p := DefaultProfile()
	off := false
	p.SingleRateSections = &off
	rules := p.MustCompile()

	r := rules.Normalize(0, row(nil, 5, "Excavation in trench", "cum", 150))
	assert.Equal(t, RoleIgnored, rules.Classify(r, RowContext{}))
	assert.Equal(t, RoleRateItem, rules.Classify(r, RowContext{InSection: true}))
}

func TestClassifyIsTotal(t *testing.T) {
	rules := DefaultProfile().MustCompile()
	rows := []internal.Row{
		row(), row(nil, "x"), row(nil, 2.5, "desc", "m", 1), row(nil, nil, nil, "m", nil),
		row(nil, "b", nil, "m", "n/a"), row("1", "(c)", "Other", nil, nil),
	}
	for _, ctx := range []RowContext{{}, {InSection: true}} {
		for _, r := range rows {
			assert.NotEmpty(t, rules.Classify(rules.Normalize(0, r), ctx))
		}
	}
}
