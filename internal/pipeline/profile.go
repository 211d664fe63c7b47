package pipeline

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"ssr/internal/util"
)

// Columns are zero-based positions of the meaningful cells in a row.
type Columns struct {
	Serial      int `yaml:"serial"`
	ItemNo      int `yaml:"item_no"`
	Description int `yaml:"description"`
	Unit        int `yaml:"unit"`
	Rate        int `yaml:"rate"`
}

// Profile describes one document family: where the columns are, which
// identifiers open sections, how rows are skipped and how categories resolve.
type Profile struct {
	Name                   string            `yaml:"name"`
	HeaderRows             *int              `yaml:"header_rows"`
	Columns                *Columns          `yaml:"columns"`
	CompoundItems          []string          `yaml:"compound_items"`
	Categories             map[string]string `yaml:"categories"`
	DefaultCategory        string            `yaml:"default_category"`
	SectionPattern         string            `yaml:"section_pattern"`
	SubSectionPattern      string            `yaml:"sub_section_pattern"`
	AutoSubSectionPatterns []string          `yaml:"auto_sub_section_patterns"`
	SkipPatterns           []string          `yaml:"skip_patterns"`
	SkipIndent             int               `yaml:"skip_indent"`
	DimensionSuffix        string            `yaml:"dimension_suffix"`
	SingleRateSections     *bool             `yaml:"single_rate_sections"`
}

const DefaultCategory = "General"

// defaultCategories maps canonical item keys of the public health
// engineering schedule to their category labels.
var defaultCategories = map[string]string{
	"1":   "Labour Rates",
	"2":   "Material Rates",
	"3":   "Cartage and Conveyance",
	"4":   "Earthwork Excavation",
	"5":   "Trench Excavation",
	"6":   "Rock Excavation",
	"7":   "Refilling and Compaction",
	"8":   "Dewatering",
	"8a":  "Shoring and Strutting",
	"9":   "Pipe Laying",
	"9a":  "Pipe Jointing",
	"10":  "C.I. Pipes",
	"11":  "D.I. Pipes",
	"11a": "D.I. Specials",
	"11b": "D.I. Fittings",
	"12":  "G.I. Pipes",
	"13":  "PVC Pipes",
	"14":  "HDPE Pipes",
	"15":  "M.S. Pipes",
	"16":  "RCC Pipes",
	"17":  "Stoneware Pipes",
	"18":  "Valves",
	"18a": "Sluice Valves",
	"18b": "Air Valves",
	"19":  "Specials and Fittings",
	"20":  "Hydraulic Testing",
	"21":  "Disinfection",
	"22":  "House Service Connections",
	"23":  "Manholes",
	"24":  "Valve Chambers",
	"25":  "Concrete Works",
	"26":  "Reinforcement",
	"27":  "Masonry",
	"28":  "Plastering",
	"29":  "Painting",
	"30":  "Road Restoration",
	"31":  "Pumping Machinery",
	"32":  "Electrical Works",
	"33":  "Water Meters",
	"34":  "Tube Wells and Bore Wells",
	"35":  "Hand Pumps",
	"36":  "Water Treatment Units",
	"37":  "Chlorination Plant",
	"38":  "Sewage Treatment Units",
	"39":  "Elevated Service Reservoirs",
	"40":  "Sumps and Ground Level Reservoirs",
	"41":  "Sewer Lines",
	"41a": "Sewer Jointing",
	"41b": "Sewer Appurtenances",
	"42":  "Septic Tanks",
	"43":  "Soak Pits",
	"44":  "Drainage",
	"45":  "Miscellaneous Works",
}

// DefaultProfile returns the built-in public health engineering family.
func DefaultProfile() Profile {
	headerRows := 2
	singleRate := true
	categories := make(map[string]string, len(defaultCategories))
	for k, v := range defaultCategories {
		categories[k] = v
	}
	return Profile{
		Name:              "public-health",
		HeaderRows:        &headerRows,
		Columns:           &Columns{Serial: 0, ItemNo: 1, Description: 2, Unit: 3, Rate: 4},
		CompoundItems:     []string{"8a", "9a", "11a", "11b", "18a", "18b", "41a", "41b"},
		Categories:        categories,
		DefaultCategory:   DefaultCategory,
		SectionPattern:    `^\d+\.?\s*[A-Za-z]?\.?$`,
		SubSectionPattern: `^[a-z]$`,
		AutoSubSectionPatterns: []string{
			`(?i)\bG\.\s*I\.\s*PIPES\b`,
			`(?i)\b(?:PVC\s*/\s*HDPE|HDPE\s*/\s*PVC)\s+PIPES\b`,
		},
		SkipPatterns: []string{
			`(?i)^DIAMETER OF PIPE`,
			`(?i)^DIA\.?\s+(?:in|of)\b`,
			`(?i)^NOTE\b`,
		},
		SkipIndent:         4,
		DimensionSuffix:    `(?i)\s*mm\.?$`,
		SingleRateSections: &singleRate,
	}
}

// LoadProfile reads a YAML profile; fields it leaves unset inherit DefaultProfile.
func LoadProfile(path string) (Profile, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(blob, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p.withDefaults(), nil
}

func (p Profile) withDefaults() Profile {
	def := DefaultProfile()
	if p.Name == "" {
		p.Name = def.Name
	}
	if p.HeaderRows == nil {
		p.HeaderRows = def.HeaderRows
	}
	if p.Columns == nil {
		p.Columns = def.Columns
	}
	if p.CompoundItems == nil {
		p.CompoundItems = def.CompoundItems
	}
	if len(p.Categories) == 0 {
		p.Categories = def.Categories
	}
	if p.DefaultCategory == "" {
		p.DefaultCategory = def.DefaultCategory
	}
	if p.SectionPattern == "" {
		p.SectionPattern = def.SectionPattern
	}
	if p.SubSectionPattern == "" {
		p.SubSectionPattern = def.SubSectionPattern
	}
	if p.AutoSubSectionPatterns == nil {
		p.AutoSubSectionPatterns = def.AutoSubSectionPatterns
	}
	if p.SkipPatterns == nil {
		p.SkipPatterns = def.SkipPatterns
	}
	if p.SkipIndent == 0 {
		p.SkipIndent = def.SkipIndent
	}
	if p.DimensionSuffix == "" {
		p.DimensionSuffix = def.DimensionSuffix
	}
	if p.SingleRateSections == nil {
		p.SingleRateSections = def.SingleRateSections
	}
	return p
}

// Rules is a compiled Profile, ready to normalize and classify rows.
type Rules struct {
	Name       string
	HeaderRows int
	Columns    Columns

	compound       map[string]struct{}
	categories     *CategoryResolver
	sectionRe      *regexp.Regexp
	subSectionRe   *regexp.Regexp
	autoSubRe      []*regexp.Regexp
	skipRe         []*regexp.Regexp
	skipIndent     int
	dimensionRe    *regexp.Regexp
	singleRateRows bool
}

func (p Profile) Compile() (*Rules, error) {
	p = p.withDefaults()
	r := &Rules{
		Name:           p.Name,
		HeaderRows:     *p.HeaderRows,
		Columns:        *p.Columns,
		compound:       map[string]struct{}{},
		categories:     NewCategoryResolver(p.Categories, p.DefaultCategory),
		skipIndent:     p.SkipIndent,
		singleRateRows: *p.SingleRateSections,
	}
	for _, key := range p.CompoundItems {
		r.compound[util.CanonicalKey(key)] = struct{}{}
	}

	var err error
	if r.sectionRe, err = compilePattern("section_pattern", p.SectionPattern); err != nil {
		return nil, err
	}
	if r.subSectionRe, err = compilePattern("sub_section_pattern", p.SubSectionPattern); err != nil {
		return nil, err
	}
	if r.dimensionRe, err = compilePattern("dimension_suffix", p.DimensionSuffix); err != nil {
		return nil, err
	}
	for _, expr := range p.AutoSubSectionPatterns {
		re, err := compilePattern("auto_sub_section_patterns", expr)
		if err != nil {
			return nil, err
		}
		r.autoSubRe = append(r.autoSubRe, re)
	}
	for _, expr := range p.SkipPatterns {
		re, err := compilePattern("skip_patterns", expr)
		if err != nil {
			return nil, err
		}
		r.skipRe = append(r.skipRe, re)
	}
	return r, nil
}

// MustCompile is Compile for built-in profiles that are known to be valid.
func (p Profile) MustCompile() *Rules {
	r, err := p.Compile()
	if err != nil {
		panic(err)
	}
	return r
}

func compilePattern(field, expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("profile %s %q: %w", field, expr, err)
	}
	return re, nil
}

func (r *Rules) Categories() *CategoryResolver {
	return r.categories
}
