package models

// DisplayRules defines the YAML configuration for viewer coloring of BOM nodes.
// Rules are matched against node names; the first match by priority wins.
type DisplayRules struct {
	DefaultColor string      `json:"defaultColor" yaml:"default_color"`
	Rules        []ColorRule `json:"rules" yaml:"rules"`
}

// ColorRule colors nodes whose name contains Pattern. Higher priority rules
// are evaluated first.
type ColorRule struct {
	Pattern  string `json:"pattern" yaml:"pattern"`
	Kind     string `json:"kind,omitempty" yaml:"kind,omitempty"` // "part", "assembly" or empty for both
	Color    string `json:"color" yaml:"color"`
	Priority int    `json:"priority" yaml:"priority"`
}

// RulesInfo contains metadata about an uploaded rules file.
type RulesInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	UploadedAt string `json:"uploadedAt"`
	RulesCount int    `json:"rulesCount"`
}
