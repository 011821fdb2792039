package bom

import (
	"io"
	"os"
	"sort"
	"strings"

	"github.com/step-visualizer/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// ParseDisplayRules parses a YAML viewer-rules file mapping node-name
// patterns to display colors.
func ParseDisplayRules(filePath string) (*models.DisplayRules, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseDisplayRulesFromReader(file)
}

// ParseDisplayRulesFromReader parses rules from an io.Reader.
func ParseDisplayRulesFromReader(r io.Reader) (*models.DisplayRules, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return ParseDisplayRulesFromBytes(data)
}

// ParseDisplayRulesFromBytes parses rules from raw YAML bytes. Rules are
// returned sorted by descending priority; the default color falls back to
// the standard mid-gray.
func ParseDisplayRulesFromBytes(data []byte) (*models.DisplayRules, error) {
	var rules models.DisplayRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, err
	}

	if rules.DefaultColor == "" {
		rules.DefaultColor = models.DefaultColor().Hex
	}
	sort.SliceStable(rules.Rules, func(i, j int) bool {
		return rules.Rules[i].Priority > rules.Rules[j].Priority
	})

	return &rules, nil
}

// ResolveColor returns the display color for a node under the given rules:
// the highest-priority rule whose pattern is contained in the node name and
// whose kind matches, or the default color.
func ResolveColor(rules *models.DisplayRules, node models.AssemblyNode) string {
	for _, rule := range rules.Rules {
		if rule.Kind != "" && rule.Kind != string(node.Kind) {
			continue
		}
		if strings.Contains(strings.ToLower(node.Name), strings.ToLower(rule.Pattern)) {
			return rule.Color
		}
	}
	if node.Color != nil && node.Color.Hex != "" {
		return node.Color.Hex
	}
	return rules.DefaultColor
}
