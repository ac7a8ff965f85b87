package rewrite

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"sqlbridge/internal/domain"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// TargetCaps describes what the target dialect can express. Rules consult it
// instead of hard-coding target behavior.
type TargetCaps struct {
	// SupportsRecursion is false when the target has no recursive WITH.
	SupportsRecursion bool `yaml:"supports_recursion"`

	// TransactionModel is "per-statement" (multi-statement transactions are
	// elided) or "session" (transaction control is kept and flagged).
	TransactionModel string `yaml:"transaction_model"`

	// FrameUnits maps source window frame units to target ones, e.g.
	// {"range": "rows"}. Missing or identity entries leave frames untouched.
	FrameUnits map[string]string `yaml:"frame_units"`
}

// RuleSetting is one rule's per-catalog configuration.
type RuleSetting struct {
	ID         string            `yaml:"id"`
	Enabled    *bool             `yaml:"enabled,omitempty"`
	Confidence domain.Confidence `yaml:"confidence,omitempty"`
}

// catalogFile is the on-disk YAML shape.
type catalogFile struct {
	Version string        `yaml:"version"`
	Source  string        `yaml:"source"`
	Target  string        `yaml:"target"`
	Caps    TargetCaps    `yaml:"capabilities"`
	Rules   []RuleSetting `yaml:"rules"`
}

// Catalog is an immutable snapshot of the rule set for one dialect pair.
// Results always carry the Version they were computed against; replacing a
// catalog never mutates an existing snapshot.
type Catalog struct {
	Version string
	Source  domain.Dialect
	Target  domain.Dialect
	Caps    TargetCaps

	rules []*boundRule
}

// Rules returns the IDs of the enabled rules in application order.
func (c *Catalog) Rules() []string {
	ids := make([]string, 0, len(c.rules))
	for _, r := range c.rules {
		ids = append(ids, r.ID())
	}
	return ids
}

// ParseCatalog builds a catalog snapshot from YAML. Unknown rule IDs and
// malformed settings are configuration errors: a bad catalog must fail
// loudly at load time, never silently skip rules at rewrite time.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, domain.ErrConfig("parse rule catalog: %v", err)
	}
	if cf.Version == "" {
		return nil, domain.ErrConfig("rule catalog has no version")
	}
	switch cf.Caps.TransactionModel {
	case "", "per-statement", "session":
	default:
		return nil, domain.ErrConfig("unknown transaction_model %q", cf.Caps.TransactionModel)
	}
	if cf.Caps.TransactionModel == "" {
		cf.Caps.TransactionModel = "per-statement"
	}

	specs := builtinRules()
	byID := make(map[string]ruleSpec, len(specs))
	for _, s := range specs {
		byID[s.ID] = s
	}

	settings := make(map[string]RuleSetting, len(cf.Rules))
	for _, rs := range cf.Rules {
		if _, ok := byID[rs.ID]; !ok {
			return nil, domain.ErrConfig("rule catalog references unknown rule %q", rs.ID)
		}
		switch rs.Confidence {
		case "", domain.ConfidenceSafe, domain.ConfidenceReview:
		default:
			return nil, domain.ErrConfig("rule %q has unknown confidence %q", rs.ID, rs.Confidence)
		}
		if _, dup := settings[rs.ID]; dup {
			return nil, domain.ErrConfig("rule %q configured twice", rs.ID)
		}
		settings[rs.ID] = rs
	}

	cat := &Catalog{
		Version: cf.Version,
		Source:  domain.Dialect(cf.Source),
		Target:  domain.Dialect(cf.Target),
		Caps:    cf.Caps,
	}
	if cat.Source == "" {
		cat.Source = domain.DialectTSQL
	}
	if cat.Target == "" {
		cat.Target = domain.DialectDatabricks
	}

	// Binding preserves built-in order so application is deterministic
	// regardless of the order settings appear in the file.
	for _, s := range specs {
		rs := settings[s.ID]
		if rs.Enabled != nil && !*rs.Enabled {
			continue
		}
		conf := s.Confidence
		if rs.Confidence != "" {
			conf = rs.Confidence
		}
		cat.rules = append(cat.rules, &boundRule{spec: s, confidence: conf, caps: cf.Caps})
	}
	return cat, nil
}

// LoadCatalog reads a catalog snapshot from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ErrConfig("read rule catalog %s: %v", path, err)
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the embedded T-SQL to Databricks catalog.
func DefaultCatalog() *Catalog {
	cat, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded rule catalog is invalid: %v", err))
	}
	return cat
}
