// Package scanprofilemodule runs named scan profiles: an ordered list of tag
// layers and a tag query selecting the assets to process.
package scanprofilemodule

import (
	"encoding/json"
	"strings"

	"github.com/mantonx/mediatags/internal/modules/generatormodule"
	"github.com/mantonx/mediatags/internal/modules/tagindexmodule"
)

// Built-in profile ids
const (
	ProfileQuickPass = "quick_pass"
	ProfileDeepPass  = "deep_pass"
)

// legacyDeepPassTags is the ai_quick include_any filter of an older deep_pass
// default. Documents still carrying it are replaced by the current defaults.
var legacyDeepPassTags = []string{"person_detected", "portrait"}

// Filter selects the targets of a profile run when no explicit asset ids are given
type Filter struct {
	tagindexmodule.Query `yaml:",inline"`

	// AssetTypes restricts targets to catalog assets of these media kinds
	AssetTypes []string `json:"asset_type,omitempty" yaml:"asset_type,omitempty"`
}

// UnmarshalJSON accepts both the current clause keys and the older
// include_layers_any, include_layers_all and exclude_layers spellings.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw struct {
		IncludeAny       map[string][]string `json:"include_any"`
		IncludeAll       map[string][]string `json:"include_all"`
		Exclude          map[string][]string `json:"exclude"`
		LegacyIncludeAny map[string][]string `json:"include_layers_any"`
		LegacyIncludeAll map[string][]string `json:"include_layers_all"`
		LegacyExclude    map[string][]string `json:"exclude_layers"`
		AssetTypes       []string            `json:"asset_type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.IncludeAny = firstNonNil(raw.IncludeAny, raw.LegacyIncludeAny)
	f.IncludeAll = firstNonNil(raw.IncludeAll, raw.LegacyIncludeAll)
	f.Exclude = firstNonNil(raw.Exclude, raw.LegacyExclude)
	f.AssetTypes = raw.AssetTypes
	return nil
}

func firstNonNil(a, b map[string][]string) map[string][]string {
	if a != nil {
		return a
	}
	return b
}

// Profile is a named scan pipeline definition
type Profile struct {
	Label  string   `json:"label" yaml:"label"`
	Layers []string `json:"layers" yaml:"layers"`
	Filter Filter   `json:"filter" yaml:"filter"`
}

// DefaultProfiles returns the built-in profiles written on first run
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		ProfileQuickPass: {
			Label:  "Quick Sort Pass",
			Layers: []string{generatormodule.LayerBasic, generatormodule.LayerAIQuick},
			Filter: Filter{AssetTypes: []string{"image", "video"}},
		},
		ProfileDeepPass: {
			Label:  "Deep AI Pass",
			Layers: []string{generatormodule.LayerAIDeep},
			Filter: Filter{Query: tagindexmodule.Query{
				IncludeAny: map[string][]string{
					generatormodule.LayerAIQuick: {"portrait", "animal"},
				},
			}},
		},
	}
}

// hasLegacyFingerprint reports whether the deep_pass filter still matches the
// legacy default, compared case-insensitively as a set.
func hasLegacyFingerprint(profiles map[string]Profile) bool {
	deep, ok := profiles[ProfileDeepPass]
	if !ok {
		return false
	}
	have := lowerSet(deep.Filter.IncludeAny[generatormodule.LayerAIQuick])
	want := lowerSet(legacyDeepPassTags)
	if len(have) != len(want) {
		return false
	}
	for t := range want {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}

func lowerSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t != "" {
			set[strings.ToLower(t)] = struct{}{}
		}
	}
	return set
}

func copyProfile(p Profile) Profile {
	out := Profile{
		Label:  p.Label,
		Layers: append([]string(nil), p.Layers...),
		Filter: Filter{
			Query: tagindexmodule.Query{
				IncludeAny: copyClause(p.Filter.IncludeAny),
				IncludeAll: copyClause(p.Filter.IncludeAll),
				Exclude:    copyClause(p.Filter.Exclude),
			},
			AssetTypes: append([]string(nil), p.Filter.AssetTypes...),
		},
	}
	return out
}

func copyClause(c map[string][]string) map[string][]string {
	if c == nil {
		return nil
	}
	out := make(map[string][]string, len(c))
	for k, v := range c {
		out[k] = append([]string(nil), v...)
	}
	return out
}
