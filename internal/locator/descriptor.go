package locator

import (
	"encoding/json"
	"regexp"
	"sort"
)

// Kind identifies one locator strategy technique.
type Kind string

const (
	KindAria        Kind = "aria"
	KindTestAttr    Kind = "testAttr"
	KindName        Kind = "name"
	KindPlaceholder Kind = "placeholder"
	KindID          Kind = "id"
	KindCSS         Kind = "css"
	KindTextXPath   Kind = "textXPath"
	KindCSSPath     Kind = "cssPath"
	KindXPath       Kind = "xpath"
)

// Strategy is one independent technique for re-finding an element.
type Strategy struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

// Descriptor is the full ordered strategy set plus metadata recorded for one
// element. Immutable once stored; order encodes resolution priority.
type Descriptor struct {
	Strategies []Strategy `json:"strategies"`
	// Text is the best-effort human label, used for fuzzy fallback and
	// assertion matching.
	Text string `json:"descriptor_text,omitempty"`
	// TagName scopes fuzzy search and text based XPath.
	TagName string `json:"tag_name,omitempty"`
	// Legacy holds the single CSS selector of the pre-descriptor step
	// format. Tried after all structured strategies fail.
	Legacy string `json:"selector,omitempty"`
}

// UnmarshalJSON accepts both the structured descriptor object and the legacy
// format where a step's locator was a bare CSS selector string.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var legacy string
	if err := json.Unmarshal(data, &legacy); err == nil {
		*d = Descriptor{Legacy: legacy}
		return nil
	}

	type alias Descriptor
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*d = Descriptor(decoded)
	return nil
}

// Relative robustness of each strategy kind. Lower is tried first.
var kindPriority = map[Kind]int{
	KindTestAttr:    0,
	KindName:        1,
	KindPlaceholder: 2,
	KindID:          3,
	KindAria:        4,
	KindCSS:         5,
	KindTextXPath:   6,
	KindCSSPath:     7,
	KindXPath:       8,
}

var positionalQualifier = regexp.MustCompile(`:nth-(?:child|of-type)\(\d+\)|\[\d+\]`)

// HasPositionalQualifier reports whether a strategy value leans on structural
// position (an nth-child/nth-of-type index or an XPath sibling index), which
// breaks as soon as a sibling is inserted or removed.
func HasPositionalQualifier(value string) bool {
	return positionalQualifier.MatchString(value)
}

// orderStrategies applies the two-phase robustness ordering: first a stable
// sort into kind priority buckets, then a stable partition that moves every
// strategy containing a positional qualifier after all strategies without
// one. The result guarantees the resolver tries stable semantic locators
// before anything position dependent.
func orderStrategies(strategies []Strategy) []Strategy {
	out := make([]Strategy, len(strategies))
	copy(out, strategies)

	sort.SliceStable(out, func(i, j int) bool {
		return kindPriority[out[i].Kind] < kindPriority[out[j].Kind]
	})

	partitioned := make([]Strategy, 0, len(out))
	var positional []Strategy
	for _, s := range out {
		if HasPositionalQualifier(s.Value) {
			positional = append(positional, s)
			continue
		}
		partitioned = append(partitioned, s)
	}
	return append(partitioned, positional...)
}
