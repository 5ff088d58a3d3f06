// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// Topic is the subject of a review together with its inclusion and
// exclusion criteria.
type Topic struct {
	Name    string   `json:"name" yaml:"name"`
	Include []string `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// Terms renders criteria as a comma-separated list of quoted terms, or
// "none specified" when there are none.
func Terms(terms []string) string {
	var quoted []string
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			quoted = append(quoted, `"`+t+`"`)
		}
	}
	if len(quoted) == 0 {
		return "none specified"
	}
	return strings.Join(quoted, ", ")
}
