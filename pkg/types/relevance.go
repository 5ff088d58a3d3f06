// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "github.com/rotisserie/eris"

// Relevance is the classifier verdict for a paper.
type Relevance int8

const (
	RelevanceUnknown Relevance = iota
	RelevanceYes
	RelevanceNo
)

func (r Relevance) String() string {
	switch r {
	case RelevanceYes:
		return "yes"
	case RelevanceNo:
		return "no"
	default:
		return "unknown"
	}
}

// MarshalText encodes the verdict as "unknown", "yes" or "no".
func (r Relevance) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText accepts "unknown", "yes" or "no". An empty value is unknown.
func (r *Relevance) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "unknown":
		*r = RelevanceUnknown
	case "yes":
		*r = RelevanceYes
	case "no":
		*r = RelevanceNo
	default:
		return eris.Errorf("invalid relevance %q", string(b))
	}
	return nil
}
