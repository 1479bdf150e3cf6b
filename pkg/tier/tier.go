/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package tier derives loyalty tiers from point totals. Both the shop ledger and the
// holder wallet use this package so the two copies of a credential can never disagree
// on the tier for a given points value.
package tier

// Level is a discrete loyalty tier.
type Level string

// Supported tiers, lowest to highest.
const (
	Base     Level = "Base"
	Bronze   Level = "Bronze"
	Silver   Level = "Silver"
	Gold     Level = "Gold"
	Platinum Level = "Platinum"
)

// Point thresholds. These values are the single source of truth for tier derivation.
const (
	bronzeMin   = 50
	silverMin   = 100
	goldMin     = 250
	platinumMin = 500
)

// FromPoints maps a points total to its tier.
func FromPoints(points int) Level {
	switch {
	case points >= platinumMin:
		return Platinum
	case points >= goldMin:
		return Gold
	case points >= silverMin:
		return Silver
	case points >= bronzeMin:
		return Bronze
	default:
		return Base
	}
}

// nolint:gochecknoglobals
var ranks = map[Level]int{
	Base:     0,
	Bronze:   1,
	Silver:   2,
	Gold:     3,
	Platinum: 4,
}

// IsValid reports whether l is a known tier.
func (l Level) IsValid() bool {
	_, ok := ranks[l]

	return ok
}

// Cmp returns -1, 0 or 1 if l is lower than, equal to or higher than other.
// Unknown levels rank below Base.
func (l Level) Cmp(other Level) int {
	a, b := ranks[l], ranks[other]

	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
