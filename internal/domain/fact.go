package domain

import (
	"math/big"
	"time"
)

// Fact is a single tracked event reduced to what the aggregation engine needs.
// Facts are immutable once built; engine code never mutates them.
type Fact struct {
	Key                     string    // unique, stable across reads (decimal killmail id)
	Timestamp               time.Time // event time (UTC)
	PrimaryCharacterID      int64     // actor the fact is primarily about
	ParticipantCharacterIDs []int64   // may contain non-player entries; <= 0 means null/malformed
	Value                   *big.Int  // non-negative magnitude (ISK); nil counts as zero
	PrecomputedSolo         *bool     // hint carried from the source, never trusted for counts
	OpposingPlayers         int       // distinct players on the other side, for facts whose participants exclude them
	Dimension               string    // optional breakdown label (ship type, solar system)
}

// ValueOrZero returns the fact value, treating nil as zero.
func (f *Fact) ValueOrZero() *big.Int {
	if f.Value == nil {
		return new(big.Int)
	}
	return f.Value
}

// Warning codes recorded during aggregation.
const (
	WarnMalformedParticipant = "MALFORMED_PARTICIPANT"
	WarnNegativeValue        = "NEGATIVE_VALUE"
	WarnDuplicateFactKey     = "DUPLICATE_FACT_KEY"
	WarnMalformedCharacterID = "MALFORMED_CHARACTER_ID"
)

// Warning is a non-fatal data problem found while processing a snapshot.
type Warning struct {
	FactKey string
	Code    string
	Detail  string
}
