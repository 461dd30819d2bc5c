package strategy

import (
	"errors"
	"fmt"
	"strings"
)

// Strategy names accepted by FromName.
const (
	NameKills    = "kills"
	NameLosses   = "losses"
	NameActivity = "activity"
)

// ErrUnknownStrategy is returned for a report name with no strategy.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Names lists every registered strategy name.
func Names() []string {
	return []string{NameKills, NameLosses, NameActivity}
}

// FromName creates a Strategy by report name. Matching is case-insensitive;
// an empty name selects kills.
func FromName(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameKills:
		return NewKillsStrategy(), nil
	case NameLosses:
		return NewLossesStrategy(), nil
	case NameActivity:
		return NewActivityStrategy(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}
