package killstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"killboard-stats/internal/domain"
)

// ErrInvalidKillmail is returned for messages that cannot become a killmail.
var ErrInvalidKillmail = errors.New("invalid killmail")

type wireKillmail struct {
	KillmailID    int64          `json:"killmail_id"`
	KillmailTime  string         `json:"killmail_time"`
	SolarSystemID int64          `json:"solar_system_id"`
	Victim        wireVictim     `json:"victim"`
	Attackers     []wireAttacker `json:"attackers"`
	Zkb           *wireZkb       `json:"zkb"`
}

type wireVictim struct {
	CharacterID json.RawMessage `json:"character_id"`
	ShipTypeID  int64           `json:"ship_type_id"`
}

type wireAttacker struct {
	CharacterID json.RawMessage `json:"character_id"`
	ShipTypeID  int64           `json:"ship_type_id"`
	FinalBlow   bool            `json:"final_blow"`
}

type wireZkb struct {
	TotalValue json.Number `json:"totalValue"`
	Solo       *bool       `json:"solo"`
}

// Decode converts one feed message into a killmail. Malformed character ids
// become nil with a warning; the killmail itself is still usable.
func Decode(data []byte) (*domain.Killmail, []domain.Warning, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var w wireKillmail
	if err := dec.Decode(&w); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidKillmail, err)
	}
	if w.KillmailID <= 0 {
		return nil, nil, fmt.Errorf("%w: missing killmail_id", ErrInvalidKillmail)
	}

	ts, err := time.Parse(time.RFC3339, w.KillmailTime)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: killmail %d: bad killmail_time %q", ErrInvalidKillmail, w.KillmailID, w.KillmailTime)
	}

	km := &domain.Killmail{
		KillmailID:    w.KillmailID,
		Time:          ts.UTC(),
		SolarSystemID: w.SolarSystemID,
		TotalValue:    new(big.Int),
	}
	key := strconv.FormatInt(w.KillmailID, 10)

	var warnings []domain.Warning
	charID := func(raw json.RawMessage, role string) *int64 {
		id, ok := parseCharacterID(raw)
		if !ok {
			warnings = append(warnings, domain.Warning{
				FactKey: key,
				Code:    domain.WarnMalformedCharacterID,
				Detail:  fmt.Sprintf("%s character_id %s", role, string(raw)),
			})
		}
		return id
	}

	km.Victim = domain.Victim{
		CharacterID: charID(w.Victim.CharacterID, "victim"),
		ShipTypeID:  w.Victim.ShipTypeID,
	}
	for i, a := range w.Attackers {
		km.Attackers = append(km.Attackers, domain.Attacker{
			CharacterID: charID(a.CharacterID, fmt.Sprintf("attacker %d", i)),
			ShipTypeID:  a.ShipTypeID,
			FinalBlow:   a.FinalBlow,
		})
	}

	if w.Zkb != nil {
		km.ZkbSolo = w.Zkb.Solo
		if w.Zkb.TotalValue != "" {
			v, err := decimal.NewFromString(w.Zkb.TotalValue.String())
			if err != nil {
				return nil, nil, fmt.Errorf("%w: killmail %d: bad totalValue %q", ErrInvalidKillmail, w.KillmailID, w.Zkb.TotalValue)
			}
			if v.IsNegative() {
				return nil, nil, fmt.Errorf("%w: killmail %d: negative totalValue", ErrInvalidKillmail, w.KillmailID)
			}
			km.TotalValue = v.Round(0).BigInt()
		}
	}

	return km, warnings, nil
}

// parseCharacterID accepts absent, null, positive integers and positive
// integer strings. Anything else is malformed and yields (nil, false).
func parseCharacterID(raw json.RawMessage) (*int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, true
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false
		}
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return nil, false
	}
	return &id, true
}
