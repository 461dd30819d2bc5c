package memory

import (
	"math/big"

	"killboard-stats/internal/domain"
)

// copyKillmail deep-copies km so callers never share slices or pointers with the store.
func copyKillmail(km *domain.Killmail) *domain.Killmail {
	c := *km
	c.Victim.CharacterID = copyInt64(km.Victim.CharacterID)
	if km.Attackers != nil {
		c.Attackers = make([]domain.Attacker, len(km.Attackers))
		for i, a := range km.Attackers {
			a.CharacterID = copyInt64(a.CharacterID)
			c.Attackers[i] = a
		}
	}
	if km.TotalValue != nil {
		c.TotalValue = new(big.Int).Set(km.TotalValue)
	}
	if km.ZkbSolo != nil {
		v := *km.ZkbSolo
		c.ZkbSolo = &v
	}
	return &c
}

func copyGroup(g *domain.Group) *domain.Group {
	c := *g
	c.MemberCharacterIDs = append([]int64(nil), g.MemberCharacterIDs...)
	c.MainCharacterID = copyInt64(g.MainCharacterID)
	return &c
}

func copySnapshot(r *domain.SnapshotRow) *domain.SnapshotRow {
	c := *r
	if r.Value != nil {
		c.Value = new(big.Int).Set(r.Value)
	}
	return &c
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
