// Package idhash derives deterministic identifiers from request parameters.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"killboard-stats/internal/domain"
)

// RequestKey identifies one stats computation for caching.
type RequestKey struct {
	Report      string
	Groups      []domain.Group
	Start       time.Time
	End         time.Time
	Granularity domain.Granularity
	TopMetric   domain.TopMetric
	Threshold   string // decimal high value threshold, empty for default
}

// ComputeRequestKey computes a deterministic cache key using SHA256.
// Formula: SHA256(report|start|end|granularity|top|threshold|groups)
// where groups is each group's "id:membershipHash" sorted by id, so edits to
// membership change the key. Returns hex-encoded hash (64 characters).
func ComputeRequestKey(k RequestKey) string {
	groups := make([]string, len(k.Groups))
	for i := range k.Groups {
		groups[i] = k.Groups[i].ID + ":" + ComputeMembershipHash(k.Groups[i].MemberCharacterIDs)
	}
	sort.Strings(groups)

	data := fmt.Sprintf("%s|%d|%d|%s|%s|%s|%s",
		k.Report,
		k.Start.UnixNano(),
		k.End.UnixNano(),
		k.Granularity,
		k.TopMetric,
		k.Threshold,
		strings.Join(groups, ","),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeMembershipHash hashes a member list independent of order and repeats.
// Returns hex-encoded hash (64 characters).
func ComputeMembershipHash(members []int64) string {
	ids := append([]int64(nil), members...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var b strings.Builder
	var prev int64
	for i, id := range ids {
		if i > 0 && id == prev {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.FormatInt(id, 10))
		prev = id
	}

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}
