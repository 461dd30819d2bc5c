// Package timebucket partitions time ranges into calendar-aligned windows.
package timebucket

import (
	"errors"
	"fmt"
	"time"

	"killboard-stats/internal/domain"
)

var (
	// ErrInvalidRange is returned when start is not before end.
	ErrInvalidRange = errors.New("invalid time range: start must be before end")

	// ErrUnknownGranularity is returned for granularities other than hour, day, week.
	ErrUnknownGranularity = errors.New("unknown granularity")

	// ErrTooManyBuckets is returned when a range would produce more than MaxBuckets windows.
	ErrTooManyBuckets = errors.New("too many buckets")
)

// MaxBuckets bounds the windows of one partition. A leap year of hours fits.
const MaxBuckets = 10_000

// Bucket is one window of a partition together with the facts that fell into it.
type Bucket struct {
	Start time.Time
	End   time.Time
	Facts []domain.Fact
}

// Truncate floors t to the start of its bucket in UTC.
// Week buckets start at midnight of domain.WeekStart.
func Truncate(t time.Time, g domain.Granularity) (time.Time, error) {
	t = t.UTC()
	switch g {
	case domain.GranularityHour:
		return t.Truncate(time.Hour), nil
	case domain.GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	case domain.GranularityWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) - int(domain.WeekStart) + 7) % 7
		return day.AddDate(0, 0, -offset), nil
	default:
		return time.Time{}, ErrUnknownGranularity
	}
}

// Next returns the start of the bucket following the one starting at bucketStart.
// Day and week steps use calendar arithmetic.
func Next(bucketStart time.Time, g domain.Granularity) time.Time {
	switch g {
	case domain.GranularityHour:
		return bucketStart.Add(time.Hour)
	case domain.GranularityWeek:
		return bucketStart.AddDate(0, 0, 7)
	default:
		return bucketStart.AddDate(0, 0, 1)
	}
}

// Count returns how many buckets intersect [start, end) without building them.
func Count(start, end time.Time, g domain.Granularity) (int64, error) {
	if !start.Before(end) {
		return 0, ErrInvalidRange
	}
	first, err := Truncate(start, g)
	if err != nil {
		return 0, err
	}

	// UTC days and weeks have fixed length. Sub saturates for far-off ends,
	// which still yields a count above MaxBuckets.
	step := time.Hour
	switch g {
	case domain.GranularityDay:
		step = 24 * time.Hour
	case domain.GranularityWeek:
		step = 7 * 24 * time.Hour
	}
	span := end.UTC().Sub(first)
	n := int64(span / step)
	if span%step != 0 {
		n++
	}
	return n, nil
}

// CheckLimit returns ErrTooManyBuckets when [start, end) needs more than MaxBuckets windows.
func CheckLimit(start, end time.Time, g domain.Granularity) error {
	n, err := Count(start, end, g)
	if err != nil {
		return err
	}
	if n > MaxBuckets {
		return fmt.Errorf("%w: %d %s buckets, limit %d", ErrTooManyBuckets, n, g, MaxBuckets)
	}
	return nil
}

// Boundaries returns the start of every bucket that intersects [start, end).
// The first boundary is Truncate(start) and may precede start.
func Boundaries(start, end time.Time, g domain.Granularity) ([]time.Time, error) {
	if err := CheckLimit(start, end, g); err != nil {
		return nil, err
	}
	first, err := Truncate(start, g)
	if err != nil {
		return nil, err
	}

	end = end.UTC()
	var out []time.Time
	for b := first; b.Before(end); b = Next(b, g) {
		out = append(out, b)
	}
	return out, nil
}

// Partition places facts into every bucket covering [start, end), including empty ones.
// Facts with timestamps outside [start, end) are not placed anywhere.
// Buckets are returned in chronological order; facts keep their input order.
func Partition(start, end time.Time, g domain.Granularity, facts []domain.Fact) ([]Bucket, error) {
	starts, err := Boundaries(start, end, g)
	if err != nil {
		return nil, err
	}

	buckets := make([]Bucket, len(starts))
	index := make(map[int64]int, len(starts))
	for i, s := range starts {
		buckets[i] = Bucket{Start: s, End: Next(s, g)}
		index[s.Unix()] = i
	}

	for _, f := range facts {
		if !InRange(f.Timestamp, start, end) {
			continue
		}
		b, err := Truncate(f.Timestamp, g)
		if err != nil {
			return nil, err
		}
		i, ok := index[b.Unix()]
		if !ok {
			continue
		}
		buckets[i].Facts = append(buckets[i].Facts, f)
	}

	return buckets, nil
}

// InRange reports whether t lies in the half-open interval [start, end).
func InRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
