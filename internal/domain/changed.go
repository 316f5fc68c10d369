package domain

import (
	"reflect"
	"time"
)

// Changed reports whether *cur* differs from *prev* in anything but the
// fetch timestamp. The publisher uses it to skip re-transmitting a snapshot
// whose content is identical to the last one sent.
func Changed(prev, cur *Snapshot) bool {
	if prev == nil && cur == nil {
		return false
	}
	if prev == nil || cur == nil {
		return true
	}

	p, c := *prev, *cur // copy
	p.FetchedAt = time.Time{}
	c.FetchedAt = time.Time{}

	return !reflect.DeepEqual(p, c)
}
