package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var nowUTC = func() time.Time {
	return time.Now().UTC()
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// missingIDs returns the ids in want that are missing from have, in order.
func missingIDs(want, have []int64) []int64 {
	set := make(map[int64]struct{}, len(have))
	for _, id := range have {
		set[id] = struct{}{}
	}
	var missing []int64
	for _, id := range want {
		if _, ok := set[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}
