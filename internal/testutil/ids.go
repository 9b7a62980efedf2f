package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
)

var requesterCounter int64

// NewRequesterID returns a process-unique requester id traceable to the
// calling test. Pass t.Name().
func NewRequesterID(prefix, tname string) string {
	id := atomic.AddInt64(&requesterCounter, 1)
	return fmt.Sprintf("%s-%s-%d", prefix, strings.ReplaceAll(tname, `/`, `-_-`), id)
}
