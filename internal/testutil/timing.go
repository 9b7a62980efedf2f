package testutil

import "time"

// ResultTimeout bounds how long tests wait for the pool to deliver.
const ResultTimeout = 5 * time.Second

// PollInterval is the tick period used by TickUntil.
const PollInterval = 2 * time.Millisecond
