package engine

// SaveScheduler coalesces persistence requests within one batch-handling
// cycle into a single flush. RequestSave sets a pending flag; the driver
// calls Flush exactly once after the batch completes. The flag is
// unsynchronized: both calls happen on the batch-delivery goroutine.
type SaveScheduler struct {
	pending bool
	persist func() error
}

// NewSaveScheduler returns a scheduler that flushes through persist.
func NewSaveScheduler(persist func() error) *SaveScheduler {
	return &SaveScheduler{persist: persist}
}

// RequestSave marks a flush as needed. Repeated calls are no-ops.
func (s *SaveScheduler) RequestSave() {
	s.pending = true
}

// Pending reports whether a flush is outstanding.
func (s *SaveScheduler) Pending() bool {
	return s.pending
}

// Flush performs the single deferred persistence call if one is pending.
// The flag is cleared before persisting, so a failed flush is not retried
// implicitly.
func (s *SaveScheduler) Flush() error {
	if !s.pending {
		return nil
	}
	s.pending = false
	return s.persist()
}
