package audit

// Writer defines the interface for audit log writers.
//
// Implementations MUST:
//   - Return an error if the write fails (audit fails = run fails)
//   - Sync to persistent storage before returning from Write
//   - Calculate and set the hash chain (HashPrev, Hash)
type Writer interface {
	// Write logs an audit event, chaining it to the previous one.
	Write(event *Event) error

	// Close flushes any pending writes and closes the writer.
	Close() error

	// LastHash returns the hash of the last written event, or
	// "sha256:genesis" if no events have been written.
	LastHash() string
}

// NopWriter discards all events. Used when auditing is disabled.
type NopWriter struct{}

var _ Writer = (*NopWriter)(nil)

func (NopWriter) Write(*Event) error { return nil }
func (NopWriter) Close() error       { return nil }
func (NopWriter) LastHash() string   { return GenesisHash }
