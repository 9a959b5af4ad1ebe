package ports

// Scratch is a worker-private directory shared with the test container.
type Scratch interface {
	// WriteTestScript replaces the test script for the case in flight.
	WriteTestScript(source string) error
	// MountSource is the host path to bind into the container.
	MountSource() string
	Close() error
}

// ScratchProvider creates one Scratch per worker.
type ScratchProvider interface {
	NewScratch(workerID int) (Scratch, error)
}
