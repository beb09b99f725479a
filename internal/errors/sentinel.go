package errors

// Sentinels compared with errors.Is; matching is by code.
var (
	ErrNoRegion          = New(NoRegion, "no region selected")
	ErrAlreadyRunning    = New(AlreadyRunning, "capture already running")
	ErrNotRunning        = New(NotRunning, "capture not running")
	ErrDimensionMismatch = New(DimensionMismatch, "images differ in size")
)
