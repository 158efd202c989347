package executor

import "errors"

var (
	// ErrBusy is returned by ExecuteProposals/ExecuteDemoteProposals when
	// an execution is already in flight.
	ErrBusy = errors.New("an execution is already in progress")

	// ErrInvalidArgument is returned when a required dependency (the load
	// monitor) is nil.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConcurrentReassignment is returned when the control plane
	// reports partition reassignments in flight that this Executor did
	// not initiate.
	ErrConcurrentReassignment = errors.New("partitions are already being reassigned outside this execution")

	// ErrShuttingDown is returned by ExecuteProposals/ExecuteDemoteProposals
	// once Shutdown has been called.
	ErrShuttingDown = errors.New("executor is shutting down")
)
