package domain

import "errors"

var (
	// ErrConnectionFailed indicates the RPC endpoint is unreachable. Fatal at
	// start-up; retried with backoff by the scheduler afterwards.
	ErrConnectionFailed = errors.New("connection failed")
	// ErrPriceUnavailable indicates no live quote exists for a pair or oracle.
	// The affected orders are skipped for the cycle.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrExecution indicates a rejection detected before or during submission
	// (simulation revert, invalid order). Not retried for this trigger event.
	ErrExecution = errors.New("execution rejected")
	// ErrTxFailed indicates a transaction that confirmed but reverted.
	ErrTxFailed = errors.New("transaction failed")
	// ErrTxTimeout indicates the confirmation window elapsed with the
	// transaction still unconfirmed. The outcome on-chain is unknown.
	ErrTxTimeout = errors.New("transaction confirmation timed out")
	// ErrFeeTooLow indicates the chain rejected or is unlikely to include the
	// transaction at the offered fee; the coordinator may escalate and retry.
	ErrFeeTooLow = errors.New("fee too low")
	// ErrFeeCeiling indicates the escalated fee would exceed the configured
	// ceiling.
	ErrFeeCeiling = errors.New("fee exceeds configured ceiling")

	ErrNotFound      = errors.New("not found")
	ErrNotConnected  = errors.New("client not connected")
	ErrOrderInFlight = errors.New("order already has an active coordinator")
	ErrLockHeld      = errors.New("lock already held")
)
