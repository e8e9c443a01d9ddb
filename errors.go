package predictionmarket

import "errors"

var (
	// ErrConnectionUnavailable means no wallet or provider could be reached
	ErrConnectionUnavailable = errors.New("connection unavailable")

	// ErrUnsupportedNetwork means the connected chain is below the supported threshold
	ErrUnsupportedNetwork = errors.New("unsupported network")

	// ErrNoDeploymentFound means the registry has no deployment for a chain key and contract name
	ErrNoDeploymentFound = errors.New("no deployment found")

	// ErrArtifactUnavailable means the interface descriptor for a deployment could not be loaded
	ErrArtifactUnavailable = errors.New("artifact unavailable")

	// ErrContractCallFailed means a read call against the market contract failed
	ErrContractCallFailed = errors.New("contract call failed")

	// ErrInvalidAmount represents a wager amount that is not a positive finite number
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidSide represents an outcome side outside {A, B}
	ErrInvalidSide = errors.New("invalid side")

	// ErrHandleInvalid means an operation was attempted against a stale or unavailable handle
	ErrHandleInvalid = errors.New("contract handle invalid")

	// ErrStaleResult means an async result was computed against a superseded session epoch
	ErrStaleResult = errors.New("stale result")

	// ErrSubmissionInFlight means a wager is already awaiting settlement
	ErrSubmissionInFlight = errors.New("submission already in flight")
)

// InvalidParamError represents an invalid parameter error with context
type InvalidParamError struct {
	Param   string
	Message string
	Err     error
}

func (e *InvalidParamError) Error() string {
	return e.Param + ": " + e.Message
}

func (e *InvalidParamError) Unwrap() error {
	return e.Err
}
