package main

// FailureReason classifies why a login attempt did not yield a usable session.
type FailureReason string

const (
	// Terminal for the current account: retrying is known to be futile.
	ReasonDetection            FailureReason = "detection"
	ReasonCredentialError      FailureReason = "credential_error"
	ReasonVerificationRequired FailureReason = "verification_required"

	// Retryable within the account's attempt budget.
	ReasonTimeout          FailureReason = "timeout"
	ReasonNoCookies        FailureReason = "no_cookies"
	ReasonValidationFailed FailureReason = "validation_failed"
	ReasonUnknown          FailureReason = "unknown"
)

// OutcomeKind is the coarse result of one login attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetryableFailure
	OutcomeTerminalFailure
)

// AttemptOutcome is the tagged result of a single login attempt. Every exit
// path of the driver maps to exactly one of these; the controller never
// inspects page state itself.
type AttemptOutcome struct {
	Kind    OutcomeKind
	Cookies []RawCookie
	Reason  FailureReason
	Detail  string
}

func SuccessOutcome(cookies []RawCookie) AttemptOutcome {
	return AttemptOutcome{Kind: OutcomeSuccess, Cookies: cookies}
}

func RetryableOutcome(reason FailureReason, detail string) AttemptOutcome {
	return AttemptOutcome{Kind: OutcomeRetryableFailure, Reason: reason, Detail: detail}
}

func TerminalOutcome(reason FailureReason, detail string) AttemptOutcome {
	return AttemptOutcome{Kind: OutcomeTerminalFailure, Reason: reason, Detail: detail}
}

func (o AttemptOutcome) Success() bool {
	return o.Kind == OutcomeSuccess
}

func (o AttemptOutcome) Terminal() bool {
	return o.Kind == OutcomeTerminalFailure
}
