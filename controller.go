package main

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrExhausted means every account in the pool failed. The prior session file
// is left untouched and still usable by consumers until the next run.
var ErrExhausted = errors.New("all accounts exhausted")

// attemptDriver is what the controller needs from the login driver.
type attemptDriver interface {
	AttemptLogin(account Account, attempt int) AttemptOutcome
}

// sessionPersister is what the controller needs from the session store.
type sessionPersister interface {
	Persist(cookies []RawCookie) (int, error)
}

// RunResult is the terminal success outcome of one run.
type RunResult struct {
	Account   string
	Persisted int
}

// RotationController walks the pool strictly sequentially: bounded retries
// per account, then failover to the next. All timing and retry decisions live
// here; the driver only classifies single attempts.
type RotationController struct {
	pool     *CredentialPool
	driver   attemptDriver
	store    sessionPersister
	diag     Diagnostics
	validate func([]RawCookie) bool

	backoffBase time.Duration
	jitterRange time.Duration
	sleep       func(time.Duration)
	rand        *rand.Rand
}

func NewRotationController(pool *CredentialPool, driver attemptDriver, store sessionPersister, diag Diagnostics, config *Config) *RotationController {
	return &RotationController{
		pool:        pool,
		driver:      driver,
		store:       store,
		diag:        diag,
		validate:    ValidateCookies,
		backoffBase: time.Duration(config.BackoffBaseSeconds) * time.Second,
		jitterRange: time.Duration(config.BackoffJitterSeconds) * time.Second,
		sleep:       time.Sleep,
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run executes the acquisition state machine until one account yields a
// validated, persisted session or the pool is exhausted. Store failures are
// fatal and surface as-is, never as ErrExhausted.
func (c *RotationController) Run() (*RunResult, error) {
	policy := c.pool.Policy()

	for i, account := range c.pool.Accounts() {
		if i > 0 && !policy.FailoverEnabled {
			c.diag.Warn("Failover disabled, not trying remaining accounts", "remaining", c.pool.Size()-i)
			break
		}

		result, err := c.tryAccount(account, policy.MaxRetriesPerAccount)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}

		c.diag.Warn("Account abandoned", "account", account.Email, "position", i+1, "pool_size", c.pool.Size())
	}

	return nil, ErrExhausted
}

// tryAccount runs up to maxRetries attempts for one account. A nil, nil
// return means the account's budget is spent and the caller should fail over.
func (c *RotationController) tryAccount(account Account, maxRetries int) (*RunResult, error) {
	for attempt := 1; attempt <= maxRetries; attempt++ {
		outcome := c.driver.AttemptLogin(account, attempt)

		switch outcome.Kind {
		case OutcomeSuccess:
			if !c.validate(outcome.Cookies) {
				// The harvest came back incomplete. Counts against the same
				// budget as any other retryable failure.
				c.diag.Warn("Session validation failed",
					"account", account.Email, "attempt", attempt, "cookies", len(outcome.Cookies))
				outcome = RetryableOutcome(ReasonValidationFailed, "required session tokens missing")
				break
			}

			persisted, err := c.store.Persist(outcome.Cookies)
			if err != nil {
				return nil, fmt.Errorf("session store failure: %w", err)
			}

			c.diag.Info("Session acquired",
				"account", account.Email, "attempt", attempt, "persisted", persisted)
			return &RunResult{Account: account.Email, Persisted: persisted}, nil

		case OutcomeTerminalFailure:
			c.diag.Warn("Terminal failure, abandoning account",
				"account", account.Email, "attempt", attempt,
				"reason", string(outcome.Reason), "detail", outcome.Detail)
			return nil, nil
		}

		c.diag.Warn("Attempt failed",
			"account", account.Email, "attempt", attempt,
			"reason", string(outcome.Reason), "detail", outcome.Detail)

		if attempt < maxRetries {
			delay := c.backoff(attempt)
			c.diag.Info("Backing off before retry", "account", account.Email, "delay", delay.String())
			c.sleep(delay)
		}
	}

	return nil, nil
}

// backoff grows linearly with the attempt number plus uniform jitter, so
// consecutive retries never land on a fixed cadence.
func (c *RotationController) backoff(attempt int) time.Duration {
	delay := time.Duration(attempt) * c.backoffBase
	if c.jitterRange > 0 {
		delay += time.Duration(c.rand.Int63n(int64(time.Duration(attempt) * c.jitterRange)))
	}
	return delay
}
