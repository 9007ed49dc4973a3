package main

import "fmt"

// Account is one credential record from configuration, immutable for the run.
type Account struct {
	Email    string
	Password string
}

// RotationPolicy bounds how the controller walks the pool.
type RotationPolicy struct {
	MaxRetriesPerAccount int
	FailoverEnabled      bool
}

// CredentialPool is the fixed, ordered set of enabled accounts. Configuration
// order is attempt order; there is no reordering or randomization, so a failed
// run can be replayed against the same sequence.
type CredentialPool struct {
	accounts []Account
	policy   RotationPolicy
}

func NewCredentialPool(config *Config) (*CredentialPool, error) {
	var accounts []Account
	for _, acct := range config.Accounts {
		if !acct.Enabled {
			continue
		}
		accounts = append(accounts, Account{
			Email:    acct.Email,
			Password: acct.Password,
		})
	}

	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: no enabled accounts in pool", ErrConfigInvalid)
	}

	return &CredentialPool{
		accounts: accounts,
		policy: RotationPolicy{
			MaxRetriesPerAccount: config.Rotation.MaxRetries,
			FailoverEnabled:      config.Rotation.Failover,
		},
	}, nil
}

// Accounts returns the pool in attempt order. Callers must not mutate it.
func (p *CredentialPool) Accounts() []Account {
	return p.accounts
}

func (p *CredentialPool) Policy() RotationPolicy {
	return p.policy
}

func (p *CredentialPool) Size() int {
	return len(p.accounts)
}
