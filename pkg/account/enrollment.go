package account

import (
	"strings"
	"sync"

	"ethwallet/pkg/models"

	"github.com/pkg/errors"
)

type EnrollmentState int

const (
	Generated EnrollmentState = iota
	PendingConfirmation
	Confirmed
	Abandoned
)

func (s EnrollmentState) String() string {
	switch s {
	case Generated:
		return "generated"
	case PendingConfirmation:
		return "pending_confirmation"
	case Confirmed:
		return "confirmed"
	case Abandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Enrollment walks a freshly generated account through the "write down and
// re-enter your phrase" step. Only Confirm hands out the account.
type Enrollment struct {
	mu       sync.Mutex
	state    EnrollmentState
	mnemonic string
	account  *Account
}

// Enroll generates a new account and returns it wrapped in an enrollment.
func (m *Manager) Enroll() (*Enrollment, error) {
	acc, phrase, err := m.GenerateNew()
	if err != nil {
		return nil, err
	}
	return &Enrollment{state: Generated, mnemonic: phrase, account: acc}, nil
}

func (e *Enrollment) State() EnrollmentState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Address is safe to show before confirmation.
func (e *Enrollment) Address() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.account == nil {
		return ""
	}
	return e.account.Address()
}

// Reveal returns the mnemonic. It works exactly once.
func (e *Enrollment) Reveal() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Generated {
		return "", errors.Wrapf(models.ErrEnrollmentClosed, "cannot reveal in state %s", e.state)
	}
	e.state = PendingConfirmation
	return e.mnemonic, nil
}

// Confirm compares phrase with the revealed mnemonic after trimming outer
// whitespace. A mismatch leaves the enrollment pending.
func (e *Enrollment) Confirm(phrase string) (*Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != PendingConfirmation {
		return nil, errors.Wrapf(models.ErrEnrollmentClosed, "cannot confirm in state %s", e.state)
	}
	if strings.TrimSpace(phrase) != e.mnemonic {
		return nil, models.ErrMnemonicMismatch
	}
	e.state = Confirmed
	e.mnemonic = ""
	return e.account, nil
}

// Abandon discards the pending account and its mnemonic.
func (e *Enrollment) Abandon() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Confirmed || e.state == Abandoned {
		return
	}
	e.state = Abandoned
	e.mnemonic = ""
	e.account = nil
}
