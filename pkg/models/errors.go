package models

import "github.com/pkg/errors"

var (
	ErrInvalidCredential = errors.New("invalid mnemonic or private key")
	ErrUnknownNetwork    = errors.New("unknown network")
	ErrFetchExhausted    = errors.New("fetch exhausted")
	ErrInvalidInput      = errors.New("invalid input")
	ErrSubmissionFailed  = errors.New("submission failed")

	ErrMnemonicMismatch = errors.New("mnemonic does not match")
	ErrEnrollmentClosed = errors.New("enrollment is no longer pending")
)
