package account

import (
	"testing"

	"ethwallet/pkg/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollment_Confirm(t *testing.T) {
	e, err := NewManager(nil).Enroll()
	require.NoError(t, err)
	assert.Equal(t, Generated, e.State())
	assert.NotEmpty(t, e.Address())

	_, err = e.Confirm("anything")
	assert.True(t, errors.Is(err, models.ErrEnrollmentClosed))

	phrase, err := e.Reveal()
	require.NoError(t, err)
	assert.Equal(t, PendingConfirmation, e.State())

	_, err = e.Reveal()
	assert.True(t, errors.Is(err, models.ErrEnrollmentClosed), "mnemonic is shown once")

	_, err = e.Confirm(phrase + " extra")
	assert.True(t, errors.Is(err, models.ErrMnemonicMismatch))
	assert.Equal(t, PendingConfirmation, e.State())

	acc, err := e.Confirm("\n  " + phrase + "  ")
	require.NoError(t, err)
	assert.Equal(t, e.Address(), acc.Address())
	assert.Equal(t, Confirmed, e.State())

	_, err = e.Confirm(phrase)
	assert.True(t, errors.Is(err, models.ErrEnrollmentClosed))
}

func TestEnrollment_ConfirmIsExact(t *testing.T) {
	e, err := NewManager(nil).Enroll()
	require.NoError(t, err)
	phrase, err := e.Reveal()
	require.NoError(t, err)

	// inner whitespace and case are not normalized
	_, err = e.Confirm(" " + upperFirst(phrase))
	assert.True(t, errors.Is(err, models.ErrMnemonicMismatch))
}

func TestEnrollment_Abandon(t *testing.T) {
	e, err := NewManager(nil).Enroll()
	require.NoError(t, err)
	phrase, err := e.Reveal()
	require.NoError(t, err)

	e.Abandon()
	assert.Equal(t, Abandoned, e.State())
	assert.Empty(t, e.Address())

	_, err = e.Confirm(phrase)
	assert.True(t, errors.Is(err, models.ErrEnrollmentClosed))
}

func TestEnrollmentState_String(t *testing.T) {
	assert.Equal(t, "pending_confirmation", PendingConfirmation.String())
	assert.Equal(t, "unknown", EnrollmentState(42).String())
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
