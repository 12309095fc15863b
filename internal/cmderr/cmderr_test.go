package cmderr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessagesInterpolate(t *testing.T) {
	assert.Equal(t, "You cannot perform a ban on one of the users you mentioned", CannotActionUser("BAN", true).Message)
	assert.Equal(t, "You cannot perform a kick on this user", CannotActionUser("KICK", false).Message)
	assert.Equal(t, "All of the members you mentioned have already been banned.", AlreadyRemovedUsers(true, false).Message)
	assert.Equal(t, "The member you mentioned has already left or been kicked.", AlreadyRemovedUsers(false, true).Message)
	assert.Equal(t, "Provided flag 'foo' is not valid, valid flags for this command are: days, silent", InvalidFlag("foo", []string{"days", "silent"}).Message)
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("run: %w", ProvideReason())
	assert.Equal(t, Validation, KindOf(err))
	assert.Equal(t, Transport, KindOf(errors.New("boom")))

	cmdErr, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, CodeProvideReason, cmdErr.Code)
}

func TestRenderHidesInternals(t *testing.T) {
	assert.Equal(t, "Please supply a reason for this action.", Render(ProvideReason()))
	assert.Equal(t, "Something went wrong while running that command.", Render(errors.New("sql: database is locked")))
	assert.Equal(t, "Something went wrong while running that command.", Render(Wrap(Transport, CodeTransport, "ban failed", errors.New("403"))))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := Wrap(Transport, CodeTransport, "failed", cause)
	assert.ErrorIs(t, err, cause)
}
