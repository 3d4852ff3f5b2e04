package voting_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakevote/voting"
)

func TestCheckCooldown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		elapsed   time.Duration
		remaining time.Duration
		allowed   bool
	}{
		{name: "it blocks a vote right after the last one", elapsed: 0, remaining: time.Hour},
		{name: "it reports the remaining half hour", elapsed: 30 * time.Minute, remaining: 30 * time.Minute},
		{name: "it rounds partial seconds up", elapsed: 59*time.Minute + 59*time.Second + 500*time.Millisecond, remaining: time.Second},
		{name: "it allows a vote exactly one cooldown later", elapsed: time.Hour, allowed: true},
		{name: "it allows a vote after the cooldown", elapsed: time.Hour + time.Second, allowed: true},
		{name: "it blocks a vote placed before a recorded one", elapsed: -10 * time.Minute, remaining: 70 * time.Minute},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// Act
			err := voting.CheckCooldown(t0, t0.Add(tc.elapsed), time.Hour)

			// Assert
			if tc.allowed {
				assert.NoError(t, err)
				return
			}
			var cooldown *voting.CooldownError
			require.True(t, errors.As(err, &cooldown))
			assert.Equal(t, tc.remaining, cooldown.Remaining)
		})
	}
}

func TestCooldownErrorMessage(t *testing.T) {
	t.Parallel()

	t.Run("it formats minutes and seconds", func(t *testing.T) {
		t.Parallel()

		// Arrange
		err := &voting.CooldownError{Remaining: 12*time.Minute + 5*time.Second}

		// Act
		msg := err.Error()

		// Assert
		assert.Equal(t, "Vote cooldown in effect. Please wait 12m 5s.", msg)
		assert.ErrorIs(t, err, voting.ErrCooldownActive)
	})
}
