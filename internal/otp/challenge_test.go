package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
)

// --- mock provider ---

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) RequestOTP(ctx context.Context, phone string) error {
	return m.Called(ctx, phone).Error(0)
}

func (m *mockProvider) VerifyOTP(ctx context.Context, phone, code string) error {
	return m.Called(ctx, phone, code).Error(0)
}

// --- tests ---

func TestChallenge_HappyPath(t *testing.T) {
	p := new(mockProvider)
	p.On("RequestOTP", mock.Anything, "9876543210").Return(nil).Once()
	p.On("VerifyOTP", mock.Anything, "9876543210", "1234").Return(nil).Once()

	c := NewChallenge(p, newTestLogger())
	ctx := context.Background()
	assert.Equal(t, StepPhoneEntry, c.Snapshot().Step)

	require.NoError(t, c.RequestCode(ctx, " 9876543210 "))
	assert.Equal(t, StepCodeEntry, c.Snapshot().Step)
	assert.Equal(t, "******3210", c.Snapshot().Phone)
	_, ok := c.VerifiedPhone()
	assert.False(t, ok)

	require.NoError(t, c.Verify(ctx, "1234"))
	assert.True(t, c.Verified())
	phone, ok := c.VerifiedPhone()
	assert.True(t, ok)
	assert.Equal(t, "9876543210", phone)
	assert.NotNil(t, c.Snapshot().VerifiedAt)
	p.AssertExpectations(t)
}

func TestChallenge_UnlimitedRetries(t *testing.T) {
	p := new(mockProvider)
	p.On("RequestOTP", mock.Anything, "9876543210").Return(nil)
	p.On("VerifyOTP", mock.Anything, "9876543210", "0000").Return(apperrors.Validation("code", "is invalid or expired"))
	p.On("VerifyOTP", mock.Anything, "9876543210", "1234").Return(nil)

	c := NewChallenge(p, newTestLogger())
	ctx := context.Background()
	require.NoError(t, c.RequestCode(ctx, "9876543210"))

	for i := 1; i <= 5; i++ {
		err := c.Verify(ctx, "0000")
		require.Error(t, err)
		assert.Equal(t, StepCodeEntry, c.Snapshot().Step)
		assert.Equal(t, i, c.Snapshot().Attempts)
	}

	require.NoError(t, c.Verify(ctx, "1234"))
	assert.True(t, c.Verified())
}

func TestChallenge_InputValidation(t *testing.T) {
	c := NewChallenge(new(mockProvider), newTestLogger())
	ctx := context.Background()

	err := c.RequestCode(ctx, "   ")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	err = c.Verify(ctx, "")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	err = c.Verify(ctx, "1234")
	assert.True(t, errors.Is(err, apperrors.ErrConflict), "verify before request must be rejected")
}

func TestChallenge_RequestFailureStaysOnPhoneEntry(t *testing.T) {
	p := new(mockProvider)
	p.On("RequestOTP", mock.Anything, "9876543210").Return(apperrors.Transport("otp-provider", errors.New("dial tcp: refused")))

	c := NewChallenge(p, newTestLogger())
	err := c.RequestCode(context.Background(), "9876543210")
	assert.True(t, errors.Is(err, apperrors.ErrTransport))
	assert.Equal(t, StepPhoneEntry, c.Snapshot().Step)
	assert.Empty(t, c.Snapshot().Phone)
}

func TestChallenge_CancelResets(t *testing.T) {
	p := new(mockProvider)
	p.On("RequestOTP", mock.Anything, "9876543210").Return(nil)

	c := NewChallenge(p, newTestLogger())
	require.NoError(t, c.RequestCode(context.Background(), "9876543210"))

	c.Cancel()
	snap := c.Snapshot()
	assert.Equal(t, StepPhoneEntry, snap.Step)
	assert.Empty(t, snap.Phone)
	assert.False(t, c.Verified())
}

func TestChallenge_CancelDuringVerificationDiscardsResult(t *testing.T) {
	release := make(chan struct{})
	p := new(mockProvider)
	p.On("RequestOTP", mock.Anything, "9876543210").Return(nil)
	p.On("VerifyOTP", mock.Anything, "9876543210", "1234").
		Run(func(mock.Arguments) { <-release }).
		Return(nil)

	c := NewChallenge(p, newTestLogger())
	ctx := context.Background()
	require.NoError(t, c.RequestCode(ctx, "9876543210"))

	errCh := make(chan error, 1)
	go func() { errCh <- c.Verify(ctx, "1234") }()

	require.Eventually(t, func() bool { return c.Snapshot().Busy }, time.Second, time.Millisecond)
	assert.True(t, errors.Is(c.Verify(ctx, "1234"), apperrors.ErrConflict))

	c.Cancel()
	close(release)

	err := <-errCh
	assert.True(t, errors.Is(err, apperrors.ErrCancelled))
	assert.False(t, c.Verified())
	assert.Equal(t, StepPhoneEntry, c.Snapshot().Step)
}

func TestChallenge_VerifiedIsFinal(t *testing.T) {
	p := new(mockProvider)
	p.On("RequestOTP", mock.Anything, mock.Anything).Return(nil)
	p.On("VerifyOTP", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	c := NewChallenge(p, newTestLogger())
	ctx := context.Background()
	require.NoError(t, c.RequestCode(ctx, "9876543210"))
	require.NoError(t, c.Verify(ctx, "1234"))

	c.Cancel()
	assert.True(t, c.Verified())
	assert.True(t, errors.Is(c.RequestCode(ctx, "9876543210"), apperrors.ErrConflict))
}
