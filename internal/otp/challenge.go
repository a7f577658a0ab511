package otp

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
)

// Step is the position of a challenge in the request/verify flow.
type Step string

const (
	StepPhoneEntry Step = "phone_entry"
	StepCodeEntry  Step = "code_entry"
	StepVerified   Step = "verified"
)

// Snapshot is the externally visible state of a challenge.
type Snapshot struct {
	Step       Step       `json:"step"`
	Phone      string     `json:"phone,omitempty"`
	Attempts   int        `json:"attempts"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
	Busy       bool       `json:"busy"`
}

// Challenge walks one session through phone entry, code entry and
// verification. Failed verifications keep it on code entry and may be retried
// without limit. Nothing outlives the challenge until it is verified.
type Challenge struct {
	provider Provider
	logger   *slog.Logger

	mu         sync.Mutex
	step       Step
	phone      string
	attempts   int
	verifiedAt time.Time
	busy       bool
	// generation invalidates in-flight calls when the challenge is cancelled.
	generation int
}

// NewChallenge creates a challenge at phone entry.
func NewChallenge(provider Provider, logger *slog.Logger) *Challenge {
	return &Challenge{provider: provider, logger: logger, step: StepPhoneEntry}
}

// RequestCode sends a code to phone and moves to code entry. It may be called
// again from code entry to resend or change the number.
func (c *Challenge) RequestCode(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return apperrors.Validation("phone", "is required")
	}

	gen, err := c.begin(StepPhoneEntry, StepCodeEntry)
	if err != nil {
		return err
	}

	err = c.provider.RequestOTP(ctx, phone)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if gen != c.generation {
		return apperrors.Cancelled("verification was cancelled")
	}
	if err != nil {
		c.logger.WarnContext(ctx, "otp request failed", slog.String("error", err.Error()))
		return err
	}
	c.step = StepCodeEntry
	c.phone = phone
	c.attempts = 0
	return nil
}

// Verify checks code against the phone the code was sent to.
func (c *Challenge) Verify(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return apperrors.Validation("code", "is required")
	}

	gen, err := c.begin(StepCodeEntry)
	if err != nil {
		return err
	}
	c.mu.Lock()
	phone := c.phone
	c.mu.Unlock()

	err = c.provider.VerifyOTP(ctx, phone, code)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if gen != c.generation {
		return apperrors.Cancelled("verification was cancelled")
	}
	if err != nil {
		c.attempts++
		c.logger.InfoContext(ctx, "otp verification failed",
			slog.Int("attempts", c.attempts),
			slog.String("error", err.Error()),
		)
		return err
	}
	c.step = StepVerified
	c.verifiedAt = time.Now().UTC()
	c.logger.InfoContext(ctx, "otp challenge verified", slog.Int("attempts", c.attempts+1))
	return nil
}

// Cancel abandons an unverified challenge and returns it to phone entry.
// Cancelling a verified challenge has no effect.
func (c *Challenge) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step == StepVerified {
		return
	}
	c.generation++
	c.step = StepPhoneEntry
	c.phone = ""
	c.attempts = 0
	c.busy = false
}

// Verified reports whether the challenge has been passed.
func (c *Challenge) Verified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step == StepVerified
}

// VerifiedPhone returns the phone number that passed the challenge.
func (c *Challenge) VerifiedPhone() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step != StepVerified {
		return "", false
	}
	return c.phone, true
}

// Snapshot returns the current state.
func (c *Challenge) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{Step: c.step, Attempts: c.attempts, Busy: c.busy}
	if c.phone != "" {
		s.Phone = mask(c.phone)
	}
	if c.step == StepVerified {
		t := c.verifiedAt
		s.VerifiedAt = &t
	}
	return s
}

// begin marks a provider call in flight if the challenge is in one of allowed.
func (c *Challenge) begin(allowed ...Step) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy {
		return 0, apperrors.Conflict("a verification request is already in progress")
	}
	if c.step == StepVerified {
		return 0, apperrors.Conflict("phone number is already verified")
	}
	ok := false
	for _, s := range allowed {
		if c.step == s {
			ok = true
			break
		}
	}
	if !ok {
		return 0, apperrors.Conflict("request a verification code first")
	}
	c.busy = true
	return c.generation, nil
}
