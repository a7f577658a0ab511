package payment

import (
	"context"
	"errors"
	"sync"

	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
)

// Pending is an open payment session that resolves exactly once.
type Pending struct {
	ref     string
	session Session

	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func newPending(ref string) *Pending {
	return &Pending{ref: ref, done: make(chan struct{})}
}

// Open starts a hosted checkout on gw and returns a future for its outcome.
// All three callbacks exist before the gateway is contacted, and any callback
// after the first is ignored.
func Open(ctx context.Context, gw Gateway, req Request) (*Pending, error) {
	if req.OrderRef == "" {
		return nil, apperrors.InvalidInput("payment order reference is required")
	}
	if req.AmountMinorUnits <= 0 {
		return nil, apperrors.InvalidInput("payment amount must be greater than zero")
	}

	p := newPending(req.OrderRef)
	session, err := gw.Open(ctx, req, p.callbacks())
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.Transport(gw.Name(), err)
	}
	p.session = session
	return p, nil
}

func (p *Pending) callbacks() Callbacks {
	return Callbacks{
		OnSuccess: func(paymentID string) {
			p.resolve(Outcome{Kind: KindSuccess, PaymentID: paymentID})
		},
		OnFailure: func(code, reason string) {
			p.resolve(Outcome{Kind: KindFailure, Code: code, Reason: reason})
		},
		OnDismiss: func() {
			p.resolve(Outcome{Kind: KindDismissed})
		},
	}
}

func (p *Pending) resolve(o Outcome) {
	p.once.Do(func() {
		p.outcome = o
		close(p.done)
	})
}

// Ref returns the gateway order reference.
func (p *Pending) Ref() string { return p.ref }

// Session returns the hosted checkout details returned by the gateway.
func (p *Pending) Session() Session { return p.session }

// Done is closed once the outcome is known.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Outcome returns the resolved outcome and whether it is available yet.
func (p *Pending) Outcome() (Outcome, bool) {
	select {
	case <-p.done:
		return p.outcome, true
	default:
		return Outcome{}, false
	}
}

// Await blocks until the outcome is known or ctx is done.
func (p *Pending) Await(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
