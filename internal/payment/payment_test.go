package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
)

// --- fakes ---

type fakeGateway struct {
	registry *Registry
	openErr  error
	// resolveOnOpen reports an outcome before Open returns.
	resolveOnOpen *Outcome
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{registry: NewRegistry()}
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) Open(_ context.Context, req Request, cb Callbacks) (Session, error) {
	if err := f.registry.Register(req.OrderRef, cb); err != nil {
		return Session{}, err
	}
	if f.openErr != nil {
		f.registry.Remove(req.OrderRef)
		return Session{}, f.openErr
	}
	if f.resolveOnOpen != nil {
		f.registry.Resolve(req.OrderRef, *f.resolveOnOpen)
	}
	return Session{Token: "tok-" + req.OrderRef}, nil
}

func (f *fakeGateway) Dismiss(_ context.Context, ref string) error {
	f.registry.Resolve(ref, Outcome{Kind: KindDismissed})
	return nil
}

func (f *fakeGateway) HandleNotification(context.Context, []byte) error { return nil }

func validRequest(ref string) Request {
	return Request{OrderRef: ref, OrderID: "order-1", AmountMinorUnits: 100, Currency: "INR"}
}

// --- Registry ---

func TestRegistry_RequiresAllCallbacks(t *testing.T) {
	r := NewRegistry()
	err := r.Register("ref", Callbacks{OnSuccess: func(string) {}})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.False(t, r.Pending("ref"))
}

func TestRegistry_ResolveInvokesMatchingCallbackOnce(t *testing.T) {
	r := NewRegistry()
	var got []string
	cb := Callbacks{
		OnSuccess: func(id string) { got = append(got, "success:"+id) },
		OnFailure: func(code, reason string) { got = append(got, "failure:"+code+":"+reason) },
		OnDismiss: func() { got = append(got, "dismiss") },
	}

	require.NoError(t, r.Register("ref", cb))
	assert.True(t, r.Pending("ref"))

	assert.True(t, r.Resolve("ref", Outcome{Kind: KindFailure, Code: "E1", Reason: "declined"}))
	assert.False(t, r.Resolve("ref", Outcome{Kind: KindSuccess, PaymentID: "late"}))
	assert.Equal(t, []string{"failure:E1:declined"}, got)
	assert.False(t, r.Pending("ref"))
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	cb := Callbacks{OnSuccess: func(string) {}, OnFailure: func(string, string) {}, OnDismiss: func() {}}
	require.NoError(t, r.Register("ref", cb))

	err := r.Register("ref", cb)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	r.Remove("ref")
	assert.NoError(t, r.Register("ref", cb))
}

// --- Open / Pending ---

func TestOpen_ValidatesRequest(t *testing.T) {
	gw := newFakeGateway()

	_, err := Open(context.Background(), gw, Request{AmountMinorUnits: 100})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, err = Open(context.Background(), gw, Request{OrderRef: "r"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestOpen_GatewayErrorIsTransport(t *testing.T) {
	gw := newFakeGateway()
	gw.openErr = errors.New("connection reset")

	p, err := Open(context.Background(), gw, validRequest("r-1"))
	assert.Nil(t, p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTransport))
	assert.False(t, gw.registry.Pending("r-1"))
}

func TestOpen_ResolvesExactlyOnce(t *testing.T) {
	gw := newFakeGateway()
	p, err := Open(context.Background(), gw, validRequest("r-1"))
	require.NoError(t, err)
	assert.Equal(t, "r-1", p.Ref())
	assert.Equal(t, "tok-r-1", p.Session().Token)

	_, ok := p.Outcome()
	assert.False(t, ok)

	cb := p.callbacks()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); cb.OnSuccess("pay-1") }()
		go func() { defer wg.Done(); cb.OnFailure("E", "x") }()
		go func() { defer wg.Done(); cb.OnDismiss() }()
	}
	wg.Wait()

	first, ok := p.Outcome()
	require.True(t, ok)
	for i := 0; i < 3; i++ {
		again, _ := p.Outcome()
		assert.Equal(t, first, again)
	}
}

func TestOpen_OutcomeBeforeOpenReturns(t *testing.T) {
	gw := newFakeGateway()
	gw.resolveOnOpen = &Outcome{Kind: KindSuccess, PaymentID: "fast"}

	p, err := Open(context.Background(), gw, validRequest("r-1"))
	require.NoError(t, err)

	select {
	case <-p.Done():
	default:
		t.Fatal("pending should already be resolved")
	}
	out, _ := p.Outcome()
	assert.Equal(t, "fast", out.PaymentID)
}

func TestAwait_HonoursContext(t *testing.T) {
	p, err := Open(context.Background(), newFakeGateway(), validRequest("r-1"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAwait_ReturnsDismissal(t *testing.T) {
	gw := newFakeGateway()
	p, err := Open(context.Background(), gw, validRequest("r-1"))
	require.NoError(t, err)

	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = gw.Dismiss(context.Background(), "r-1")
	}()

	out, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, KindDismissed, out.Kind)
}
