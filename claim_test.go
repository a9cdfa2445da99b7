package ore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock gateway for testing
type mockGateway struct {
	mu         sync.Mutex
	claimCalls int
	claim      func(ctx context.Context, amount uint64) (solana.Signature, error)
	balance    func(ctx context.Context, account solana.PublicKey) (uint64, error)
}

func (m *mockGateway) Claim(ctx context.Context, amount uint64) (solana.Signature, error) {
	m.mu.Lock()
	m.claimCalls++
	m.mu.Unlock()
	if m.claim != nil {
		return m.claim(ctx, amount)
	}
	return solana.Signature{}, nil
}

func (m *mockGateway) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	if m.balance != nil {
		return m.balance(ctx, account)
	}
	return 0, nil
}

func (m *mockGateway) GetTokenBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	return 0, nil
}

func (m *mockGateway) GetProof(ctx context.Context, authority solana.PublicKey) (Proof, error) {
	return Proof{}, nil
}

func (m *mockGateway) claims() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claimCalls
}

// Counting refresher standing in for the proof / balance queries
type countingRefresher struct {
	mu    sync.Mutex
	count int
}

func (r *countingRefresher) Restart(ctx context.Context) {
	r.mu.Lock()
	r.count++
	r.mu.Unlock()
}

func (r *countingRefresher) restarts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func TestClaimHappyPath(t *testing.T) {
	gw := &mockGateway{}
	proof := &countingRefresher{}
	balance := &countingRefresher{}
	s := NewClaimSession(gw,
		WithProofRefresher(proof),
		WithTokenBalanceRefresher(balance),
	)

	require.Equal(t, ClaimStepEdit, s.Step())
	require.NoError(t, s.EnterConfirm(1_000_000))
	require.Equal(t, ClaimStepConfirm, s.Step())
	assert.Equal(t, uint64(1_000_000), s.Amount())

	require.NoError(t, s.Submit(context.Background()))
	require.Eventually(t, func() bool {
		return s.Step() == ClaimStepDone
	}, time.Second, time.Millisecond)

	assert.False(t, s.Busy())
	assert.Nil(t, s.Err())
	assert.Equal(t, 1, proof.restarts())
	assert.Equal(t, 1, balance.restarts())
	assert.Equal(t, 1, gw.claims())
}

func TestClaimSubmitFailureStaysOnConfirm(t *testing.T) {
	gw := &mockGateway{
		claim: func(ctx context.Context, amount uint64) (solana.Signature, error) {
			return solana.Signature{}, errors.New("rpc timeout")
		},
	}
	proof := &countingRefresher{}
	s := NewClaimSession(gw, WithProofRefresher(proof))

	require.NoError(t, s.EnterConfirm(500))
	require.NoError(t, s.Submit(context.Background()))

	require.Eventually(t, func() bool {
		return !s.Busy() && s.Err() != nil
	}, time.Second, time.Millisecond)

	assert.Equal(t, ClaimStepConfirm, s.Step())
	assert.EqualError(t, s.Err(), "rpc timeout")
	assert.Equal(t, 0, proof.restarts())
}

func TestClaimRetryAfterFailure(t *testing.T) {
	var attempts int
	var mu sync.Mutex
	gw := &mockGateway{
		claim: func(ctx context.Context, amount uint64) (solana.Signature, error) {
			mu.Lock()
			attempts++
			n := attempts
			mu.Unlock()
			if n == 1 {
				return solana.Signature{}, errors.New("rpc timeout")
			}
			return solana.Signature{}, nil
		},
	}
	s := NewClaimSession(gw)

	require.NoError(t, s.EnterConfirm(500))
	require.NoError(t, s.Submit(context.Background()))
	require.Eventually(t, func() bool {
		return !s.Busy() && s.Err() != nil
	}, time.Second, time.Millisecond)

	require.NoError(t, s.Submit(context.Background()))
	require.Eventually(t, func() bool {
		return s.Step() == ClaimStepDone
	}, time.Second, time.Millisecond)
	assert.Nil(t, s.Err())
}

func TestClaimEnterConfirmPreconditions(t *testing.T) {
	s := NewClaimSession(&mockGateway{})

	err := s.EnterConfirm(0)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalidAmount))

	require.NoError(t, s.EnterConfirm(100))
	err = s.EnterConfirm(200)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeClaimStep))
	assert.Equal(t, uint64(100), s.Amount())
}

func TestClaimSubmitPreconditions(t *testing.T) {
	release := make(chan struct{})
	gw := &mockGateway{
		claim: func(ctx context.Context, amount uint64) (solana.Signature, error) {
			<-release
			return solana.Signature{}, nil
		},
	}
	s := NewClaimSession(gw)

	// Submit from Edit is invalid.
	err := s.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeClaimStep))

	require.NoError(t, s.EnterConfirm(100))
	require.NoError(t, s.Submit(context.Background()))
	assert.True(t, s.Busy())

	// Re-entrant submit while busy is rejected without a second call.
	err = s.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeClaimBusy))

	// Back is also shut while busy.
	err = s.Back()
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeClaimBusy))

	close(release)
	require.Eventually(t, func() bool {
		return s.Step() == ClaimStepDone
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, gw.claims())
}

func TestClaimBackKeepsAmount(t *testing.T) {
	s := NewClaimSession(&mockGateway{})

	err := s.Back()
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeClaimStep))

	require.NoError(t, s.EnterConfirm(250))
	require.NoError(t, s.Back())
	assert.Equal(t, ClaimStepEdit, s.Step())
	assert.Equal(t, uint64(250), s.Amount())
}

func TestClaimCloseDropsLateResult(t *testing.T) {
	release := make(chan struct{})
	gw := &mockGateway{
		claim: func(ctx context.Context, amount uint64) (solana.Signature, error) {
			<-release
			return solana.Signature{}, nil
		},
	}
	proof := &countingRefresher{}
	s := NewClaimSession(gw, WithProofRefresher(proof))

	require.NoError(t, s.EnterConfirm(100))
	require.NoError(t, s.Submit(context.Background()))
	s.Close()
	close(release)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, ClaimStepConfirm, s.Step())
	assert.Equal(t, 0, proof.restarts())
}

func TestClaimStepObserver(t *testing.T) {
	var mu sync.Mutex
	var seen []ClaimStep
	s := NewClaimSession(&mockGateway{}, WithStepObserver(func(step ClaimStep) {
		mu.Lock()
		seen = append(seen, step)
		mu.Unlock()
	}))

	require.NoError(t, s.EnterConfirm(100))
	require.NoError(t, s.Submit(context.Background()))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []ClaimStep{ClaimStepConfirm, ClaimStepDone}, seen)
}

func TestClaimDisplayAmount(t *testing.T) {
	s := NewClaimSession(&mockGateway{})
	require.NoError(t, s.EnterConfirm(2_500_000_000))
	assert.Equal(t, 2.5, s.DisplayAmount())
}
