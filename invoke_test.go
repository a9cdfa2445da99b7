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

// Mock bridge for testing
type mockBridge struct {
	mu          sync.Mutex
	mountCalls  int
	mountErr    error
	signCalls   int
	signAndSend func(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

func (m *mockBridge) Mount(ctx context.Context) error {
	m.mu.Lock()
	m.mountCalls++
	m.mu.Unlock()
	return m.mountErr
}

func (m *mockBridge) SignAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	m.mu.Lock()
	m.signCalls++
	m.mu.Unlock()
	if m.signAndSend != nil {
		return m.signAndSend(ctx, tx)
	}
	return solana.Signature{}, nil
}

func (m *mockBridge) counts() (mounts, signs int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mountCalls, m.signCalls
}

func testSignature(b byte) solana.Signature {
	var sig solana.Signature
	sig[0] = b
	return sig
}

func TestInvokeWaitingBeforeBridgeResolves(t *testing.T) {
	release := make(chan struct{})
	bridge := &mockBridge{
		signAndSend: func(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
			<-release
			return testSignature(1), nil
		},
	}
	inv := NewSignatureInvocation(bridge)

	require.NoError(t, inv.Invoke(context.Background(), &solana.Transaction{}))
	assert.Equal(t, StatusWaiting, inv.Status())

	close(release)
	require.Eventually(t, func() bool {
		return inv.Status() == StatusDone
	}, time.Second, time.Millisecond)

	sig, ok := inv.Signature()
	require.True(t, ok)
	assert.Equal(t, testSignature(1), sig)
}

func TestInvokeFailureThenRetrySucceeds(t *testing.T) {
	var attempts int
	var mu sync.Mutex
	bridge := &mockBridge{
		signAndSend: func(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
			mu.Lock()
			attempts++
			n := attempts
			mu.Unlock()
			if n == 1 {
				return solana.Signature{}, errors.New("user rejected")
			}
			return testSignature(2), nil
		},
	}
	inv := NewSignatureInvocation(bridge)
	tx := &solana.Transaction{}

	require.NoError(t, inv.Invoke(context.Background(), tx))
	require.Eventually(t, func() bool {
		return inv.Status() == StatusDoneWithError
	}, time.Second, time.Millisecond)
	assert.EqualError(t, inv.Err(), "user rejected")

	// Retry re-enters Waiting and can reach Done.
	require.NoError(t, inv.Invoke(context.Background(), tx))
	require.Eventually(t, func() bool {
		return inv.Status() == StatusDone
	}, time.Second, time.Millisecond)
	assert.Nil(t, inv.Err())

	_, signs := bridge.counts()
	assert.Equal(t, 2, signs)
}

func TestInvokeRepeatedFailuresKeepStatusValid(t *testing.T) {
	bridge := &mockBridge{
		signAndSend: func(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
			return solana.Signature{}, errors.New("still failing")
		},
	}
	inv := NewSignatureInvocation(bridge)
	tx := &solana.Transaction{}

	for n := 0; n < 5; n++ {
		require.NoError(t, inv.Invoke(context.Background(), tx))
		require.Eventually(t, func() bool {
			return inv.Status() == StatusDoneWithError
		}, time.Second, time.Millisecond)
	}

	_, signs := bridge.counts()
	assert.Equal(t, 5, signs)
	_, ok := inv.Signature()
	assert.False(t, ok)
}

func TestInvokeRejectedWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	bridge := &mockBridge{
		signAndSend: func(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
			<-release
			return testSignature(3), nil
		},
	}
	inv := NewSignatureInvocation(bridge)
	tx := &solana.Transaction{}

	require.NoError(t, inv.Invoke(context.Background(), tx))
	err := inv.Invoke(context.Background(), tx)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvokeInProgress))

	close(release)
	require.Eventually(t, func() bool {
		return inv.Status() == StatusDone
	}, time.Second, time.Millisecond)

	// Exactly one bridge call despite the rejected re-entry.
	_, signs := bridge.counts()
	assert.Equal(t, 1, signs)
}

func TestInvokeRejectedAfterDone(t *testing.T) {
	bridge := &mockBridge{}
	inv := NewSignatureInvocation(bridge)
	tx := &solana.Transaction{}

	require.NoError(t, inv.Invoke(context.Background(), tx))
	require.Eventually(t, func() bool {
		return inv.Status() == StatusDone
	}, time.Second, time.Millisecond)

	err := inv.Invoke(context.Background(), tx)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvokeCompleted))
}

func TestInvokeMountFailureIsSticky(t *testing.T) {
	bridge := &mockBridge{mountErr: errors.New("extension missing")}
	inv := NewSignatureInvocation(bridge)
	tx := &solana.Transaction{}

	for n := 0; n < 3; n++ {
		err := inv.Invoke(context.Background(), tx)
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrCodeBridgeUnmounted))
	}

	// One mount attempt, never retried, and no bridge call went out.
	mounts, signs := bridge.counts()
	assert.Equal(t, 1, mounts)
	assert.Equal(t, 0, signs)
	assert.Equal(t, StatusStart, inv.Status())
}

func TestInvokeMountHappensOnce(t *testing.T) {
	bridge := &mockBridge{
		signAndSend: func(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
			return solana.Signature{}, errors.New("nope")
		},
	}
	inv := NewSignatureInvocation(bridge)
	tx := &solana.Transaction{}

	for n := 0; n < 3; n++ {
		require.NoError(t, inv.Invoke(context.Background(), tx))
		require.Eventually(t, func() bool {
			return inv.Status() == StatusDoneWithError
		}, time.Second, time.Millisecond)
	}

	mounts, _ := bridge.counts()
	assert.Equal(t, 1, mounts)
}

func TestInvokeCloseDropsLateCallback(t *testing.T) {
	release := make(chan struct{})
	bridge := &mockBridge{
		signAndSend: func(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
			<-release
			return testSignature(4), nil
		},
	}

	var mu sync.Mutex
	var seen []InvocationStatus
	inv := NewSignatureInvocation(bridge, WithStatusObserver(func(status InvocationStatus) {
		mu.Lock()
		seen = append(seen, status)
		mu.Unlock()
	}))

	require.NoError(t, inv.Invoke(context.Background(), &solana.Transaction{}))
	inv.Close()
	close(release)

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []InvocationStatus{StatusWaiting}, seen)

	err := inv.Invoke(context.Background(), &solana.Transaction{})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvokeClosed))
}

func TestInvokeObserverSeesEveryTransition(t *testing.T) {
	bridge := &mockBridge{}
	var mu sync.Mutex
	var seen []InvocationStatus

	inv := NewSignatureInvocation(bridge)
	inv.Subscribe(func(status InvocationStatus) {
		mu.Lock()
		seen = append(seen, status)
		mu.Unlock()
	})

	require.NoError(t, inv.Invoke(context.Background(), &solana.Transaction{}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []InvocationStatus{StatusWaiting, StatusDone}, seen)
}
