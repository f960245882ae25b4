package capture

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/keysound/internal/keys"
)

func TestChain_FallsBackToNextHook(t *testing.T) {
	broken := &fakeHook{}
	broken.On("Install").Return(errors.New("permission denied"))
	reader := NewReaderHook(strings.NewReader("q"))

	chain := NewChain(broken, reader)
	c := &collector{}
	s := New(chain, c.handle, Options{})
	defer func() { _ = s.Close() }()
	require.NoError(t, s.Start())

	require.Same(t, reader, chain.Active())
	require.Eventually(t, func() bool { return len(c.got()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, []keys.Key{keys.Q}, c.got())
	broken.AssertNotCalled(t, "Uninstall")
}

func TestChain_AllFail(t *testing.T) {
	a := &fakeHook{}
	a.On("Install").Return(errors.New("no devices"))
	b := &fakeHook{}
	b.On("Install").Return(errors.New("not a terminal"))

	chain := NewChain(a, b)
	err := chain.Install(func(Raw) {})
	require.ErrorContains(t, err, "no devices")
	require.ErrorContains(t, err, "not a terminal")
	require.Nil(t, chain.Active())
	require.NoError(t, chain.Uninstall())

	require.ErrorIs(t, NewChain().Install(func(Raw) {}), ErrUnsupported)
}

func TestChain_DecodeUsesActiveHook(t *testing.T) {
	h := newFakeHook()
	chain := NewChain(h)
	require.NoError(t, chain.Install(func(Raw) {}))

	k, err := chain.Decode(Raw{Code: 0x41})
	require.NoError(t, err)
	require.Equal(t, keys.A, k)

	require.NoError(t, chain.Uninstall())
	h.AssertNumberOfCalls(t, "Uninstall", 1)
}
