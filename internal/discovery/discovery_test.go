package discovery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterAndClose(t *testing.T) {
	unregistered := false
	r := NewRegistrar(func(rec Record) (func() error, error) {
		require.Equal(t, "picast", rec.ServiceName)
		return func() error { unregistered = true; return nil }, nil
	})

	require.NoError(t, r.Register(Record{ServiceName: "picast", ServiceType: "_rtsp._tcp", Port: 7236}))
	require.NoError(t, r.Close())
	require.True(t, unregistered)
}

func TestRegisterReplacesPreviousAdvertisement(t *testing.T) {
	unregisterCalls := 0
	r := NewRegistrar(func(rec Record) (func() error, error) {
		return func() error { unregisterCalls++; return nil }, nil
	})

	require.NoError(t, r.Register(Record{ServiceName: "a", Port: 1}))
	require.NoError(t, r.Register(Record{ServiceName: "b", Port: 2}))
	require.Equal(t, 1, unregisterCalls)
	require.NoError(t, r.Close())
	require.Equal(t, 2, unregisterCalls)
}

func TestRegisterPropagatesPublishError(t *testing.T) {
	r := NewRegistrar(func(rec Record) (func() error, error) {
		return nil, errors.New("no responder available")
	})
	require.Error(t, r.Register(Record{ServiceName: "picast", Port: 7236}))
}
