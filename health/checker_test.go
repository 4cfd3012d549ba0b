package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckReturnsHealthyWhenCheckPasses(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.RegisterCheck("vault-unlocked", VaultHealthCheck(func() error { return nil }))

	result, err := h.Check(context.Background(), "vault-unlocked")
	require.NoError(t, err)
	require.Equal(t, StatusHealthy, result.Status)
}

func TestCheckReturnsUnhealthyWhenCheckFails(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.RegisterCheck("store-reachable", StoreHealthCheck(func(context.Context) error {
		return errors.New("db is locked")
	}))

	result, err := h.Check(context.Background(), "store-reachable")
	require.NoError(t, err)
	require.Equal(t, StatusUnhealthy, result.Status)
	require.Contains(t, result.Message, "db is locked")
}

func TestCheckUnknownNameErrors(t *testing.T) {
	h := NewHealthChecker(time.Second)
	_, err := h.Check(context.Background(), "nonexistent")
	require.Error(t, err)
}

func TestCheckCachesResultUntilTTLExpires(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.SetCacheTTL(time.Hour)

	calls := 0
	h.RegisterCheck("transport-listening", TransportHealthCheck(func() error {
		calls++
		return nil
	}))

	_, err := h.Check(context.Background(), "transport-listening")
	require.NoError(t, err)
	_, err = h.Check(context.Background(), "transport-listening")
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	h.ClearCache()
	_, err = h.Check(context.Background(), "transport-listening")
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestCheckAllAggregatesEveryRegisteredCheck(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.RegisterCheck("vault-unlocked", VaultHealthCheck(func() error { return nil }))
	h.RegisterCheck("store-reachable", StoreHealthCheck(func(context.Context) error { return nil }))
	h.RegisterCheck("discovery-running", DiscoveryHealthCheck("mdns", func(context.Context, string) error {
		return errors.New("mdns not started")
	}))

	results := h.CheckAll(context.Background())
	require.Len(t, results, 3)
	require.Equal(t, StatusHealthy, results["vault-unlocked"].Status)
	require.Equal(t, StatusHealthy, results["store-reachable"].Status)
	require.Equal(t, StatusUnhealthy, results["discovery-running"].Status)
}

func TestGetOverallStatusReflectsWorstCheck(t *testing.T) {
	h := NewHealthChecker(time.Second)
	require.Equal(t, StatusHealthy, h.GetOverallStatus(context.Background()))

	h.RegisterCheck("vault-unlocked", VaultHealthCheck(func() error { return nil }))
	h.RegisterCheck("store-reachable", StoreHealthCheck(func(context.Context) error {
		return errors.New("unreachable")
	}))

	require.Equal(t, StatusUnhealthy, h.GetOverallStatus(context.Background()))
}

func TestUnregisterCheckRemovesItFromResults(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.RegisterCheck("transport-listening", TransportHealthCheck(func() error { return nil }))
	h.UnregisterCheck("transport-listening")

	_, err := h.Check(context.Background(), "transport-listening")
	require.Error(t, err)
}

func TestGetSystemHealthReportsStatusAndChecks(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.RegisterCheck("store-reachable", StoreHealthCheck(func(context.Context) error { return nil }))

	sys := h.GetSystemHealth(context.Background())
	require.Equal(t, StatusHealthy, sys.Status)
	require.Len(t, sys.Checks, 1)
}

func TestVaultHealthCheckNilFuncErrors(t *testing.T) {
	check := VaultHealthCheck(nil)
	require.Error(t, check(context.Background()))
}

func TestStoreHealthCheckNilFuncErrors(t *testing.T) {
	check := StoreHealthCheck(nil)
	require.Error(t, check(context.Background()))
}

func TestTransportHealthCheckNilFuncErrors(t *testing.T) {
	check := TransportHealthCheck(nil)
	require.Error(t, check(context.Background()))
}

func TestDiscoveryHealthCheckPassesNameThrough(t *testing.T) {
	var seen string
	check := DiscoveryHealthCheck("rendezvous", func(_ context.Context, name string) error {
		seen = name
		return nil
	})
	require.NoError(t, check(context.Background()))
	require.Equal(t, "rendezvous", seen)
}

func TestDIDAnchorHealthCheckNilFuncErrors(t *testing.T) {
	check := DIDAnchorHealthCheck(nil)
	require.Error(t, check(context.Background()))
}
