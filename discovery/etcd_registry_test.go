package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestEtcdRegistry connects to a local etcd, skipping the test when none is running.
func newTestEtcdRegistry(t *testing.T) *EtcdRegistry {
	t.Helper()
	reg, err := NewEtcdRegistry([]string{"127.0.0.1:2379"})
	if err != nil {
		t.Skipf("etcd unavailable: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := reg.client.Get(ctx, "health"); err != nil {
		reg.Close()
		t.Skipf("etcd unavailable: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestEtcdRegisterAndDiscover(t *testing.T) {
	reg := newTestEtcdRegistry(t)
	service := "tiny-rpc-test-" + time.Now().Format("150405.000000")

	inst1 := ServiceInstance{Addr: "127.0.0.1:8001", Weight: 10, Version: "1.0"}
	inst2 := ServiceInstance{Addr: "127.0.0.1:8002", Weight: 5, Version: "1.0"}
	require.NoError(t, reg.Register(service, inst1, 10))
	require.NoError(t, reg.Register(service, inst2, 10))

	instances, err := reg.Discover(service)
	require.NoError(t, err)
	require.Len(t, instances, 2)

	require.NoError(t, reg.Deregister(service, inst1.Addr))

	instances, err = reg.Discover(service)
	require.NoError(t, err)
	require.Equal(t, []ServiceInstance{inst2}, instances)

	require.NoError(t, reg.Deregister(service, inst2.Addr))
}

func TestEtcdWatch(t *testing.T) {
	reg := newTestEtcdRegistry(t)
	service := "tiny-rpc-watch-" + time.Now().Format("150405.000000")

	ch := reg.Watch(service)
	// Give the watch time to be established before the change it should see.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, reg.Register(service, ServiceInstance{Addr: "127.0.0.1:8003"}, 10))

	select {
	case instances := <-ch:
		require.Len(t, instances, 1)
		require.Equal(t, "127.0.0.1:8003", instances[0].Addr)
	case <-time.After(5 * time.Second):
		t.Fatal("no watch update")
	}
	require.NoError(t, reg.Deregister(service, "127.0.0.1:8003"))
}
