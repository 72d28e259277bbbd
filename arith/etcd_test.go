package arith

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiny-rpc/client"
	"tiny-rpc/discovery"
	"tiny-rpc/middleware"
	"tiny-rpc/registry"
	"tiny-rpc/server"
)

// Client → etcd → balancer → server → middleware → arith, end to end.
func TestArithOverEtcd(t *testing.T) {
	etcd, err := discovery.NewEtcdRegistry([]string{"127.0.0.1:2379"})
	if err != nil {
		t.Skipf("etcd unavailable: %v", err)
	}
	defer etcd.Close()
	if _, err := etcd.Discover("health"); err != nil {
		t.Skipf("etcd unavailable: %v", err)
	}

	service := "arith-test-" + time.Now().Format("150405.000000")
	var addrs []string
	for i := 0; i < 2; i++ {
		reg := registry.New()
		require.NoError(t, Register(reg))

		config := server.DefaultConfig()
		config.ServiceName = service
		svr, err := server.NewServer(reg, config, server.WithDiscovery(etcd))
		require.NoError(t, err)
		svr.Use(middleware.RateLimit(1000, 100))

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		go svr.Serve(listener)
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			svr.Shutdown(ctx)
		})
		addrs = append(addrs, listener.Addr().String())
	}

	require.Eventually(t, func() bool {
		instances, err := etcd.Discover(service)
		return err == nil && len(instances) == 2
	}, 5*time.Second, 50*time.Millisecond)

	resolver := discovery.NewResolver(etcd, service, &discovery.RoundRobinBalancer{})
	arith := NewClient(client.New("", client.WithResolver(resolver)))

	for i := 0; i < 10; i++ {
		sum, err := arith.Add(i, 1)
		require.NoError(t, err)
		assert.Equal(t, i+1, sum)
	}

	// Both servers got traffic.
	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		addr, err := resolver.Resolve()
		require.NoError(t, err)
		seen[addr] = true
	}
	assert.Len(t, seen, 2)
	for _, addr := range addrs {
		assert.True(t, seen[addr], addr)
	}
}
