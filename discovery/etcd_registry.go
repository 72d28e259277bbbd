package discovery

// EtcdRegistry stores instances in etcd, a strongly consistent key-value store:
//
//	Key:   /tiny-rpc/{ServiceName}/{Addr}
//	Value: JSON-encoded ServiceInstance
//
// Registration uses TTL leases: if the server dies without deregistering,
// the lease expires and the entry disappears with it.

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	keyPrefix = "/tiny-rpc/"

	DefaultDialTimeout    = 5 * time.Second
	DefaultRequestTimeout = 5 * time.Second
)

type EtcdRegistry struct {
	client         *clientv3.Client // safe for concurrent use
	requestTimeout time.Duration

	leases sync.Map // key → clientv3.LeaseID, so Deregister can revoke the lease
	ctx    context.Context
	cancel context.CancelFunc // stops KeepAlive and Watch goroutines
}

// NewEtcdRegistry creates a registry backed by the etcd cluster at endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: DefaultDialTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connecting to etcd")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &EtcdRegistry{
		client:         c,
		requestTimeout: DefaultRequestTimeout,
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

func serviceKey(serviceName, addr string) string {
	return keyPrefix + serviceName + "/" + addr
}

func servicePrefix(serviceName string) string {
	return keyPrefix + serviceName + "/"
}

// Register puts instance under a lease of ttl seconds and keeps the lease
// alive until Deregister or Close.
func (r *EtcdRegistry) Register(serviceName string, instance ServiceInstance, ttl int64) error {
	ctx, cancel := context.WithTimeout(r.ctx, r.requestTimeout)
	defer cancel()

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return errors.Wrap(err, "granting lease")
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	key := serviceKey(serviceName, instance.Addr)
	if _, err = r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return errors.Wrapf(err, "putting %s", key)
	}

	// The keepalive must outlive this call, so it hangs off the registry context.
	ch, err := r.client.KeepAlive(r.ctx, lease.ID)
	if err != nil {
		return errors.Wrap(err, "starting lease keepalive")
	}
	r.leases.Store(key, lease.ID)

	// Drain responses so the keepalive channel never fills up.
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes the instance and revokes its lease.
func (r *EtcdRegistry) Deregister(serviceName string, addr string) error {
	ctx, cancel := context.WithTimeout(r.ctx, r.requestTimeout)
	defer cancel()

	key := serviceKey(serviceName, addr)
	if id, ok := r.leases.LoadAndDelete(key); ok {
		// Revoking deletes every key attached to the lease.
		if _, err := r.client.Revoke(ctx, id.(clientv3.LeaseID)); err == nil {
			return nil
		}
	}
	_, err := r.client.Delete(ctx, key)
	return errors.Wrapf(err, "deleting %s", key)
}

// Watch emits the full instance list whenever anything under the service
// prefix changes. The channel is closed by Close.
func (r *EtcdRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(r.ctx, servicePrefix(serviceName), clientv3.WithPrefix())
		for range watchChan {
			// Re-fetching is simpler than applying individual events.
			instances, err := r.Discover(serviceName)
			if err != nil {
				continue
			}
			select {
			case ch <- instances:
			case <-r.ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Discover returns every instance currently registered under serviceName.
func (r *EtcdRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.requestTimeout)
	defer cancel()

	resp, err := r.client.Get(ctx, servicePrefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrapf(err, "discovering %s", serviceName)
	}

	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue // Skip malformed entries
		}
		instances = append(instances, instance)
	}

	return instances, nil
}

// Close stops keepalives and watches and closes the etcd client. Leases
// that are not deregistered expire after their TTL.
func (r *EtcdRegistry) Close() error {
	r.cancel()
	return r.client.Close()
}
