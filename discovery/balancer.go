package discovery

// Balancer picks one instance out of those a Registry returned.
// Pick is called on every Resolve and must be goroutine-safe.
type Balancer interface {
	Pick(instances []ServiceInstance) (*ServiceInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}
