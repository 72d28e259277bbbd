// Package discovery lets servers announce where they listen and clients find them.
//
// A server announces one ServiceInstance per service name; a client asks a
// Resolver, which picks among the announced instances with a Balancer.
package discovery

type ServiceInstance struct {
	Addr    string
	Weight  int // Weight for load balancing
	Version string
}

type Registry interface {
	Register(serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(serviceName string, addr string) error
	Discover(serviceName string) ([]ServiceInstance, error)
	Watch(serviceName string) <-chan []ServiceInstance
}
