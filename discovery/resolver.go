package discovery

import (
	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Resolver finds an address for a service each time it is asked, so a client
// that reconnects per call follows instances as they come and go.
type Resolver struct {
	registry    Registry
	serviceName string
	balancer    Balancer
	constraints *semver.Constraints // nil accepts every version
}

// NewResolver resolves serviceName through reg. A nil balancer means round robin.
func NewResolver(reg Registry, serviceName string, balancer Balancer) *Resolver {
	if balancer == nil {
		balancer = &RoundRobinBalancer{}
	}
	return &Resolver{registry: reg, serviceName: serviceName, balancer: balancer}
}

// RequireVersion limits resolution to instances whose Version satisfies
// constraint, e.g. ">= 1.2, < 2". Instances without a valid semantic
// version are then skipped.
func (r *Resolver) RequireVersion(constraint string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.Wrapf(err, "version constraint %q", constraint)
	}
	r.constraints = c
	return nil
}

func (r *Resolver) Resolve() (string, error) {
	instances, err := r.registry.Discover(r.serviceName)
	if err != nil {
		return "", err
	}
	if r.constraints != nil {
		instances = r.matching(instances)
	}
	inst, err := r.balancer.Pick(instances)
	if err != nil {
		return "", errors.Wrapf(err, "resolving %s with %s", r.serviceName, r.balancer.Name())
	}
	return inst.Addr, nil
}

func (r *Resolver) matching(instances []ServiceInstance) []ServiceInstance {
	var out []ServiceInstance
	for _, inst := range instances {
		v, err := semver.NewVersion(inst.Version)
		if err != nil {
			continue
		}
		if r.constraints.Check(v) {
			out = append(out, inst)
		}
	}
	return out
}
