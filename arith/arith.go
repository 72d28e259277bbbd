// Package arith holds a few small functions to serve over RPC, and a typed
// client for them.
package arith

import (
	"fmt"

	"tiny-rpc/client"
	"tiny-rpc/registry"
)

func Add(a, b int) int { return a + b }

func Sub(a, b int) int { return a - b }

// Fibonacci returns the nth Fibonacci number, with Fibonacci(0) == 0.
func Fibonacci(n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("fibonacci: negative index %d", n)
	}
	if n > 92 {
		return 0, fmt.Errorf("fibonacci: index %d overflows int64", n)
	}
	a, b := 0, 1
	for i := 0; i < n; i++ {
		a, b = b, a+b
	}
	return a, nil
}

// Checksum sums data, a byte array as JSON peers send it: a list of numbers.
func Checksum(data []int) (int, error) {
	sum := 0
	for i, b := range data {
		if b < 0 || b > 255 {
			return 0, fmt.Errorf("checksum: element %d (%d) is not a byte", i, b)
		}
		sum += b
	}
	return sum, nil
}

// Register binds every function of this package under its lower-case name.
func Register(reg *registry.Registry) error {
	methods := map[string]any{
		"add":       Add,
		"sub":       Sub,
		"fibonacci": Fibonacci,
		"checksum":  Checksum,
	}
	for name, fn := range methods {
		if err := reg.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// Client calls the arith methods, one connection per call.
type Client struct {
	*client.Client
}

func NewClient(c *client.Client) *Client {
	return &Client{Client: c}
}

func (c *Client) Add(a, b int) (int, error) {
	var n int
	err := c.Invoke("add", &n, a, b)
	return n, err
}

func (c *Client) Sub(a, b int) (int, error) {
	var n int
	err := c.Invoke("sub", &n, a, b)
	return n, err
}

func (c *Client) Fibonacci(n int) (int, error) {
	var f int
	err := c.Invoke("fibonacci", &f, n)
	return f, err
}

func (c *Client) Checksum(data []byte) (int, error) {
	ints := make([]int, len(data))
	for i, b := range data {
		ints[i] = int(b)
	}
	var sum int
	err := c.Invoke("checksum", &sum, ints)
	return sum, err
}
