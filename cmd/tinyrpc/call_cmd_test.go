package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiny-rpc/arith"
	"tiny-rpc/discovery"
	"tiny-rpc/registry"
	"tiny-rpc/server"
)

func TestParseParams(t *testing.T) {
	params := parseParams([]string{"2", "-1.5", `[1, 2]`, `{"a": 1}`, "true", "null", `"quoted"`, "hello", "1 2", ""})

	want := []string{`2`, `-1.5`, `[1,2]`, `{"a":1}`, `true`, `null`, `"quoted"`, `"hello"`, `"1 2"`, `""`}
	require.Len(t, params, len(want))
	for i, p := range params {
		data, err := json.Marshal(p)
		require.NoError(t, err)
		assert.JSONEq(t, want[i], string(data), "param %d", i)
	}
}

func TestParseBalancer(t *testing.T) {
	b, err := parseBalancer("round-robin")
	require.NoError(t, err)
	assert.IsType(t, &discovery.RoundRobinBalancer{}, b)

	b, err = parseBalancer("weighted-random")
	require.NoError(t, err)
	assert.IsType(t, &discovery.WeightedRandomBalancer{}, b)

	_, err = parseBalancer("fastest")
	assert.IsType(t, usageError{}, err)
}

func startArith(t *testing.T) string {
	t.Helper()
	methods := registry.New()
	require.NoError(t, arith.Register(methods))
	svr, err := server.NewServer(methods, server.DefaultConfig())
	require.NoError(t, err)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go svr.Serve(listener)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		svr.Shutdown(ctx)
	})
	return listener.Addr().String()
}

func runCall(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRoot().Command()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"call"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCallCommand(t *testing.T) {
	addr := startArith(t)

	out, err := runCall(t, "--addr", addr, "add", "2", "8")
	require.NoError(t, err)
	assert.Equal(t, "10\n", out)

	out, err = runCall(t, "--addr", addr, "--codec", "yaml", "fibonacci", "10")
	require.NoError(t, err)
	assert.Equal(t, "55\n", out)

	out, err = runCall(t, "--addr", addr, "checksum", "[1, 2, 3]")
	require.NoError(t, err)
	assert.Equal(t, "6\n", out)
}

func TestCallCommandErrors(t *testing.T) {
	addr := startArith(t)

	_, err := runCall(t, "--addr", addr, "multiply", "2", "3")
	assert.EqualError(t, err, "Unknown method 'multiply'")

	_, err = runCall(t, "--addr", addr)
	assert.Equal(t, errorWantedMethod, err)

	_, err = runCall(t, "--addr", addr, "--codec", "xml", "add", "1", "2")
	assert.IsType(t, usageError{}, err)

	_, err = runCall(t, "--log-level", "loud", "--addr", addr, "add", "1", "2")
	assert.IsType(t, usageError{}, err)
}
