package server

import (
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"tiny-rpc/protocol"
)

const (
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 8080
	DefaultServiceName = "tiny-rpc"
	DefaultAnnounceTTL = 10 // seconds
)

// Config is everything the server needs to bind and frame. The zero value is
// not usable; start from DefaultConfig.
type Config struct {
	Host string
	Port int

	Framing protocol.Framing
	// MaxMessageSize bounds one message body. Zero means the framing's default:
	// 4 MiB for length-prefixed, 1024 bytes for raw.
	MaxMessageSize int
	// IOTimeout, when positive, is the deadline for reading the request and
	// writing the reply on each connection. Zero waits forever.
	IOTimeout time.Duration

	// Used only when the server is given a discovery registry.
	ServiceName    string
	ServiceVersion string // semantic version, matched by discovery.Resolver.RequireVersion
	ServiceWeight  int
	AdvertiseAddr  string // defaults to the listener address
	AnnounceTTL    int64
}

func DefaultConfig() Config {
	return Config{
		Host:        DefaultHost,
		Port:        DefaultPort,
		Framing:     protocol.FramingLengthPrefixed,
		ServiceName: DefaultServiceName,
		AnnounceTTL: DefaultAnnounceTTL,
	}
}

// BindFlags registers the config fields on fs, using the current values as defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Host, "host", c.Host, "address to bind")
	fs.IntVar(&c.Port, "port", c.Port, "port to listen on")
	fs.StringVar((*string)(&c.Framing), "framing", string(c.Framing), "message framing: length-prefixed or raw")
	fs.IntVar(&c.MaxMessageSize, "max-message-size", c.MaxMessageSize, "largest message body in bytes (0 for the framing default)")
	fs.DurationVar(&c.IOTimeout, "io-timeout", c.IOTimeout, "per-connection read/write deadline (0 to wait forever)")
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "name announced to service discovery")
	fs.StringVar(&c.ServiceVersion, "service-version", c.ServiceVersion, "semantic version announced to service discovery")
	fs.IntVar(&c.ServiceWeight, "service-weight", c.ServiceWeight, "weight announced to service discovery, for weighted balancing")
	fs.StringVar(&c.AdvertiseAddr, "advertise-addr", c.AdvertiseAddr, "address announced to service discovery (defaults to the listen address)")
	fs.Int64Var(&c.AnnounceTTL, "announce-ttl", c.AnnounceTTL, "service discovery lease TTL in seconds")
}

// Addr is the host:port the server binds.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.Errorf("port %d out of range", c.Port)
	}
	if _, err := protocol.ParseFraming(string(c.Framing)); err != nil {
		return err
	}
	if c.MaxMessageSize < 0 {
		return errors.Errorf("max message size %d is negative", c.MaxMessageSize)
	}
	if uint64(c.MaxMessageSize) > protocol.MaxBodySizeLimit {
		return errors.Errorf("max message size %d exceeds limit of %d", c.MaxMessageSize, uint64(protocol.MaxBodySizeLimit))
	}
	if c.ServiceWeight < 0 {
		return errors.Errorf("service weight %d is negative", c.ServiceWeight)
	}
	if c.IOTimeout < 0 {
		return errors.Errorf("io timeout %s is negative", c.IOTimeout)
	}
	return nil
}
