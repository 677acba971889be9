// Package redis builds the go-redis client used by the Redis result sink,
// configured through functional options over redis.Options.
package redis

import (
	"context"
	"crypto/tls"
	"net"
	"strings"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/redis/go-redis/v9"

	"github.com/hyp3rd/pagetemp/internal/constants"
	"github.com/hyp3rd/pagetemp/internal/sentinel"
)

// Option is a function type that can be used to configure the client.
type Option func(*redis.Options)

// ApplyOptions applies the given options to the given redis.Options.
func ApplyOptions(opt *redis.Options, options ...Option) {
	for _, option := range options {
		option(opt)
	}
}

// WithAddr sets the `Addr` field of the `redis.Options` struct.
func WithAddr(addr string) Option {
	return func(opt *redis.Options) {
		opt.Addr = addr
	}
}

// WithCredentials sets the `Username` and `Password` fields of the `redis.Options` struct.
func WithCredentials(username, password string) Option {
	return func(opt *redis.Options) {
		opt.Username = username
		opt.Password = password
	}
}

// WithDB sets the `DB` field of the `redis.Options` struct.
func WithDB(db int) Option {
	return func(opt *redis.Options) {
		opt.DB = db
	}
}

// WithPoolSize sets the `PoolSize` field of the `redis.Options` struct.
func WithPoolSize(poolSize int) Option {
	return func(opt *redis.Options) {
		opt.PoolSize = poolSize
	}
}

// WithTimeouts sets the dial, read and write timeouts.
func WithTimeouts(dial, read, write time.Duration) Option {
	return func(opt *redis.Options) {
		opt.DialTimeout = dial
		opt.ReadTimeout = read
		opt.WriteTimeout = write
	}
}

// WithTLSConfig sets the `TLSConfig` field of the `redis.Options` struct.
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(opt *redis.Options) {
		opt.TLSConfig = tlsConfig
	}
}

// ParseTarget turns a command-line target into options: either a redis:// URL
// or a bare host:port address.
func ParseTarget(target string) ([]Option, error) {
	if !strings.Contains(target, "://") {
		return []Option{WithAddr(target)}, nil
	}

	parsed, err := redis.ParseURL(target)
	if err != nil {
		return nil, ewrap.Wrapf(err, "invalid redis url %q", target)
	}

	return []Option{
		WithAddr(parsed.Addr),
		WithCredentials(parsed.Username, parsed.Password),
		WithDB(parsed.DB),
		WithTLSConfig(parsed.TLSConfig),
	}, nil
}

// Connect creates a client with the given options and checks it with a PING.
func Connect(ctx context.Context, opts ...Option) (*redis.Client, error) {
	opt := &redis.Options{
		Dialer: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{
				Timeout: constants.RedisDialTimeout,
			}

			return dialer.DialContext(ctx, network, addr)
		},
		MaxRetries:   constants.RedisClientMaxRetries,
		DialTimeout:  constants.RedisDialTimeout,
		ReadTimeout:  constants.RedisClientReadTimeout,
		WriteTimeout: constants.RedisClientWriteTimeout,
		PoolSize:     constants.RedisClientPoolSize,
		MinIdleConns: constants.RedisClientMinIdleConns,
		PoolTimeout:  constants.RedisClientPoolTimeout,
	}

	ApplyOptions(opt, opts...)

	if strings.TrimSpace(opt.Addr) == "" {
		return nil, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "redis address")
	}

	client := redis.NewClient(opt)

	err := client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, ewrap.Wrapf(err, "failed to reach redis at %s", opt.Addr)
	}

	return client, nil
}
