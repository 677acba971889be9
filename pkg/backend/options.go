package backend

import (
	"github.com/redis/go-redis/v9"

	"github.com/hyp3rd/pagetemp/internal/libs/serializer"
)

// iSerializingSink is implemented by sinks that encode records.
type iSerializingSink interface {
	setSerializer(s serializer.ISerializer)
}

func (f *File) setSerializer(s serializer.ISerializer) { f.serializer = s }

func (rb *Redis) setSerializer(s serializer.ISerializer) { rb.serializer = s }

// Option is a function type that can be used to configure a sink.
type Option[T ISinkConstrain] func(*T)

// ApplyOptions applies the given options to the given sink.
func ApplyOptions[T ISinkConstrain](sink *T, options ...Option[T]) {
	for _, option := range options {
		option(sink)
	}
}

// WithSerializer sets the record codec of a File or Redis sink.
//   - The default serializer is `serializer.MsgpackSerializer`.
//   - The interface `serializer.ISerializer` can be implemented to use a custom codec.
func WithSerializer[T ISinkConstrain](s serializer.ISerializer) Option[T] {
	return func(sink *T) {
		if configurable, ok := any(sink).(iSerializingSink); ok {
			configurable.setSerializer(s)
		}
	}
}

// WithRootDir sets the directory a File sink writes its series under.
func WithRootDir(dir string) Option[File] {
	return func(f *File) {
		f.root = dir
	}
}

// WithRedisClient is an option that sets the redis client to use.
func WithRedisClient(client *redis.Client) Option[Redis] {
	return func(rb *Redis) {
		rb.rdb = client
	}
}

// WithKeyPrefix sets the prefix of every Redis series key.
func WithKeyPrefix(prefix string) Option[Redis] {
	return func(rb *Redis) {
		rb.prefix = prefix
	}
}
