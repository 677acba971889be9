package backend

import (
	"context"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/redis/go-redis/v9"

	"github.com/hyp3rd/pagetemp/internal/constants"
	"github.com/hyp3rd/pagetemp/internal/libs/serializer"
	"github.com/hyp3rd/pagetemp/internal/sentinel"
)

const (
	maxRetries   = 3
	retriesDelay = 100 * time.Millisecond
)

// Redis is a sink that appends encoded records to one redis list per series.
type Redis struct {
	rdb        *redis.Client          // redis client to interact with the redis server
	prefix     string                 // prefix is prepended to every series key
	serializer serializer.ISerializer // serializer encodes each record as one list element
}

// NewRedis creates a new redis sink with the given options.
func NewRedis(opts ...Option[Redis]) (*Redis, error) {
	rb := &Redis{}
	ApplyOptions(rb, opts...)

	if rb.rdb == nil {
		return nil, sentinel.ErrNilClient
	}

	if rb.prefix == "" {
		rb.prefix = constants.RedisKeyPrefix
	}

	if rb.serializer == nil {
		var err error

		rb.serializer, err = serializer.New(constants.DefaultSerializer)
		if err != nil {
			return nil, err
		}
	}

	return rb, nil
}

// Key returns the redis key of a series.
func (rb *Redis) Key(series string) string {
	return rb.prefix + ":" + series
}

// Append pushes the encoded records to the right end of the series list.
func (rb *Redis) Append(ctx context.Context, series string, records ...Record) error {
	if len(records) == 0 {
		return nil
	}

	values := make([]any, len(records))

	for i, rec := range records {
		data, err := rb.serializer.Marshal(rec)
		if err != nil {
			return err
		}

		values[i] = data
	}

	err := rb.rdb.RPush(ctx, rb.Key(series), values...).Err()
	if err != nil {
		return ewrap.Wrap(err, "pushing to "+rb.Key(series), ewrap.WithRetry(maxRetries, retriesDelay))
	}

	return nil
}

// Series reads back every record of a series.
func (rb *Redis) Series(ctx context.Context, series string) ([]Record, error) {
	values, err := rb.rdb.LRange(ctx, rb.Key(series), 0, -1).Result()
	if err != nil {
		return nil, ewrap.Wrapf(err, "reading %s", rb.Key(series))
	}

	records := make([]Record, len(values))

	for i, v := range values {
		err = rb.serializer.Unmarshal([]byte(v), &records[i])
		if err != nil {
			return nil, err
		}
	}

	return records, nil
}

// Clear deletes a series.
func (rb *Redis) Clear(ctx context.Context, series string) error {
	err := rb.rdb.Del(ctx, rb.Key(series)).Err()
	if err != nil {
		return ewrap.Wrapf(err, "deleting %s", rb.Key(series))
	}

	return nil
}

// Close closes the redis client.
func (rb *Redis) Close() error {
	err := rb.rdb.Close()
	if err != nil {
		return ewrap.Wrap(err, "closing redis client")
	}

	return nil
}
