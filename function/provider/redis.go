package provider

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/flowquery-dev/flowquery/fqerr"
	"github.com/flowquery-dev/flowquery/function"
)

func init() {
	function.Default.Register(function.Descriptor{
		Name:     "redisScan",
		Category: function.Async,
		Arity:    function.Arity{Exact: 2},
		Params: []function.ParamSchema{
			{Name: "addr", Type: "string", Doc: "host:port of the Redis server"},
			{Name: "pattern", Type: "string", Doc: "key glob pattern, as for the SCAN command"},
		},
		Output: "map",
		New:    func() function.Instance { return redisScanProvider{} },
	})
}

// redisScanProvider streams `{key, value}` rows for every key matching
// pattern on the named Redis server, draining the server-side SCAN cursor
// so arbitrarily large keyspaces stream without loading them all at once.
type redisScanProvider struct{}

func (redisScanProvider) Call(args []any) (function.AsyncIter, error) {
	addr, _ := args[0].(string)
	pattern, _ := args[1].(string)

	ctx, cancel := context.WithCancel(context.Background())
	it := newChanIter(cancel)

	client := redis.NewClient(&redis.Options{Addr: addr})

	go func() {
		defer it.finish()
		defer client.Close()

		var cursor uint64
		for {
			keys, next, err := client.Scan(ctx, cursor, pattern, 100).Result()
			if err != nil {
				it.fail(fqerr.ErrProviderIO.Wrap(err, fmt.Sprintf("redis://%s", addr), err.Error()))
				return
			}
			for _, key := range keys {
				val, err := client.Get(ctx, key).Result()
				if err != nil && err != redis.Nil {
					it.fail(fqerr.ErrProviderIO.Wrap(err, fmt.Sprintf("redis://%s", addr), err.Error()))
					return
				}
				it.emit(function.AsyncRow{IsMap: true, Map: map[string]any{
					"key":   key,
					"value": val,
				}})
			}
			cursor = next
			if cursor == 0 {
				return
			}
		}
	}()

	return it, nil
}
