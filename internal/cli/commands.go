package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/khicago/prefixcache"
	"github.com/khicago/prefixcache/config"
)

func (a *app) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored at key",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cache *config.Cache, args []string) error {
			value, err := cache.Value(ctx, args[0])
			if errors.Is(err, prefixcache.ErrNotFound) {
				return fmt.Errorf("key %q not found", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, string(value))
			return nil
		}),
	}
}

func (a *app) newSetCmd() *cobra.Command {
	var ttl time.Duration
	var onlyNew bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store value at key",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(ctx context.Context, cache *config.Cache, args []string) error {
			if args[0] == "" {
				return prefixcache.ErrInvalidKey
			}
			if onlyNew {
				return cache.Add(ctx, args[0], []byte(args[1]), ttl)
			}
			return cache.Set(ctx, args[0], []byte(args[1]), ttl)
		}),
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "expiration (0 keeps the item until deleted)")
	cmd.Flags().BoolVar(&onlyNew, "add", false, "fail if the key already exists")
	return cmd
}

func (a *app) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <key>...",
		Aliases: []string{"del", "unset"},
		Short:   "Delete keys",
		Args:    cobra.MinimumNArgs(1),
		RunE: a.run(func(ctx context.Context, cache *config.Cache, args []string) error {
			if len(args) == 1 {
				return cache.Unset(ctx, args[0])
			}
			return cache.DeleteMulti(ctx, args)
		}),
	}
}

func (a *app) newExistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <key>",
		Short: "Print whether key is present",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cache *config.Cache, args []string) error {
			ok, err := cache.Has(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, ok)
			return nil
		}),
	}
}

func (a *app) newIncrCmd() *cobra.Command {
	var decrement bool

	cmd := &cobra.Command{
		Use:   "incr <key> [delta]",
		Short: "Add delta (default 1) to a decimal counter and print the result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: a.run(func(ctx context.Context, cache *config.Cache, args []string) error {
			delta := uint64(1)
			if len(args) == 2 {
				n, err := strconv.ParseUint(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("delta must be a non-negative integer: %w", err)
				}
				delta = n
			}

			var n uint64
			var err error
			if decrement {
				n, err = cache.Decrement(ctx, args[0], delta)
			} else {
				n, err = cache.Increment(ctx, args[0], delta)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, n)
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&decrement, "decrement", "d", false, "subtract instead of add")
	return cmd
}

func (a *app) newForwardCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "forward <operation> [args]...",
		Short: "Call any operation by name",
		Long: `Call an operation by its memcached-style name, e.g. getMulti or setByKey.
Batch operations take their keys as separate arguments; setMulti takes key=value pairs.
Names the proxy does not know are passed to the backend unchanged (e.g. flush, ping).`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.run(func(ctx context.Context, cache *config.Cache, args []string) error {
			fargs, err := forwardArgs(args[0], args[1:], ttl)
			if err != nil {
				return err
			}
			loggerFromContext(ctx).Debug("forwarding", "op", args[0], "args", len(fargs))

			res, err := cache.Forward(ctx, args[0], fargs...)
			if err != nil {
				return err
			}
			return printResult(a.out, res)
		}),
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "expiration for operations that take one")
	return cmd
}

// takesExpiration reports whether op ends with an expiration argument.
func takesExpiration(op prefixcache.Op) bool {
	switch op {
	case prefixcache.OpSet, prefixcache.OpSetByKey, prefixcache.OpSetMulti, prefixcache.OpSetMultiByKey,
		prefixcache.OpAdd, prefixcache.OpAddByKey, prefixcache.OpReplace, prefixcache.OpReplaceByKey,
		prefixcache.OpCas, prefixcache.OpCasByKey, prefixcache.OpTouch, prefixcache.OpTouchByKey:
		return true
	}
	return false
}

// forwardArgs turns command-line strings into the arguments op expects.
// Unknown operations get the strings unchanged.
func forwardArgs(name string, raw []string, ttl time.Duration) ([]any, error) {
	op, ok := prefixcache.LookupOp(name)
	if !ok {
		args := make([]any, len(raw))
		for i, s := range raw {
			args[i] = s
		}
		return args, nil
	}

	pos := op.KeyArg()
	if len(raw) <= pos {
		return nil, fmt.Errorf("%s needs at least %d arguments", name, pos+1)
	}

	var args []any
	for _, s := range raw[:pos] {
		args = append(args, s)
	}

	switch op {
	case prefixcache.OpCas, prefixcache.OpCasByKey:
		id, err := strconv.ParseUint(raw[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cas token must be a number: %w", err)
		}
		args[0] = prefixcache.CASToken{ID: id}
	}

	rest := raw[pos:]
	switch {
	case op == prefixcache.OpSetMulti || op == prefixcache.OpSetMultiByKey:
		items := make(map[string][]byte, len(rest))
		for _, pair := range rest {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, fmt.Errorf("%s takes key=value pairs, got %q", name, pair)
			}
			items[k] = []byte(v)
		}
		args = append(args, items)
	case op.Batch():
		args = append(args, rest)
	default:
		args = append(args, rest[0])
		for _, s := range rest[1:] {
			args = append(args, s)
		}
		if isCounter(op) && len(rest) > 1 {
			delta, err := strconv.ParseUint(rest[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("delta must be a non-negative integer: %w", err)
			}
			args[pos+1] = delta
		}
	}

	if ttl > 0 && takesExpiration(op) {
		args = append(args, ttl)
	}
	return args, nil
}

func isCounter(op prefixcache.Op) bool {
	switch op {
	case prefixcache.OpIncrement, prefixcache.OpIncrementByKey,
		prefixcache.OpDecrement, prefixcache.OpDecrementByKey:
		return true
	}
	return false
}

// printResult writes a forwarded result in a line-oriented form.
func printResult(w io.Writer, res any) error {
	switch v := res.(type) {
	case nil:
		fmt.Fprintln(w, "OK")
	case *prefixcache.Item:
		fmt.Fprintln(w, string(v.Value))
	case map[string]*prefixcache.Item:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s=%s\n", k, v[k].Value)
		}
	case <-chan *prefixcache.Item:
		for it := range v {
			fmt.Fprintf(w, "%s=%s\n", it.Key, it.Value)
		}
	default:
		fmt.Fprintln(w, v)
	}
	return nil
}
