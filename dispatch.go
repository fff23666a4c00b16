package prefixcache

import "context"

// dispatch invokes op on c with already rewritten arguments.
func dispatch(ctx context.Context, c Client, op Op, args []any) (any, error) {
	r := &argReader{op: op, args: args}

	switch op {
	case OpGet:
		key := r.str(0)
		if r.err != nil {
			return nil, r.err
		}
		return c.Get(ctx, key)
	case OpGetByKey:
		server, key := r.str(0), r.str(1)
		if r.err != nil {
			return nil, r.err
		}
		return c.GetByKey(ctx, server, key)
	case OpGetMulti:
		keys := r.keys(0)
		if r.err != nil {
			return nil, r.err
		}
		return c.GetMulti(ctx, keys)
	case OpGetMultiByKey:
		server, keys := r.str(0), r.keys(1)
		if r.err != nil {
			return nil, r.err
		}
		return c.GetMultiByKey(ctx, server, keys)
	case OpGetDelayed:
		keys := r.keys(0)
		if r.err != nil {
			return nil, r.err
		}
		return c.GetDelayed(ctx, keys)
	case OpGetDelayedByKey:
		server, keys := r.str(0), r.keys(1)
		if r.err != nil {
			return nil, r.err
		}
		return c.GetDelayedByKey(ctx, server, keys)

	case OpSet, OpAdd, OpReplace:
		key, value, exp := r.str(0), r.bytes(1), r.duration(2)
		if r.err != nil {
			return nil, r.err
		}
		switch op {
		case OpAdd:
			return nil, c.Add(ctx, key, value, exp)
		case OpReplace:
			return nil, c.Replace(ctx, key, value, exp)
		}
		return nil, c.Set(ctx, key, value, exp)
	case OpSetByKey, OpAddByKey, OpReplaceByKey:
		server, key, value, exp := r.str(0), r.str(1), r.bytes(2), r.duration(3)
		if r.err != nil {
			return nil, r.err
		}
		switch op {
		case OpAddByKey:
			return nil, c.AddByKey(ctx, server, key, value, exp)
		case OpReplaceByKey:
			return nil, c.ReplaceByKey(ctx, server, key, value, exp)
		}
		return nil, c.SetByKey(ctx, server, key, value, exp)
	case OpSetMulti:
		items, exp := r.items(0), r.duration(1)
		if r.err != nil {
			return nil, r.err
		}
		return nil, c.SetMulti(ctx, items, exp)
	case OpSetMultiByKey:
		server, items, exp := r.str(0), r.items(1), r.duration(2)
		if r.err != nil {
			return nil, r.err
		}
		return nil, c.SetMultiByKey(ctx, server, items, exp)

	case OpAppend, OpPrepend:
		key, value := r.str(0), r.bytes(1)
		if r.err != nil {
			return nil, r.err
		}
		if op == OpPrepend {
			return nil, c.Prepend(ctx, key, value)
		}
		return nil, c.Append(ctx, key, value)
	case OpAppendByKey, OpPrependByKey:
		server, key, value := r.str(0), r.str(1), r.bytes(2)
		if r.err != nil {
			return nil, r.err
		}
		if op == OpPrependByKey {
			return nil, c.PrependByKey(ctx, server, key, value)
		}
		return nil, c.AppendByKey(ctx, server, key, value)

	case OpCas:
		token, key, value, exp := r.token(0), r.str(1), r.bytes(2), r.duration(3)
		if r.err != nil {
			return nil, r.err
		}
		return nil, c.Cas(ctx, token, key, value, exp)
	case OpCasByKey:
		token, server, key, value, exp := r.token(0), r.str(1), r.str(2), r.bytes(3), r.duration(4)
		if r.err != nil {
			return nil, r.err
		}
		return nil, c.CasByKey(ctx, token, server, key, value, exp)

	case OpDelete:
		key := r.str(0)
		if r.err != nil {
			return nil, r.err
		}
		return nil, c.Delete(ctx, key)
	case OpDeleteByKey:
		server, key := r.str(0), r.str(1)
		if r.err != nil {
			return nil, r.err
		}
		return nil, c.DeleteByKey(ctx, server, key)
	case OpDeleteMulti:
		keys := r.keys(0)
		if r.err != nil {
			return nil, r.err
		}
		return nil, c.DeleteMulti(ctx, keys)
	case OpDeleteMultiByKey:
		server, keys := r.str(0), r.keys(1)
		if r.err != nil {
			return nil, r.err
		}
		return nil, c.DeleteMultiByKey(ctx, server, keys)

	case OpIncrement, OpDecrement:
		key, delta := r.str(0), r.delta(1)
		if r.err != nil {
			return nil, r.err
		}
		if op == OpDecrement {
			return c.Decrement(ctx, key, delta)
		}
		return c.Increment(ctx, key, delta)
	case OpIncrementByKey, OpDecrementByKey:
		server, key, delta := r.str(0), r.str(1), r.delta(2)
		if r.err != nil {
			return nil, r.err
		}
		if op == OpDecrementByKey {
			return c.DecrementByKey(ctx, server, key, delta)
		}
		return c.IncrementByKey(ctx, server, key, delta)

	case OpTouch:
		key, exp := r.str(0), r.duration(1)
		if r.err != nil {
			return nil, r.err
		}
		return nil, c.Touch(ctx, key, exp)
	case OpTouchByKey:
		server, key, exp := r.str(0), r.str(1), r.duration(2)
		if r.err != nil {
			return nil, r.err
		}
		return nil, c.TouchByKey(ctx, server, key, exp)
	}

	return nil, ErrUnknownOperation
}
