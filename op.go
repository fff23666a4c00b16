package prefixcache

import (
	"strconv"
	"strings"
)

// Op enumerates the operations the Proxy knows how to rewrite.
type Op uint8

const (
	OpGet Op = iota
	OpGetByKey
	OpGetMulti
	OpGetMultiByKey
	OpGetDelayed
	OpGetDelayedByKey
	OpSet
	OpSetByKey
	OpSetMulti
	OpSetMultiByKey
	OpAdd
	OpAddByKey
	OpReplace
	OpReplaceByKey
	OpAppend
	OpAppendByKey
	OpPrepend
	OpPrependByKey
	OpCas
	OpCasByKey
	OpDelete
	OpDeleteByKey
	OpDeleteMulti
	OpDeleteMultiByKey
	OpIncrement
	OpIncrementByKey
	OpDecrement
	OpDecrementByKey
	OpTouch
	OpTouchByKey

	numOps
)

// descriptor records where an operation keeps its key(s). keyArg counts
// arguments after the context.
type descriptor struct {
	name   string
	keyArg int
	batch  bool
}

var descriptors = func() [numOps]descriptor {
	table := [numOps]descriptor{
		OpGet:              {name: "get", keyArg: 0},
		OpGetByKey:         {name: "getByKey", keyArg: 1},
		OpGetMulti:         {name: "getMulti", keyArg: 0},
		OpGetMultiByKey:    {name: "getMultiByKey", keyArg: 1},
		OpGetDelayed:       {name: "getDelayed", keyArg: 0},
		OpGetDelayedByKey:  {name: "getDelayedByKey", keyArg: 1},
		OpSet:              {name: "set", keyArg: 0},
		OpSetByKey:         {name: "setByKey", keyArg: 1},
		OpSetMulti:         {name: "setMulti", keyArg: 0},
		OpSetMultiByKey:    {name: "setMultiByKey", keyArg: 1},
		OpAdd:              {name: "add", keyArg: 0},
		OpAddByKey:         {name: "addByKey", keyArg: 1},
		OpReplace:          {name: "replace", keyArg: 0},
		OpReplaceByKey:     {name: "replaceByKey", keyArg: 1},
		OpAppend:           {name: "append", keyArg: 0},
		OpAppendByKey:      {name: "appendByKey", keyArg: 1},
		OpPrepend:          {name: "prepend", keyArg: 0},
		OpPrependByKey:     {name: "prependByKey", keyArg: 1},
		OpCas:              {name: "cas", keyArg: 1},
		OpCasByKey:         {name: "casByKey", keyArg: 2},
		OpDelete:           {name: "delete", keyArg: 0},
		OpDeleteByKey:      {name: "deleteByKey", keyArg: 1},
		OpDeleteMulti:      {name: "deleteMulti", keyArg: 0},
		OpDeleteMultiByKey: {name: "deleteMultiByKey", keyArg: 1},
		OpIncrement:        {name: "increment", keyArg: 0},
		OpIncrementByKey:   {name: "incrementByKey", keyArg: 1},
		OpDecrement:        {name: "decrement", keyArg: 0},
		OpDecrementByKey:   {name: "decrementByKey", keyArg: 1},
		OpTouch:            {name: "touch", keyArg: 0},
		OpTouchByKey:       {name: "touchByKey", keyArg: 1},
	}
	for i := range table {
		table[i].batch = isBatchName(table[i].name)
	}
	return table
}()

var opsByName = func() map[string]Op {
	m := make(map[string]Op, numOps)
	for op := Op(0); op < numOps; op++ {
		m[descriptors[op].name] = op
	}
	return m
}()

// isBatchName reports whether an operation name denotes a multi-key or
// delayed fetch, whose key argument is a collection.
func isBatchName(name string) bool {
	return strings.Contains(name, "Multi") || strings.Contains(name, "Delayed")
}

// LookupOp resolves an operation name such as "getMultiByKey".
func LookupOp(name string) (Op, bool) {
	op, ok := opsByName[name]
	return op, ok
}

// Ops returns every known operation in declaration order.
func Ops() []Op {
	ops := make([]Op, numOps)
	for i := range ops {
		ops[i] = Op(i)
	}
	return ops
}

func (op Op) valid() bool { return op < numOps }

func (op Op) String() string {
	if !op.valid() {
		return "Op(" + strconv.Itoa(int(op)) + ")"
	}
	return descriptors[op].name
}

// KeyArg returns the position of the key argument, not counting the context.
func (op Op) KeyArg() int {
	if !op.valid() {
		return -1
	}
	return descriptors[op].keyArg
}

// Batch reports whether the key argument holds several keys.
func (op Op) Batch() bool {
	return op.valid() && descriptors[op].batch
}
