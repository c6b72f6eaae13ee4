// Package keyslot extracts the routing key(s) out of a command's argument
// list, honoring hash-tag syntax and the per-command routing descriptor.
// It returns byte strings only; hashing them with whichever sharding
// scheme is in play is left to the caller.
package keyslot

import "bytes"

// Kind classifies where a command's routing key(s) live among its
// arguments.
type Kind int

const (
	// Unroutable commands are never allowed on a cluster.
	Unroutable Kind = iota
	// FirstKey: the first argument is the routing key.
	FirstKey
	// AllKeys: every argument is a key; all must hash identically.
	AllKeys
	// InterleavedKeys: keys sit at offset, offset+step, offset+2*step, ...
	InterleavedKeys
	// KeyAt: the key is the argument at a fixed position.
	KeyAt
	// EvalLike: argument 1 declares the key count; those keys follow
	// (argument 0 is the script/sha, matching EVAL's "script numkeys key...").
	EvalLike
)

// Descriptor declares how to find the routing key(s) in a command's
// argument list.
type Descriptor struct {
	Kind Kind
	// Step and Offset apply to InterleavedKeys (e.g. MSET: step=2, offset=0).
	Step   int
	Offset int
	// Position applies to KeyAt (e.g. SORT's key argument).
	Position int
}

// Table maps a command id to its routing descriptor. Commands absent
// from the table are treated as Unroutable.
type Table map[string]Descriptor

// DefaultTable is a representative descriptor set covering the commands
// named in the routing core's specification and typical multi-key
// commands. Callers may extend or replace it entirely; the extractor
// only ever consults the Table it is given.
var DefaultTable = Table{
	"GET":     {Kind: FirstKey},
	"SET":     {Kind: FirstKey},
	"DEL":     {Kind: AllKeys},
	"EXISTS":  {Kind: AllKeys},
	"MGET":    {Kind: AllKeys},
	"MSET":    {Kind: InterleavedKeys, Step: 2, Offset: 0},
	"MSETNX":  {Kind: InterleavedKeys, Step: 2, Offset: 0},
	"SORT":    {Kind: KeyAt, Position: 0},
	"EVAL":    {Kind: EvalLike},
	"EVALSHA": {Kind: EvalLike},
	"PING":    {Kind: Unroutable},
	"INFO":    {Kind: Unroutable},
	"FLUSHDB": {Kind: Unroutable},
	"MULTI":   {Kind: Unroutable},
	"EXEC":    {Kind: Unroutable},
}

// ErrNoHash is returned by Keys when the command's routing descriptor
// gives no usable key set (unroutable or unknown command, missing key
// arguments, malformed EvalLike key count). Whether a multi-key
// command's keys agree once hashed is checked by the caller, not here.
type ErrNoHash struct {
	CommandID string
}

func (e *ErrNoHash) Error() string {
	return "no hash: command " + e.CommandID + " is not routable"
}

// Keys returns the routing-key byte strings for a command given its id
// and arguments, per the descriptor found in table. It returns
// (nil, *ErrNoHash) for Unroutable commands or ones missing from the
// table, and for malformed EvalLike arguments.
func Keys(table Table, id string, args [][]byte) ([][]byte, error) {
	d, ok := table[id]
	if !ok || d.Kind == Unroutable {
		return nil, &ErrNoHash{CommandID: id}
	}

	switch d.Kind {
	case FirstKey:
		if len(args) < 1 {
			return nil, &ErrNoHash{CommandID: id}
		}
		return args[:1], nil
	case AllKeys:
		if len(args) == 0 {
			return nil, &ErrNoHash{CommandID: id}
		}
		return args, nil
	case InterleavedKeys:
		step := d.Step
		if step < 1 {
			step = 1
		}
		var keys [][]byte
		for i := d.Offset; i < len(args); i += step {
			keys = append(keys, args[i])
		}
		if len(keys) == 0 {
			return nil, &ErrNoHash{CommandID: id}
		}
		return keys, nil
	case KeyAt:
		if d.Position < 0 || d.Position >= len(args) {
			return nil, &ErrNoHash{CommandID: id}
		}
		return args[d.Position : d.Position+1], nil
	case EvalLike:
		n, err := parseInt(args, 1)
		if err != nil || n <= 0 || 2+n > len(args) {
			return nil, &ErrNoHash{CommandID: id}
		}
		return args[2 : 2+n], nil
	default:
		return nil, &ErrNoHash{CommandID: id}
	}
}

func parseInt(args [][]byte, idx int) (int, error) {
	if idx >= len(args) {
		return 0, &ErrNoHash{}
	}
	b := args[idx]
	if len(b) == 0 {
		return 0, &ErrNoHash{}
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, &ErrNoHash{}
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// HashTag applies hash-tag processing to a routing key: if it contains
// '{' followed later by '}' with at least one byte strictly between
// them, the region between the first '{' and the first subsequent '}' is
// returned; otherwise the full key is returned unchanged.
func HashTag(key []byte) []byte {
	open := bytes.IndexByte(key, '{')
	if open < 0 {
		return key
	}
	close := bytes.IndexByte(key[open+1:], '}')
	if close < 0 {
		return key
	}
	if close == 0 {
		// "{}" — empty tag is ignored, hash the full key.
		return key
	}
	return key[open+1 : open+1+close]
}
