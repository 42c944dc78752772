// Package command maps parsed request frames onto the fixed set of
// commands the server understands.
package command

import "strings"

// Kind identifies one command variant
type Kind int

const (
	Unknown Kind = iota
	Ping
	Echo
	Set
	Get
	Del
	Exists
	Keys
	Expire
	TTL
	MGet
	Incr
	Decr
	IncrBy
	DecrBy
	Append
	StrLen
	HSet
	HGet
	Select
	Info
	Save
	Load
	Auth
	Subscribe
	Publish
	Eval
	Quit
)

var kinds = map[string]Kind{
	"PING":      Ping,
	"ECHO":      Echo,
	"SET":       Set,
	"GET":       Get,
	"DEL":       Del,
	"EXISTS":    Exists,
	"KEYS":      Keys,
	"EXPIRE":    Expire,
	"TTL":       TTL,
	"MGET":      MGet,
	"INCR":      Incr,
	"DECR":      Decr,
	"INCRBY":    IncrBy,
	"DECRBY":    DecrBy,
	"APPEND":    Append,
	"STRLEN":    StrLen,
	"HSET":      HSet,
	"HGET":      HGet,
	"SELECT":    Select,
	"INFO":      Info,
	"SAVE":      Save,
	"LOAD":      Load,
	"AUTH":      Auth,
	"SUBSCRIBE": Subscribe,
	"PUBLISH":   Publish,
	"EVAL":      Eval,
	"QUIT":      Quit,
}

// Command is a resolved request: the verb, its kind, and the raw arguments
type Command struct {
	Kind Kind
	Name string
	Args [][]byte
}

// Resolve maps a request frame to a Command. The verb is matched
// case-insensitively; unrecognized verbs resolve to Unknown.
func Resolve(frame [][]byte) Command {
	if len(frame) == 0 {
		return Command{}
	}

	name := strings.ToUpper(string(frame[0]))
	kind, ok := kinds[name]
	if !ok {
		kind = Unknown
	}

	return Command{
		Kind: kind,
		Name: name,
		Args: frame[1:],
	}
}
