// Package handlers is the command catalogue the core dispatches parsed
// commands to: GET/SET/DEL/EXISTS/PING/ECHO, a pattern-limited SCAN over
// the keyspace, and a FLUSHALL admin reset. Each handler receives the
// live Connection as a ReplyEncoder and the parsed Command and is
// otherwise free of any protocol-engine concern.
package handlers

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/raunakns/kvrdb"
	"github.com/raunakns/kvrdb/internal/store"
)

// Error is a handler-reported error: it is replied to the client as a
// RESP error and the connection stays open, distinct from the
// protocol-level errors the parser itself raises.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

func newError(format string, args ...interface{}) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// Catalogue dispatches command names to handler functions against a
// single shared Store.
type Catalogue struct {
	store *store.Store
}

// New builds a Catalogue backed by s.
func New(s *store.Store) *Catalogue {
	return &Catalogue{store: s}
}

// Handle implements kvrdb.Handler: it looks up cmd's name (case
// insensitively, per the RESP convention) and runs the matching
// handler, or replies with an unknown-command error.
func (cat *Catalogue) Handle(c *kvrdb.Connection, cmd kvrdb.Command) {
	if len(cmd.Args) == 0 {
		// A zero-argument inline command is a no-op.
		return
	}
	name := strings.ToUpper(string(cmd.Args[0]))
	fn, ok := dispatch[name]
	if !ok {
		c.WriteError(unknownCommand(cmd.Args[0]))
		return
	}
	fn(cat, c, cmd.Args[1:])
}

type handlerFunc func(cat *Catalogue, c *kvrdb.Connection, args [][]byte)

var dispatch = map[string]handlerFunc{
	"PING":     (*Catalogue).ping,
	"ECHO":     (*Catalogue).echo,
	"GET":      (*Catalogue).get,
	"SET":      (*Catalogue).set,
	"DEL":      (*Catalogue).del,
	"EXISTS":   (*Catalogue).exists,
	"SCAN":     (*Catalogue).scan,
	"FLUSHALL": (*Catalogue).flushall,
}

func (cat *Catalogue) ping(c *kvrdb.Connection, args [][]byte) {
	if len(args) == 0 {
		c.WriteString("PONG")
		return
	}
	if len(args) != 1 {
		c.WriteError(wrongArity("ping"))
		return
	}
	c.WriteBulk(args[0])
}

func (cat *Catalogue) echo(c *kvrdb.Connection, args [][]byte) {
	if len(args) != 1 {
		c.WriteError(wrongArity("echo"))
		return
	}
	c.WriteBulk(args[0])
}

func (cat *Catalogue) get(c *kvrdb.Connection, args [][]byte) {
	if len(args) != 1 {
		c.WriteError(wrongArity("get"))
		return
	}
	val, err := cat.store.Get(args[0])
	if err != nil {
		if err == store.ErrNotFound {
			c.WriteNull()
			return
		}
		c.WriteError(err.Error())
		return
	}
	c.WriteBulk(val)
}

func (cat *Catalogue) set(c *kvrdb.Connection, args [][]byte) {
	if len(args) != 2 {
		c.WriteError(wrongArity("set"))
		return
	}
	if cat.store.ReadOnly() {
		c.WriteError(readOnlyErr().Error())
		return
	}
	if err := cat.store.Put(args[0], args[1]); err != nil {
		c.WriteError(err.Error())
		return
	}
	c.WriteString("OK")
}

func (cat *Catalogue) del(c *kvrdb.Connection, args [][]byte) {
	if len(args) == 0 {
		c.WriteError(wrongArity("del"))
		return
	}
	if cat.store.ReadOnly() {
		c.WriteError(readOnlyErr().Error())
		return
	}
	var removed int64
	for _, key := range args {
		found, err := cat.store.Exists(key)
		if err != nil {
			c.WriteError(err.Error())
			return
		}
		if !found {
			continue
		}
		if err := cat.store.Delete(key); err != nil {
			c.WriteError(err.Error())
			return
		}
		removed++
	}
	c.WriteInt(removed)
}

func (cat *Catalogue) exists(c *kvrdb.Connection, args [][]byte) {
	if len(args) == 0 {
		c.WriteError(wrongArity("exists"))
		return
	}
	var count int64
	for _, key := range args {
		found, err := cat.store.Exists(key)
		if err != nil {
			c.WriteError(err.Error())
			return
		}
		if found {
			count++
		}
	}
	c.WriteInt(count)
}

// scan implements a pattern-limited ordered range scan: SCAN <prefix>
// [start] [count], returning an array of bulk keys whose names begin
// with prefix, starting at or after the optional cursor "start",
// capped at count (default 100, max 1000).
func (cat *Catalogue) scan(c *kvrdb.Connection, args [][]byte) {
	if len(args) == 0 || len(args) > 3 {
		c.WriteError(wrongArity("scan"))
		return
	}
	prefix := args[0]
	var start []byte
	if len(args) >= 2 {
		start = args[1]
	}
	count := 100
	if len(args) == 3 {
		n, err := strconv.Atoi(string(args[2]))
		if err != nil || n <= 0 {
			c.WriteError("value is not an integer or out of range")
			return
		}
		count = n
	}
	if count > 1000 {
		count = 1000
	}

	var keys [][]byte
	err := cat.store.Scan(prefix, start, func(key, _ []byte) bool {
		keys = append(keys, bytes.Clone(key))
		return len(keys) < count
	})
	if err != nil {
		c.WriteError(err.Error())
		return
	}

	c.WriteArray(len(keys))
	for _, k := range keys {
		c.WriteBulk(k)
	}
}

// flushall drops every key in the store as an admin reset.
func (cat *Catalogue) flushall(c *kvrdb.Connection, args [][]byte) {
	if len(args) != 0 {
		c.WriteError(wrongArity("flushall"))
		return
	}
	if cat.store.ReadOnly() {
		c.WriteError(readOnlyErr().Error())
		return
	}
	if err := cat.store.Flush(); err != nil {
		c.WriteError(err.Error())
		return
	}
	c.WriteString("OK")
}

func wrongArity(cmd string) string {
	return fmt.Sprintf("wrong number of arguments for '%s' command", cmd)
}

func readOnlyErr() *Error {
	return newError("store is read-only")
}

// unknownCommand formats the diagnostic reported for an unrecognized
// command name.
func unknownCommand(name []byte) string {
	return fmt.Sprintf("unknown command '%s'", string(name))
}
