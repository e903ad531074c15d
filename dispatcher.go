package kvrdb

import (
	"io"
	"net"

	"github.com/panjf2000/ants/v2"

	"github.com/raunakns/kvrdb/internal/logging"
)

// readChunk is the size requested from the kernel on each read(2); the
// input buffer still grows unboundedly (by doubling) to hold whatever a
// single command needs, this just bounds the syscall chunk size.
const readChunk = 4096

// Dispatcher orchestrates the read -> parse -> execute -> reply cycle.
// One Dispatcher is shared by every accepted Connection; per-connection
// state lives on the Connection itself.
type Dispatcher struct {
	handler Handler
	inmem   bool
	pool    *ants.PoolWithFunc
}

type job struct {
	c    *Connection
	cmd  Command
	done chan struct{}
}

// NewDispatcher builds a Dispatcher. When inmem is true, commands run
// inline on the connection's own goroutine: no blocking I/O is possible against
// an in-memory store, so the hop through a pool is pure overhead.
// Otherwise commands are posted to an ants worker pool sized poolSize.
func NewDispatcher(handler Handler, inmem bool, poolSize int) (*Dispatcher, error) {
	d := &Dispatcher{handler: handler, inmem: inmem}
	if !inmem {
		pool, err := ants.NewPoolWithFunc(poolSize, func(arg interface{}) {
			j := arg.(*job)
			d.handler(j.c, j.cmd)
			close(j.done)
		})
		if err != nil {
			return nil, err
		}
		d.pool = pool
	}
	return d, nil
}

// Release tears down the worker pool, if any.
func (d *Dispatcher) Release() {
	if d.pool != nil {
		d.pool.Release()
	}
}

// ServeRaw wraps nc as a Connection identified by peer and runs Serve on
// it. The package-level Serve (listener.go) calls this for each accepted
// socket; tests that wire a Dispatcher directly onto a net.Pipe can use
// it as well.
func (d *Dispatcher) ServeRaw(nc net.Conn, peer string) {
	d.Serve(newConnection(nc, peer))
}

// Serve runs the read/parse/execute/reply cycle for one accepted
// connection until it closes. It owns the Connection exclusively from
// this point on.
func (d *Dispatcher) Serve(c *Connection) {
	defer func() {
		c.Close()
		logging.Printf('.', "%s: closed connection", c.peer)
	}()

	for {
		c.state = stateAwaitingBytes
		buf := c.in.tail(readChunk)
		n, err := c.nc.Read(buf)
		if err != nil {
			if err != io.EOF {
				logging.Printf('.', "%s: read error: %v", c.peer, err)
			}
			return
		}
		c.in.extend(n)
		c.state = stateParsing
		if !d.pump(c) {
			return
		}
	}
}

// pump parses as many complete commands as are buffered, executing each
// to completion before parsing the next, even if more bytes already sit
// in the input buffer. Only one command is ever in flight per
// connection.
func (d *Dispatcher) pump(c *Connection) bool {
	for {
		result, err := parse(c)
		switch result {
		case resultComplete:
			c.state = stateExecuting
			c.clear()
			cmd := Command{Args: c.args}
			d.execute(c, cmd)
			c.state = stateWriting
			if !d.flush(c) {
				return false
			}
			if len(c.in.unconsumed()) == 0 {
				return true
			}
			// Pipelined: more bytes already buffered, keep pumping
			// without waiting on another read.
			c.state = stateParsing
		case resultNeedMore:
			return true
		case resultMalformed:
			logging.Printf('.', "%s: malformed request: %v", c.peer, err)
			d.flushFinal(c)
			return false
		}
	}
}

// execute runs the handler for one parsed command, inline or on the
// worker pool per the process-wide execution mode, and blocks until it
// completes. Inline and pooled execution share the same done channel, so
// both paths report completion the same way.
func (d *Dispatcher) execute(c *Connection, cmd Command) {
	done := make(chan struct{})
	j := &job{c: c, cmd: cmd, done: done}
	if d.inmem {
		d.handler(j.c, j.cmd)
		close(done)
		return
	}
	if err := d.pool.Invoke(j); err != nil {
		// Pool is saturated or closed; fall back to running inline
		// rather than dropping the command.
		d.handler(j.c, j.cmd)
		close(done)
		return
	}
	<-done
}

// flush writes whatever is buffered for the normal, non-terminal
// write-completion path; the caller then either keeps pumping pipelined
// bytes or re-enables reads.
func (d *Dispatcher) flush(c *Connection) bool {
	pending := c.out.pending()
	if len(pending) == 0 {
		return true
	}
	if _, err := c.nc.Write(pending); err != nil {
		logging.Printf('.', "%s: write error: %v", c.peer, err)
		return false
	}
	c.out.consumed()
	return true
}

// flushFinal is the terminal write-completion path: flush whatever error
// the parser queued. It does not close the connection itself; pump returns
// false afterwards and Serve closes it regardless of write outcome.
func (d *Dispatcher) flushFinal(c *Connection) {
	pending := c.out.pending()
	if len(pending) > 0 {
		if _, err := c.nc.Write(pending); err != nil {
			logging.Printf('.', "%s: write error flushing protocol error: %v", c.peer, err)
		}
		c.out.consumed()
	}
}
