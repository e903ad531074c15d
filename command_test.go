package kvrdb

import (
	"bytes"
	"math/rand"
	"testing"
)

// feed appends p to c's input buffer as if it had just arrived on the
// socket, exercising the same tail/extend path the dispatcher uses.
func feed(c *Connection, p []byte) {
	buf := c.in.tail(len(p))
	copy(buf, p)
	c.in.extend(len(p))
}

func TestParseMultiBulkBasicSet(t *testing.T) {
	c := newConnection(nil, "test")
	feed(c, []byte("*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"))

	result, err := parse(c)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result != resultComplete {
		t.Fatalf("result = %v, want resultComplete", result)
	}
	want := [][]byte{[]byte("SET"), []byte("foo"), []byte("bar")}
	if !argsEqual(c.args, want) {
		t.Fatalf("args = %q, want %q", c.args, want)
	}
	if len(c.in.unconsumed()) != 0 {
		t.Fatalf("unconsumed = %q, want empty", c.in.unconsumed())
	}
}

func TestParseInlineGet(t *testing.T) {
	c := newConnection(nil, "test")
	feed(c, []byte("GET foo\n"))

	result, err := parse(c)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result != resultComplete {
		t.Fatalf("result = %v, want resultComplete", result)
	}
	want := [][]byte{[]byte("GET"), []byte("foo")}
	if !argsEqual(c.args, want) {
		t.Fatalf("args = %q, want %q", c.args, want)
	}
}

func TestPipeliningParsesEachFrameInOrder(t *testing.T) {
	c := newConnection(nil, "test")
	feed(c, []byte("*1\r\n$4\r\nPING\r\n*1\r\n$4\r\nPING\r\n"))

	for i := 0; i < 2; i++ {
		result, err := parse(c)
		if err != nil {
			t.Fatalf("parse %d: %v", i, err)
		}
		if result != resultComplete {
			t.Fatalf("parse %d result = %v, want resultComplete", i, result)
		}
		if !argsEqual(c.args, [][]byte{[]byte("PING")}) {
			t.Fatalf("parse %d args = %q", i, c.args)
		}
	}
	if len(c.in.unconsumed()) != 0 {
		t.Fatalf("unconsumed = %q, want empty after both frames parsed", c.in.unconsumed())
	}
}

func TestChunkedArrivalMatchesWholeDelivery(t *testing.T) {
	whole := []byte("*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n")
	chunks := [][]byte{
		[]byte("*3\r\n"),
		[]byte("$3\r\nSE"),
		[]byte("T\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"),
	}

	c := newConnection(nil, "test")
	var result parseResult
	var err error
	for _, chunk := range chunks {
		feed(c, chunk)
		result, err = parse(c)
		if result == resultComplete {
			break
		}
		if result == resultMalformed {
			t.Fatalf("unexpected malformed: %v", err)
		}
	}
	if result != resultComplete {
		t.Fatalf("never completed parsing chunked input")
	}

	ref := newConnection(nil, "test")
	feed(ref, whole)
	refResult, refErr := parse(ref)
	if refResult != resultComplete || refErr != nil {
		t.Fatalf("reference parse failed: %v, %v", refResult, refErr)
	}

	if !argsEqual(c.args, ref.args) {
		t.Fatalf("chunked args = %q, whole args = %q", c.args, ref.args)
	}
}

func TestMalformedBulkLengthClosesWithProtocolError(t *testing.T) {
	c := newConnection(nil, "test")
	feed(c, []byte("*1\r\n$x\r\nGET\r\n"))

	result, err := parse(c)
	if result != resultMalformed {
		t.Fatalf("result = %v, want resultMalformed", result)
	}
	if err == nil {
		t.Fatal("expected error")
	}
	out := c.out.pending()
	want := "-ERR Protocol error: invalid bulk length\r\n"
	if string(out) != want {
		t.Fatalf("queued error = %q, want %q", out, want)
	}
}

func TestQuotedInlineArgs(t *testing.T) {
	c := newConnection(nil, "test")
	feed(c, []byte("SET \"hello world\" 1\n"))

	result, err := parse(c)
	if err != nil || result != resultComplete {
		t.Fatalf("parse: result=%v err=%v", result, err)
	}
	want := [][]byte{[]byte("SET"), []byte("hello world"), []byte("1")}
	if !argsEqual(c.args, want) {
		t.Fatalf("args = %q, want %q", c.args, want)
	}
}

func TestUnbalancedQuotesCloses(t *testing.T) {
	c := newConnection(nil, "test")
	feed(c, []byte("SET \"hello\n"))

	result, err := parse(c)
	if result != resultMalformed {
		t.Fatalf("result = %v, want resultMalformed", result)
	}
	if err == nil {
		t.Fatal("expected error")
	}
	want := "-ERR Protocol error: unbalanced quotes in request\r\n"
	if string(c.out.pending()) != want {
		t.Fatalf("queued error = %q, want %q", c.out.pending(), want)
	}
}

func TestZeroArgMultiBulkQuirk(t *testing.T) {
	// "*0\r\n": digit span is exactly "0" (length 1), which is the one
	// accepted form of the quirk.
	c := newConnection(nil, "test")
	feed(c, []byte("*0\r\n"))
	result, err := parse(c)
	if err != nil || result != resultComplete {
		t.Fatalf("parse *0\\r\\n: result=%v err=%v", result, err)
	}
	if len(c.args) != 0 {
		t.Fatalf("args = %q, want empty", c.args)
	}
}

func TestNeedMoreLeavesBufferUntouched(t *testing.T) {
	c := newConnection(nil, "test")
	feed(c, []byte("*3\r\n$3\r\nSE"))
	result, err := parse(c)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result != resultNeedMore {
		t.Fatalf("result = %v, want resultNeedMore", result)
	}
	if len(c.in.unconsumed()) != len("*3\r\n$3\r\nSE") {
		t.Fatalf("unconsumed truncated: %q", c.in.unconsumed())
	}
}

func TestRandomizedRoundTripAcrossChunkBoundaries(t *testing.T) {
	for iter := 0; iter < 200; iter++ {
		nargs := rand.Intn(6)
		var data []byte
		var want [][]byte
		data = AppendArray(data, nargs)
		for i := 0; i < nargs; i++ {
			arg := make([]byte, rand.Intn(40))
			rand.Read(arg)
			data = AppendBulk(data, arg)
			want = append(want, arg)
		}

		c := newConnection(nil, "test")
		chunkSize := 1 + rand.Intn(len(data)+1)
		var result parseResult
		var err error
		for off := 0; off < len(data); off += chunkSize {
			end := off + chunkSize
			if end > len(data) {
				end = len(data)
			}
			feed(c, data[off:end])
			result, err = parse(c)
			if err != nil {
				t.Fatalf("iter %d: parse error: %v", iter, err)
			}
			if result == resultComplete {
				break
			}
		}
		if result != resultComplete {
			t.Fatalf("iter %d: never completed, last result = %v", iter, result)
		}
		if !argsEqual(c.args, want) {
			t.Fatalf("iter %d: args = %q, want %q", iter, c.args, want)
		}
	}
}

func argsEqual(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
