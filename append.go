package kvrdb

import (
	"strconv"
	"strings"
)

// appendPrefix appends a "<c><n>\r\n" style RESP header. n is negative
// only for AppendInt; bulk and array lengths are never negative. Null
// bulk ($-1\r\n) is the handler's responsibility.
func appendPrefix(b []byte, c byte, n int64) []byte {
	if n >= 0 && n <= 9 {
		return append(b, c, byte('0'+n), '\r', '\n')
	}
	b = append(b, c)
	b = strconv.AppendInt(b, n, 10)
	return append(b, '\r', '\n')
}

// AppendInt appends a RESP integer reply to b.
func AppendInt(b []byte, n int64) []byte {
	return appendPrefix(b, ':', n)
}

// AppendUint appends a RESP integer reply for an unsigned value to b.
func AppendUint(b []byte, n uint64) []byte {
	b = append(b, ':')
	b = strconv.AppendUint(b, n, 10)
	return append(b, '\r', '\n')
}

// AppendArray appends a RESP array header to b. The caller is responsible
// for writing the n elements that follow.
func AppendArray(b []byte, n int) []byte {
	return appendPrefix(b, '*', int64(n))
}

// AppendBulk appends a RESP bulk string reply to b.
func AppendBulk(b []byte, bulk []byte) []byte {
	b = appendPrefix(b, '$', int64(len(bulk)))
	b = append(b, bulk...)
	return append(b, '\r', '\n')
}

// AppendBulkString is AppendBulk for a Go string.
func AppendBulkString(b []byte, s string) []byte {
	b = appendPrefix(b, '$', int64(len(s)))
	b = append(b, s...)
	return append(b, '\r', '\n')
}

// AppendNull appends a RESP null bulk reply ($-1\r\n) to b.
func AppendNull(b []byte) []byte {
	return append(b, '$', '-', '1', '\r', '\n')
}

// AppendString appends a RESP simple-string reply to b.
func AppendString(b []byte, s string) []byte {
	b = append(b, '+')
	b = append(b, stripNewlines(s)...)
	return append(b, '\r', '\n')
}

// AppendError appends a RESP error reply ("-" + msg + "\r\n") to b. Only
// the leading '-' is added, so msg carries its own prefix such as "ERR ";
// WriteError adds that prefix for handlers.
func AppendError(b []byte, msg string) []byte {
	b = append(b, '-')
	b = append(b, stripNewlines(msg)...)
	return append(b, '\r', '\n')
}

func stripNewlines(s string) string {
	if strings.IndexAny(s, "\r\n") < 0 {
		return s
	}
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func parseInt(b []byte) (int, bool) {
	if len(b) == 1 && b[0] >= '0' && b[0] <= '9' {
		return int(b[0] - '0'), true
	}
	var n int
	var neg bool
	i := 0
	if len(b) > 0 && b[0] == '-' {
		neg = true
		i++
	}
	if i == len(b) {
		return 0, false
	}
	for ; i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			return 0, false
		}
		n = n*10 + int(b[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}
