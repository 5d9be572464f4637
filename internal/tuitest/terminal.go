package tuitest

import (
	"bytes"
	"io"
)

// queryReplies answers the terminal queries termenv and bubbletea send at
// startup. Without a reply they wait for a timeout.
var queryReplies = []struct{ query, reply string }{
	{"\x1b[6n", "\x1b[1;1R"},
	{"\x1b]10;?\x07", "\x1b]10;rgb:cccc/cccc/cccc\x07"},
	{"\x1b]10;?\x1b\\", "\x1b]10;rgb:cccc/cccc/cccc\x1b\\"},
	{"\x1b]11;?\x07", "\x1b]11;rgb:0000/0000/0000\x07"},
	{"\x1b]11;?\x1b\\", "\x1b]11;rgb:0000/0000/0000\x1b\\"},
}

// maxTail bounds the bytes kept to match queries split across reads.
const maxTail = 64

type responder struct {
	w    io.Writer
	tail []byte
}

func newResponder(w io.Writer) *responder {
	return &responder{w: w}
}

func (r *responder) Process(chunk []byte) {
	r.tail = append(r.tail, chunk...)
	for r.answerOne() {
	}
	if len(r.tail) > maxTail {
		r.tail = append([]byte(nil), r.tail[len(r.tail)-maxTail:]...)
	}
}

// answerOne replies to the earliest pending query and drops the bytes up to
// its end.
func (r *responder) answerOne() bool {
	first, end := -1, 0
	reply := ""
	for _, q := range queryReplies {
		idx := bytes.Index(r.tail, []byte(q.query))
		if idx >= 0 && (first < 0 || idx < first) {
			first, end, reply = idx, idx+len(q.query), q.reply
		}
	}
	if first < 0 {
		return false
	}
	r.tail = r.tail[end:]
	_, _ = io.WriteString(r.w, reply)
	return true
}
