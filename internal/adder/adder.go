// Package adder is the RPC boundary the test matrix drives its
// handshakes through: a single-request addition service framed as
// length-prefixed CBOR. The matrix needs nothing from it beyond "serve
// one request" and "call once and verify the sum", plus the ability to
// refuse service in-band so a policy rejection is data rather than a
// dropped connection.
package adder

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"net"

	"github.com/fxamacker/cbor/v2"
)

// maxMessageSize bounds a frame; adder messages are tiny.
const maxMessageSize = 4096

// Request asks for the sum of two operands.
type Request struct {
	A int64 `cbor:"a"`
	B int64 `cbor:"b"`
}

// Reply carries the sum, or an in-band refusal.
type Reply struct {
	Sum   int64  `cbor:"sum"`
	Error string `cbor:"error,omitempty"`
}

// RefusedError is returned by Call when the server answered with an
// in-band refusal instead of a sum.
type RefusedError struct {
	Reason string
}

func (e *RefusedError) Error() string {
	return fmt.Sprintf("service refused: %s", e.Reason)
}

// WriteMessage frames and writes one CBOR message.
func WriteMessage(w io.Writer, v interface{}) error {
	body, err := cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("adder: failed to encode message: %w", err)
	}
	if len(body) > maxMessageSize {
		return fmt.Errorf("adder: message of %d bytes exceeds frame limit", len(body))
	}

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// ReadMessage reads and decodes one framed CBOR message.
func ReadMessage(r io.Reader, v interface{}) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxMessageSize {
		return fmt.Errorf("adder: frame of %d bytes exceeds limit", n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return err
	}
	if err := cbor.Unmarshal(body, v); err != nil {
		return fmt.Errorf("adder: failed to decode message: %w", err)
	}
	return nil
}

// Serve handles exactly one request on the connection. A non-empty
// refusal is sent back instead of the sum; the request is still read
// first so the client sees a well-formed reply either way.
func Serve(conn net.Conn, refusal string) error {
	var req Request
	if err := ReadMessage(conn, &req); err != nil {
		return err
	}

	reply := Reply{Sum: req.A + req.B}
	if refusal != "" {
		reply = Reply{Error: refusal}
	}
	return WriteMessage(conn, reply)
}

// Call sends one request with random operands and verifies the sum.
func Call(conn net.Conn) error {
	req := Request{A: rand.Int63n(10000) + 1, B: rand.Int63n(10000) + 1}
	if err := WriteMessage(conn, req); err != nil {
		return err
	}

	var reply Reply
	if err := ReadMessage(conn, &reply); err != nil {
		return err
	}
	if reply.Error != "" {
		return &RefusedError{Reason: reply.Error}
	}
	if reply.Sum != req.A+req.B {
		return fmt.Errorf("adder: wrong sum %d for %d + %d", reply.Sum, req.A, req.B)
	}
	return nil
}
