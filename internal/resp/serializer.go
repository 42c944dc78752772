package resp

import (
	"bytes"
)

// SerializeCommand renders a command in request wire form: an array of bulk
// strings with the verb first. The journal and the replication fan-out both
// store commands in exactly the bytes a client would have sent.
func SerializeCommand(name string, args [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	elements := make([]Value, 1+len(args))
	elements[0] = MakeBulkString([]byte(name))
	for i, arg := range args {
		elements[i+1] = MakeBulkString(arg)
	}

	if err := enc.Write(MakeArray(elements)); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
