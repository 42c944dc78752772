package resp_test

import (
	"bytes"
	"testing"

	"github.com/emberkv/ember/internal/resp"
)

func TestEncoder_Write(t *testing.T) {
	tests := []struct {
		name     string
		input    resp.Value
		expected string
	}{
		{
			name:     "Integer positive",
			input:    resp.MakeInteger(100),
			expected: ":100\r\n",
		},
		{
			name:     "Integer negative",
			input:    resp.MakeInteger(-42),
			expected: ":-42\r\n",
		},
		{
			name:     "Simple String",
			input:    resp.MakeSimpleString("OK"),
			expected: "+OK\r\n",
		},
		{
			name:     "Error",
			input:    resp.MakeError("ERR something broke"),
			expected: "-ERR something broke\r\n",
		},
		{
			name:     "Bulk String",
			input:    resp.MakeBulkString([]byte("hello")),
			expected: "$5\r\nhello\r\n",
		},
		{
			name:     "Bulk String binary",
			input:    resp.MakeBulkString([]byte("va\x00ue")),
			expected: "$5\r\nva\x00ue\r\n",
		},
		{
			name:     "Bulk String empty",
			input:    resp.MakeBulkString([]byte("")),
			expected: "$0\r\n\r\n",
		},
		{
			name:     "Bulk String null",
			input:    resp.MakeNilBulkString(),
			expected: "$-1\r\n",
		},
		{
			name: "Array of bulks",
			input: resp.MakeArray([]resp.Value{
				resp.MakeBulkString([]byte("news")),
				resp.MakeBulkString([]byte("hi")),
			}),
			expected: "*2\r\n$4\r\nnews\r\n$2\r\nhi\r\n",
		},
		{
			name:     "Array empty",
			input:    resp.MakeArray([]resp.Value{}),
			expected: "*0\r\n",
		},
		{
			name: "Array with nil element",
			input: resp.MakeArray([]resp.Value{
				resp.MakeBulkString([]byte("1")),
				resp.MakeNilBulkString(),
			}),
			expected: "*2\r\n$1\r\n1\r\n$-1\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc := resp.NewEncoder(&buf)

			if err := enc.Write(tt.input); err != nil {
				t.Fatalf("Write() failed: %v", err)
			}
			if err := enc.Flush(); err != nil {
				t.Fatalf("Flush() failed: %v", err)
			}

			if buf.String() != tt.expected {
				t.Errorf("Write() got = %q, want %q", buf.String(), tt.expected)
			}
		})
	}
}

func TestSerializeCommand(t *testing.T) {
	payload, err := resp.SerializeCommand("SET", [][]byte{[]byte("key"), []byte("va\x00ue")})
	if err != nil {
		t.Fatalf("SerializeCommand() failed: %v", err)
	}

	want := "*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nva\x00ue\r\n"
	if string(payload) != want {
		t.Errorf("SerializeCommand() got %q, want %q", payload, want)
	}
}

// A valid request frame must survive decode followed by re-encode byte for byte.
func TestCodecIdempotence(t *testing.T) {
	inputs := []string{
		"*1\r\n$4\r\nPING\r\n",
		"*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nva\x00ue\r\n",
		"*2\r\n$3\r\nGET\r\n$0\r\n\r\n",
	}

	for _, in := range inputs {
		p := resp.NewParser()
		p.Append([]byte(in))

		frame, err := p.Next()
		if err != nil {
			t.Fatalf("Next(%q) failed: %v", in, err)
		}
		if p.Buffered() != 0 {
			t.Errorf("Next(%q) left %d bytes unconsumed", in, p.Buffered())
		}

		out, err := resp.SerializeCommand(string(frame[0]), frame[1:])
		if err != nil {
			t.Fatalf("SerializeCommand failed: %v", err)
		}
		if string(out) != in {
			t.Errorf("round-trip got %q, want %q", out, in)
		}
	}
}
