package persistence

import (
	"errors"
	"os"

	"github.com/emberkv/ember/internal/resp"
)

// Load reads the journal and returns the recorded command frames in order.
// The file is a plain request-format protocol stream; garbage is skipped by
// resynchronizing on the next '*', and a partial trailing frame is dropped.
func (a *AOF) Load() ([][][]byte, error) {
	data, err := os.ReadFile(a.filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // fresh start
		}
		return nil, err
	}

	parser := resp.NewParser()
	parser.Append(data)

	var frames [][][]byte
	for {
		frame, err := parser.Next()
		if errors.Is(err, resp.ErrIncomplete) {
			break
		}
		if err != nil {
			// The parser advanced past the garbage; keep scanning.
			continue
		}
		if len(frame) == 0 {
			continue
		}
		frames = append(frames, frame)
	}

	return frames, nil
}
