package persistence

import (
	"bufio"
	"os"
	"sync"

	"go.uber.org/zap"
)

// AOF is the append-only command journal. Handlers enqueue the wire form of
// executed write commands; a single background goroutine drains the queue to
// disk and flushes after each command, so producers never block on file I/O.
type AOF struct {
	file     *os.File
	writer   *bufio.Writer
	filename string

	commandsChan chan []byte

	stopChan chan struct{}
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewAOF opens the journal in append mode and starts the drain goroutine
func NewAOF(filename string, logger *zap.Logger) (*AOF, error) {
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	aof := &AOF{
		file:         f,
		writer:       bufio.NewWriter(f),
		filename:     filename,
		commandsChan: make(chan []byte, 10000), // buffer for burst writes
		stopChan:     make(chan struct{}),
		logger:       logger,
	}

	aof.wg.Add(1)
	go aof.drain()

	return aof, nil
}

// Append enqueues one serialized command. If the channel is full this WILL
// block, providing backpressure.
func (a *AOF) Append(payload []byte) {
	a.commandsChan <- payload
}

func (a *AOF) drain() {
	defer a.wg.Done()

	for {
		select {
		case p := <-a.commandsChan:
			a.write(p)

		case <-a.stopChan:
			// Drain whatever is still queued before the final flush.
			for {
				select {
				case p := <-a.commandsChan:
					a.write(p)
				default:
					a.flush()
					a.file.Sync() //nolint:errcheck
					return
				}
			}
		}
	}
}

func (a *AOF) write(p []byte) {
	if _, err := a.writer.Write(p); err != nil {
		a.logger.Error("AOF write error", zap.Error(err))
		return
	}
	a.flush()
}

func (a *AOF) flush() {
	if err := a.writer.Flush(); err != nil {
		a.logger.Error("AOF flush error", zap.Error(err))
	}
}

// Close stops the drain goroutine, waits for the last flush, and closes the file
func (a *AOF) Close() error {
	close(a.stopChan)
	a.wg.Wait()
	return a.file.Close()
}
