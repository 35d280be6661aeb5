package maws

import (
	"bufio"
	"fmt"
	"os"

	"github.com/dnaindex/maws/mawerr"
)

const (
	outputSeparatorPair = ','
	outputSeparatorWord = '\n'
)

// outputWriter owns the file a State writes emitted words to. A work
// package clone gets its own file (path suffixed with its id) rather
// than sharing the root's, mirroring cloneMAWState's per-package output
// path: merging result counts does not require merging the text files
// themselves.
type outputWriter struct {
	file *os.File
	w    *bufio.Writer
}

func newOutputWriter(path string) (*outputWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("maws: opening output %q: %w", path, mawerr.IO(err))
	}
	return &outputWriter{file: f, w: bufio.NewWriter(f)}, nil
}

func (o *outputWriter) writeWord(left, mid byte, midRepeats int, right byte) {
	o.w.WriteByte(left)
	for i := 0; i < midRepeats; i++ {
		o.w.WriteByte(mid)
	}
	o.w.WriteByte(right)
}

func (o *outputWriter) writeSeparatorPair() { o.w.WriteByte(outputSeparatorPair) }
func (o *outputWriter) writeSeparatorWord() { o.w.WriteByte(outputSeparatorWord) }

func (o *outputWriter) close() error {
	if err := o.w.Flush(); err != nil {
		o.file.Close()
		return fmt.Errorf("maws: flushing output: %w", mawerr.IO(err))
	}
	return o.file.Close()
}
