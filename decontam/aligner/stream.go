// Copyright © 2024-2026 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package aligner

import (
	"bufio"
	"bytes"
	"io"
	"os/exec"

	"github.com/pkg/errors"
)

// Stream is a lazily produced, non-restartable sequence of raw SAM lines,
// read from an aligner's standard output or from an existing file.
type Stream struct {
	tool string
	r    *bufio.Reader
	src  io.Closer

	cmd    *exec.Cmd
	stderr *bytes.Buffer

	tee    io.Writer
	eof    bool
	closed bool
}

// bufferSize of the reader of alignment lines
var bufferSize = 1 << 20

func newFileStream(tool string, r io.ReadCloser) *Stream {
	return &Stream{
		tool: tool,
		r:    bufio.NewReaderSize(r, bufferSize),
		src:  r,
	}
}

// startCommand starts the aligner with its standard output piped into
// the returned stream.
func startCommand(tool string, exe string, args ...string) (*Stream, error) {
	cmd := exec.Command(exe, args...)
	stderr := bytes.NewBuffer(nil)
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &AlignmentExecutionError{Tool: tool, Args: args, Err: err}
	}
	if err = cmd.Start(); err != nil {
		return nil, &AlignmentExecutionError{Tool: tool, Args: args, Err: err}
	}

	return &Stream{
		tool:   tool,
		r:      bufio.NewReaderSize(stdout, bufferSize),
		cmd:    cmd,
		stderr: stderr,
	}, nil
}

// Tee mirrors every raw line read afterwards into w.
func (s *Stream) Tee(w io.Writer) {
	s.tee = w
}

// Next returns the next line, including the line break if any.
// io.EOF is returned after the last line.
// The returned slice is only valid until the next call.
func (s *Stream) Next() ([]byte, error) {
	if s.eof {
		return nil, io.EOF
	}

	line, err := s.r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		buf := append([]byte(nil), line...)
		for err == bufio.ErrBufferFull {
			line, err = s.r.ReadSlice('\n')
			buf = append(buf, line...)
		}
		line = buf
	}
	if err != nil {
		if err != io.EOF {
			return nil, s.readError(err)
		}
		s.eof = true
		if len(line) == 0 {
			return nil, io.EOF
		}
	}

	if s.tee != nil {
		if _, err = s.tee.Write(line); err != nil {
			return nil, errors.Wrap(err, "write retained alignment file")
		}
		if s.eof && line[len(line)-1] != '\n' {
			if _, err = s.tee.Write([]byte{'\n'}); err != nil {
				return nil, errors.Wrap(err, "write retained alignment file")
			}
		}
	}
	return line, nil
}

func (s *Stream) readError(err error) error {
	return &AlignmentExecutionError{Tool: s.tool, Err: errors.Wrap(err, "read alignments")}
}

// Close releases the source. For an aligner process it waits for the exit,
// killing the process first if the stream was not fully consumed.
// A non-zero exit is reported as an *AlignmentExecutionError.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.cmd == nil {
		return s.src.Close()
	}

	if !s.eof {
		s.cmd.Process.Kill()
	}
	if err := s.cmd.Wait(); err != nil {
		return &AlignmentExecutionError{
			Tool:   s.tool,
			Args:   s.cmd.Args[1:],
			Err:    err,
			Stderr: tail(s.stderr.Bytes(), stderrTailLines),
		}
	}
	return nil
}
