package workload

import (
	"bufio"
	"io"
)

// tooLongPrefix is how much of an oversized line is kept for reporting.
const tooLongPrefix = 64

// lineReader yields workload lines without their terminators. Unlike
// bufio.Scanner it survives a line longer than max: the rest of that line is
// discarded and the line is flagged so the caller can skip it.
type lineReader struct {
	r   *bufio.Reader
	max int
}

func newLineReader(src io.Reader, max int) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(src, 64*1024), max: max}
}

// next returns io.EOF once the source is exhausted. An oversized line comes
// back truncated to its first tooLongPrefix bytes with tooLong set.
func (lr *lineReader) next() (string, bool, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, isPrefix, err := lr.r.ReadLine()
		if err != nil {
			return "", false, err
		}
		if !tooLong {
			if len(buf)+len(chunk) > lr.max {
				tooLong = true
				buf = append(buf, chunk...)
				if len(buf) > tooLongPrefix {
					buf = buf[:tooLongPrefix]
				}
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !isPrefix {
			return string(buf), tooLong, nil
		}
	}
}
