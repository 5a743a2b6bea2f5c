package support

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// EachLine calls fn for every trimmed line of r. Lines have no length limit,
// and the final line does not need a trailing newline.
func EachLine(r io.Reader, fn func(line string)) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			fn(strings.TrimSpace(line))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
