package conversation

import (
	"bufio"
	"context"
	"io"
)

// ReadLines sends every line of r on the returned channel and closes it at
// EOF, so a consumer ranging over it finishes its current line first. The
// reader stops early when ctx ends.
func ReadLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case out <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// MergeLines joins typed input with an optional second source such as
// voice. The result closes when primary closes or ctx ends; a closed or
// nil extra is ignored.
func MergeLines(ctx context.Context, primary, extra <-chan string) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			var line string
			select {
			case <-ctx.Done():
				return
			case l, ok := <-primary:
				if !ok {
					return
				}
				line = l
			case l, ok := <-extra:
				if !ok {
					extra = nil
					continue
				}
				line = l
			}

			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
