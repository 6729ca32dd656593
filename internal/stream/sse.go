package stream

import (
	"bufio"
	"io"
	"strings"
)

const (
	scannerInitBufSize  = 64 * 1024
	scannerMaxTokenSize = 1024 * 1024
)

// readEvents parses a text/event-stream body and calls fn with the data of
// every dispatched "message" event. It returns when the body ends or fn
// returns false.
func readEvents(r io.Reader, fn func(data string) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)

	var (
		data      []string
		eventName string
	)

	dispatch := func() bool {
		defer func() {
			data = data[:0]
			eventName = ""
		}()
		if len(data) == 0 {
			return true
		}
		if eventName != "" && eventName != "message" {
			return true
		}
		return fn(strings.Join(data, "\n"))
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if line == "" {
			if !dispatch() {
				return nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			data = append(data, value)
		case "event":
			eventName = value
		}
	}
	return scanner.Err()
}
