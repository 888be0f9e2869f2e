package streamclient

import (
	"bufio"
	"io"
	"strings"

	json "github.com/goccy/go-json"
)

const dataPrefix = "data: "

// ReadEvents decodes `data: <json>` frames from r and calls handle for each
// decoded event in stream order. Malformed frames are skipped. Returns the
// reader error, if any, once the stream ends.
func ReadEvents(r io.Reader, handle func(Event)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(line[len(dataPrefix):]), &event); err != nil {
			continue
		}
		handle(event)
	}
	return scanner.Err()
}
