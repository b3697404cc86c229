package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGraylogHandler returns a handler that ships records as GELF messages
// over UDP to address. The returned closer releases the connection.
func NewGraylogHandler(address, level string) (slog.Handler, io.Closer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to graylog at %s: %w", address, err)
	}
	w.Facility = "debrisfield"

	var closer io.Closer = nopCloser{}
	if c, ok := any(w).(io.Closer); ok {
		closer = c
	}
	return slog.NewTextHandler(w, handlerOptions(ParseLevel(level))), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
