package commands

import (
	"fmt"

	"github.com/n2k-relay/n2k-go/pkg/log"
)

// RunFilter copies matching events into a new capture file and returns how
// many were written.
func RunFilter(path, output string, filter log.Filter) (int, error) {
	logger, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output logger: %w", err)
	}

	count := 0
	err = eachEvent(path, filter, func(event log.Event) error {
		logger.Log(event)
		count++
		return nil
	})
	if cerr := logger.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close output: %w", cerr)
	}
	return count, err
}
