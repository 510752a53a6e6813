package sink

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"nrscrawler/internal/components/assert"
	"os"
	"path/filepath"
)

// FileSink appends records to a line-delimited JSON file, optionally echoing
// every line to another writer (usually stdout).
type FileSink struct {
	path string
	echo io.Writer
}

// NewFileSink creates a sink at path, echo may be nil.
func NewFileSink(path string, echo io.Writer) FileSink {
	assert.NotEmptyStr(path)
	return FileSink{path: path, echo: echo}
}

func (s FileSink) Path() string {
	return s.path
}

// Append serializes every record as one json line. All lines of a call are
// written with a single write so a crash never leaves half a page behind.
func (s FileSink) Append(records ...any) error {
	if len(records) == 0 {
		return nil
	}

	buffer := bytes.Buffer{}
	for _, r := range records {
		serialized, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("append record: %w", err)
		}
		buffer.Write(serialized)
		buffer.WriteByte('\n')
	}

	err := os.MkdirAll(filepath.Dir(s.path), 0777)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	_, err = f.Write(buffer.Bytes())
	if err != nil {
		f.Close()
		return err
	}
	err = f.Close()
	if err != nil {
		return err
	}

	if s.echo != nil {
		_, err = s.echo.Write(buffer.Bytes())
		if err != nil {
			return err
		}
	}
	return nil
}

// Replay writes every line already in the file to w, a missing file
// replays nothing.
func (s FileSink) Replay(w io.Writer) (int, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		_, err = fmt.Fprintf(w, "%s\n", line)
		if err != nil {
			return count, err
		}
		count++
	}
	return count, scanner.Err()
}

// Count returns the number of records in the file.
func (s FileSink) Count() (int, error) {
	return s.Replay(io.Discard)
}

func (s FileSink) Remove() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
