package advisor

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// maxCarryBytes bounds the partial block kept between polls.
const maxCarryBytes = 1 << 20

// LogCursor tails the shared snapshot log. It is the sole owner of the
// consumed byte offset and is not safe for concurrent use.
type LogCursor struct {
	path   string
	offset int64
	carry  string // start of an incomplete block, begins with BlockStart
	log    logrus.FieldLogger

	// OnTruncate, if set, is called whenever a shrinking log resets the cursor.
	OnTruncate func()
}

// NewLogCursor creates a cursor positioned at the start of path.
func NewLogCursor(path string, log logrus.FieldLogger) *LogCursor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogCursor{path: path, log: log.WithField("file", path)}
}

// Offset returns the number of bytes consumed so far.
func (c *LogCursor) Offset() int64 { return c.offset }

// Poll reads everything appended since the last call and returns the most
// recent complete block, or nil when there is none. A missing file is not an
// error. The cursor always advances to end-of-file; an incomplete trailing
// block is carried in memory and completed by a later poll.
func (c *LogCursor) Poll() (*SnapshotBlock, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.log.Debug("waiting for snapshot log")
			return nil, nil
		}
		return nil, fmt.Errorf("opening snapshot log: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat snapshot log: %w", err)
	}
	if info.Size() < c.offset {
		c.log.WithFields(logrus.Fields{"size": info.Size(), "offset": c.offset}).
			Warn("snapshot log truncated, rewinding cursor")
		c.offset = 0
		c.carry = ""
		if c.OnTruncate != nil {
			c.OnTruncate()
		}
	}
	if info.Size() == c.offset {
		return nil, nil
	}

	if _, err := f.Seek(c.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking snapshot log: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot log: %w", err)
	}
	c.offset += int64(len(data))

	return c.scan(c.carry + string(data)), nil
}

// scan keeps only the final block of text and parses it when complete.
func (c *LogCursor) scan(text string) *SnapshotBlock {
	idx := strings.LastIndex(text, BlockStart)
	if idx < 0 {
		c.carry = partialMarker(text)
		return nil
	}
	last := text[idx+len(BlockStart):]
	end := strings.Index(last, BlockEnd)
	if end < 0 {
		if len(last) > maxCarryBytes {
			c.log.WithField("bytes", len(last)).Warn("dropping oversized partial block")
			c.carry = ""
			return nil
		}
		c.carry = BlockStart + last
		return nil
	}
	c.carry = partialMarker(last[end+len(BlockEnd):])

	block, ok := ParseBlock(last[:end])
	if !ok {
		c.log.Debug("ignoring block without timestamp or process records")
		return nil
	}
	return block
}

// partialMarker returns the tail of text that could be the beginning of a
// start marker split across two reads.
func partialMarker(text string) string {
	for n := len(BlockStart) - 1; n > 0; n-- {
		if strings.HasSuffix(text, BlockStart[:n]) {
			return BlockStart[:n]
		}
	}
	return ""
}
