package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

var ErrLogWriteFailed = errors.New("command log write failed")
var ErrLogCorrupted = errors.New("command log corrupted")

type FlushStrategy string

const (
	FlushSync  FlushStrategy = "sync"
	FlushAsync FlushStrategy = "async"
)

const (
	opSet = "set"
	opDel = "del"
)

// logCommand is a single line of the append-only log.
type logCommand struct {
	Op  string          `json:"op"`
	Key string          `json:"key"`
	Doc json.RawMessage `json:"doc,omitempty"`
}

func setCommand(ent *entry) logCommand {
	return logCommand{Op: opSet, Key: ent.key.String(), Doc: ent.value}
}

func delCommand(key Key) logCommand {
	return logCommand{Op: opDel, Key: key.String()}
}

type commandLog struct {
	strategy FlushStrategy
	f        *os.File
	cursor   int64
	flushes  int
}

func openCommandLog(path string, strategy FlushStrategy) (*commandLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open command log %s", path)
	}

	return &commandLog{f: f, strategy: strategy}, nil
}

func (l *commandLog) close() error {
	if err := l.f.Sync(); err != nil {
		_ = l.f.Close()
		return errors.Wrapf(err, "could not sync command log %s", l.f.Name())
	}

	if err := l.f.Close(); err != nil {
		return errors.Wrapf(err, "could not close command log %s", l.f.Name())
	}

	return nil
}

// replay feeds every valid command to cb in log order. A torn or garbled
// tail is truncated away so that a crash mid-append never poisons the next
// open; everything before the bad line survives.
func (l *commandLog) replay(cb func(cmd logCommand) error) error {
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(err, "could not rewind command log %s", l.f.Name())
	}

	info, err := l.f.Stat()
	if err != nil {
		return errors.Wrapf(err, "could not stat command log %s", l.f.Name())
	}
	size := info.Size()

	var good int64
	sc := bufio.NewScanner(l.f)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for sc.Scan() {
		line := sc.Bytes()

		cmd, err := decodeCommand(line)
		if err != nil {
			if tErr := l.f.Truncate(good); tErr != nil {
				return errors.Wrapf(tErr, "could not truncate command log after bad line")
			}
			break
		}

		if err := cb(cmd); err != nil {
			return err
		}

		good += int64(len(line)) + 1
	}

	if err := sc.Err(); err != nil {
		return errors.Wrapf(ErrLogCorrupted, "scan failed: %s", err.Error())
	}

	// the final line may legitimately lack its newline after a crash
	if good > size {
		good = size
	}

	pos, err := l.f.Seek(good, io.SeekStart)
	if err != nil {
		return errors.Wrapf(err, "could not move the log cursor")
	}

	l.cursor = pos
	return nil
}

func decodeCommand(line []byte) (logCommand, error) {
	var cmd logCommand

	// cheap structural check before the full unmarshal
	if !gjson.ValidBytes(line) {
		return cmd, errors.Wrap(ErrLogCorrupted, "line is not valid json")
	}

	op := gjson.GetBytes(line, "op")
	if !op.Exists() || (op.String() != opSet && op.String() != opDel) {
		return cmd, errors.Wrapf(ErrLogCorrupted, "unknown op in line %s", string(line))
	}

	if !gjson.GetBytes(line, "key").Exists() {
		return cmd, errors.Wrap(ErrLogCorrupted, "line has no key")
	}

	if err := json.Unmarshal(line, &cmd); err != nil {
		return cmd, errors.Wrap(ErrLogCorrupted, err.Error())
	}

	return cmd, nil
}

func (l *commandLog) append(commands []logCommand) error {
	var buf bytes.Buffer
	for i := range commands {
		b, err := json.Marshal(commands[i])
		if err != nil {
			return errors.Wrapf(err, "could not marshal command for key %s", commands[i].Key)
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}

	return l.write(&buf)
}

func (l *commandLog) write(buf *bytes.Buffer) error {
	n, err := l.f.Write(buf.Bytes())
	if err != nil {
		if n > 0 {
			// partial write occurred, must roll the file back
			pos, seekErr := l.f.Seek(-int64(n), io.SeekCurrent)
			if seekErr != nil {
				return errors.Wrapf(ErrLogWriteFailed, "could not seek %s back by %d: %v", l.f.Name(), n, seekErr)
			}

			if tErr := l.f.Truncate(pos); tErr != nil {
				return errors.Wrapf(tErr, "could not truncate file %s", l.f.Name())
			}
		}

		_ = l.f.Sync()
		return errors.Wrap(ErrLogWriteFailed, err.Error())
	}

	if l.strategy == FlushSync {
		_ = l.f.Sync()
	}

	l.flushes++
	l.cursor += int64(buf.Len())
	return nil
}

func (l *commandLog) sync() error {
	if err := l.f.Sync(); err != nil {
		return errors.Wrapf(err, "cannot sync command log %s", l.f.Name())
	}
	return nil
}

// writeAndSwap atomically replaces the log contents with buf via a tmp
// file rename. Used by compaction.
func (l *commandLog) writeAndSwap(buf *bytes.Buffer) error {
	tmpName := l.f.Name() + ".tmp"
	tmpF, err := os.Create(tmpName)
	if err != nil {
		return errors.Wrapf(err, "could not create %s file for compaction", tmpName)
	}

	defer func() {
		_ = tmpF.Close()
		_ = os.RemoveAll(tmpName)
	}()

	expectedLen := buf.Len()
	n, err := tmpF.Write(buf.Bytes())
	if err != nil {
		return errors.Wrapf(err, "compaction could not write into %s", tmpName)
	}

	if n != expectedLen {
		return errors.Wrapf(ErrLogWriteFailed, "compaction wrote %d of %d bytes into %s", n, expectedLen, tmpName)
	}

	if err := tmpF.Sync(); err != nil {
		return errors.Wrapf(err, "compaction could not sync %s", tmpName)
	}

	oldName := l.f.Name()
	if err := l.f.Close(); err != nil {
		return errors.Wrapf(err, "compaction could not close %s to swap it", oldName)
	}

	if rnErr := os.Rename(tmpName, oldName); rnErr != nil {
		resultErr := errors.Wrapf(rnErr, "compaction could not swap %s for %s", oldName, tmpName)
		l.f, err = os.OpenFile(oldName, os.O_CREATE|os.O_RDWR, 0666)
		if err != nil {
			return errors.Wrapf(resultErr, "and could not reopen old file: %s", err.Error())
		}
		return resultErr
	}

	l.f, err = os.OpenFile(oldName, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return errors.Wrapf(err, "could not reopen swapped file %s", oldName)
	}

	pos, err := l.f.Seek(int64(n), io.SeekStart)
	if err != nil {
		return errors.Wrapf(err, "could not move the cursor in file %s", oldName)
	}

	l.cursor = pos
	return nil
}
