package plugin

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	Mt "github.com/maroda/contour/types"
)

// Key layout: 8 bytes timestamp, then the full chart ID
const keyTimeLen = 8

// BadgerOutput records frames so a run can be replayed later
type BadgerOutput struct {
	MU        sync.Mutex
	DB        *badger.DB
	BatchSize int
	Buffer    []*Mt.Frame
}

func NewBadgerOutput(path string, batchSize int) (*BadgerOutput, error) {
	if batchSize <= 0 {
		batchSize = 1
	}
	opts := badger.DefaultOptions(path).
		WithCompression(options.ZSTD).
		WithNumVersionsToKeep(1).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		slog.Error("BadgerOutput failed to open database", slog.Any("error", err))
		return nil, fmt.Errorf("database error: %w", err)
	}

	slog.Info("BadgerOutput opened",
		slog.String("path", path),
		slog.Int("batchSize", batchSize))

	return &BadgerOutput{
		DB:        db,
		BatchSize: batchSize,
		Buffer:    make([]*Mt.Frame, 0, batchSize),
	}, nil
}

// WriteFrame queues up a batch of frames,
// when batchsize is reached, it calls WriteBatch with the batch
func (bo *BadgerOutput) WriteFrame(frame *Mt.Frame) error {
	bo.MU.Lock()
	defer bo.MU.Unlock()

	bo.Buffer = append(bo.Buffer, frame)
	if len(bo.Buffer) >= bo.BatchSize {
		return bo.flushLocked()
	}
	return nil
}

// WriteBatch encodes and stores frames in one badger write batch
func (bo *BadgerOutput) WriteBatch(frames []*Mt.Frame) error {
	wb := bo.DB.NewWriteBatch()
	defer wb.Cancel()

	for _, f := range frames {
		v, err := FrameEncode(f)
		if err != nil {
			return fmt.Errorf("frame encode error: %w", err)
		}
		if err := wb.Set(FrameKey(f), v); err != nil {
			slog.Error("BadgerOutput failed to set key in batch",
				slog.Any("error", err),
				slog.Time("frameTime", f.Timestamp),
				slog.String("chart", f.ChartID))
			return fmt.Errorf("write batch error: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		slog.Error("BadgerOutput failed to flush batch", slog.Any("error", err))
		return fmt.Errorf("batch flush error: %w", err)
	}

	return nil
}

// Flush writes out whatever is buffered
func (bo *BadgerOutput) Flush() error {
	bo.MU.Lock()
	defer bo.MU.Unlock()
	return bo.flushLocked()
}

func (bo *BadgerOutput) flushLocked() error {
	if len(bo.Buffer) == 0 {
		return nil
	}
	err := bo.WriteBatch(bo.Buffer)
	bo.Buffer = bo.Buffer[:0]
	return err
}

// Close returns a Flush error but still attempts to close
func (bo *BadgerOutput) Close() error {
	slog.Info("BadgerOutput closing, flushing buffer",
		slog.Int("bufferSize", len(bo.Buffer)))
	flushErr := bo.Flush()
	closeErr := bo.DB.Close()

	if flushErr != nil {
		slog.Error("BadgerOutput failed to flush on close", slog.Any("error", flushErr))
		return fmt.Errorf("flush failed, close may have failed: %w", flushErr)
	}

	if closeErr != nil {
		slog.Error("BadgerOutput failed to close database", slog.Any("error", closeErr))
		return fmt.Errorf("close failed: %w", closeErr)
	}

	slog.Info("BadgerOutput closed successfully")
	return nil
}

func (bo *BadgerOutput) Type() string { return "BadgerDB" }

// FrameKey sorts chronologically, then by chart ID.
// Frames sampled together share a timestamp, so the whole ID keeps them apart.
func FrameKey(f *Mt.Frame) []byte {
	key := make([]byte, keyTimeLen+len(f.ChartID))
	binary.BigEndian.PutUint64(key[:keyTimeLen], uint64(f.Timestamp.UnixNano()))
	copy(key[keyTimeLen:], f.ChartID)
	return key
}

func FrameEncode(f *Mt.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func FrameDecode(data []byte) (*Mt.Frame, error) {
	var f Mt.Frame
	err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&f)
	return &f, err
}

// QueryRange retrieves frames with start <= timestamp <= end.
// Keys are time ordered, so iteration seeks to start and stops past end.
func (bo *BadgerOutput) QueryRange(start, end time.Time) ([]*Mt.Frame, error) {
	return bo.QueryChart("", start, end)
}

// QueryChart is QueryRange limited to one chart. An empty ID matches all.
func (bo *BadgerOutput) QueryChart(chartID string, start, end time.Time) ([]*Mt.Frame, error) {
	var frames []*Mt.Frame

	seek := make([]byte, keyTimeLen)
	binary.BigEndian.PutUint64(seek, uint64(start.UnixNano()))

	err := bo.DB.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(seek); it.Valid(); it.Next() {
			item := it.Item()
			ts := int64(binary.BigEndian.Uint64(item.Key()[:keyTimeLen]))
			if ts > end.UnixNano() {
				break
			}

			err := item.Value(func(val []byte) error {
				frame, err := FrameDecode(val)
				if err != nil {
					slog.Error("BadgerOutput failed to decode frame", slog.Any("error", err))
					return fmt.Errorf("frame decode error: %w", err)
				}
				if chartID == "" || frame.ChartID == chartID {
					frames = append(frames, frame)
				}
				return nil
			})
			if err != nil {
				slog.Error("BadgerOutput callback failure", slog.Any("error", err))
				return fmt.Errorf("item data error: %w", err)
			}
		}
		return nil
	})

	slog.Debug("BadgerOutput QueryRange successful", slog.Int("count", len(frames)))

	return frames, err
}
