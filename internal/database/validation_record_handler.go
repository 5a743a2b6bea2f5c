package database

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"proxywarden/internal/domain"
)

const (
	recordBatchWindow   = 250 * time.Millisecond
	recordBatchMaxItems = 1024
	recordInsertChunk   = 200
	recordQueueSize     = 4096
	recordInsertTimeout = 10 * time.Second
)

// Enricher fills optional columns of a record before it is stored.
type Enricher func(rec *domain.ValidationRecord)

// RecordSink stores validation records in the database. Records are queued
// and inserted in batches by a single writer goroutine; Record never blocks
// on the database.
type RecordSink struct {
	db      *gorm.DB
	runID   string
	enrich  Enricher
	records chan domain.ValidationRecord

	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	dropped int
	stored  int
}

func NewRecordSink(db *gorm.DB, runID string, enrich Enricher) *RecordSink {
	sink := &RecordSink{
		db:      db,
		runID:   runID,
		enrich:  enrich,
		records: make(chan domain.ValidationRecord, recordQueueSize),
		done:    make(chan struct{}),
	}
	go sink.run()
	return sink
}

func (s *RecordSink) Record(rec domain.ValidationRecord) {
	if rec.RunID == "" {
		rec.RunID = s.runID
	}

	select {
	case s.records <- rec:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		log.Warn("validation record queue full, dropping record", "proxy", rec.Proxy)
	}
}

// Close drains the queue, inserts what is left and stops the writer. Record
// must not be called after Close.
func (s *RecordSink) Close() {
	s.closeOnce.Do(func() {
		close(s.records)
		<-s.done
	})
}

// Stats reports how many records were stored and dropped so far.
func (s *RecordSink) Stats() (stored, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stored, s.dropped
}

func (s *RecordSink) run() {
	defer close(s.done)

	batch := make([]domain.ValidationRecord, 0, recordBatchMaxItems)
	var timer *time.Timer
	var timerC <-chan time.Time

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	flush := func() {
		if len(batch) == 0 {
			return
		}
		items := make([]domain.ValidationRecord, len(batch))
		copy(items, batch)
		batch = batch[:0]
		s.insert(items)
	}

	for {
		select {
		case rec, ok := <-s.records:
			if !ok {
				stopTimer()
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= recordBatchMaxItems {
				stopTimer()
				flush()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(recordBatchWindow)
				timerC = timer.C
			}
		case <-timerC:
			timer = nil
			timerC = nil
			flush()
		}
	}
}

func (s *RecordSink) insert(items []domain.ValidationRecord) {
	if s.enrich != nil {
		for i := range items {
			s.enrich(&items[i])
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordInsertTimeout)
	defer cancel()

	if err := s.db.WithContext(ctx).CreateInBatches(items, recordInsertChunk).Error; err != nil {
		log.Error("insert validation records", "count", len(items), "error", err)
		s.mu.Lock()
		s.dropped += len(items)
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.stored += len(items)
	s.mu.Unlock()
}
