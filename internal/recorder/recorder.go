// Package recorder archives pushed events into PostgreSQL so operators can
// inspect what a farm emitted after the fact. It is an optional sink; the
// realtime core works without it.
package recorder

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"main/pkg/conn"
	"main/pkg/exception"
	"main/pkg/realtime"
)

const defaultQueueSize = 1024

// EventRecord is one archived event row.
type EventRecord struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	Topic      string    `gorm:"size:64;index"`
	FarmID     string    `gorm:"size:64;index"`
	Payload    []byte    `gorm:"type:jsonb"`
	ReceivedAt time.Time `gorm:"index"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (EventRecord) TableName() string { return "realtime_events" }

// Recorder drains a bounded queue of received events into PostgreSQL on a
// background goroutine; a full queue drops the newest event rather than
// stalling dispatch.
type Recorder struct {
	db    *gorm.DB
	queue chan EventRecord
	done  chan struct{}

	mu          sync.Mutex
	unsubscribe []func()
	closed      bool
}

// New migrates the archive table and starts the writer goroutine.
func New(client *conn.Client) (*Recorder, error) {
	if client == nil || client.DB() == nil {
		return nil, exception.ErrInvalidArgument
	}
	if err := client.DB().AutoMigrate(&EventRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate realtime_events")
	}

	r := &Recorder{
		db:    client.DB(),
		queue: make(chan EventRecord, defaultQueueSize),
		done:  make(chan struct{}),
	}
	go r.drain()
	return r, nil
}

// Attach subscribes the recorder to every inbound topic of the supervisor.
func (r *Recorder) Attach(sup *realtime.Supervisor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return exception.ErrRecorderClosed
	}
	for topic := realtime.TopicFarmAlert; topic <= realtime.TopicFarmStatus; topic++ {
		topic := topic
		unsub := sup.Subscribe(topic, func(payload []byte) {
			r.record(topic, payload)
		})
		r.unsubscribe = append(r.unsubscribe, unsub)
	}
	return nil
}

// Close detaches from the supervisor and flushes queued rows.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	unsubs := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	close(r.queue)
	<-r.done
}

func (r *Recorder) record(topic realtime.Topic, payload []byte) {
	row := EventRecord{
		Topic:      topic.WireName(),
		FarmID:     farmOf(payload),
		Payload:    append([]byte(nil), payload...),
		ReceivedAt: time.Now(),
	}

	// The closed check and the send share the lock so Close can never close
	// the queue between them.
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- row:
	default:
		logs.Warnf("recorder queue full, drop %s event", row.Topic)
	}
}

func (r *Recorder) drain() {
	defer close(r.done)
	for row := range r.queue {
		if err := r.db.Create(&row).Error; err != nil {
			logs.Errorf("archive %s event, err: %+v", row.Topic, err)
		}
	}
}

func farmOf(payload []byte) string {
	var probe struct {
		FarmID string `json:"farmId"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.FarmID
}
