package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageRunDone      Stage = "RUN_DONE"
	StageRunError     Stage = "RUN_ERROR"
	StageWorkerStart  Stage = "WORKER_START"
	StageWorkerDone   Stage = "WORKER_DONE"
	StageCaptureStart Stage = "CAPTURE_START"
	StageCaptureDone  Stage = "CAPTURE_DONE"
	StageCaptureError Stage = "CAPTURE_ERROR"
)

// Event captures a single milestone of a capture run.
type Event struct {
	// RunID uniquely identifies a pipeline run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which run, worker, or capture milestone occurred.
	Stage Stage
	// Worker is the zero-based worker ordinal for worker and capture stages.
	Worker int
	// Product is the product code for capture stages.
	Product string
	// Index is the product's position in the loaded collection.
	Index int
	// Pending carries the pending-product count on RUN_START.
	Pending int
	// Bytes carries the encoded screenshot size on CAPTURE_DONE.
	Bytes int64
	// Dur captures execution latency for captures, workers, and the run.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageWorkerStart, StageWorkerDone:
		if e.Worker < 0 {
			return errors.New("worker stages require a worker ordinal")
		}
	case StageCaptureStart, StageCaptureDone, StageCaptureError:
		if e.Worker < 0 {
			return errors.New("capture stages require a worker ordinal")
		}
		if e.Product == "" {
			return errors.New("capture stages require a product code")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for sinks.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
