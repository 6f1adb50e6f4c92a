package port

import (
	"context"

	"github.com/google/uuid"
)

// JobDispatcher hands a pending job to whatever runs the orchestrator.
// A returned error means the job was not handed off and stays pending.
type JobDispatcher interface {
	Dispatch(ctx context.Context, jobID uuid.UUID) error
}

type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg []byte) error
}

type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}
