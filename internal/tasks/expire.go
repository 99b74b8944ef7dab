package tasks

import (
	"context"
	"encoding/json"
	"fmt"
)

// TypeCandidateExpire locks an in-progress attempt whose deadline has passed.
const TypeCandidateExpire = "candidate.expire"

type expirePayload struct {
	CandidateID int64 `json:"candidate_id"`
}

// Expirer is the slice of the session service the expiry handler needs.
type Expirer interface {
	ExpireOverdue(ctx context.Context, candidateID int64) error
}

// ExpireHandler returns the handler for candidate.expire tasks.
func ExpireHandler(svc Expirer) Handler {
	return func(ctx context.Context, t *Task) error {
		var p expirePayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			return fmt.Errorf("decode expire payload: %w", err)
		}
		if p.CandidateID <= 0 {
			return fmt.Errorf("expire payload missing candidate_id")
		}
		return svc.ExpireOverdue(ctx, p.CandidateID)
	}
}
