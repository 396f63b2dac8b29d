package browser

import (
	"context"

	"github.com/notearc/nbq/pkg/auth"
	"github.com/notearc/nbq/pkg/detector"
)

// RunDirect executes one query on a throwaway, non-pooled session. Slower
// than the pooled path but immune to shared-state corruption: the session is
// built for this call and torn down on every exit path, success or failure.
func RunDirect(ctx context.Context, driver *Driver, creds *auth.Store, det *detector.Detector, question, target string, headless bool) (string, error) {
	session := NewSession(driver, creds, target, headless)
	defer session.Close()

	if _, err := session.ResetIfNeeded(ctx, target); err != nil {
		return "", err
	}

	// Snapshot whatever answer is already on screen so the detector only
	// accepts genuinely new content.
	previous, err := session.AnswerText(ctx)
	if err != nil {
		return "", err
	}

	if err := session.Submit(ctx, question); err != nil {
		return "", err
	}

	return det.Detect(ctx, session, previous)
}
