// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/playback"
)

func TestClassifyRefusedTransitions(t *testing.T) {
	refusal := func(sentinel error) error {
		return fmt.Errorf("intent: %w", &playback.IllegalTransitionError{
			From:   playback.StateIdle,
			Event:  playback.EvPlay,
			Reason: "requires_ready",
			Err:    sentinel,
		})
	}
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"bare", refusal(nil), http.StatusConflict, "ILLEGAL_TRANSITION"},
		{"not ready", refusal(playback.ErrNotReady), http.StatusConflict, "NOT_READY"},
		{"retry", refusal(playback.ErrRetryNotAllowed), http.StatusConflict, "RETRY_NOT_ALLOWED"},
		{"unpresentable", refusal(playback.ErrUnpresentable), http.StatusUnprocessableEntity, "UNPRESENTABLE"},
		{"plain sentinel", playback.ErrNotReady, http.StatusConflict, "NOT_READY"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/x/intents", nil), tc.err)
			body := requireProblem(t, rec, tc.status, tc.code)
			var illegal *playback.IllegalTransitionError
			if errors.As(tc.err, &illegal) {
				assert.Equal(t, "idle", body["state"])
				assert.Equal(t, "requires_ready", body["reason"])
			}
		})
	}
}
