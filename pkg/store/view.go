package store

import (
	"context"
	"fmt"
	"time"

	"github.com/noospace/noospace/pkg/models"
)

// UpdateView merges the partial update onto the live view state. The
// camera, when present, replaces the stored camera wholesale so position
// and target never come from different frames. The in-memory view is
// current immediately; the write to storage is coalesced so continuous
// camera input does not amplify into a write per frame.
func (s *Store) UpdateView(ctx context.Context, update models.ViewUpdate) error {
	if err := s.validator.Struct(update); err != nil {
		return err
	}

	s.mu.Lock()
	if s.activeSpaceID == "" || !s.hasView {
		s.mu.Unlock()
		return ErrNoActiveSpace
	}

	if update.Camera != nil {
		s.view.Camera = *update.Camera
	}
	if update.Environment != nil {
		s.view.Environment = *update.Environment
	}
	if update.EdgeVisibility != nil {
		s.view.EdgeVisibility = *update.EdgeVisibility
	}
	if update.Mode != nil {
		s.view.Mode = *update.Mode
	}
	s.viewDirty = true
	s.scheduleFlushLocked()
	s.mu.Unlock()

	return nil
}

// View returns the live view state for the active space.
func (s *Store) View() (models.ViewState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view, s.hasView
}

// ResetView restores the canonical view state every templated space
// starts with, discarding whatever drift camera auto-persistence
// accumulated. The reset is flushed immediately.
func (s *Store) ResetView(ctx context.Context) error {
	s.mu.Lock()
	active := s.activeSpaceID
	if active == "" {
		s.mu.Unlock()
		return ErrNoActiveSpace
	}
	view := models.DefaultViewState(active)
	s.view = view
	s.hasView = true
	s.viewDirty = false
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	s.mu.Unlock()

	if err := s.storage.PutViewState(ctx, view); err != nil {
		return fmt.Errorf("failed to reset view state: %w", err)
	}
	s.logger.Debug().Str("space", active).Msg("Reset view")
	return nil
}

// scheduleFlushLocked arms the coalescing timer. Updates arriving while
// a flush is pending ride along with it; callers must hold s.mu.
func (s *Store) scheduleFlushLocked() {
	if s.closed || s.flushTimer != nil {
		return
	}
	s.flushTimer = time.AfterFunc(s.flushInterval, s.flushViewAsync)
}

func (s *Store) flushViewAsync() {
	s.mu.Lock()
	s.flushTimer = nil
	if !s.viewDirty || !s.hasView {
		s.mu.Unlock()
		return
	}
	view := s.view
	s.viewDirty = false
	s.mu.Unlock()

	if err := s.storage.PutViewState(context.Background(), view); err != nil {
		s.logger.Error().Err(err).Str("space", view.SpaceID).Msg("Failed to flush view state")
		s.mu.Lock()
		s.viewDirty = true
		s.mu.Unlock()
	}
}

// flushPendingView writes the dirty view synchronously, used before the
// session leaves the space it belongs to.
func (s *Store) flushPendingView(ctx context.Context) error {
	s.mu.Lock()
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	view, dirty := s.view, s.viewDirty
	s.viewDirty = false
	s.mu.Unlock()

	if !dirty {
		return nil
	}
	if err := s.storage.PutViewState(ctx, view); err != nil {
		return fmt.Errorf("failed to flush view state: %w", err)
	}
	return nil
}
