package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/justbri/reelscrape/services/scraper"
)

var ErrJobRunning = errors.New("scrape already running for this sitemap")

// JobState is the pollable view of a scrape job.
type JobState struct {
	ID         string           `json:"id"`
	SitemapID  int64            `json:"sitemap_id"`
	Progress   scraper.Progress `json:"progress"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// Running reports whether the job has not finished yet.
func (s JobState) Running() bool {
	return s.FinishedAt == nil
}

// Jobs tracks one scrape job per sitemap. The last job of each sitemap stays
// visible after it finishes.
type Jobs struct {
	mu      sync.RWMutex
	cancels map[int64]context.CancelFunc
	states  map[int64]*JobState
}

func NewJobs() *Jobs {
	return &Jobs{
		cancels: make(map[int64]context.CancelFunc),
		states:  make(map[int64]*JobState),
	}
}

func (j *Jobs) IsRunning(sitemapID int64) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	_, active := j.cancels[sitemapID]
	return active
}

// Start registers a new job for sitemapID. The returned context is cancelled
// by Stop.
func (j *Jobs) Start(parent context.Context, sitemapID int64, total int) (context.Context, JobState, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, active := j.cancels[sitemapID]; active {
		return nil, *j.states[sitemapID], ErrJobRunning
	}

	ctx, cancel := context.WithCancel(parent)
	state := &JobState{
		ID:        uuid.NewString(),
		SitemapID: sitemapID,
		Progress:  scraper.Progress{Total: total, Status: scraper.StatusRunning},
		StartedAt: time.Now(),
	}
	j.cancels[sitemapID] = cancel
	j.states[sitemapID] = state
	return ctx, *state, nil
}

// Stop cancels the running job of sitemapID. It reports false when none runs.
func (j *Jobs) Stop(sitemapID int64) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	cancel, active := j.cancels[sitemapID]
	if active {
		cancel()
	}
	return active
}

// StopAll cancels every running job.
func (j *Jobs) StopAll() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, cancel := range j.cancels {
		cancel()
	}
}

// Update records a progress snapshot for job id.
func (j *Jobs) Update(sitemapID int64, id string, p scraper.Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if s, ok := j.states[sitemapID]; ok && s.ID == id {
		s.Progress = p
	}
}

// Finish marks job id as done and releases the sitemap for a new job.
func (j *Jobs) Finish(sitemapID int64, id string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	s, ok := j.states[sitemapID]
	if !ok || s.ID != id {
		return
	}
	now := time.Now()
	s.FinishedAt = &now
	if err != nil {
		s.Error = err.Error()
		s.Progress.Status = scraper.StatusError
	}
	if cancel, active := j.cancels[sitemapID]; active {
		cancel()
		delete(j.cancels, sitemapID)
	}
}

// Get returns the latest job of sitemapID.
func (j *Jobs) Get(sitemapID int64) (JobState, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	s, ok := j.states[sitemapID]
	if !ok {
		return JobState{}, false
	}
	return *s, true
}

// List returns the latest job of every sitemap, newest first.
func (j *Jobs) List() []JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]JobState, 0, len(j.states))
	for _, s := range j.states {
		out = append(out, *s)
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].StartedAt.After(out[b].StartedAt)
	})
	return out
}
