package httpapi

import (
	"sync"

	"github.com/buildtall-systems/gifticon/internal/workflow"
)

// WorkflowFactory builds the workflow for a newly seen subject.
type WorkflowFactory func(subject string) *workflow.Workflow

// Sessions keeps one workflow per authenticated subject.
type Sessions struct {
	factory WorkflowFactory

	mu        sync.Mutex
	workflows map[string]*workflow.Workflow
}

func NewSessions(factory WorkflowFactory) *Sessions {
	return &Sessions{
		factory:   factory,
		workflows: make(map[string]*workflow.Workflow),
	}
}

// Get returns the subject's workflow, creating it on first use.
func (s *Sessions) Get(subject string) *workflow.Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[subject]
	if !ok {
		wf = s.factory(subject)
		s.workflows[subject] = wf
	}
	return wf
}

// Forget drops the subject's workflow, e.g. on logout.
func (s *Sessions) Forget(subject string) {
	s.mu.Lock()
	delete(s.workflows, subject)
	s.mu.Unlock()
}

// Len returns the number of tracked subjects.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workflows)
}
