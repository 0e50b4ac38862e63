package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/logfields"
)

// Approval board errors.
var (
	ErrUnknownApproval = errors.NewError(errors.CategoryNotFound, "no pending approval with that id").Build()
	ErrInvalidOption   = errors.ValidationError("choice is not one of the offered options").Build()
	ErrNotApprover     = errors.ApprovalError("caller is not an approver for this request").Build()
)

// PendingApproval is the public view of a waiting request.
type PendingApproval struct {
	ci.InputRequest
	CreatedAt time.Time `json:"created_at"`
	Deadline  time.Time `json:"deadline"`
}

type decision struct {
	choice ci.Choice
	abort  bool
}

type pending struct {
	view PendingApproval
	done chan decision
}

// ApprovalBoard holds requests waiting for a human and implements
// ci.HumanInputChannel for them.
type ApprovalBoard struct {
	Clock clockwork.Clock

	mu      sync.Mutex
	pending map[string]*pending
}

// NewApprovalBoard returns an empty board using the real clock.
func NewApprovalBoard() *ApprovalBoard {
	return &ApprovalBoard{Clock: clockwork.NewRealClock(), pending: make(map[string]*pending)}
}

// RequestChoice implements ci.HumanInputChannel.
func (b *ApprovalBoard) RequestChoice(ctx context.Context, req ci.InputRequest, timeout time.Duration) (ci.Choice, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := b.Clock.Now()
	p := &pending{
		view: PendingApproval{InputRequest: req, CreatedAt: now, Deadline: now.Add(timeout)},
		done: make(chan decision, 1),
	}
	b.mu.Lock()
	b.pending[req.ID] = p
	b.mu.Unlock()
	defer b.remove(req.ID)

	timer := b.Clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case d := <-p.done:
		if d.abort {
			return ci.Choice{}, fmt.Errorf("%w: aborted by %s", ci.ErrInputInterrupted, d.choice.Approver)
		}
		return d.choice, nil
	case <-timer.Chan():
		return ci.Choice{}, fmt.Errorf("%w: no decision within %s", ci.ErrInputInterrupted, timeout)
	case <-ctx.Done():
		return ci.Choice{}, fmt.Errorf("%w: %w", ci.ErrInputInterrupted, ctx.Err())
	}
}

// List returns the pending requests ordered by creation time.
func (b *ApprovalBoard) List() []PendingApproval {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PendingApproval, 0, len(b.pending))
	for _, p := range b.pending {
		out = append(out, p.view)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Get returns one pending request.
func (b *ApprovalBoard) Get(id string) (PendingApproval, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pending[id]
	if !ok {
		return PendingApproval{}, false
	}
	return p.view, true
}

// Decide resolves request id with choice.
func (b *ApprovalBoard) Decide(id string, choice ci.Choice) error {
	return b.deliver(id, decision{choice: choice})
}

// Abort ends request id without a choice.
func (b *ApprovalBoard) Abort(id, approver string) error {
	return b.deliver(id, decision{choice: ci.Choice{Approver: approver}, abort: true})
}

func (b *ApprovalBoard) deliver(id string, d decision) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pending[id]
	if !ok {
		return ErrUnknownApproval
	}
	if len(p.view.Approvers) > 0 && !slices.Contains(p.view.Approvers, d.choice.Approver) {
		return ErrNotApprover
	}
	if !d.abort && !slices.Contains(p.view.Options, d.choice.Option) {
		return ErrInvalidOption
	}
	delete(b.pending, id)
	p.done <- d
	slog.Info("Approval delivered", slog.String("request_id", id), logfields.Approver(d.choice.Approver), slog.Bool("abort", d.abort))
	return nil
}

func (b *ApprovalBoard) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, id)
}

// DecisionRequest is the body of POST /approvals/{id}.
type DecisionRequest struct {
	Choice   string `json:"choice"`
	Approver string `json:"approver,omitempty"`
}

func (s *Server) handleListApprovals(w http.ResponseWriter, _ *http.Request) {
	s.Success(w, http.StatusOK, s.approvals.List())
}

func (s *Server) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	p, ok := s.approvals.Get(chi.URLParam(r, "id"))
	if !ok {
		s.Error(w, r, http.StatusNotFound, ErrUnknownApproval.Message())
		return
	}
	s.Success(w, http.StatusOK, p)
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.Error(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	approver := req.Approver
	if who, ok := ApproverFromContext(r.Context()); ok {
		approver = who
	}
	id := chi.URLParam(r, "id")
	if err := s.approvals.Decide(id, ci.Choice{Option: req.Choice, Approver: approver}); err != nil {
		s.Error(w, r, statusFor(err), errorMessage(err))
		return
	}
	s.Success(w, http.StatusOK, map[string]string{"id": id, "choice": req.Choice, "approver": approver})
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	approver := r.URL.Query().Get("approver")
	if who, ok := ApproverFromContext(r.Context()); ok {
		approver = who
	}
	id := chi.URLParam(r, "id")
	if err := s.approvals.Abort(id, approver); err != nil {
		s.Error(w, r, statusFor(err), errorMessage(err))
		return
	}
	s.Success(w, http.StatusOK, map[string]string{"id": id, "aborted_by": approver})
}

func statusFor(err error) int {
	switch errors.GetCategory(err) {
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryValidation:
		return http.StatusUnprocessableEntity
	case errors.CategoryApproval:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	if c, ok := errors.AsClassified(err); ok {
		return c.Message()
	}
	return err.Error()
}
