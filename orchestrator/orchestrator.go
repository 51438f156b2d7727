// Package orchestrator routes each question down the structured or the
// retrieval path and guarantees a well-formed answer either way.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/finsolve/rbac-chat/classifier"
	"github.com/finsolve/rbac-chat/common/logger"
	"github.com/finsolve/rbac-chat/metrics"
	"github.com/finsolve/rbac-chat/rbac"
	"github.com/finsolve/rbac-chat/retrieval"
	"github.com/finsolve/rbac-chat/schema"
	"github.com/finsolve/rbac-chat/structured"
)

// ApologyAnswer is returned when both paths fail. It never leaks internal
// error detail to the caller.
const ApologyAnswer = "I'm sorry, I couldn't process that request right now. Please try again."

const defaultTimeout = 30 * time.Second

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout bounds the processing time of a single request.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// Orchestrator owns the request lifecycle: classification, path execution,
// structured-to-retrieval fallback, and metrics recording.
type Orchestrator struct {
	store      *rbac.Store
	catalog    *structured.Catalog
	classifier classifier.Classifier
	structured *structured.Executor
	retrieval  *retrieval.Executor
	tracker    *metrics.Tracker
	timeout    time.Duration
}

// New wires the orchestrator.
func New(store *rbac.Store, catalog *structured.Catalog, cls classifier.Classifier,
	se *structured.Executor, re *retrieval.Executor, tracker *metrics.Tracker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		catalog:    catalog,
		classifier: cls,
		structured: se,
		retrieval:  re,
		tracker:    tracker,
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle answers a question for a role. It never returns an error: failures
// anywhere in either path degrade to a static apology. Exactly one metrics
// record is emitted per call.
func (o *Orchestrator) Handle(ctx context.Context, role, question string, topK int) (resp schema.ChatResponse) {
	role = rbac.NormalizeRole(role)
	reqID := uuid.NewString()
	resp = schema.ChatResponse{Role: role, Mode: schema.ModeRAG}

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("orchestrator: request %s recovered from panic: %v", reqID, r)
			resp = schema.ChatResponse{Role: role, Mode: schema.ModeRAG, Answer: ApologyAnswer}
		}
		o.tracker.Record(role, resp.Mode, resp.CacheHit, resp.Reranked)
	}()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	policy := o.store.Policy(role, o.catalog.Tables())

	var fallbackNote string
	if res := o.classifier.Classify(question, policy.TableNames()); res.Intent == classifier.Structured {
		out, err := o.structured.Execute(ctx, policy, res.Statement)
		if err == nil {
			resp.Mode = schema.ModeSQL
			resp.Answer = out.Markdown
			resp.References = out.References
			return resp
		}
		fallbackNote = declineReason(err)
		logger.Infof("orchestrator: request %s structured path declined for role %s: %v", reqID, role, err)
		resp.Mode = schema.ModeSQLFallback
	}

	ans, err := o.retrieval.Execute(ctx, policy, question, topK)
	if err != nil {
		logger.Errorf("orchestrator: request %s retrieval path failed for role %s: %v", reqID, role, err)
		resp.Answer = ApologyAnswer
		return resp
	}

	resp.Answer = ans.Text
	resp.References = ans.References
	resp.CacheHit = ans.CacheHit
	resp.Reranked = ans.Reranked
	if fallbackNote != "" {
		resp.Answer = fmt.Sprintf("_Structured query was attempted but declined: %s; answered from department documents instead._\n\n%s",
			fallbackNote, ans.Text)
	}
	return resp
}

// declineReason turns a structured-path error into the short phrase shown
// in the fallback annotation.
func declineReason(err error) string {
	var perr *structured.PolicyError
	if errors.As(err, &perr) {
		return perr.Reason
	}
	var xerr *structured.ExecError
	if errors.As(err, &xerr) {
		return "the query could not be executed"
	}
	return "the query could not be processed"
}
