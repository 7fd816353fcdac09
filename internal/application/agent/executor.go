package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"go.uber.org/zap"
)

// ExecuteStatus classifies what Execute did with an action
type ExecuteStatus string

const (
	ExecuteStatusExecuted ExecuteStatus = "executed"
	ExecuteStatusFailed   ExecuteStatus = "failed"
	ExecuteStatusSkipped  ExecuteStatus = "skipped"
)

// ExecuteOutcome is the executor's report for one action
type ExecuteOutcome struct {
	Status  ExecuteStatus
	Message string
	Result  *agentdomain.ActionResult
}

// Executor is the single choke point turning one approved or auto action
// into at most one external effect. It never retries: a failed action stays
// failed, and any retry policy lives in the dispatch layer that re-queues
// actions.
type Executor struct {
	registry *Registry
	actions  agentdomain.AgentActionRepository
	timeout  time.Duration
	logger   *zap.Logger
}

// NewExecutor creates an executor. timeout bounds each handler call so one
// slow connector cannot stall a whole batch.
func NewExecutor(registry *Registry, actions agentdomain.AgentActionRepository, timeout time.Duration, logger *zap.Logger) *Executor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Executor{
		registry: registry,
		actions:  actions,
		timeout:  timeout,
		logger:   logger,
	}
}

// Execute resolves, claims, validates and runs one action.
//
// The claim is an atomic compare-and-set from pending/approved to
// executing, so with any number of workers the handler runs at most once;
// a second Execute on the same action reports skipped and leaves the
// status untouched. Execution failures never escalate to the action's run,
// which may have completed long ago.
func (e *Executor) Execute(ctx context.Context, actionID uuid.UUID) (*ExecuteOutcome, error) {
	action, err := e.actions.FindByID(ctx, actionID)
	if err != nil {
		return nil, fmt.Errorf("loading action %s: %w", actionID, err)
	}

	handler, err := e.registry.Action(action.ActionType)
	if err != nil {
		// Unknown type is fatal for this action, with no external call and
		// no retry.
		return e.failBeforeExecution(ctx, action, err.Error())
	}

	claimed, err := e.actions.ClaimForExecution(ctx, action.ID)
	if err != nil {
		if errors.Is(err, agentdomain.ErrActionClaimed) || errors.Is(err, agentdomain.ErrApprovalRequired) {
			return &ExecuteOutcome{Status: ExecuteStatusSkipped, Message: err.Error()}, nil
		}
		return nil, fmt.Errorf("claiming action %s: %w", action.ID, err)
	}
	action = claimed

	if err := handler.ValidatePayload(action.PayloadMap()); err != nil {
		return e.fail(ctx, action, fmt.Sprintf("payload validation failed: %v", err))
	}

	result, execErr := e.invoke(ctx, handler, action)
	if execErr != nil {
		return e.fail(ctx, action, execErr.Error())
	}

	if err := action.MarkExecuted(result); err != nil {
		return nil, err
	}
	if err := e.actions.Save(ctx, action); err != nil {
		return nil, fmt.Errorf("persisting executed action: %w", err)
	}

	e.logger.Info("action executed",
		zap.String("action_id", action.ID.String()),
		zap.String("action_type", action.ActionType),
		zap.String("target", action.TargetType+"/"+action.TargetID),
	)
	return &ExecuteOutcome{Status: ExecuteStatusExecuted, Message: result.Message, Result: result}, nil
}

// invoke runs the handler with a bounded timeout behind a panic boundary
func (e *Executor) invoke(ctx context.Context, handler agentdomain.ActionHandler, action *agentdomain.AgentAction) (result *agentdomain.ActionResult, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()

	result, err = handler.Execute(ctx, action)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &agentdomain.ActionResult{Success: true}
	}
	return result, nil
}

func (e *Executor) fail(ctx context.Context, action *agentdomain.AgentAction, message string) (*ExecuteOutcome, error) {
	if err := action.MarkFailed(message); err != nil {
		return nil, err
	}
	if err := e.actions.Save(ctx, action); err != nil {
		return nil, fmt.Errorf("persisting failed action: %w", err)
	}
	e.logger.Warn("action failed",
		zap.String("action_id", action.ID.String()),
		zap.String("action_type", action.ActionType),
		zap.String("message", message),
	)
	return &ExecuteOutcome{Status: ExecuteStatusFailed, Message: message}, nil
}

// failBeforeExecution fails an action that was never claimed (unknown
// handler type). Terminal actions are left untouched and reported skipped.
func (e *Executor) failBeforeExecution(ctx context.Context, action *agentdomain.AgentAction, message string) (*ExecuteOutcome, error) {
	if action.Status.IsTerminal() || action.Status == agentdomain.ActionStatusExecuting {
		return &ExecuteOutcome{Status: ExecuteStatusSkipped, Message: message}, nil
	}
	return e.fail(ctx, action, message)
}
