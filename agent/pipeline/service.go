// Package pipeline assembles the message-handling graph and exposes the
// single entry point one inbound message goes through.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/vendra/salescore/agent/contract"
	nodex "github.com/vendra/salescore/agent/nodes"
	"github.com/vendra/salescore/agent/tool"
)

// RuleStore is the rule persistence the pipeline reads from and writes
// proposals to.
type RuleStore interface {
	contractx.RuleStore
	ProposeResponses(ctx context.Context, businessID string, responses []contractx.SuggestedResponse) error
}

// Pipeline handles inbound messages for any business. All per-conversation
// scoping happens inside a turn; the compiled graph is shared.
type Pipeline struct {
	memory      contractx.MemoryStore
	rules       RuleStore
	interpreter contractx.Interpreter
	refiner     contractx.Refiner
	gateway     *tool.Gateway

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(
	memory contractx.MemoryStore,
	rules RuleStore,
	interpreter contractx.Interpreter,
	refiner contractx.Refiner,
	gateway *tool.Gateway,
) (*Pipeline, error) {
	if memory == nil {
		return nil, errors.New("memory store is required")
	}
	if rules == nil {
		return nil, errors.New("rule store is required")
	}
	if interpreter == nil {
		return nil, errors.New("interpreter is required")
	}
	if gateway == nil {
		return nil, errors.New("tool gateway is required")
	}

	p := &Pipeline{
		memory:      memory,
		rules:       rules,
		interpreter: interpreter,
		refiner:     refiner,
		gateway:     gateway,
		now:         time.Now,
	}

	graphRunner, err := p.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.graphRunner = graphRunner

	return p, nil
}

// HandleMessage runs one customer message through the full pipeline and
// returns the outward reply with the turn's audit trail.
func (p *Pipeline) HandleMessage(ctx context.Context, in nodex.GraphInput) (nodex.GraphOutput, error) {
	return p.graphRunner.Invoke(ctx, in)
}
