package tool

import (
	"context"

	contractx "github.com/vendra/salescore/agent/contract"
	"github.com/vendra/salescore/pkg/coreapi"
)

// CoreTelemetry ships tool execution logs to the platform core service.
type CoreTelemetry struct {
	Client *coreapi.Client
}

func (t *CoreTelemetry) LogToolExecution(ctx context.Context, entry contractx.ToolExecutionLog) error {
	if t.Client == nil {
		return nil
	}
	return t.Client.LogToolExecution(ctx,
		entry.BusinessID, entry.ToolName, entry.ToolInput,
		entry.Result, entry.Success, entry.Error,
		entry.Duration, entry.ContactPhone)
}
