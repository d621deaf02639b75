package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/serverless/function-gateway/bus"
	"github.com/serverless/function-gateway/function"
)

// Handler answers invocation calls received from the bus. It returns the encoded
// response, or no payload at all when the invocation failed.
type Handler struct {
	Invoker *Invoker
	Log     *zap.Logger
}

// HandleSync implements bus.SyncHandler.
func (h *Handler) HandleSync(ctx context.Context, msg *bus.Message) (payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			metricInvocations.WithLabelValues(resultFunctionError).Inc()
			h.Log.Error("Invocation panicked.", zap.Object("message", msg), zap.String("panic", fmt.Sprint(r)))
			payload = nil
		}
	}()

	req := &function.Request{}
	if err := json.Unmarshal(msg.Data, req); err != nil {
		metricInvocations.WithLabelValues(resultMalformed).Inc()
		h.Log.Warn("Malformed invocation request.", zap.Object("message", msg), zap.Error(err))
		return nil
	}

	resp, err := h.Invoker.Invoke(ctx, req)
	if err != nil {
		return nil
	}

	payload, err = json.Marshal(resp)
	if err != nil {
		h.Log.Error("Unable to encode invocation response.", zap.Object("request", req), zap.Error(err))
		return nil
	}
	return payload
}
