package api

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/marketplace-postsubmit/internal/domain/submit"
)

func writeSubmitResponse(ctx context.Context, w http.ResponseWriter, resp *submit.OrderSubmitResponse) {
	e := &jx.Encoder{}
	encodeSubmitResponse(e, resp)
	writeJSON(ctx, w, resp.Status, e.Bytes())
}

func writeError(ctx context.Context, w http.ResponseWriter, code int, message string) {
	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
	writeJSON(ctx, w, code, e.Bytes())
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		zctx.From(ctx).Warn("Write response", zap.Error(err))
	}
}

func encodeSubmitResponse(e *jx.Encoder, resp *submit.OrderSubmitResponse) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Int(resp.Status) })
		e.Field("results", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, res := range resp.Results {
					encodeProcessResult(e, res)
				}
			})
		})
		if resp.UnhandledError != "" {
			e.Field("unhandledError", func(e *jx.Encoder) { e.Str(resp.UnhandledError) })
		}
	})
}

func encodeProcessResult(e *jx.Encoder, res submit.ProcessResult) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str(string(res.Type)) })
		e.Field("actions", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, action := range res.Actions {
					encodeAction(e, action)
				}
			})
		})
	})
}

func encodeAction(e *jx.Encoder, action submit.ProcessResultAction) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str(string(action.Type)) })
		e.Field("description", func(e *jx.Encoder) { e.Str(action.Description) })
		e.Field("success", func(e *jx.Encoder) { e.Bool(action.Success) })
		if ex := action.Exception; ex != nil {
			e.Field("exception", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("category", func(e *jx.Encoder) { e.Str(ex.Category) })
					e.Field("message", func(e *jx.Encoder) { e.Str(ex.Message) })
					e.Field("retryable", func(e *jx.Encoder) { e.Bool(ex.Retryable) })
				})
			})
		}
	})
}
