package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/urlclient/client/throttle"
	"github.com/adamwoolhether/urlclient/client/transfer"
)

// worker repeatedly pulls one request and runs it through its own engine.
type worker struct {
	index  int
	q      *queue
	engine transfer.Engine
	gate   *throttle.Gate
	tracer trace.Tracer
	logger *slog.Logger
}

func (w *worker) run() {
	w.logger.Debug("worker started", "worker", w.index)
	defer w.logger.Debug("worker stopped", "worker", w.index)

	for {
		r, ok := w.q.pop()
		if !ok {
			return
		}

		resp := w.process(r)

		w.q.finish(r)
		r.cancel()

		deliver(w.logger, r, resp)
	}
}

// process turns one request into its terminal Response.
func (w *worker) process(r *request) Response {
	if r.isCanceled() {
		w.logger.Debug("request canceled before dispatch", "worker", w.index, "id", r.id, "url", r.url)
		return canceledResponse()
	}

	ctx, span := w.tracer.Start(r.ctx, "urlclient.transfer", trace.WithAttributes(
		attribute.Int64("request.id", int64(r.id)),
		attribute.String("url", r.url),
		attribute.Int("worker", w.index),
	))
	defer span.End()

	traceID := span.SpanContext().TraceID().String()
	if !span.SpanContext().TraceID().IsValid() {
		traceID = uuid.New().String()
	}

	if err := w.gate.Wait(ctx); err != nil {
		if r.isCanceled() || errors.Is(err, context.Canceled) {
			span.SetAttributes(attribute.Bool("canceled", true))
			return canceledResponse()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "throttle")
		return Response{Err: fmt.Errorf("throttle: %w", err)}
	}

	// Canceled between dequeue and dispatch: skip the transfer.
	if r.isCanceled() {
		span.SetAttributes(attribute.Bool("canceled", true))
		w.logger.Debug("request canceled before transfer", "worker", w.index, "id", r.id, "traceID", traceID)
		return canceledResponse()
	}

	w.logger.Debug("transfer started", "worker", w.index, "id", r.id, "url", r.url, "traceID", traceID)
	start := time.Now()

	resp := fromResult(w.engine.Fetch(ctx, r.url, r.isCanceled))

	span.SetAttributes(
		attribute.Bool("canceled", resp.Canceled),
		attribute.Int("content.length", len(resp.Content)),
	)

	var statusErr *UnexpectedStatusError
	if errors.As(resp.Err, &statusErr) {
		span.SetAttributes(attribute.Int("http.status_code", statusErr.StatusCode))
	}

	if resp.Err != nil {
		span.RecordError(resp.Err)
		span.SetStatus(codes.Error, "transfer failed")
		w.logger.Debug("transfer failed", "worker", w.index, "id", r.id, "url", r.url, "traceID", traceID, "since", time.Since(start).String(), "error", resp.Err)
		return resp
	}

	w.logger.Debug("transfer completed", "worker", w.index, "id", r.id, "url", r.url, "traceID", traceID, "since", time.Since(start).String(), "bytes", len(resp.Content), "canceled", resp.Canceled)

	return resp
}

// deliver invokes the request's callback, recovering any panic so a bad
// callback can't take a worker down.
func deliver(logger *slog.Logger, r *request, resp Response) {
	if r.callback == nil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("callback panic", "id", r.id, "url", r.url, "panic", fmt.Sprint(rec), "trace", string(debug.Stack()))
		}
	}()

	r.callback(resp)
}
