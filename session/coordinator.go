package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/room4-2/accessai/functions"
	"github.com/room4-2/accessai/gemini"
	"github.com/room4-2/accessai/metrics"
)

// SkippedResult answers external calls that arrived in the same batch as a
// UI call.
const SkippedResult = "That request was skipped because the screen is now showing something else. Ask again once it is closed."

// DefaultPlacesDelay is how long a places result waits before the list
// overlay opens.
const DefaultPlacesDelay = time.Second

// Responder sends tool responses back to the session.
type Responder interface {
	SendToolResponse(responses ...gemini.ToolResponse) error
}

// CapturePauser is the part of the capture pipeline the coordinator drives.
type CapturePauser interface {
	Pause()
}

// Coordinator routes tool call batches either to an overlay transition or
// to the executor.
type Coordinator struct {
	executor    functions.Executor
	machine     *Machine
	cache       MapDataCache
	placesDelay time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

// NewCoordinator creates a coordinator. cache may be nil.
func NewCoordinator(executor functions.Executor, machine *Machine, cache MapDataCache, opts Options) *Coordinator {
	if cache == nil {
		cache = NewMemoryMapCache()
	}
	delay := opts.PlacesDelay
	if delay <= 0 {
		delay = DefaultPlacesDelay
	}
	return &Coordinator{
		executor:    executor,
		machine:     machine,
		cache:       cache,
		placesDelay: delay,
		logger:      opts.logger(),
		metrics:     opts.Metrics,
		tracer:      tracer,
	}
}

// Handle processes one batch. The returned channel is closed once every
// response owed for the batch has been sent or abandoned. ctx is the
// conversation's lifetime: once it is done, pending results are discarded.
func (c *Coordinator) Handle(ctx context.Context, batch gemini.ToolCallBatch, responder Responder, capture CapturePauser) <-chan struct{} {
	done := make(chan struct{})

	var (
		uiCall   *gemini.ToolCall
		uiAction functions.UIAction
		external []gemini.ToolCall
	)
	for i := range batch.Calls {
		call := batch.Calls[i]
		action := functions.Classify(call.Name)
		switch {
		case !action.IsUI():
			external = append(external, call)
		case uiCall == nil:
			uiCall, uiAction = &batch.Calls[i], action
		default:
			c.logger.Warn("ignoring extra UI call in batch", "name", call.Name, "id", call.ID)
			c.metrics.RecordToolCall(call.Name, "ui", "skipped", 0)
		}
	}

	if uiCall != nil {
		c.showOverlay(ctx, *uiCall, uiAction, capture)
		go func() {
			defer close(done)
			c.skip(ctx, external, responder)
		}()
		return done
	}

	if len(external) == 0 {
		close(done)
		return done
	}

	ticket, _ := c.machine.ToolsStarted()
	go func() {
		defer close(done)
		defer c.machine.ToolsFinished(ticket)
		c.runExternal(ctx, external, responder)
	}()
	return done
}

func (c *Coordinator) showOverlay(ctx context.Context, call gemini.ToolCall, action functions.UIAction, capture CapturePauser) {
	overlay, _ := OverlayFor(action)

	var side *SideData
	switch action {
	case functions.ShowLiveMap:
		last, err := c.cache.Last(ctx)
		if err != nil {
			c.logger.Warn("failed to load last places", "error", err)
		}
		side = last
	case functions.ShowEmergencyContacts, functions.CallEmergencyContact:
		if target := functions.AutoCallTarget(call.Args); target != "" {
			side = &SideData{AutoCall: target}
		}
	}

	if capture != nil {
		capture.Pause()
	}
	c.machine.ShowOverlay(overlay, side)
	c.metrics.RecordToolCall(call.Name, "ui", "ok", 0)
	c.logger.Info("ui tool call", "name", call.Name, "id", call.ID, "state", overlay.String())
}

func (c *Coordinator) skip(ctx context.Context, calls []gemini.ToolCall, responder Responder) {
	if len(calls) == 0 {
		return
	}
	responses := make([]gemini.ToolResponse, 0, len(calls))
	for _, call := range calls {
		responses = append(responses, gemini.ToolResponse{ID: call.ID, Name: call.Name, Result: SkippedResult})
		c.metrics.RecordToolCall(call.Name, "external", "skipped", 0)
	}
	c.respond(ctx, responder, responses...)
}

func (c *Coordinator) runExternal(ctx context.Context, calls []gemini.ToolCall, responder Responder) {
	var g errgroup.Group
	for _, call := range calls {
		g.Go(func() error {
			result := c.execute(ctx, call)
			c.respond(ctx, responder, gemini.ToolResponse{ID: call.ID, Name: call.Name, Result: result})
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Coordinator) respond(ctx context.Context, responder Responder, responses ...gemini.ToolResponse) {
	if ctx.Err() != nil {
		return
	}
	if err := responder.SendToolResponse(responses...); err != nil {
		c.logger.Warn("failed to send tool response", "error", err, "count", len(responses))
	}
}

// execute runs one call and always yields a result string.
func (c *Coordinator) execute(ctx context.Context, call gemini.ToolCall) (result string) {
	ctx, span := c.tracer.Start(ctx, "tool "+call.Name, trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	))
	defer span.End()

	start := time.Now()
	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("tool %s panicked: %v", call.Name, r)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.logger.Error("tool execution panicked", "name", call.Name, "id", call.ID, "panic", r)
			outcome, result = "error", functions.FallbackResult
		}
		c.metrics.RecordToolCall(call.Name, "external", outcome, time.Since(start))
	}()

	text, err := c.run(ctx, call)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("tool execution failed", "name", call.Name, "id", call.ID, "error", err)
		outcome = "error"
		return functions.FallbackResult
	}
	if text == "" {
		outcome = "empty"
		return functions.FallbackResult
	}
	return text
}

func (c *Coordinator) run(ctx context.Context, call gemini.ToolCall) (string, error) {
	if _, known := functions.Lookup(call.Name); !known || c.executor == nil {
		return "", fmt.Errorf("%w: %s", functions.ErrUnknownTool, call.Name)
	}
	if call.Name != functions.FindNearbyPlaces {
		return c.executor.Execute(ctx, call.Name, call.Args)
	}

	finder, ok := c.executor.(functions.PlaceFinder)
	if !ok {
		return c.executor.Execute(ctx, call.Name, call.Args)
	}

	result, err := finder.FindPlaces(ctx, functions.PlaceTypeArg(call.Args))
	if err != nil {
		return "", err
	}
	if len(result.Places) > 0 {
		c.showPlacesLater(ctx, &SideData{PlaceType: result.PlaceType, Places: result.Places})
	}
	return result.Message(), nil
}

// showPlacesLater caches the places and opens the list overlay after the
// configured delay, unless the conversation has ended by then.
func (c *Coordinator) showPlacesLater(ctx context.Context, side *SideData) {
	if err := c.cache.Put(ctx, side); err != nil {
		c.logger.Warn("failed to cache places", "error", err)
	}
	time.AfterFunc(c.placesDelay, func() {
		if ctx.Err() != nil {
			return
		}
		c.machine.ShowOverlay(ShowingPlacesList, side)
	})
}
