// Package dispatch routes inbound messages to plugins.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/lynae/internal/tracing"
	"github.com/harun/lynae/pkg/identity"
	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/normalizer"
	"github.com/harun/lynae/pkg/outbound"
	"github.com/harun/lynae/pkg/plugin"
	"github.com/harun/lynae/pkg/transport"
)

// Outcome is the terminal state of one inbound message.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeStale     Outcome = "stale"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeEmpty     Outcome = "empty"
	OutcomeNoCommand Outcome = "no_command"
	OutcomeNoPlugins Outcome = "no_plugins"
	OutcomeNoMatch   Outcome = "no_match"
	OutcomeDone      Outcome = "done"
	OutcomeFailed    Outcome = "failed"
)

// Recorder observes dispatch results.
type Recorder interface {
	RecordMessage(outcome Outcome)
	RecordExecution(plugin string, duration time.Duration, err error)
}

// Config wires an Engine.
type Config struct {
	Client     transport.Client
	Registry   *plugin.Registry
	Normalizer *normalizer.Normalizer
	Resolver   *identity.Resolver
	Processed  *ProcessedSet
	// Recorder and GuardRecorder may be nil.
	Recorder      Recorder
	GuardRecorder outbound.Recorder
}

// Engine deduplicates, parses and dispatches inbound messages. Handle is
// meant to be called from a single goroutine.
type Engine struct {
	client        transport.Client
	registry      *plugin.Registry
	normalizer    *normalizer.Normalizer
	resolver      *identity.Resolver
	processed     *ProcessedSet
	recorder      Recorder
	guardRecorder outbound.Recorder
	logger        zerolog.Logger
}

// New creates an engine. Nil components take defaults.
func New(cfg Config, logger zerolog.Logger) *Engine {
	if cfg.Registry == nil {
		cfg.Registry = plugin.NewRegistry()
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = normalizer.New(normalizer.Config{})
	}
	if cfg.Resolver == nil {
		cfg.Resolver = identity.NewResolver(cfg.Client, "", logger)
	}
	if cfg.Processed == nil {
		cfg.Processed = NewProcessedSet(DefaultProcessedCapacity)
	}

	return &Engine{
		client:        cfg.Client,
		registry:      cfg.Registry,
		normalizer:    cfg.Normalizer,
		resolver:      cfg.Resolver,
		processed:     cfg.Processed,
		recorder:      cfg.Recorder,
		guardRecorder: cfg.GuardRecorder,
		logger:        logger.With().Str("component", "dispatch").Logger(),
	}
}

// Processed exposes the dedup set.
func (e *Engine) Processed() *ProcessedSet {
	return e.processed
}

// HandleUpsert dispatches every envelope of an accepted batch in order.
// Batches of other types are ignored.
func (e *Engine) HandleUpsert(ctx context.Context, u message.Upsert) []Outcome {
	if !u.Accepted() {
		e.logger.Debug().Str("type", u.Type).Int("messages", len(u.Messages)).Msg("Ignoring upsert")
		return nil
	}

	outcomes := make([]Outcome, 0, len(u.Messages))
	for i := range u.Messages {
		outcomes = append(outcomes, e.Handle(ctx, &u.Messages[i]))
	}
	return outcomes
}

// Handle runs one inbound event through the pipeline. It never panics and
// never returns an error: every failure is logged and folded into the
// outcome.
func (e *Engine) Handle(ctx context.Context, ev *message.Event) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Error processing message")
			outcome = OutcomeFailed
		}
		if e.recorder != nil {
			e.recorder.RecordMessage(outcome)
		}
	}()

	if ev == nil || ev.Message == nil {
		return OutcomeIgnored
	}
	if !e.normalizer.Fresh(ev) {
		return OutcomeStale
	}

	if !e.processed.Add(Key(ev.Key.RemoteJID, ev.Key.ID)) {
		return OutcomeDuplicate
	}

	cmd, err := e.normalizer.Normalize(ev)
	switch {
	case errors.Is(err, normalizer.ErrStale):
		return OutcomeStale
	case errors.Is(err, normalizer.ErrEmpty):
		return OutcomeEmpty
	case err != nil:
		return OutcomeIgnored
	}

	cmd.Sender = e.resolver.Sender(ev.Key)

	e.logger.Info().
		Str("push_name", cmd.PushName).
		Str("chat", cmd.Chat).
		Str("sender", cmd.Sender).
		Str("body", cmd.Body).
		Msg("Message received")

	if cmd.Prefix == "" || cmd.Command == "" {
		return OutcomeNoCommand
	}

	plugins := e.registry.Snapshot()
	if len(plugins) == 0 {
		e.logger.Warn().Str("command", cmd.Trigger()).Msg("No plugins loaded")
		return OutcomeNoPlugins
	}

	p := plugin.Match(plugins, cmd.Text)
	if p == nil {
		e.logger.Debug().Str("command", cmd.Trigger()).Msg("No plugin matched")
		return OutcomeNoMatch
	}

	if cmd.IsGroup {
		status := e.resolver.Admin(ctx, cmd.Chat, cmd.Sender)
		cmd.IsAdmin = status.IsAdmin
		cmd.IsBotAdmin = status.IsBotAdmin
	}

	return e.execute(ctx, p, cmd, plugins)
}

func (e *Engine) execute(ctx context.Context, p *plugin.Plugin, cmd *message.Command, plugins []*plugin.Plugin) Outcome {
	ctx = tracing.NewDispatchContext(ctx, cmd.Key.ID)
	ctx, span := tracing.StartSpan(ctx, "dispatch.execute",
		attribute.String("plugin", p.Name),
		attribute.String("chat", cmd.Chat),
		attribute.Bool("group", cmd.IsGroup),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, e.logger).With().
		Str("plugin", p.Name).
		Str("chat", cmd.Chat).
		Logger()

	guard := outbound.NewGuardedSender(e.client, outbound.Origin{
		Event:  cmd.Raw,
		Chat:   cmd.Chat,
		Sender: cmd.Sender,
	}, e.guardRecorder, logger)

	ec := &plugin.ExecutionContext{
		Client:     guard,
		UsedPrefix: cmd.Prefix,
		Command:    cmd.Command,
		Plugins:    plugins,
		IsAdmin:    cmd.IsAdmin,
		IsBotAdmin: cmd.IsBotAdmin,
		Logger:     logger,
	}

	if err := e.client.SendPresenceUpdate(ctx, transport.PresenceComposing, cmd.Chat); err != nil {
		logger.Debug().Err(err).Msg("Composing presence failed")
	}
	if err := e.client.ReadMessages(ctx, []message.Key{cmd.Key}); err != nil {
		logger.Debug().Err(err).Msg("Read receipt failed")
	}

	start := time.Now()
	err := invoke(ctx, p, cmd, ec)
	elapsed := time.Since(start)

	if e.recorder != nil {
		e.recorder.RecordExecution(p.Name, elapsed, err)
	}

	if presErr := e.client.SendPresenceUpdate(ctx, transport.PresenceAvailable, cmd.Chat); presErr != nil {
		logger.Debug().Err(presErr).Msg("Available presence failed")
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().
			Err(err).
			Str("primary", p.PrimaryName()).
			Dur("duration", elapsed).
			Msgf("Error executing plugin %s", p.PrimaryName())
		return OutcomeFailed
	}

	logger.Debug().Dur("duration", elapsed).Msg("Plugin executed")
	return OutcomeDone
}

// invoke runs the handler and turns panics into errors.
func invoke(ctx context.Context, p *plugin.Plugin, cmd *message.Command, ec *plugin.ExecutionContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin panic: %v", r)
		}
	}()
	if p.Handler == nil {
		return fmt.Errorf("plugin %s has no handler", p.Name)
	}
	return p.Handler.Execute(ctx, cmd, ec)
}
