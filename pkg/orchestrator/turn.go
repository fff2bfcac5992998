package orchestrator

import (
	"context"
	"strings"

	"github.com/teslashibe/go-jarvis/pkg/conversation"
	"github.com/teslashibe/go-jarvis/pkg/metrics"
)

// accept starts a turn for text unless one is already in flight.
func (o *Orchestrator) accept(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if o.st.Processing {
		o.drop(text)
		return
	}

	o.st.Processing = true
	o.st.ErrorMessage = ""
	o.log.Append(conversation.NewUserMessage(text))
	if o.deps.Latency != nil {
		o.deps.Latency.MarkTranscript()
	}

	route := RouteDialogue
	tag, ok := o.deps.Classifier.Classify(text)
	if ok && o.deps.Tools.Has(tag) {
		route = string(tag)
	}

	tctx, cancel := context.WithCancel(ctx)
	o.turnGen++
	o.turnCancel = cancel
	gen := o.turnGen

	o.logger.Debugw("processing turn", "route", route, "text", text)

	go func() {
		defer cancel()
		var (
			msg conversation.Message
			err error
		)
		if route == RouteDialogue {
			msg, err = o.deps.Dialogue.Send(tctx, text)
		} else {
			msg, err = o.deps.Tools.Invoke(tctx, tag, text)
		}

		select {
		case o.results <- turnResult{gen: gen, route: route, msg: msg, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (o *Orchestrator) drop(text string) {
	metrics.DroppedTranscripts.Inc()
	o.logger.Debugw("dropping transcript while processing", "text", text)
}

// onResult appends the reply (or an apology) and hands it to the speaker.
func (o *Orchestrator) onResult(r turnResult) {
	if r.gen != o.turnGen || !o.st.Processing {
		o.logger.Debugw("discarding stale turn result", "route", r.route)
		return
	}
	o.turnCancel = nil
	o.st.Processing = false

	msg := r.msg
	outcome := metrics.OutcomeOK
	if r.err != nil {
		outcome = metrics.OutcomeError
		text := ErrorText(r.err)
		o.logger.Warnw("turn failed", "route", r.route, "error", r.err)
		msg = conversation.NewMessage(conversation.PrefixError, conversation.RoleAssistant, text)
		o.st.ErrorMessage = text
	}
	metrics.Turns.WithLabelValues(r.route, outcome).Inc()
	if o.deps.Latency != nil {
		o.deps.Latency.MarkReply(r.route)
	}

	o.log.Append(msg)
	o.deps.Speaker.Enqueue(msg.Content, o.cfg.Voice)
}

func (o *Orchestrator) cancelTurn() {
	if o.turnCancel != nil {
		o.turnCancel()
		o.turnCancel = nil
	}
	o.turnGen++
}
