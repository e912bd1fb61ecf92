package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/hrygo/catgpt/ai/llm"
	"github.com/hrygo/catgpt/internal/metrics"
)

// ReplyOptions are the pacing parameters of the streaming renderer. The
// defaults are tuned against Telegram's edit rate limits.
type ReplyOptions struct {
	// EditInterval is the minimum gap between two live edits.
	EditInterval time.Duration
	// BadRequestInterval replaces EditInterval after a 400-class edit
	// failure; the wider gap self-heals transient render glitches.
	BadRequestInterval time.Duration
	// RateLimitFallback is the pause used when a 429 description carries no
	// parseable retry delay.
	RateLimitFallback time.Duration
	// FlushThreshold is the minimum buffered length before an edit is
	// worth issuing.
	FlushThreshold int
	// MaxMessageLength is the platform's message size cap, measured in
	// characters of the escaped text.
	MaxMessageLength int
	// FinalGrace pads the pre-finalization sleep to avoid racing the edit
	// rate limit on the last edit.
	FinalGrace time.Duration
	// IdleTimeout aborts a stream that stalls between chunks.
	IdleTimeout time.Duration
}

// DefaultReplyOptions returns the tuned production pacing.
func DefaultReplyOptions() ReplyOptions {
	return ReplyOptions{
		EditInterval:       1800 * time.Millisecond,
		BadRequestInterval: 2500 * time.Millisecond,
		RateLimitFallback:  10 * time.Second,
		FlushThreshold:     18,
		MaxMessageLength:   4096,
		FinalGrace:         time.Second,
		IdleTimeout:        5 * time.Minute,
	}
}

// reasoningSeparator visually delimits the reasoning trace from the answer
// in the live-rendered message.
const reasoningSeparator = "\n\n---\n\n"

// OverflowRenderer renders an overlong reply to an external page and
// returns its URL. Optional; without one the overflow fallback is follow-up
// chat messages.
type OverflowRenderer func(ctx context.Context, markdown string) (string, error)

// ReplyTarget addresses the live-edited reply message.
type ReplyTarget struct {
	ChatID    int64
	MessageID int
	ThreadID  int
}

// Reply drives one streaming reply: it buffers model chunks, paces edits of
// the outbound message against the platform's rate limits, falls back to
// external pagination on overflow, and returns the final text for
// persistence. One Reply instance runs per inbound message; it owns no
// state beyond the in-flight buffer.
type Reply struct {
	messenger Messenger
	escape    func(string) string
	overflow  OverflowRenderer
	opts      ReplyOptions
}

// NewReply creates a reply renderer. escape converts raw model output into
// the platform's markup; overflow may be nil.
func NewReply(messenger Messenger, escape func(string) string, overflow OverflowRenderer, opts ReplyOptions) *Reply {
	if escape == nil {
		escape = func(s string) string { return s }
	}
	return &Reply{
		messenger: messenger,
		escape:    escape,
		overflow:  overflow,
		opts:      opts,
	}
}

// Stream consumes the chunk stream and live-edits the target message.
// It returns the assembled answer and the reasoning trace separately; the
// answer never contains the trace.
//
// A fatal platform or provider error aborts immediately with whatever text
// had been rendered so far; the caller must not persist the turn then.
func (r *Reply) Stream(ctx context.Context, chunks <-chan llm.Chunk, errs <-chan error, target ReplyTarget) (string, string, error) {
	var (
		answer    strings.Builder // final answer, reasoning excluded
		trace     strings.Builder // reasoning trace
		text      string          // rendered prefix already on the platform
		buffered  string          // rendered tail not yet flushed
		reasoning bool            // currently inside the reasoning trace
		overflow  bool
		timeout   = r.opts.EditInterval
		last      = time.Now()
		finished  bool
	)

	idle := time.NewTimer(r.opts.IdleTimeout)
	defer idle.Stop()

	for !finished {
		var (
			chunk llm.Chunk
			ok    bool
		)
		select {
		case chunk, ok = <-chunks:
			if !ok {
				finished = true
			}
		case err, open := <-errs:
			if !open {
				errs = nil
				continue
			}
			metrics.RepliesTotal.WithLabelValues("provider_error").Inc()
			return answer.String(), trace.String(), err
		case <-idle.C:
			metrics.RepliesTotal.WithLabelValues("idle_timeout").Inc()
			return answer.String(), trace.String(), errors.Errorf("model stream stalled for %s", r.opts.IdleTimeout)
		case <-ctx.Done():
			return answer.String(), trace.String(), ctx.Err()
		}

		if !finished {
			idle.Reset(r.opts.IdleTimeout)

			switch {
			case chunk.Reasoning:
				reasoning = true
				trace.WriteString(chunk.Content)
				buffered += chunk.Content
			default:
				if reasoning && chunk.Content != "" {
					// First answer chunk after the trace.
					buffered += reasoningSeparator
					reasoning = false
				}
				answer.WriteString(chunk.Content)
				buffered += chunk.Content
			}
			finished = chunk.Finished
		}

		if overflow {
			// Keep buffering silently until the stream completes.
			continue
		}

		if (time.Since(last) > timeout && len(buffered) >= r.opts.FlushThreshold) || (finished && len(buffered) > 0) {
			if finished {
				// The tail is flushed after the grace sleep below.
				break
			}
			last = time.Now()

			rendered := r.escape(text + buffered)
			if utf8.RuneCountInString(rendered) > r.opts.MaxMessageLength {
				overflow = true
				metrics.OverflowsTotal.Inc()
				continue
			}

			err := r.messenger.EditMessageText(ctx, target.ChatID, target.MessageID, rendered)
			if err != nil {
				var adjusted bool
				timeout, adjusted = r.adjustTimeout(err, timeout)
				if !adjusted {
					metrics.RepliesTotal.WithLabelValues("platform_error").Inc()
					return answer.String(), trace.String(), err
				}
				continue
			}

			metrics.EditsTotal.Inc()
			text += buffered
			buffered = ""
			timeout = r.opts.EditInterval
		}
	}

	// The provider closes the chunk channel on failure as well; a buffered
	// error must win over the close.
	if errs != nil {
		select {
		case err, open := <-errs:
			if open && err != nil {
				metrics.RepliesTotal.WithLabelValues("provider_error").Inc()
				return answer.String(), trace.String(), err
			}
		default:
		}
	}

	if len(buffered) > 0 || overflow {
		// Respect the pacing window before the last edit; the platform
		// counts the final edit against the same rate limit.
		if delta := timeout - time.Since(last); delta > 0 {
			time.Sleep(delta.Truncate(time.Second) + r.opts.FinalGrace)
		}

		text += buffered
		if err := r.finalize(ctx, target, text, &overflow); err != nil {
			metrics.RepliesTotal.WithLabelValues("platform_error").Inc()
			return answer.String(), trace.String(), err
		}
	}

	metrics.RepliesTotal.WithLabelValues("ok").Inc()
	return answer.String(), trace.String(), nil
}

// adjustTimeout classifies an edit failure. It returns the new pacing
// timeout and whether the error was recovered locally.
func (r *Reply) adjustTimeout(err error, current time.Duration) (time.Duration, bool) {
	var pe *PlatformError
	if !errors.As(err, &pe) {
		return current, false
	}

	switch {
	case pe.Code >= 400 && pe.Code < 429:
		slog.Warn("edit rejected, widening pacing", "code", pe.Code, "description", pe.Description)
		metrics.BackoffsTotal.WithLabelValues("bad_request").Inc()
		return r.opts.BadRequestInterval, true
	case pe.Code == 429:
		seconds := ParseRetryAfter(pe.Description)
		metrics.BackoffsTotal.WithLabelValues("rate_limited").Inc()
		if seconds < 0 {
			slog.Warn("rate limited without retry hint", "description", pe.Description)
			return r.opts.RateLimitFallback, true
		}
		slog.Warn("rate limited", "retry_after_s", seconds)
		return time.Duration(seconds)*time.Second + time.Second, true
	default:
		return current, false
	}
}

// finalize delivers the complete text. Within the size cap it is a plain
// final edit; past the cap the full text goes to the external pager (the
// live message becomes a short link) or, without a pager, to follow-up
// messages chunked at the cap.
func (r *Reply) finalize(ctx context.Context, target ReplyTarget, text string, overflow *bool) error {
	rendered := r.escape(text)
	if utf8.RuneCountInString(rendered) > r.opts.MaxMessageLength {
		*overflow = true
	}

	if !*overflow {
		err := r.messenger.EditMessageText(ctx, target.ChatID, target.MessageID, rendered)
		if err == nil {
			metrics.EditsTotal.Inc()
		}
		return err
	}

	if r.overflow != nil {
		url, err := r.overflow(ctx, text)
		if err == nil {
			return r.messenger.EditMessageText(ctx, target.ChatID, target.MessageID, r.escape("The answer is too long, see "+url))
		}
		slog.Error("overflow page render failed, falling back to follow-ups", "error", err)
	}

	// Follow-up delivery: the live message keeps its last rendered state;
	// the full text is re-sent in cap-sized plain segments.
	replyTo := target.MessageID
	for _, segment := range splitByLength(text, r.opts.MaxMessageLength) {
		id, err := r.messenger.SendMessage(ctx, &Outgoing{
			ChatID:   target.ChatID,
			ThreadID: target.ThreadID,
			ReplyTo:  replyTo,
			Text:     segment,
			Plain:    true,
		})
		if err != nil {
			return err
		}
		replyTo = id
	}
	return nil
}

// splitByLength cuts text into segments of at most length characters,
// never splitting a rune.
func splitByLength(text string, length int) []string {
	var segments []string
	for text != "" {
		if utf8.RuneCountInString(text) <= length {
			segments = append(segments, text)
			break
		}
		cut := 0
		for i := 0; i < length; i++ {
			_, size := utf8.DecodeRuneInString(text[cut:])
			cut += size
		}
		segments = append(segments, text[:cut])
		text = text[cut:]
	}
	return segments
}
