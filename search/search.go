// Package search implements the unified global and per-chat message search:
// comma-separated terms fanned out in parallel, merged, deduplicated,
// filtered and paginated into a stable view.
package search

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/m4xw311/telegram-mcp/errors"
	"github.com/m4xw311/telegram-mcp/logger"
	"github.com/m4xw311/telegram-mcp/telegram"
)

// Request describes one search call.
type Request struct {
	Query             string
	ChatID            string
	Limit             int
	Offset            int
	MinDate           time.Time
	MaxDate           time.Time
	ChatType          string
	AutoExpandBatches int
	IncludeTotalCount bool
}

// Response is the paginated result window.
type Response struct {
	Messages   []telegram.Message `json:"messages"`
	HasMore    bool               `json:"has_more"`
	TotalCount *int               `json:"total_count,omitempty"`
}

// SplitTerms splits a comma-separated query into trimmed non-empty terms.
func SplitTerms(query string) []string {
	var terms []string
	for _, t := range strings.Split(query, ",") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// Search validates the request, fans one task out per term, merges the
// results and returns the requested window.
func Search(ctx context.Context, client telegram.Client, req Request) (*Response, error) {
	terms := SplitTerms(req.Query)

	if req.Limit < 1 {
		return nil, errors.NewKind(errors.KindValidation, "limit must be at least 1")
	}
	if req.Offset < 0 {
		return nil, errors.NewKind(errors.KindValidation, "offset must not be negative")
	}
	if !telegram.ValidChatType(req.ChatType) {
		return nil, errors.NewKind(errors.KindValidation, "invalid chat_type %q: must be private, group or channel", req.ChatType)
	}
	if req.ChatID == "" && len(terms) == 0 {
		return nil, errors.NewKind(errors.KindValidation, "search query must not be empty for global search")
	}

	var (
		perTerm [][]telegram.Message
		total   *int
		err     error
	)
	if req.ChatID != "" {
		perTerm, total, err = searchChat(ctx, client, req, terms)
	} else {
		perTerm, err = searchGlobal(ctx, client, req, terms)
	}
	if err != nil {
		return nil, err
	}

	// One extra item beyond the window proves has_more.
	merged := merge(perTerm, req.Offset+req.Limit+1)

	window := merged
	if req.Offset < len(merged) {
		window = merged[req.Offset:]
	} else {
		window = nil
	}
	if len(window) > req.Limit {
		window = window[:req.Limit]
	}

	resp := &Response{
		Messages:   window,
		HasMore:    len(merged) > req.Offset+len(window),
		TotalCount: total,
	}
	if resp.Messages == nil {
		resp.Messages = []telegram.Message{}
	}
	return resp, nil
}

// searchChat resolves the chat once and runs one task per term against it.
// With no terms a single empty term fetches all messages of the chat.
func searchChat(ctx context.Context, client telegram.Client, req Request, terms []string) ([][]telegram.Message, *int, error) {
	entity, err := client.ResolveEntity(ctx, telegram.NormalizeChatRef(req.ChatID))
	if err != nil {
		return nil, nil, errors.WrapKind(errors.KindNotFound, err, "could not resolve chat %q", req.ChatID)
	}

	var total *int
	if req.IncludeTotalCount {
		count, err := client.SearchCounters(ctx, entity)
		if err != nil {
			logger.Warnw("could not fetch total count", "chat_id", req.ChatID, "error", err)
		} else {
			total = &count
		}
	}

	// The filter is a property of the chat here: when it cannot match, no
	// amount of batch expansion will produce results.
	if !entity.MatchesChatType(req.ChatType) {
		return nil, total, nil
	}

	if len(terms) == 0 {
		terms = []string{""}
	}

	results := make([][]telegram.Message, len(terms))
	g, gctx := errgroup.WithContext(ctx)
	for i, term := range terms {
		g.Go(func() error {
			msgs, err := chatTerm(gctx, client, entity, term, req)
			if err != nil {
				return err
			}
			results[i] = msgs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return results, total, nil
}

// chatTerm pulls batches of 2*limit for one term, advancing the id cursor
// after each batch. One batch unless a chat-type filter allows expansion.
func chatTerm(ctx context.Context, client telegram.Client, entity telegram.Entity, term string, req Request) ([]telegram.Message, error) {
	var (
		out        []telegram.Message
		cursor     int
		target     = req.Offset + req.Limit + 1
		batchSize  = 2 * req.Limit
		maxBatches = maxBatches(req)
		canonical  = entity.CanonicalID()
	)
	for batch := 0; batch < maxBatches && len(out) < target; batch++ {
		raws, err := client.IterMessages(ctx, entity, term, cursor, batchSize)
		if err != nil {
			return nil, errors.Wrapf(err, "search in chat %d failed", entity.ID)
		}
		if len(raws) == 0 {
			break
		}
		for _, raw := range raws {
			if !raw.HasContent() {
				continue
			}
			link := telegram.MessageLink(canonical, raw.ID)
			out = append(out, telegram.BuildMessage(ctx, client, raw, entity, link))
			if len(out) >= target {
				break
			}
		}
		cursor = raws[len(raws)-1].ID
	}
	return out, nil
}

// searchGlobal runs one global-search task per term, resolving each hit's
// chat through the session and filtering on chat type and content.
func searchGlobal(ctx context.Context, client telegram.Client, req Request, terms []string) ([][]telegram.Message, error) {
	results := make([][]telegram.Message, len(terms))
	g, gctx := errgroup.WithContext(ctx)
	for i, term := range terms {
		g.Go(func() error {
			msgs, err := globalTerm(gctx, client, term, req)
			if err != nil {
				return err
			}
			results[i] = msgs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func globalTerm(ctx context.Context, client telegram.Client, term string, req Request) ([]telegram.Message, error) {
	var (
		out        []telegram.Message
		cursor     int
		target     = req.Offset + req.Limit + 1
		batchSize  = 2 * req.Limit
		maxBatches = maxBatches(req)
	)
	for batch := 0; batch < maxBatches && len(out) < target; batch++ {
		hits, err := client.GlobalSearch(ctx, term, req.MinDate, req.MaxDate, cursor, batchSize)
		if err != nil {
			return nil, errors.Wrapf(err, "global search for %q failed", term)
		}
		if len(hits) == 0 {
			break
		}
		for _, hit := range hits {
			if !hit.Message.HasContent() {
				continue
			}
			chat, err := client.ResolveEntity(ctx, hit.ChatRef)
			if err != nil {
				// A single unresolvable chat must not sink the term.
				logger.Warnw("skipping unresolvable chat in global search", "chat_ref", hit.ChatRef, "error", err)
				continue
			}
			if !chat.MatchesChatType(req.ChatType) {
				continue
			}
			link := telegram.MessageLink(chat.CanonicalID(), hit.Message.ID)
			out = append(out, telegram.BuildMessage(ctx, client, hit.Message, chat, link))
			if len(out) >= target {
				break
			}
		}
		cursor = hits[len(hits)-1].Message.ID
	}
	return out, nil
}

// maxBatches implements the auto-expansion rule: a single batch unless a
// chat-type filter is set, in which case up to 1+auto_expand_batches.
func maxBatches(req Request) int {
	if req.ChatType == "" {
		return 1
	}
	if req.AutoExpandBatches < 0 {
		return 1
	}
	return 1 + req.AutoExpandBatches
}

// merge concatenates the per-term outputs in term order, dropping
// duplicates by (chat id, message id) with the first occurrence winning,
// and stops once enough items for the requested window have accumulated.
func merge(perTerm [][]telegram.Message, want int) []telegram.Message {
	var out []telegram.Message
	seen := make(map[telegram.DedupKey]bool)
	for _, msgs := range perTerm {
		for _, msg := range msgs {
			key := msg.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, msg)
			if len(out) >= want {
				return out
			}
		}
	}
	return out
}
