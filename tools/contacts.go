package tools

import (
	"context"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/m4xw311/telegram-mcp/errors"
	"github.com/m4xw311/telegram-mcp/logger"
	"github.com/m4xw311/telegram-mcp/search"
	"github.com/m4xw311/telegram-mcp/telegram"
)

func searchContactsTool() mcp.Tool {
	return mcp.Tool{
		Name: "search_contacts",
		Description: "Search the account's contacts and global users by name, " +
			"username or phone number. The query is a comma-separated list of " +
			"terms searched in parallel and merged.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Comma-separated search terms.",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum contacts to return. Default 20.",
				},
			},
			Required: []string{"query"},
		},
	}
}

type searchContactsArgs struct {
	Query string `json:"query"`
	Limit *int   `json:"limit"`
}

func (h *Handler) searchContacts(ctx context.Context, request mcp.CallToolRequest) (any, error) {
	var args searchContactsArgs
	if err := request.BindArguments(&args); err != nil {
		return nil, errors.WrapKind(errors.KindValidation, err, "invalid arguments")
	}
	terms := search.SplitTerms(args.Query)
	if len(terms) == 0 {
		return nil, errors.NewKind(errors.KindValidation, "search query must not be empty")
	}
	limit := 20
	if args.Limit != nil {
		limit = *args.Limit
	}
	if limit < 1 {
		return nil, errors.NewKind(errors.KindValidation, "limit must be at least 1")
	}

	return h.withClient(ctx, func(ctx context.Context, client telegram.Client) (any, error) {
		// Terms run in parallel. A failing term degrades to an empty result
		// so one bad term cannot sink the others.
		perTerm := make([][]telegram.Entity, len(terms))
		var wg sync.WaitGroup
		for i, term := range terms {
			wg.Add(1)
			go func() {
				defer wg.Done()
				found, err := client.SearchContacts(ctx, term, limit)
				if err != nil {
					logger.Warnw("contact search term failed", "term", term, "error", err)
					return
				}
				perTerm[i] = found
			}()
		}
		wg.Wait()

		seen := make(map[int64]bool)
		contacts := make([]map[string]any, 0)
		for _, found := range perTerm {
			for _, e := range found {
				if seen[e.ID] || len(contacts) >= limit {
					continue
				}
				seen[e.ID] = true
				contacts = append(contacts, e.Dict())
			}
		}

		if len(contacts) == 0 {
			return nil, errors.NewKind(errors.KindNotFound, "No contacts found matching query '%s'", args.Query)
		}
		return map[string]any{"contacts": contacts}, nil
	})
}

func getContactDetailsTool() mcp.Tool {
	return mcp.Tool{
		Name: "get_contact_details",
		Description: "Fetch the profile of one user or chat by id or username: " +
			"names, username and type.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chat_id": map[string]interface{}{
					"type":        "string",
					"description": "Numeric id or username. 'me' looks up the logged-in account.",
				},
			},
			Required: []string{"chat_id"},
		},
	}
}

type getContactDetailsArgs struct {
	ChatID string `json:"chat_id"`
}

func (h *Handler) getContactDetails(ctx context.Context, request mcp.CallToolRequest) (any, error) {
	var args getContactDetailsArgs
	if err := request.BindArguments(&args); err != nil {
		return nil, errors.WrapKind(errors.KindValidation, err, "invalid arguments")
	}
	ref := strings.TrimSpace(args.ChatID)
	if ref == "" {
		return nil, errors.NewKind(errors.KindValidation, "chat_id must not be empty")
	}

	return h.withClient(ctx, func(ctx context.Context, client telegram.Client) (any, error) {
		var (
			entity telegram.Entity
			err    error
		)
		if strings.EqualFold(ref, "me") {
			entity, err = client.Me(ctx)
		} else {
			entity, err = client.ResolveEntity(ctx, telegram.NormalizeSendRef(ref))
		}
		if err != nil {
			return nil, errors.WrapKind(errors.KindNotFound, err, "could not resolve %q", ref)
		}

		details := entity.Dict()
		details["canonical_id"] = entity.CanonicalID()
		return details, nil
	})
}
