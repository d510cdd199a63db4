package github

import (
	"encoding/json"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v57/github"

	"github.com/user/ghevents/internal/storage"
	"github.com/user/ghevents/pkg/logger"
)

// parseEvents converts raw feed items into event records. Items of an
// unrecognized kind are silently dropped so new upstream event types don't
// break the pipeline; individually malformed items are logged and skipped.
// Repository name and action are lowercased here, at write time.
func parseEvents(raw []*gh.Event) []storage.Event {
	events := make([]storage.Event, 0, len(raw))

	for _, e := range raw {
		kind, ok := storage.ParseEventKind(e.GetType())
		if !ok {
			continue
		}

		id, err := strconv.ParseInt(e.GetID(), 10, 64)
		if err != nil {
			logger.Warn().Str("event_id", e.GetID()).Msg("Skipping event with malformed id")
			continue
		}

		events = append(events, storage.Event{
			EventID:        id,
			EventType:      kind,
			ActorID:        e.GetActor().GetID(),
			RepositoryID:   e.GetRepo().GetID(),
			RepositoryName: strings.ToLower(e.GetRepo().GetName()),
			CreatedAt:      e.GetCreatedAt().Time.UTC(),
			Action:         strings.ToLower(parseAction(e.GetRawPayload())),
		})
	}

	return events
}

// parseAction pulls the action label out of the event payload. Watch events
// report "started"; issue and pull request events report "opened", "closed"
// and friends. Missing or undecodable payloads yield an empty action.
func parseAction(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var payload struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return payload.Action
}
