package perception

import (
	"fmt"

	"foundrygate/internal/types"
)

// NormalizeHistory converts caller-supplied conversation turns into canonical
// role/content pairs, preserving order. It accepts:
//
//   - role/content values: types.ConversationTurn, *types.ConversationTurn,
//     map[string]string and map[string]any with "role" and "content" keys
//   - positional pairs: [2]string, and []string or []any of length two,
//     read as (role, content)
//   - anything else, which becomes a single user turn holding its string form
//
// It never fails. A nil or empty history yields an empty, non-nil slice.
func NormalizeHistory(history []any) []types.ConversationTurn {
	turns := make([]types.ConversationTurn, 0, len(history))
	for _, item := range history {
		turns = append(turns, normalizeTurn(item))
	}
	return turns
}

// NewCanonicalRequest normalizes history and binds it to model.
func NewCanonicalRequest(model string, history []any) types.CanonicalRequest {
	return types.CanonicalRequest{
		Model: model,
		Turns: NormalizeHistory(history),
	}
}

func normalizeTurn(item any) types.ConversationTurn {
	switch v := item.(type) {
	case types.ConversationTurn:
		return v
	case *types.ConversationTurn:
		if v != nil {
			return *v
		}
	case map[string]string:
		return fromFields(v["role"], v["content"], hasKey(v, "role"))
	case map[string]any:
		_, hasRole := v["role"]
		return fromFields(stringify(v["role"]), stringify(v["content"]), hasRole)
	case [2]string:
		return types.ConversationTurn{Role: v[0], Content: v[1]}
	case []string:
		if len(v) == 2 {
			return types.ConversationTurn{Role: v[0], Content: v[1]}
		}
	case []any:
		if len(v) == 2 {
			return types.ConversationTurn{Role: stringify(v[0]), Content: stringify(v[1])}
		}
	}
	return types.ConversationTurn{Role: types.RoleUser, Content: fmt.Sprint(item)}
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}

// fromFields builds a turn from map fields. A map without a role is a user turn.
func fromFields(role, content string, hasRole bool) types.ConversationTurn {
	if !hasRole {
		role = types.RoleUser
	}
	return types.ConversationTurn{Role: role, Content: content}
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(v)
	}
}
