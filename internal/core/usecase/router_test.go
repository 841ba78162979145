package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

func TestParseRouteFailsOpenToSearch(t *testing.T) {
	cases := map[string]domain.Route{
		"chat":           domain.RouteChat,
		"  Chat\n":       domain.RouteChat,
		"CHAT":           domain.RouteChat,
		"search":         domain.RouteSearch,
		" SEARCH ":       domain.RouteSearch,
		"chat.":          domain.RouteSearch,
		"I think chat":   domain.RouteSearch,
		"":               domain.RouteSearch,
		"conversation":   domain.RouteSearch,
		"search or chat": domain.RouteSearch,
	}
	for raw, want := range cases {
		assert.Equal(t, want, parseRoute(raw), "raw=%q", raw)
	}
}

func TestIntentRouterClassify(t *testing.T) {
	model := newScriptedModel().reply("route", "chat")
	route, err := NewIntentRouter(model, "route").Classify(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, domain.RouteChat, route)
	assert.Equal(t, "Hi", model.calls[0].user)
}

func TestIntentRouterPropagatesModelFailure(t *testing.T) {
	model := newScriptedModel().on("route", func(string) (string, error) { return "", errors.New("401") })
	_, err := NewIntentRouter(model, "route").Classify(context.Background(), "Hi")
	require.Error(t, err)
}

func TestCasualResponderReturnsModelText(t *testing.T) {
	model := newScriptedModel().reply("casual", "Hello! How can I help with the catalog?")
	answer, err := NewCasualResponder(model, "casual").Respond(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help with the catalog?", answer)
}
