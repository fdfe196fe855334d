// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatdesk/internal/model"
)

const placeholder = "Asistente escribiendo..."

func loaded(t *testing.T, id string, history ...model.Message) *Controller {
	t.Helper()
	c := NewController(placeholder)
	require.NoError(t, c.Show(id, history))
	return c
}

func TestController_StartsEmpty(t *testing.T) {
	c := NewController(placeholder)
	assert.Equal(t, StateEmpty, c.State())
	_, ok := c.ActiveID()
	assert.False(t, ok)
	assert.Empty(t, c.Messages())
	assert.False(t, c.NewChatBlocked())
}

func TestController_SendLifecycle(t *testing.T) {
	c := loaded(t, "c1", model.NewAssistantMessage("¡Hola! ¿En qué puedo ayudarte?"))
	c.SetInput("Hi")

	req, ok, err := c.BeginSend()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Request{
		ConversationID: "c1",
		Text:           "Hi",
		Seq:            req.Seq,
		Base:           []model.Message{model.NewAssistantMessage("¡Hola! ¿En qué puedo ayudarte?")},
	}, req)
	assert.Equal(t, StateAwaitingResponse, c.State())
	assert.Empty(t, c.Input())

	optimistic := []model.Message{
		model.NewAssistantMessage("¡Hola! ¿En qué puedo ayudarte?"),
		model.NewUserMessage("Hi"),
		model.NewPlaceholder(placeholder),
	}
	if diff := cmp.Diff(optimistic, c.Messages()); diff != "" {
		t.Errorf("optimistic sequence mismatch (-want +got):\n%s", diff)
	}

	server := []model.Message{model.NewUserMessage("Hi"), model.NewAssistantMessage("Hello")}
	require.True(t, c.CompleteSend(req.Seq, server))

	assert.Equal(t, StateLoaded, c.State())
	assert.Equal(t, server, c.Messages(), "server history replaces the whole sequence")
	assert.Len(t, c.Messages(), len(server), "no placeholder duplication")
}

func TestController_BlankInputIsNoop(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t "} {
		c := loaded(t, "c1", model.NewAssistantMessage("hi"))
		c.SetInput(input)
		before := c.Messages()

		_, ok, err := c.BeginSend()
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, before, c.Messages())
		assert.Equal(t, input, c.Input(), "blank input is left as typed")
		assert.Equal(t, StateLoaded, c.State())
	}
}

func TestController_SendKeepsRawText(t *testing.T) {
	c := loaded(t, "c1")
	c.SetInput("  padded  ")

	req, ok, err := c.BeginSend()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "  padded  ", req.Text)
	assert.Equal(t, "  padded  ", c.Messages()[0].Content)
}

func TestController_SendRequiresActiveConversation(t *testing.T) {
	c := NewController(placeholder)
	c.SetInput("hello")

	_, ok, err := c.BeginSend()
	assert.ErrorIs(t, err, ErrNoActiveConversation)
	assert.False(t, ok)
	assert.Equal(t, "hello", c.Input())
}

func TestController_BusyWhileAwaiting(t *testing.T) {
	c := loaded(t, "c1")
	c.SetInput("one")
	_, _, err := c.BeginSend()
	require.NoError(t, err)

	c.SetInput("two")
	_, _, err = c.BeginSend()
	assert.ErrorIs(t, err, ErrBusy)

	assert.ErrorIs(t, c.Show("c2", nil), ErrBusy)
	_, err = c.BeginLoad()
	assert.ErrorIs(t, err, ErrBusy)

	id, _ := c.ActiveID()
	assert.Equal(t, "c1", id, "rejected load leaves state alone")
}

func TestController_BaseIsLastServerHistory(t *testing.T) {
	c := loaded(t, "c1", model.NewAssistantMessage("welcome"))
	c.SetInput("Hi")
	req, _, err := c.BeginSend()
	require.NoError(t, err)
	require.True(t, c.FailSend(req.Seq))

	// The failed exchange never reached the server's history.
	c.SetInput("Other")
	req, _, err = c.BeginSend()
	require.NoError(t, err)
	assert.Equal(t, []model.Message{model.NewAssistantMessage("welcome")}, req.Base)

	server := []model.Message{
		model.NewAssistantMessage("welcome"),
		model.NewUserMessage("Other"),
		model.NewAssistantMessage("ok"),
	}
	require.True(t, c.CompleteSend(req.Seq, server))

	c.SetInput("Next")
	req, _, err = c.BeginSend()
	require.NoError(t, err)
	assert.Equal(t, server, req.Base)

	c.Reset()
	require.NoError(t, c.Show("c2", nil))
	c.SetInput("Fresh")
	req, _, err = c.BeginSend()
	require.NoError(t, err)
	assert.Empty(t, req.Base)
}

func TestController_FailSendShowsMarker(t *testing.T) {
	c := loaded(t, "c1", model.NewAssistantMessage("welcome"))
	c.SetInput("Hi")
	req, _, err := c.BeginSend()
	require.NoError(t, err)

	require.True(t, c.FailSend(req.Seq))
	assert.Equal(t, StateLoaded, c.State())

	msgs := c.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, model.NewUserMessage("Hi"), msgs[1])
	assert.True(t, msgs[2].IsFailed())
	for _, m := range msgs {
		assert.False(t, m.IsPlaceholder(), "placeholder must not remain")
	}
	assert.True(t, c.View().CanRetry)
}

func TestController_PrepareRetry(t *testing.T) {
	c := loaded(t, "c1", model.NewAssistantMessage("welcome"))
	c.SetInput("Hi")
	req, _, _ := c.BeginSend()
	c.FailSend(req.Seq)

	require.True(t, c.PrepareRetry())
	assert.Equal(t, "Hi", c.Input())
	assert.Equal(t, []model.Message{model.NewAssistantMessage("welcome")}, c.Messages())
	assert.False(t, c.PrepareRetry(), "only once")

	req, ok, err := c.BeginSend()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Hi", req.Text)
}

func TestController_StaleSeqIgnored(t *testing.T) {
	c := loaded(t, "c1")
	c.SetInput("Hi")
	req, _, _ := c.BeginSend()

	c.Reset()
	assert.False(t, c.CompleteSend(req.Seq, []model.Message{model.NewUserMessage("Hi")}))
	assert.False(t, c.FailSend(req.Seq))
	assert.Equal(t, StateEmpty, c.State())
	assert.Empty(t, c.Messages())
}

func TestController_LoadTickets(t *testing.T) {
	c := NewController(placeholder)

	first, err := c.BeginLoad()
	require.NoError(t, err)
	second, err := c.BeginLoad()
	require.NoError(t, err)

	require.NoError(t, c.FinishLoad(second, "c2", []model.Message{model.NewUserMessage("two")}))
	assert.ErrorIs(t, c.FinishLoad(first, "c1", nil), ErrStaleLoad)

	id, _ := c.ActiveID()
	assert.Equal(t, "c2", id)
	assert.Len(t, c.Messages(), 1)

	ticket, _ := c.BeginLoad()
	c.Reset()
	assert.ErrorIs(t, c.FinishLoad(ticket, "c3", nil), ErrStaleLoad)
}

func TestController_ShowConfirmsHistory(t *testing.T) {
	c := loaded(t, "c1", model.NewPlaceholder("leaked"))
	assert.Equal(t, model.StatusConfirmed, c.Messages()[0].Status)
}

func TestController_NewChatBlocked(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		history []model.Message
		want    bool
	}{
		{"no active", "", nil, false},
		{"fresh conversation", "c1", nil, true},
		{"only assistant greeting", "c1", []model.Message{model.NewAssistantMessage("hi")}, true},
		{"user has written", "c1", []model.Message{model.NewUserMessage("hi"), model.NewAssistantMessage("hello")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(placeholder)
			if tt.id != "" {
				require.NoError(t, c.Show(tt.id, tt.history))
			}
			assert.Equal(t, tt.want, c.NewChatBlocked())
			assert.Equal(t, tt.want, c.View().NewChatBlocked)
		})
	}
}

func TestController_NewChatBlockedIsRecomputed(t *testing.T) {
	c := loaded(t, "c1")
	assert.True(t, c.NewChatBlocked())

	c.SetInput("hello")
	req, _, _ := c.BeginSend()
	assert.False(t, c.NewChatBlocked(), "optimistic user message counts")

	c.CompleteSend(req.Seq, []model.Message{model.NewUserMessage("hello"), model.NewAssistantMessage("hi")})
	assert.False(t, c.NewChatBlocked())
}

func TestController_CreateThenLoadIsEmpty(t *testing.T) {
	c := loaded(t, "c1", model.NewUserMessage("old"))
	require.NoError(t, c.Show("c9", nil))

	id, ok := c.ActiveID()
	require.True(t, ok)
	assert.Equal(t, "c9", id)
	assert.Empty(t, c.Messages())
}

func TestController_LastAssistant(t *testing.T) {
	c := loaded(t, "c1",
		model.NewAssistantMessage("first"),
		model.NewUserMessage("q"),
		model.NewAssistantMessage("second"),
		model.NewUserMessage("q2"),
	)
	m, ok := c.LastAssistant()
	require.True(t, ok)
	assert.Equal(t, "second", m.Content)

	c.SetInput("q3")
	c.BeginSend()
	m, ok = c.LastAssistant()
	require.True(t, ok)
	assert.Equal(t, "second", m.Content, "placeholder is skipped")

	empty := loaded(t, "c2", model.NewUserMessage("only me"))
	_, ok = empty.LastAssistant()
	assert.False(t, ok)
}

func TestController_MessagesAreCopies(t *testing.T) {
	c := loaded(t, "c1", model.NewUserMessage("a"))
	msgs := c.Messages()
	msgs[0].Content = "mutated"
	assert.Equal(t, "a", c.Messages()[0].Content)
}

func TestController_ConcurrentReaders(t *testing.T) {
	c := loaded(t, "c1")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.SetInput("hi")
			if req, ok, err := c.BeginSend(); err == nil && ok {
				c.CompleteSend(req.Seq, []model.Message{model.NewUserMessage("hi")})
			}
		}()
		go func() {
			defer wg.Done()
			v := c.View()
			if v.State == StateAwaitingResponse {
				assert.NotEmpty(t, v.Messages)
			}
		}()
	}
	wg.Wait()
	assert.NotEqual(t, StateAwaitingResponse, c.State())
}
