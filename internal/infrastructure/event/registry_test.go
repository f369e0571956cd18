package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry(t *testing.T) {
	t.Run("type handlers come before wildcard handlers", func(t *testing.T) {
		r := NewHandlerRegistry()
		specific := newTestHandler()
		wildcard := newTestHandler()
		r.Register(specific, "CaseOpened")
		r.Register(wildcard)

		handlers := r.GetHandlers("CaseOpened")
		assert.Len(t, handlers, 2)
		assert.Same(t, specific, handlers[0])
		assert.Same(t, wildcard, handlers[1])

		assert.Len(t, r.GetHandlers("CaseAssigned"), 1)
	})

	t.Run("duplicate registration is ignored", func(t *testing.T) {
		r := NewHandlerRegistry()
		h := newTestHandler()
		r.Register(h, "CaseOpened")
		r.Register(h, "CaseOpened")
		assert.Len(t, r.GetHandlers("CaseOpened"), 1)
	})

	t.Run("a handler registered both ways is returned once", func(t *testing.T) {
		r := NewHandlerRegistry()
		h := newTestHandler()
		r.Register(h, "CaseOpened")
		r.Register(h)
		assert.Len(t, r.GetHandlers("CaseOpened"), 1)
	})

	t.Run("unregister drops empty types", func(t *testing.T) {
		r := NewHandlerRegistry()
		h := newTestHandler()
		r.Register(h, "CaseOpened", "CaseRecovered")
		assert.ElementsMatch(t, []string{"CaseOpened", "CaseRecovered"}, r.EventTypes())

		r.Unregister(h)
		assert.Empty(t, r.EventTypes())
		assert.Empty(t, r.GetHandlers("CaseOpened"))
	})
}
