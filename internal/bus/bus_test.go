package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendDeliversInRegistrationOrder(t *testing.T) {
	b := New()
	var got []string

	b.Subscribe(ListenerFunc(func(name string) { got = append(got, "a:"+name) }))
	b.Subscribe(ListenerFunc(func(name string) { got = append(got, "b:"+name) }))

	b.Send("door.opened")
	require.Equal(t, []string{"a:door.opened", "b:door.opened"}, got)
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	count := 0
	unsubscribe := b.Subscribe(ListenerFunc(func(string) { count++ }))

	b.Send("x")
	unsubscribe()
	unsubscribe()
	b.Send("x")

	require.Equal(t, 1, count)
	require.Zero(t, b.Len())
}

func TestSendIgnoresBlankNames(t *testing.T) {
	b := New()
	count := 0
	b.Subscribe(ListenerFunc(func(string) { count++ }))

	b.Send("")
	b.Send("   ")
	require.Zero(t, count)
}

func TestReentrantSend(t *testing.T) {
	b := New()
	var got []string

	b.Subscribe(ListenerFunc(func(name string) {
		got = append(got, name)
		if name == "first" {
			b.Send("second")
		}
	}))

	b.Send("first")
	require.Equal(t, []string{"first", "second"}, got)
}

func TestUnsubscribeDuringSend(t *testing.T) {
	b := New()
	calls := 0
	var unsubscribe func()
	unsubscribe = b.Subscribe(ListenerFunc(func(string) {
		calls++
		unsubscribe()
	}))
	b.Subscribe(ListenerFunc(func(string) { calls++ }))

	b.Send("x")
	require.Equal(t, 2, calls, "snapshot delivery still reaches later listeners")
	b.Send("x")
	require.Equal(t, 3, calls)
}

func TestDefaultBus(t *testing.T) {
	var got string
	unsubscribe := Default().Subscribe(ListenerFunc(func(name string) { got = name }))
	defer unsubscribe()

	Message("global.ping")
	require.Equal(t, "global.ping", got)
}
