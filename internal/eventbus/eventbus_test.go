package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type started struct{ Name string }
type stopped struct{ Name string }

func TestPublishReachesTypedHandlers(t *testing.T) {
	b := New()
	var got []string
	Subscribe(b, func(ctx context.Context, e started) { got = append(got, "a:"+e.Name) })
	Subscribe(b, func(ctx context.Context, e started) { got = append(got, "b:"+e.Name) })
	Subscribe(b, func(ctx context.Context, e stopped) { got = append(got, "stop:"+e.Name) })

	Publish(context.Background(), b, started{Name: "x"})

	assert.Equal(t, []string{"a:x", "b:x"}, got)
}

func TestUnsubscribeRemovesOnlyThatHandler(t *testing.T) {
	b := New()
	var got []string
	handler := func(tag string) Handler[started] {
		return func(ctx context.Context, e started) { got = append(got, tag) }
	}
	unsubA := Subscribe(b, handler("a"))
	Subscribe(b, handler("b"))

	unsubA()
	unsubA()
	Publish(context.Background(), b, started{})

	assert.Equal(t, []string{"b"}, got)
}

func TestNilBusIsNoop(t *testing.T) {
	var b *Bus
	unsub := Subscribe(b, func(ctx context.Context, e started) { t.Fatal("unexpected call") })
	Publish(context.Background(), b, started{})
	unsub()
}
