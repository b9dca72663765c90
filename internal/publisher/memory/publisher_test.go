package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishStoresJSONPayload(t *testing.T) {
	t.Parallel()

	p := New()
	id, err := p.Publish(context.Background(), "scrape-completions", map[string]string{"target": "https://example.test"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := p.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "scrape-completions", msgs[0].Topic)
	require.JSONEq(t, `{"target":"https://example.test"}`, string(msgs[0].Data))
}

func TestPublishRejectsUnmarshalablePayload(t *testing.T) {
	t.Parallel()

	p := New()
	_, err := p.Publish(context.Background(), "topic", make(chan int))
	require.Error(t, err)
	require.Empty(t, p.Messages())
}
