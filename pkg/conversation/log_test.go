package conversation

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageIDs(t *testing.T) {
	a := NewUserMessage("hola")
	b := NewUserMessage("hola")

	assert.True(t, strings.HasPrefix(a.ID, "user_"))
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, RoleUser, a.Role)
	assert.False(t, a.Timestamp.IsZero())
	assert.True(t, strings.HasPrefix(NewMessage(PrefixLocal, RoleAssistant, "x").ID, "local_"))
}

func TestLogPreservesOrder(t *testing.T) {
	l := NewLog(0)
	l.Append(NewUserMessage("uno"))
	l.Append(NewAssistantMessage("dos"))
	l.Append(NewUserMessage("tres"))

	msgs := l.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "uno", msgs[0].Content)
	assert.Equal(t, "dos", msgs[1].Content)
	assert.Equal(t, "tres", msgs[2].Content)
}

func TestLogSetSystemReplaces(t *testing.T) {
	l := NewLog(0)
	l.Append(NewUserMessage("uno"))
	l.SetSystem(NewSystemMessage("first"))
	l.Append(NewAssistantMessage("dos"))
	l.SetSystem(NewSystemMessage("second"))

	msgs := l.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, "second", msgs[0].Content)
	assert.Equal(t, "uno", msgs[1].Content)
	assert.Equal(t, "dos", msgs[2].Content)
}

func TestLogAppendSystemRoutesToSetSystem(t *testing.T) {
	l := NewLog(0)
	l.Append(NewUserMessage("uno"))
	l.Append(NewSystemMessage("sys"))

	msgs := l.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
}

func TestLogLimitKeepsSystem(t *testing.T) {
	l := NewLog(2)
	l.SetSystem(NewSystemMessage("sys"))
	l.Append(NewUserMessage("a"))
	l.Append(NewUserMessage("b"))
	l.Append(NewUserMessage("c"))

	msgs := l.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "sys", msgs[0].Content)
	assert.Equal(t, "b", msgs[1].Content)
	assert.Equal(t, "c", msgs[2].Content)
}

func TestLogClear(t *testing.T) {
	l := NewLog(0)
	l.SetSystem(NewSystemMessage("sys"))
	l.Append(NewUserMessage("a"))
	l.Clear()

	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Messages())
}

func TestLogRevision(t *testing.T) {
	l := NewLog(0)
	r0 := l.Revision()

	l.Append(NewUserMessage("uno"))
	r1 := l.Revision()
	assert.Greater(t, r1, r0)

	l.Messages()
	l.Len()
	assert.Equal(t, r1, l.Revision())

	l.SetSystem(NewSystemMessage("persona"))
	r2 := l.Revision()
	assert.Greater(t, r2, r1)

	l.Clear()
	assert.Greater(t, l.Revision(), r2)
}

func TestLogConcurrentAccess(t *testing.T) {
	l := NewLog(0)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			l.Append(NewUserMessage("x"))
		}()
		go func() {
			defer wg.Done()
			_ = l.Messages()
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, l.Len())
}
