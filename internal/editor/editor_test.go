package editor

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cardfs/internal/cache"
	"github.com/roach88/cardfs/internal/testutil"
	"github.com/roach88/cardfs/internal/tree"
	"github.com/roach88/cardfs/internal/vfs"
)

func startEngine(t *testing.T) *vfs.Engine {
	t.Helper()
	e := vfs.New(cache.NewMemory(),
		vfs.WithIDGenerator(vfs.NewSequenceGenerator("n")),
		vfs.WithWallClock(testutil.NewStepClock(testutil.Epoch, time.Second)),
		vfs.WithLogger(testutil.Logger(t)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-e.Done()
	})
	require.NoError(t, e.Flush(ctx))
	return e
}

func lines(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("term%d, def%d", i+1, i+1)
	}
	return strings.Join(out, "\n")
}

func content(t *testing.T, e *vfs.Engine, id string) tree.Content {
	t.Helper()
	n, ok := e.Get(id)
	require.True(t, ok)
	c, ok := n.Content()
	require.True(t, ok)
	return c
}

func TestSave_Plain(t *testing.T) {
	ctx := context.Background()
	e := startEngine(t)
	folder, err := e.CreateItem(ctx, tree.KindFolder, "Spanish", tree.RootID, nil)
	require.NoError(t, err)
	set, err := e.CreateItem(ctx, tree.KindSet, "Verbs", folder, nil)
	require.NoError(t, err)

	res, err := Save(ctx, e, set, Draft{Text: lines(40)}, testutil.Logger(t))
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Empty(t, res.Created)

	c := content(t, e, set)
	assert.Equal(t, lines(40), c.Text)
	assert.Equal(t, tree.DefaultLanguages(), c.Languages)
}

func TestSave_MassCreate(t *testing.T) {
	ctx := context.Background()
	e := startEngine(t)
	folder, err := e.CreateItem(ctx, tree.KindFolder, "Spanish", tree.RootID, nil)
	require.NoError(t, err)
	set, err := e.CreateItem(ctx, tree.KindSet, "Verbs", folder, nil)
	require.NoError(t, err)

	langs := tree.Languages{Term: "es-ES", Definition: "en-US"}
	res, err := Save(ctx, e, set, Draft{Text: lines(25) + "\n\n", Languages: langs, MassCreate: true, MaxCards: 10}, testutil.Logger(t))
	require.NoError(t, err)
	assert.True(t, res.Updated)
	require.Len(t, res.Created, 2)

	first := content(t, e, set)
	assert.Len(t, strings.Split(first.Text, "\n"), 10)
	assert.True(t, strings.HasPrefix(first.Text, "term1, def1\n"))

	second, ok := e.Get(res.Created[0])
	require.True(t, ok)
	assert.Equal(t, "Verbs 2", second.Name)
	assert.Equal(t, folder, second.ParentID)
	c := content(t, e, res.Created[0])
	assert.True(t, strings.HasPrefix(c.Text, "term11, def11"))
	assert.Equal(t, langs, c.Languages)

	third, _ := e.Get(res.Created[1])
	assert.Equal(t, "Verbs 3", third.Name)
	assert.Equal(t, "term21, def21\nterm22, def22\nterm23, def23\nterm24, def24\nterm25, def25", content(t, e, res.Created[1]).Text)
}

func TestSave_MassCreateUnderLimit(t *testing.T) {
	ctx := context.Background()
	e := startEngine(t)
	set, err := e.CreateItem(ctx, tree.KindSet, "Small", tree.RootID, nil)
	require.NoError(t, err)

	res, err := Save(ctx, e, set, Draft{Text: lines(30), MassCreate: true}, testutil.Logger(t))
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Equal(t, lines(30), content(t, e, set).Text)
}

func TestSave_MissingSetFallsBackToRoot(t *testing.T) {
	ctx := context.Background()
	e := startEngine(t)

	res, err := Save(ctx, e, "gone", Draft{Text: lines(3), MassCreate: true, MaxCards: 2}, testutil.Logger(t))
	require.NoError(t, err)
	assert.False(t, res.Updated)
	require.Len(t, res.Created, 1)

	n, _ := e.Get(res.Created[0])
	assert.Equal(t, "New Set 2", n.Name)
	assert.Equal(t, tree.RootID, n.ParentID)
}

func TestDraft_Validate(t *testing.T) {
	assert.NoError(t, Draft{}.Validate())
	assert.NoError(t, Draft{MassCreate: true, MaxCards: 5}.Validate())
	assert.Error(t, Draft{MassCreate: true, MaxCards: -1}.Validate())

	_, err := Save(context.Background(), nil, "x", Draft{MassCreate: true, MaxCards: -3}, nil)
	assert.Error(t, err)
}
