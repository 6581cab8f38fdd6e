package cli

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedCards(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "term %d, def %d\n", i, i)
	}
	return b.String()
}

func TestEdit_ReplacesText(t *testing.T) {
	env := newTestEnv(t)
	set := strings.TrimSpace(env.mustRun("new-set", "Verbs"))
	path := writeFile(t, env.dir, "verbs.txt", "hablar, to speak\n")

	out := env.mustRun("edit", set, path)
	assert.Equal(t, "updated "+set+"\n", out)

	out = env.mustRun("cards", set)
	assert.Equal(t, "card-0  hablar  to speak\n", out)
}

func TestEdit_MassCreate(t *testing.T) {
	env := newTestEnv(t)
	deck := strings.TrimSpace(env.mustRun("mkdir", "Deck"))
	set := strings.TrimSpace(env.mustRun("new-set", "Verbs", "--parent", deck))
	path := writeFile(t, env.dir, "many.txt", numberedCards(5))

	out := env.mustRun("edit", set, path, "--mass-create", "--max-cards", "2")
	got := lines(out)
	require.Len(t, got, 3)
	assert.Equal(t, "updated "+set, got[0])
	assert.True(t, strings.HasPrefix(got[1], "created "))

	assert.Equal(t, "Main/\n  Deck/\n    Verbs [2 cards]\n    Verbs 2 [2 cards]\n    Verbs 3 [1 card]\n", env.mustRun("tree"))
}

func TestEdit_MassCreateFromConfig(t *testing.T) {
	env := newTestEnv(t)
	env.env["CARDFS_MASS_CREATE"] = "true"
	env.env["CARDFS_MAX_CARDS"] = "3"
	set := strings.TrimSpace(env.mustRun("new-set", "Nouns"))
	path := writeFile(t, env.dir, "many.txt", numberedCards(4))

	env.mustRun("edit", set, path)
	assert.Equal(t, "Main/\n  Nouns [3 cards]\n  Nouns 2 [1 card]\n", env.mustRun("tree"))

	// The flag wins over the config.
	other := strings.TrimSpace(env.mustRun("new-set", "Other"))
	env.mustRun("edit", other, path, "--mass-create=false")
	assert.Contains(t, env.mustRun("tree"), "Other [4 cards]")
}

func TestEdit_UnknownSet(t *testing.T) {
	env := newTestEnv(t)
	deck := strings.TrimSpace(env.mustRun("mkdir", "Deck"))
	path := writeFile(t, env.dir, "x.txt", "a, b\n")

	_, err := env.run("edit", deck, path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = env.run("edit", "missing", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCards_CustomSeparators(t *testing.T) {
	env := newTestEnv(t)
	path := writeFile(t, env.dir, "x.txt", "uno: one; dos: two")
	set := strings.TrimSpace(env.mustRun("new-set", "Numbers", "--file", path))

	out := env.mustRun("--format", "json", "cards", set, "--card-sep", ";", "--term-sep", ":")
	assert.Contains(t, out, `"term":"uno"`)
	assert.Contains(t, out, `"definition":"two"`)

	_, err := env.run("cards", set, "--card-sep", ",", "--term-sep", ",")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCards_EmptySet(t *testing.T) {
	env := newTestEnv(t)
	set := strings.TrimSpace(env.mustRun("new-set", "Empty"))
	assert.Equal(t, `{"status":"ok","data":[]}`+"\n", env.mustRun("--format", "json", "cards", set))
}
