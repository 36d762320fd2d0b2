package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapShortText(t *testing.T) {
	assert.Equal(t, []string{"hello world"}, Wrap("hello world", 20))
}

func TestWrapWordBoundaries(t *testing.T) {
	lines := Wrap("the quick brown fox jumps over the lazy dog", 15)
	assert.Equal(t, []string{"the quick brown", "fox jumps over", "the lazy dog"}, lines)
	for _, l := range lines {
		assert.LessOrEqual(t, len([]rune(l)), 15)
	}
}

func TestWrapCJK(t *testing.T) {
	// No spaces: breaks at the rune budget, not the byte count.
	lines := Wrap("ずんだもんが今日のテーマを解説するのだ", 8)
	assert.Equal(t, []string{"ずんだもんが今日", "のテーマを解説す", "るのだ"}, lines)
}

func TestWrapLongWord(t *testing.T) {
	lines := Wrap("a pneumonoultramicroscopic word", 10)
	for _, l := range lines {
		assert.LessOrEqual(t, len([]rune(l)), 10)
	}
	assert.Contains(t, lines[len(lines)-1], "word")
}

func TestWrapEmpty(t *testing.T) {
	assert.Nil(t, Wrap("", 10))
	assert.Nil(t, Wrap("   ", 10))
}

func TestWrapTextJoins(t *testing.T) {
	assert.Equal(t, "ああああ\nいいいい", WrapText("ああああいいいい", 4))
}

func TestWrapZeroBudgetUsesDefault(t *testing.T) {
	lines := Wrap("short line", 0)
	assert.Equal(t, []string{"short line"}, lines)
}
