package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TS01: Header-Based Splitting
func TestSectionChunker_Split_HeaderBasedSplitting(t *testing.T) {
	// Given: two level-2 sections
	body := "## Methods\nWe did X. We did Y.\n\n## Results\nZ happened."

	// When: splitting with a generous bound
	raws := NewSectionChunker(Options{MaxLen: 1000}).Split(body)

	// Then: one chunk per section, tagged with its heading
	require.Len(t, raws, 2)
	assert.Equal(t, "We did X. We did Y.", raws[0].Text)
	assert.Equal(t, "Methods", raws[0].Section())
	assert.Empty(t, raws[0].ImageRefs)
	assert.Equal(t, "Z happened.", raws[1].Text)
	assert.Equal(t, "Results", raws[1].Section())
	assert.Empty(t, raws[1].ImageRefs)
}

// TS02: Section nesting pops on same-or-lower level
func TestSectionChunker_Split_Nesting(t *testing.T) {
	body := "# A\nunder a\n## B\nunder b\n# C\nunder c"

	raws := NewSectionChunker(Options{}).Split(body)

	require.Len(t, raws, 3)
	assert.Equal(t, []string{"A"}, raws[0].Path)
	assert.Equal(t, []string{"A", "B"}, raws[1].Path)
	assert.Equal(t, []string{"C"}, raws[2].Path)
	assert.Equal(t, "A / B", raws[1].Section())
}

func TestSectionChunker_Split_SkippedLevels(t *testing.T) {
	// Given: an H3 directly under an H1, then an H2
	body := "# A\n### Deep\ntext1\n## Mid\ntext2"

	raws := NewSectionChunker(Options{}).Split(body)

	require.Len(t, raws, 2)
	assert.Equal(t, "A / Deep", raws[0].Section())
	assert.Equal(t, "A / Mid", raws[1].Section())
}

func TestSectionChunker_Split_PathsAreNotAliased(t *testing.T) {
	raws := NewSectionChunker(Options{}).Split("# A\n## B\none\n## C\ntwo")

	require.Len(t, raws, 2)
	assert.Equal(t, "A / B", raws[0].Section())
	assert.Equal(t, "A / C", raws[1].Section())
}

func TestSectionChunker_Split_SiblingsAtSameLevel(t *testing.T) {
	// Given: a document whose top headings are all level 2
	body := "## A\none\n## B\ntwo\n### C\nthree\n## D\nfour"

	raws := NewSectionChunker(Options{}).Split(body)

	// Then: siblings replace each other and only C nests
	require.Len(t, raws, 4)
	assert.Equal(t, []string{"A"}, raws[0].Path)
	assert.Equal(t, []string{"B"}, raws[1].Path)
	assert.Equal(t, []string{"B", "C"}, raws[2].Path)
	assert.Equal(t, []string{"D"}, raws[3].Path)
}

func TestSectionChunker_Split_BlankHeadingIsText(t *testing.T) {
	// Given: a heading marker with only whitespace after it
	raws := NewSectionChunker(Options{}).Split("# A\n#    \nbody")

	// Then: the section stays A and no blank title is pushed
	require.NotEmpty(t, raws)
	for _, r := range raws {
		assert.Equal(t, []string{"A"}, r.Path)
	}
	assert.Contains(t, raws[len(raws)-1].Text, "body")
}

func TestSectionChunker_Split_HeadingTitleIsTrimmed(t *testing.T) {
	raws := NewSectionChunker(Options{}).Split("##   Methods   \ntext")

	require.Len(t, raws, 1)
	assert.Equal(t, "Methods", raws[0].Section())
}

// TS03: Edge cases
func TestSectionChunker_Split_EdgeCases(t *testing.T) {
	c := NewSectionChunker(Options{MaxLen: 10})

	t.Run("empty body", func(t *testing.T) {
		assert.Empty(t, c.Split(""))
	})

	t.Run("whitespace only", func(t *testing.T) {
		assert.Empty(t, c.Split("  \n\t\n   "))
	})

	t.Run("no headings gives empty section", func(t *testing.T) {
		raws := c.Split("plain text")
		require.Len(t, raws, 1)
		assert.Equal(t, "", raws[0].Section())
		assert.Nil(t, raws[0].Path)
	})

	t.Run("paragraph exactly at bound", func(t *testing.T) {
		raws := c.Split("0123456789")
		require.Len(t, raws, 1)
		assert.Equal(t, "0123456789", raws[0].Text)
	})

	t.Run("headings only", func(t *testing.T) {
		assert.Empty(t, c.Split("# A\n## B\n# C"))
	})

	t.Run("hash without space is text", func(t *testing.T) {
		raws := c.Split("#tag")
		require.Len(t, raws, 1)
		assert.Equal(t, "#tag", raws[0].Text)
	})
}

func TestSectionChunker_Split_Paragraphs(t *testing.T) {
	body := "# T\n  first line\nsecond line  \n   \n\nnext para\n"

	raws := NewSectionChunker(Options{}).Split(body)

	require.Len(t, raws, 2)
	assert.Equal(t, "first line\nsecond line", raws[0].Text)
	assert.Equal(t, "next para", raws[1].Text)
}

func TestSectionChunker_Split_PreambleBeforeFirstHeading(t *testing.T) {
	raws := NewSectionChunker(Options{}).Split("intro text\n# A\nbody")

	require.Len(t, raws, 2)
	assert.Equal(t, "", raws[0].Section())
	assert.Equal(t, "A", raws[1].Section())
}

// TS04: Image references
func TestSectionChunker_Split_ImageRefs(t *testing.T) {
	body := "# Fig\nSee ![a](img/1.png) and ![](img/2.png) and again ![b](img/1.png).\n\nNo images here."

	raws := NewSectionChunker(Options{}).Split(body)

	require.Len(t, raws, 2)
	assert.Equal(t, []string{"img/1.png", "img/2.png", "img/1.png"}, raws[0].ImageRefs)
	assert.Nil(t, raws[1].ImageRefs)
}

func TestSectionChunker_Split_ImagesSharedAcrossParts(t *testing.T) {
	body := "![x](fig.png) First sentence here. Second sentence here."

	raws := NewSectionChunker(Options{MaxLen: 35}).Split(body)

	require.Greater(t, len(raws), 1)
	for _, r := range raws {
		assert.Equal(t, []string{"fig.png"}, r.ImageRefs)
	}
}

// TS05: Length bounds
func TestSmartSplit_HardCutFallback(t *testing.T) {
	// Given: 10000 characters with no sentence punctuation
	text := strings.Repeat("a", 10000)

	// When: splitting at 7000
	parts := SmartSplit(text, 7000)

	// Then: 7000 + 3000
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 7000)
	assert.Len(t, parts[1], 3000)
}

func TestSmartSplit_PacksSentencesGreedily(t *testing.T) {
	text := "One one. Two two! Three three? Four."

	parts := SmartSplit(text, 17)

	assert.Equal(t, []string{"One one. Two two!", "Three three?", "Four."}, parts)
}

func TestSmartSplit_LongSentenceIsHardCut(t *testing.T) {
	text := "Short. " + strings.Repeat("b", 25)

	parts := SmartSplit(text, 10)

	assert.Equal(t, []string{"Short.", "bbbbbbbbbb", "bbbbbbbbbb", "bbbbb"}, parts)
}

func TestSmartSplit_NewlinesAfterTerminalAreSentenceBreaks(t *testing.T) {
	parts := SmartSplit("Alpha beta.\nGamma delta.", 15)

	assert.Equal(t, []string{"Alpha beta.", "Gamma delta."}, parts)
}

func TestSmartSplit_CountsCharactersNotBytes(t *testing.T) {
	text := strings.Repeat("é", 12)

	parts := SmartSplit(text, 5)

	require.Len(t, parts, 3)
	assert.Equal(t, 5, utf8.RuneCountInString(parts[0]))
	assert.Equal(t, 2, utf8.RuneCountInString(parts[2]))
}

func TestSectionChunker_Split_LengthBoundAlwaysHolds(t *testing.T) {
	bodies := []string{
		strings.Repeat("word ", 3000),
		strings.Repeat("Sentence number one is here. ", 400),
		"# H\n" + strings.Repeat("x", 20000) + "\n\nTail.",
	}
	c := NewSectionChunker(Options{MaxLen: 700})

	for _, body := range bodies {
		for _, r := range c.Split(body) {
			assert.NotEmpty(t, r.Text)
			assert.LessOrEqual(t, utf8.RuneCountInString(r.Text), 700)
		}
	}
}

func TestNewSectionChunker_DefaultMaxLen(t *testing.T) {
	assert.Equal(t, DefaultMaxLen, NewSectionChunker(Options{}).MaxLen())
	assert.Equal(t, 42, NewSectionChunker(Options{MaxLen: 42}).MaxLen())
}
