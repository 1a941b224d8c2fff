package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorySettingsNormalize(t *testing.T) {
	s := StorySettings{Topic: "  a toaster on Mars  "}
	s.Normalize()

	assert.Equal(t, "a toaster on Mars", s.Topic)
	assert.Equal(t, DefaultGenre, s.Genre)
	assert.Equal(t, DefaultAgeGroup, s.AgeGroup)
	assert.Equal(t, DefaultArtStyle, s.ArtStyle)
	assert.Equal(t, DefaultPageCount, s.PageCount)
	assert.NoError(t, s.Validate())
}

func TestStorySettingsValidate(t *testing.T) {
	valid := StorySettings{Topic: "dragons", Genre: "Sci-Fi", AgeGroup: "Preschool (3-5)", ArtStyle: "Watercolor", PageCount: 3}
	require.NoError(t, valid.Validate())

	cases := map[string]func(s *StorySettings){
		"empty topic":    func(s *StorySettings) { s.Topic = " " },
		"unknown genre":  func(s *StorySettings) { s.Genre = "Horror" },
		"unknown age":    func(s *StorySettings) { s.AgeGroup = "Adult" },
		"unknown style":  func(s *StorySettings) { s.ArtStyle = "Crayon" },
		"negative pages": func(s *StorySettings) { s.PageCount = -1 },
		"too many pages": func(s *StorySettings) { s.PageCount = MaxPageCount + 1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := valid
			mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidSettings)
		})
	}
}

func TestStoryStructureNormalize(t *testing.T) {
	s := StoryStructure{
		Title: " Title ",
		Pages: []PlannedPage{
			{PageNumber: 7, Text: "third"},
			{PageNumber: 2, Text: "first"},
			{PageNumber: 5, Text: "second"},
		},
	}
	s.Normalize()

	assert.Equal(t, "Title", s.Title)
	for i, want := range []string{"first", "second", "third"} {
		assert.Equal(t, i+1, s.Pages[i].PageNumber)
		assert.Equal(t, want, s.Pages[i].Text)
	}
}

func TestStoryStructureValidate(t *testing.T) {
	page := PlannedPage{PageNumber: 1, Text: "once", ImagePrompt: "a robot"}

	var nilStructure *StoryStructure
	assert.ErrorIs(t, nilStructure.Validate(1), ErrInvalidStructure)

	assert.ErrorIs(t, (&StoryStructure{Pages: []PlannedPage{page}}).Validate(1), ErrInvalidStructure)
	assert.ErrorIs(t, (&StoryStructure{Title: "T"}).Validate(1), ErrInvalidStructure)
	assert.ErrorIs(t, (&StoryStructure{Title: "T", Pages: []PlannedPage{page}}).Validate(2), ErrInvalidStructure)
	assert.ErrorIs(t, (&StoryStructure{Title: "T", Pages: []PlannedPage{{Text: "x"}}}).Validate(1), ErrInvalidStructure)
	assert.ErrorIs(t, (&StoryStructure{Title: "T", Pages: []PlannedPage{{ImagePrompt: "x"}}}).Validate(1), ErrInvalidStructure)

	assert.NoError(t, (&StoryStructure{Title: "T", Pages: []PlannedPage{page}}).Validate(1))
	assert.NoError(t, (&StoryStructure{Title: "T", Pages: []PlannedPage{page}}).Validate(0))
}

func TestNewStoryStartsPending(t *testing.T) {
	created := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	settings := StorySettings{Topic: "t", Genre: "Sci-Fi", AgeGroup: "Young Adult", ArtStyle: "Anime", PageCount: 2}
	structure := StoryStructure{
		Title:       "Robots",
		Description: "desc",
		Pages: []PlannedPage{
			{PageNumber: 1, Text: "a", ImagePrompt: "pa"},
			{PageNumber: 2, Text: "b", ImagePrompt: "pb"},
		},
	}

	s := NewStory("id-1", settings, structure, created)

	assert.Equal(t, "id-1", s.ID)
	assert.Equal(t, "Robots", s.Title)
	assert.Equal(t, "Sci-Fi", s.Genre)
	assert.Equal(t, "Young Adult", s.TargetAge)
	assert.Equal(t, "Anime", s.ArtStyle)
	assert.Equal(t, created, s.CreatedAt)
	assert.Empty(t, s.CoverImage)
	assert.False(t, s.IsPublic)
	require.Len(t, s.Pages, 2)
	for _, p := range s.Pages {
		assert.True(t, p.IsLoadingImage)
		assert.Empty(t, p.ImageURL)
	}
	assert.Equal(t, 2, s.Pending())
	assert.False(t, s.Complete())
}

func TestStoryCloneIsIndependent(t *testing.T) {
	s := Story{ID: "x", Pages: []Page{{PageNumber: 1, IsLoadingImage: true}}}
	c := s.Clone()
	c.Pages[0].ImageURL = "https://img"
	c.Pages[0].IsLoadingImage = false

	assert.True(t, s.Pages[0].IsLoadingImage)
	assert.Empty(t, s.Pages[0].ImageURL)
	assert.True(t, c.Complete())
}
