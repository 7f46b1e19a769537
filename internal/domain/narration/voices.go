package narration

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"versecast/internal/domain/bible"
	"versecast/internal/domain/tts"
	"versecast/internal/platform/storage"
)

// VoiceSelector resolves the narration voice for a book. Genre defaults
// apply until the user picks a voice; auto-assigned rows are refreshed
// when the catalog changes, user picks never are.
type VoiceSelector struct {
	db       *gorm.DB
	byGenre  map[bible.Genre]string
	fallback string
}

// NewVoiceSelector derives per-genre default voices from the catalog:
// the first voice listing a genre becomes that genre's default.
func NewVoiceSelector(db *gorm.DB, catalog []tts.Voice, fallback string) *VoiceSelector {
	byGenre := make(map[bible.Genre]string)
	for _, v := range catalog {
		for _, g := range v.Genres {
			genre := bible.Genre(strings.ToLower(g))
			if _, taken := byGenre[genre]; !taken {
				byGenre[genre] = v.Name
			}
		}
	}
	if fallback == "" && len(catalog) > 0 {
		fallback = catalog[0].Name
	}
	return &VoiceSelector{db: db, byGenre: byGenre, fallback: fallback}
}

// VoiceFor returns the voice to narrate a book with, persisting a
// genre-derived default on first use.
func (s *VoiceSelector) VoiceFor(book string) (string, error) {
	var pref storage.VoicePreference
	err := s.db.First(&pref, "book = ?", strings.ToLower(book)).Error
	if err == nil {
		return pref.Voice, nil
	}
	if err != gorm.ErrRecordNotFound {
		return "", fmt.Errorf("lookup voice preference for %s: %w", book, err)
	}

	voice := s.defaultFor(book)
	if voice == "" {
		return "", fmt.Errorf("no voice available for %s", book)
	}
	if err := s.upsert(book, voice, true); err != nil {
		return "", err
	}
	return voice, nil
}

// SetVoice records an explicit user pick for a book.
func (s *VoiceSelector) SetVoice(book, voice string) error {
	if voice == "" {
		return fmt.Errorf("voice cannot be empty")
	}
	return s.upsert(book, voice, false)
}

// ClearVoice drops a book's preference so the genre default applies again.
func (s *VoiceSelector) ClearVoice(book string) error {
	return s.db.Delete(&storage.VoicePreference{}, "book = ?", strings.ToLower(book)).Error
}

// RefreshAutoAssigned re-resolves genre defaults for every preference
// the selector assigned itself. User picks are untouched.
func (s *VoiceSelector) RefreshAutoAssigned() error {
	var prefs []storage.VoicePreference
	if err := s.db.Find(&prefs, "auto_assigned = ?", true).Error; err != nil {
		return fmt.Errorf("load auto-assigned preferences: %w", err)
	}
	for _, pref := range prefs {
		voice := s.defaultFor(pref.Book)
		if voice == "" || voice == pref.Voice {
			continue
		}
		if err := s.upsert(pref.Book, voice, true); err != nil {
			return err
		}
	}
	return nil
}

func (s *VoiceSelector) defaultFor(book string) string {
	if voice, ok := s.byGenre[bible.GenreOf(book)]; ok {
		return voice
	}
	return s.fallback
}

func (s *VoiceSelector) upsert(book, voice string, auto bool) error {
	pref := storage.VoicePreference{
		Book:         strings.ToLower(book),
		Voice:        voice,
		AutoAssigned: auto,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "book"}},
		DoUpdates: clause.AssignmentColumns([]string{"voice", "auto_assigned", "updated_at"}),
	}).Create(&pref).Error
	if err != nil {
		return fmt.Errorf("save voice preference for %s: %w", book, err)
	}
	return nil
}
