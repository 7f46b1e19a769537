package narrationapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"versecast/internal/domain/audio"
	"versecast/internal/domain/bible"
	"versecast/internal/domain/narration"
	"versecast/internal/domain/tts"
	"versecast/internal/platform/config"
	verrors "versecast/internal/platform/errors"
	httptransport "versecast/internal/transport/http"
)

// Service exposes the narration engine over HTTP.
type Service struct {
	config   *config.Config
	logger   *slog.Logger
	bible    *bible.Client
	coord    *narration.Coordinator
	cache    *audio.Cache
	voices   *narration.VoiceSelector
	provider tts.Provider
}

// Options wires the service.
type Options struct {
	Config   *config.Config
	Logger   *slog.Logger
	Bible    *bible.Client
	Coord    *narration.Coordinator
	Cache    *audio.Cache
	Voices   *narration.VoiceSelector
	Provider tts.Provider
}

// NewService validates dependencies and builds the transport service.
func NewService(opts Options) (*Service, error) {
	if opts.Config == nil {
		return nil, verrors.New(verrors.KindConfig, "narrationapi.new", "config is required")
	}
	if opts.Coord == nil {
		return nil, verrors.New(verrors.KindConfig, "narrationapi.new", "coordinator is required")
	}
	if opts.Bible == nil {
		return nil, verrors.New(verrors.KindConfig, "narrationapi.new", "bible client is required")
	}
	return &Service{
		config:   opts.Config,
		logger:   opts.Logger,
		bible:    opts.Bible,
		coord:    opts.Coord,
		cache:    opts.Cache,
		voices:   opts.Voices,
		provider: opts.Provider,
	}, nil
}

// Register mounts read routes on api and mutating routes on secured.
func (s *Service) Register(ctx context.Context, api, secured *gin.RouterGroup) error {
	api.GET("/narration/status", s.handleStatus)
	api.GET("/narration/timeline", s.handleTimeline)
	api.GET("/cache", s.handleCacheList)
	api.GET("/voices", s.handleVoiceList)
	api.GET("/tts/subscription", s.handleSubscription)

	secured.POST("/narration/load", s.handleLoad)
	secured.POST("/narration/generate", s.handleGenerate)
	secured.POST("/narration/play", s.handlePlay)
	secured.POST("/narration/pause", s.handlePause)
	secured.POST("/narration/seek", s.handleSeek)
	secured.POST("/narration/rate", s.handleRate)
	secured.POST("/narration/next", s.handleNext)
	secured.POST("/narration/previous", s.handlePrevious)
	secured.POST("/narration/verse", s.handleVerse)
	secured.DELETE("/cache/:key", s.handleCacheRemove)
	secured.DELETE("/cache", s.handleCacheClear)
	secured.PUT("/voices/:book", s.handleVoiceSet)
	secured.DELETE("/voices/:book", s.handleVoiceClear)

	if s.logger != nil {
		s.logger.Info("narration api routes registered")
	}
	return nil
}

type chapterRequest struct {
	Book        string `json:"book" binding:"required"`
	Chapter     int    `json:"chapter" binding:"required"`
	Translation string `json:"translation"`
	Voice       string `json:"voice"`
}

// resolve fetches the chapter text and settles the narration voice.
func (s *Service) resolve(ctx context.Context, req chapterRequest) (*bible.Chapter, string, error) {
	translation := req.Translation
	if translation == "" {
		translation = s.config.Bible.DefaultTranslation
	}

	chapter, err := s.bible.FetchChapter(ctx, req.Book, req.Chapter, translation)
	if err != nil {
		return nil, "", err
	}

	voice := req.Voice
	if voice == "" && s.voices != nil {
		if voice, err = s.voices.VoiceFor(req.Book); err != nil {
			return nil, "", err
		}
	}
	return chapter, voice, nil
}

func (s *Service) handleLoad(c *gin.Context) {
	var req chapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	chapter, voice, err := s.resolve(c.Request.Context(), req)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	if err := s.coord.LoadNarration(c.Request.Context(), chapter, voice); err != nil {
		s.respondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, s.coord.Status(), "narration loaded")
}

func (s *Service) handleGenerate(c *gin.Context) {
	var req chapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	chapter, voice, err := s.resolve(c.Request.Context(), req)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	path, err := s.coord.GenerateAndCache(c.Request.Context(), chapter, voice)
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"key":  chapter.Ref.Key(voice),
		"path": path,
	}, "chapter generated")
}

func (s *Service) handlePlay(c *gin.Context) {
	if err := s.coord.Play(c.Request.Context()); err != nil {
		s.respondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, s.coord.Status(), "playing")
}

func (s *Service) handlePause(c *gin.Context) {
	s.coord.Pause()
	httptransport.RespondSuccess(c, http.StatusOK, s.coord.Status(), "paused")
}

func (s *Service) handleSeek(c *gin.Context) {
	var req struct {
		Position float64 `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := s.coord.Seek(req.Position); err != nil {
		s.respondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, s.coord.Status(), "seeked")
}

func (s *Service) handleRate(c *gin.Context) {
	var req struct {
		Rate float64 `json:"rate" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	s.coord.SetRate(req.Rate)
	httptransport.RespondSuccess(c, http.StatusOK, s.coord.Status(), "rate updated")
}

func (s *Service) handleNext(c *gin.Context) {
	if err := s.coord.PlayNext(c.Request.Context()); err != nil {
		s.respondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, s.coord.Status(), "advanced")
}

func (s *Service) handlePrevious(c *gin.Context) {
	if err := s.coord.PlayPrevious(c.Request.Context()); err != nil {
		s.respondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, s.coord.Status(), "stepped back")
}

func (s *Service) handleVerse(c *gin.Context) {
	var req struct {
		Verse int `json:"verse" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := s.coord.PlayVerse(c.Request.Context(), req.Verse); err != nil {
		s.respondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, s.coord.Status(), "verse playing")
}

func (s *Service) handleStatus(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, s.coord.Status(), "")
}

func (s *Service) handleTimeline(c *gin.Context) {
	entries, ok := s.coord.Timeline()
	if !ok {
		httptransport.RespondError(c, http.StatusNotFound, "no chapter loaded", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, entries, "")
}

func (s *Service) handleCacheList(c *gin.Context) {
	entries, err := s.cache.ListEntries()
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	total, err := s.cache.TotalSize()
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"entries":     entries,
		"total_bytes": total,
	}, "")
}

func (s *Service) handleCacheRemove(c *gin.Context) {
	if err := s.cache.Remove(c.Param("key")); err != nil {
		s.respondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, nil, "entry removed")
}

func (s *Service) handleCacheClear(c *gin.Context) {
	if err := s.cache.Clear(); err != nil {
		s.respondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, nil, "cache cleared")
}

func (s *Service) handleVoiceList(c *gin.Context) {
	if s.provider == nil {
		httptransport.RespondError(c, http.StatusServiceUnavailable, "no tts provider configured", nil)
		return
	}
	voices, err := s.provider.ListVoices(c.Request.Context())
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, voices, "")
}

func (s *Service) handleVoiceSet(c *gin.Context) {
	var req struct {
		Voice string `json:"voice" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := s.voices.SetVoice(c.Param("book"), req.Voice); err != nil {
		s.respondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, nil, "voice preference saved")
}

func (s *Service) handleVoiceClear(c *gin.Context) {
	if err := s.voices.ClearVoice(c.Param("book")); err != nil {
		s.respondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, nil, "voice preference cleared")
}

func (s *Service) handleSubscription(c *gin.Context) {
	if s.provider == nil {
		httptransport.RespondError(c, http.StatusServiceUnavailable, "no tts provider configured", nil)
		return
	}
	info, err := s.provider.SubscriptionInfo(c.Request.Context())
	if err != nil {
		s.respondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, info, "")
}

// respondDomainError maps domain errors onto HTTP statuses.
func (s *Service) respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, narration.ErrInvalidVerseIndex):
		httptransport.RespondError(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, narration.ErrNoChapterLoaded):
		httptransport.RespondError(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, narration.ErrStaleChapter):
		httptransport.RespondError(c, http.StatusConflict, err.Error(), nil)
	case verrors.IsKind(err, verrors.KindSynthesis):
		httptransport.RespondError(c, http.StatusBadGateway, err.Error(), nil)
	case verrors.IsKind(err, verrors.KindTransport):
		httptransport.RespondError(c, http.StatusBadGateway, err.Error(), nil)
	default:
		if s.logger != nil {
			s.logger.Error("api request failed", "error", err)
		}
		httptransport.RespondError(c, http.StatusInternalServerError, err.Error(), nil)
	}
}
