package audio

import (
	"log/slog"
	"sync"

	"github.com/jwebster45206/story-runtime/pkg/actions"
)

// LoggingPlayer is an AudioPlayer for headless and terminal play. It logs
// each call and tracks what would be playing.
type LoggingPlayer struct {
	mu     sync.Mutex
	bgm    string
	sfx    []string
	logger *slog.Logger
}

// Ensure LoggingPlayer implements AudioPlayer interface
var _ actions.AudioPlayer = (*LoggingPlayer)(nil)

// NewLoggingPlayer creates a logging audio player
func NewLoggingPlayer(logger *slog.Logger) *LoggingPlayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPlayer{logger: logger}
}

func (p *LoggingPlayer) PlayBGM(url string, opts actions.AudioOptions) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bgm = url
	p.logger.Info("Background music started",
		"url", url,
		"volume", opts.Volume,
		"loop", opts.Loop,
		"fade_in", opts.FadeIn,
		"crossfade", opts.Crossfade)
}

func (p *LoggingPlayer) StopBGM(fadeOut float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bgm == "" {
		return
	}
	p.logger.Info("Background music stopped", "url", p.bgm, "fade_out", fadeOut)
	p.bgm = ""
}

func (p *LoggingPlayer) PlaySFX(url string, opts actions.AudioOptions) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sfx = append(p.sfx, url)
	p.logger.Info("Sound effect played", "url", url, "volume", opts.Volume)
}

func (p *LoggingPlayer) StopAllSFX() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sfx = nil
	p.logger.Info("Sound effects stopped")
}

// NowPlaying returns the current background music URL, empty when silent
func (p *LoggingPlayer) NowPlaying() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bgm
}

// Effects returns sound effects played since the last StopAllSFX
func (p *LoggingPlayer) Effects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sfx...)
}
