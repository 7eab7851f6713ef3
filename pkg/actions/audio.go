package actions

// AudioOptions carries playback parameters from play_bgm and play_sfx actions
type AudioOptions struct {
	Volume    float64
	Loop      bool
	FadeIn    float64
	Crossfade float64
}

// AudioPlayer is the optional audio collaborator. Calls are best-effort and
// must not block.
type AudioPlayer interface {
	PlayBGM(url string, opts AudioOptions)
	StopBGM(fadeOut float64)
	PlaySFX(url string, opts AudioOptions)
	StopAllSFX()
}

// DefaultVolume is used when an audio action carries no volume
const DefaultVolume = 1.0

func audioOptions(a Action) AudioOptions {
	opts := AudioOptions{
		Volume:    DefaultVolume,
		Loop:      a.Loop,
		FadeIn:    a.FadeIn,
		Crossfade: a.Crossfade,
	}
	if a.Volume != nil {
		opts.Volume = *a.Volume
	}
	return opts
}
