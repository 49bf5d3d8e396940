// Package settings keeps the player's audio preferences. The service only
// stores them; playback is up to the client.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"disk-spinner/internal/prefs"
)

const (
	keyMusicEnabled = "MusicEnabled"
	keyMusicVolume  = "MusicVolume"
	keyFXVolume     = "FXVolume"
	keyGlobalVolume = "GlobalVolume"
)

// Settings are the player's audio preferences. Volumes are in [0, 1].
type Settings struct {
	MusicEnabled bool    `json:"music_enabled"`
	MusicVolume  float64 `json:"music_volume"`
	FXVolume     float64 `json:"fx_volume"`
	GlobalVolume float64 `json:"global_volume"`
}

// Defaults returns the settings of a player who never changed anything.
func Defaults() Settings {
	return Settings{
		MusicEnabled: true,
		MusicVolume:  0.6,
		FXVolume:     1.0,
		GlobalVolume: 1.0,
	}
}

// EffectiveMusicVolume is the music level after the global volume and the
// music switch are applied.
func (s Settings) EffectiveMusicVolume() float64 {
	if !s.MusicEnabled {
		return 0
	}
	return s.MusicVolume * s.GlobalVolume
}

// EffectiveFXVolume is the sound-effect level after the global volume.
func (s Settings) EffectiveFXVolume() float64 {
	return s.FXVolume * s.GlobalVolume
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func (s Settings) clamped() Settings {
	s.MusicVolume = clamp01(s.MusicVolume)
	s.FXVolume = clamp01(s.FXVolume)
	s.GlobalVolume = clamp01(s.GlobalVolume)
	return s
}

// Service reads and writes settings through a preference store. Writes
// are serialised so concurrent partial updates do not drop each other.
type Service struct {
	mu    sync.Mutex
	store prefs.Store
}

// NewService returns a Service backed by store.
func NewService(store prefs.Store) *Service {
	return &Service{store: store}
}

// Load returns the stored settings. Missing or unreadable values fall back
// to their defaults.
func (svc *Service) Load(ctx context.Context) (Settings, error) {
	s := Defaults()

	raw, ok, err := svc.store.Get(ctx, keyMusicEnabled)
	if err != nil {
		return s, fmt.Errorf("load %s: %w", keyMusicEnabled, err)
	}
	if ok {
		if n, err := strconv.Atoi(raw); err == nil {
			s.MusicEnabled = n == 1
		}
	}

	for key, dst := range map[string]*float64{
		keyMusicVolume:  &s.MusicVolume,
		keyFXVolume:     &s.FXVolume,
		keyGlobalVolume: &s.GlobalVolume,
	} {
		raw, ok, err := svc.store.Get(ctx, key)
		if err != nil {
			return Defaults(), fmt.Errorf("load %s: %w", key, err)
		}
		if !ok {
			continue
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			*dst = v
		}
	}
	return s.clamped(), nil
}

// Save clamps the volumes, stores every field and returns what was stored.
func (svc *Service) Save(ctx context.Context, s Settings) (Settings, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.save(ctx, s)
}

func (svc *Service) save(ctx context.Context, s Settings) (Settings, error) {
	s = s.clamped()

	enabled := "0"
	if s.MusicEnabled {
		enabled = "1"
	}
	values := []struct{ key, value string }{
		{keyMusicEnabled, enabled},
		{keyMusicVolume, strconv.FormatFloat(s.MusicVolume, 'f', -1, 64)},
		{keyFXVolume, strconv.FormatFloat(s.FXVolume, 'f', -1, 64)},
		{keyGlobalVolume, strconv.FormatFloat(s.GlobalVolume, 'f', -1, 64)},
	}
	for _, kv := range values {
		if err := svc.store.Set(ctx, kv.key, kv.value); err != nil {
			return s, fmt.Errorf("save %s: %w", kv.key, err)
		}
	}
	return s, nil
}

// Update is a partial change; nil fields keep their stored value.
type Update struct {
	MusicEnabled *bool    `json:"music_enabled,omitempty"`
	MusicVolume  *float64 `json:"music_volume,omitempty"`
	FXVolume     *float64 `json:"fx_volume,omitempty"`
	GlobalVolume *float64 `json:"global_volume,omitempty"`
}

func (u Update) apply(s Settings) Settings {
	if u.MusicEnabled != nil {
		s.MusicEnabled = *u.MusicEnabled
	}
	if u.MusicVolume != nil {
		s.MusicVolume = *u.MusicVolume
	}
	if u.FXVolume != nil {
		s.FXVolume = *u.FXVolume
	}
	if u.GlobalVolume != nil {
		s.GlobalVolume = *u.GlobalVolume
	}
	return s
}

// Apply loads the current settings, applies u and saves the result.
func (svc *Service) Apply(ctx context.Context, u Update) (Settings, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	cur, err := svc.Load(ctx)
	if err != nil {
		return cur, err
	}
	return svc.save(ctx, u.apply(cur))
}

// ToggleMusic flips the music switch.
func (svc *Service) ToggleMusic(ctx context.Context) (Settings, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	cur, err := svc.Load(ctx)
	if err != nil {
		return cur, err
	}
	cur.MusicEnabled = !cur.MusicEnabled
	return svc.save(ctx, cur)
}
