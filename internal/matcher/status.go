package matcher

import (
	"time"

	"github.com/arbworker/livearb/internal/domain"
)

// liveDurationBySport resolves spec.md's open question on sportsbook LIVE
// windows: rather than a single game-duration constant, each sport gets
// its own expected duration (including stoppage/overtime buffer) used to
// compute the LIVE window as [startTime-buffer, startTime+duration+buffer).
var liveDurationBySport = map[string]time.Duration{
	"soccer":     120 * time.Minute,
	"basketball": 150 * time.Minute,
	"football":   210 * time.Minute,
	"baseball":   240 * time.Minute,
}

const (
	defaultLiveDuration = 180 * time.Minute
	liveBuffer          = 15 * time.Minute
)

// deriveStatus assigns PRE/LIVE/ENDED using the earliest member start
// time and its sport's expected duration. A group with no start times at
// all is always PRE; the Registry's closeTime+grace GC handles removal,
// not this function.
func deriveStatus(group []candidateMarket, now time.Time) domain.EventStatus {
	var earliest *time.Time
	var sport string
	for _, c := range group {
		if c.market.StartTime == nil {
			continue
		}
		if earliest == nil || c.market.StartTime.Before(*earliest) {
			earliest = c.market.StartTime
			sport = c.market.Sport
		}
	}
	if earliest == nil {
		return domain.EventStatusPre
	}

	duration, ok := liveDurationBySport[sport]
	if !ok {
		duration = defaultLiveDuration
	}

	liveStart := earliest.Add(-liveBuffer)
	liveEnd := earliest.Add(duration + liveBuffer)

	switch {
	case now.Before(liveStart):
		return domain.EventStatusPre
	case now.Before(liveEnd):
		return domain.EventStatusLive
	default:
		return domain.EventStatusEnded
	}
}
