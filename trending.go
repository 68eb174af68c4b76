package wall

import (
	"math"
	"time"
)

// Scorer supplies the trending signal of a post. Higher scores rank first.
type Scorer interface {
	Score(p *Post, now time.Time) float64
}

type ScorerFunc func(p *Post, now time.Time) float64

func (f ScorerFunc) Score(p *Post, now time.Time) float64 {
	return f(p, now)
}

// GravityScorer divides a post's likes by its age in hours raised to Gravity.
type GravityScorer struct {
	Gravity float64
}

func NewGravityScorer() GravityScorer {
	return GravityScorer{Gravity: 1.8}
}

func (g GravityScorer) Score(p *Post, now time.Time) float64 {
	age := now.Sub(p.PublishedAt).Hours()
	if age < 0 {
		age = 0
	}
	return float64(p.LikeCount) / math.Pow(age+2, g.Gravity)
}
