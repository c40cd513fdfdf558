package parser

import (
	"strings"

	"github.com/moistari/rls"
)

// Partial is what a general-purpose release-name guesser can tell about a name.
type Partial struct {
	Title      string
	Year       int
	Season     int
	Episode    int
	Resolution string
	Source     string
	VideoCodec string
	AudioCodec string
	Group      string
}

// Guesser is the pluggable filename-to-metadata capability used as stage 2 of Parse.
type Guesser interface {
	Guess(name string) Partial
}

// GuesserFunc adapts a function to the Guesser interface.
type GuesserFunc func(name string) Partial

func (f GuesserFunc) Guess(name string) Partial { return f(name) }

// NopGuesser disables the heuristic stage.
type NopGuesser struct{}

func (NopGuesser) Guess(string) Partial { return Partial{} }

// RlsGuesser guesses with github.com/moistari/rls, the scene release parser.
type RlsGuesser struct{}

func (RlsGuesser) Guess(name string) Partial {
	r := rls.ParseString(name)
	p := Partial{
		Title:      strings.TrimSpace(r.Title),
		Year:       r.Year,
		Season:     r.Series,
		Episode:    r.Episode,
		Resolution: r.Resolution,
		Source:     r.Source,
		Group:      r.Group,
	}
	if len(r.Codec) > 0 {
		p.VideoCodec = r.Codec[0]
	}
	if len(r.Audio) > 0 {
		p.AudioCodec = r.Audio[0]
	}
	return p
}

// NewGuesser returns the guesser registered under name ("rls" or "none").
func NewGuesser(name string) Guesser {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "off", "disabled":
		return NopGuesser{}
	default:
		return RlsGuesser{}
	}
}
