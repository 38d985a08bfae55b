package session

import (
	"math/rand"
	"time"

	"github.com/neliav/tapsync/internal/analysis"
	"github.com/neliav/tapsync/internal/audio"
	"github.com/neliav/tapsync/internal/stimulus"
	"github.com/neliav/tapsync/internal/storage"
	"github.com/neliav/tapsync/pkg/logger"
)

// Config assembles a Runner's collaborators.
type Config struct {
	OutputRoot string
	SampleRate int

	Recorder audio.Recorder
	Player   audio.Player
	Preparer stimulus.Preparer
	Analyzer analysis.TrialAnalyzer
	Registry *storage.DBClient

	Logger *logger.Logger
	Rand   *rand.Rand
}

type Option func(*Config)

func WithOutputRoot(dir string) Option {
	return func(c *Config) { c.OutputRoot = dir }
}

func WithSampleRate(rate int) Option {
	return func(c *Config) { c.SampleRate = rate }
}

func WithRecorder(r audio.Recorder) Option {
	return func(c *Config) { c.Recorder = r }
}

func WithPlayer(p audio.Player) Option {
	return func(c *Config) { c.Player = p }
}

func WithPreparer(p stimulus.Preparer) Option {
	return func(c *Config) { c.Preparer = p }
}

func WithAnalyzer(a analysis.TrialAnalyzer) Option {
	return func(c *Config) { c.Analyzer = a }
}

func WithRegistry(db *storage.DBClient) Option {
	return func(c *Config) { c.Registry = db }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

func WithRand(r *rand.Rand) Option {
	return func(c *Config) { c.Rand = r }
}

func defaultConfig() *Config {
	return &Config{
		OutputRoot: "output",
		SampleRate: 44100,
		Rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}
