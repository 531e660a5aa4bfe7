// Package world is the small pasture simulation the agent's animals live in:
// a grid with a pasture area, a shed inside it and a day/night clock.
package world

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
)

// Point is a grid cell.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (p Point) String() string {
	return strconv.Itoa(p.X) + "," + strconv.Itoa(p.Y)
}

// ParsePoint reads the "x,y" form produced by String.
func ParsePoint(s string) (Point, error) {
	xs, ys, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return Point{}, fmt.Errorf("invalid point %q", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	return Point{X: x, Y: y}, nil
}

// StepToward moves one cell from p toward target, diagonals allowed.
func StepToward(p, target Point) Point {
	return Point{X: p.X + sign(target.X-p.X), Y: p.Y + sign(target.Y-p.Y)}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// Rect is an inclusive cell range.
type Rect struct {
	Min Point `json:"min" yaml:"min"`
	Max Point `json:"max" yaml:"max"`
}

func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

func (r Rect) valid() bool {
	return r.Min.X <= r.Max.X && r.Min.Y <= r.Max.Y
}

// Config describes a world. DayLength is the number of ticks in a full
// day/night cycle; the first half of every cycle is day.
type Config struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	DayLength int    `yaml:"day_length"`
	Pasture   Rect   `yaml:"pasture"`
	Shed      Point  `yaml:"shed"`
	Seed      uint64 `yaml:"seed"`
}

// DefaultConfig is a 32x32 world with a centred pasture.
func DefaultConfig() Config {
	return Config{
		Width:     32,
		Height:    32,
		DayLength: 200,
		Pasture:   Rect{Min: Point{X: 4, Y: 4}, Max: Point{X: 27, Y: 27}},
		Shed:      Point{X: 4, Y: 4},
		Seed:      1,
	}
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.New("world size must be positive")
	}
	if c.DayLength < 2 {
		return errors.New("day length must be at least 2 ticks")
	}
	if !c.Pasture.valid() {
		return errors.New("pasture rectangle is inverted")
	}
	bounds := Rect{Max: Point{X: c.Width - 1, Y: c.Height - 1}}
	if !bounds.Contains(c.Pasture.Min) || !bounds.Contains(c.Pasture.Max) {
		return errors.New("pasture lies outside the world")
	}
	if !c.Pasture.Contains(c.Shed) {
		return fmt.Errorf("shed %s is not on the pasture", c.Shed)
	}
	return nil
}

// World is safe for concurrent use. Randomness comes from a seeded PCG so a
// run can be reproduced.
type World struct {
	mu   sync.Mutex
	cfg  Config
	tick uint64
	rng  *rand.Rand
}

func New(cfg Config) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &World{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}, nil
}

func (w *World) Config() Config { return w.cfg }

// Advance moves the clock forward one tick and returns the new tick.
func (w *World) Advance() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tick++
	return w.tick
}

func (w *World) Tick() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tick
}

// SetTick rewinds or forwards the clock, used when a save is restored.
func (w *World) SetTick(t uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tick = t
}

func (w *World) IsDay() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int(w.tick%uint64(w.cfg.DayLength)) < w.cfg.DayLength/2
}

func (w *World) Shed() Point { return w.cfg.Shed }

func (w *World) OnPasture(p Point) bool { return w.cfg.Pasture.Contains(p) }

func (w *World) InBounds(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < w.cfg.Width && p.Y < w.cfg.Height
}

// RandomPasturePoint picks a pasture cell other than the shed.
func (w *World) RandomPasturePoint() Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.cfg.Pasture
	for {
		p := Point{
			X: r.Min.X + w.rng.IntN(r.Max.X-r.Min.X+1),
			Y: r.Min.Y + w.rng.IntN(r.Max.Y-r.Min.Y+1),
		}
		if p != w.cfg.Shed || r.Min == r.Max {
			return p
		}
	}
}

// RandomNeighbor returns a random in-bounds cell adjacent to p, or p itself
// when it has no neighbours.
func (w *World) RandomNeighbor(p Point) Point {
	var options []Point
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := Point{X: p.X + dx, Y: p.Y + dy}
			if w.InBounds(n) {
				options = append(options, n)
			}
		}
	}
	if len(options) == 0 {
		return p
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return options[w.rng.IntN(len(options))]
}
