package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/ImVexed/kdtree"
	log "github.com/sirupsen/logrus"
)

// This file is an example using kdtree to simulate a 2D lingering AoE spell causing damage
// over multiple ticks to a group of wandering enemies

const (
	worldSize = 10_000
	// The tree degrades as mobs wander out of their leaves, so it is rebuilt on a fixed cadence
	flattenEvery = 15
)

type LingeringAoESpell struct {
	duration time.Duration
	dps      float64
	position kdtree.Vec3
	radius   float64
}

func (l *LingeringAoESpell) Volume() kdtree.Sphere {
	return kdtree.Sphere{Center: l.position, Radius: l.radius}
}

func (l *LingeringAoESpell) HitTestEx(m *Mob) bool {
	// Maybe factor in dodge, block, accuracy, etc. here

	distSq := (l.position.X-m.position.X)*(l.position.X-m.position.X) +
		(l.position.Y-m.position.Y)*(l.position.Y-m.position.Y)

	radSq := (l.radius + m.size) * (l.radius + m.size)

	return distSq <= radSq
}

type Mob struct {
	idx      int
	health   float64
	position kdtree.Vec3
	size     float64

	handle *kdtree.Object[kdtree.Sphere]
}

func (m *Mob) Volume() kdtree.Sphere {
	return kdtree.Sphere{Center: m.position, Radius: m.size}
}

func (m *Mob) Wander(tree *kdtree.Tree[kdtree.Sphere]) {
	m.position.X += float64(rand.Intn(5) - 2)
	m.position.Y += float64(rand.Intn(5) - 2)
	tree.Move(m.handle, m.Volume())
}

func describe(payload any) string {
	switch p := payload.(type) {
	case *Mob:
		return fmt.Sprintf("mob %d at (%g,%g) health %g", p.idx, p.position.X, p.position.Y, p.health)
	case *LingeringAoESpell:
		return fmt.Sprintf("spell at (%g,%g) radius %g", p.position.X, p.position.Y, p.radius)
	default:
		return fmt.Sprint(payload)
	}
}

func main() {
	rand.Seed(int64(time.Now().Nanosecond()))
	entityCount := 100_000
	fmt.Printf("Allocating %d entities, this may take a moment...\n", entityCount)

	tree := kdtree.NewTree[kdtree.Sphere](kdtree.WithDescriptor(describe))
	mobs := make([]*Mob, entityCount)

	// Insert mobs into the scene
	for n := 0; n < entityCount; n++ {
		m := &Mob{
			idx:    n,
			health: float64(rand.Intn(120)), // 100 damage is dealt over 2 seconds, so only ~20% should survive
			size:   1,
			position: kdtree.Vec3{
				X: float64(rand.Intn(worldSize)),
				Y: float64(rand.Intn(worldSize)),
			},
		}
		m.handle = tree.Insert(m.Volume(), m)
		mobs[n] = m
	}
	tree.FullDistribute()
	log.WithField("stats", tree.Statistics().String()).Info("tree built")

	tickRate := time.Second / 30
	ticker := time.NewTicker(tickRate)

	spell := &LingeringAoESpell{
		duration: 2 * time.Second,
		dps:      50,
		position: kdtree.Vec3{
			X: float64(rand.Intn(worldSize)),
			Y: float64(rand.Intn(worldSize)),
		},
		radius: 1000,
	}

	// Store when the spell was casted so we know when to stop
	casted := time.Now()
	ticks := 0
	deadMobs := 0
	fmt.Println("Starting simulation loop!")
	for {
		delta := time.Since(<-ticker.C)
		ticks++
		if delta.Milliseconds() > 0 {
			// The ability to maintain the tickrate is highly dependent on the underlying machine
			log.WithField("delta", delta).Warn("tick rate slipped")
		}

		for _, m := range mobs {
			if m.health > 0 {
				m.Wander(tree)
			}
		}
		if ticks%flattenEvery == 0 {
			tree.Flatten()
		}

		// Collect the mobs whose bounding sphere touches the bounding box of the spell
		hits := tree.QueryBox(kdtree.BoundsOf(spell.Volume()))

		if time.Since(casted) > spell.duration {
			break
		}

		for _, o := range hits {
			m := o.Payload.(*Mob)

			// Do a higher precision hit test here now that we have a list of entities that we have likely colided with.
			// In our case it's an arguably simpler colision check than what's used in the tree, however, normally
			// you would do expensive things here that you couldn't afford to do on the whole tree of entities
			if !spell.HitTestEx(m) {
				continue
			}

			m.health -= (spell.dps / float64(time.Second.Milliseconds())) * float64((tickRate + delta).Milliseconds())
			if m.health <= 0 {
				m.health = 0
				// Remove the mob from the tree once it has died
				tree.Remove(o)
				m.handle = nil
				deadMobs++
			}
		}
	}

	fmt.Printf("Spell ended, %d ticks in %s, %d out of %d mobs killed\n", ticks, time.Since(casted), deadMobs, entityCount)
	if err := tree.CheckInvariants(); err != nil {
		log.WithError(err).Fatal("tree corrupted")
	}
	log.WithField("stats", tree.Statistics().String()).Info("final tree")

	fmt.Println("Dumping image of tree at ./spell.bmp")
	// Add our spell so it shows up in the image of the tree
	tree.Insert(spell.Volume(), spell)
	if err := tree.Image("./spell.bmp"); err != nil {
		log.WithError(err).Fatal("writing image")
	}
}
