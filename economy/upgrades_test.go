package economy

import (
	"testing"

	"github.com/nstehr/vimy/vimy-faction/event"
	"github.com/nstehr/vimy/vimy-faction/model"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/sample"
	"github.com/nstehr/vimy/vimy-faction/world/worldtest"
)

func TestUpgradeOrderedOnceUntilObserved(t *testing.T) {
	u := NewUpgrades()
	f := newFixture(t, u, nil, nil)

	if n := u.Check(); n != 1 {
		t.Fatalf("sources = %d, want 1", n)
	}
	if len(f.fake.Upgrades) != 1 || f.fake.Upgrades[0] != "town_center" {
		t.Fatalf("upgrades = %v", f.fake.Upgrades)
	}
	if !u.InFlight("town_center") {
		t.Error("upgrade not marked in flight")
	}

	u.Check()
	if len(f.fake.Upgrades) != 1 {
		t.Errorf("upgrade re-ordered while in flight: %v", f.fake.Upgrades)
	}

	center := f.fake.BuildingList[0]
	f.ctx.Bus.Publish(event.BuildingUpgraded{Building: center, From: "town_center", To: "keep"})
	if u.InFlight("town_center") {
		t.Error("upgrade still in flight after the event")
	}
}

func TestUnobservedUpgradeExpires(t *testing.T) {
	u := NewUpgrades()
	f := newFixture(t, u, nil, func(p *profile.Profile) { p.Upgrades.Timeout = sample.Fixed(30) })

	u.Check()
	f.fake.Now = 29
	u.Check()
	if len(f.fake.Upgrades) != 1 {
		t.Fatalf("re-ordered before the timeout: %v", f.fake.Upgrades)
	}
	f.fake.Now = 30
	u.Check()
	if len(f.fake.Upgrades) != 2 {
		t.Errorf("upgrades = %v, want the order repeated after the timeout", f.fake.Upgrades)
	}
	if !u.InFlight("town_center") {
		t.Error("repeated order not in flight")
	}
}

func TestUpgradeGates(t *testing.T) {
	tests := []struct {
		name string
		seed func(*worldtest.Fake)
	}{
		{"condition", func(w *worldtest.Fake) { w.FactionList[0].Population = 2 }},
		{"cost", func(w *worldtest.Fake) { w.FactionList[0].Resources["gold"] = 100 }},
		{"refused", func(w *worldtest.Fake) { w.Refuse = true }},
		{"no source", func(w *worldtest.Fake) { w.BuildingList = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewUpgrades()
			f := newFixture(t, u, tt.seed, nil)
			u.Check()
			if u.InFlight("town_center") {
				t.Error("upgrade marked in flight")
			}
			if len(f.fake.Upgrades) != 0 {
				t.Errorf("upgrades = %v", f.fake.Upgrades)
			}
		})
	}
}

func TestUpgradesSleepWithoutSources(t *testing.T) {
	u := NewUpgrades()
	f := newFixture(t, u, func(w *worldtest.Fake) { w.BuildingList = nil }, nil)

	u.Tick(1)
	if u.IsActive() {
		t.Fatal("active without any upgrade source")
	}
	f.fake.BuildingList = []*model.Building{{ID: 5, Owner: "ai", Type: "town_center", Built: true}}
	f.ctx.Bus.Publish(event.BuildingBuilt{Building: f.fake.BuildingList[0]})
	if !u.IsActive() {
		t.Error("new building did not wake the planner")
	}
}
