package state

import "time"

// Pet attribute limits.
const (
	MaxHunger    = 10
	MaxHappiness = 10
	MaxHealth    = 10

	HungerDecayRate    = 1.0 // points per hour
	HappinessDecayRate = 0.5 // points per hour

	// MinDecayInterval is the minimum elapsed time before decay is applied.
	MinDecayInterval = 6 * time.Minute
)

// Mood is derived from the pet attributes.
type Mood string

// Moods, in order of precedence.
const (
	MoodSick    Mood = "sick"
	MoodHungry  Mood = "hungry"
	MoodHappy   Mood = "happy"
	MoodSad     Mood = "sad"
	MoodNeutral Mood = "neutral"
)

// Pet is the persisted pet document.
type Pet struct {
	Name              string    `json:"name"`
	Type              string    `json:"type"`
	Hunger            int       `json:"hunger"`
	Happiness         int       `json:"happiness"`
	Health            int       `json:"health"`
	AgeHours          int       `json:"age_hours"`
	LastFed           time.Time `json:"last_fed"`
	LastInteraction   time.Time `json:"last_interaction"`
	LastUpdate        time.Time `json:"last_update"`
	CreatedAt         time.Time `json:"created_at"`
	TotalFeeds        int       `json:"total_feeds"`
	TotalInteractions int       `json:"total_interactions"`
	MessagesSent      int       `json:"messages_sent"`
	MessagesReceived  int       `json:"messages_received"`
	FlagSeq           uint64    `json:"flag_seq"`
}

func newPet(name, kind string, now time.Time) Pet {
	now = now.UTC()
	return Pet{
		Name:            name,
		Type:            kind,
		Hunger:          5,
		Happiness:       8,
		Health:          10,
		LastFed:         now,
		LastInteraction: now,
		LastUpdate:      now,
		CreatedAt:       now,
	}
}

// Feed lowers hunger by 3 and raises happiness by 1.
func (p *Pet) Feed(now time.Time) {
	p.Hunger = clamp(p.Hunger-3, 0, MaxHunger)
	p.Happiness = clamp(p.Happiness+1, 0, MaxHappiness)
	p.LastFed = now.UTC()
	p.LastInteraction = now.UTC()
	p.TotalFeeds++
}

// Interact raises happiness by 2.
func (p *Pet) Interact(now time.Time) {
	p.Happiness = clamp(p.Happiness+2, 0, MaxHappiness)
	p.LastInteraction = now.UTC()
	p.TotalInteractions++
}

// Decay applies the hunger and happiness decay for the time elapsed since the
// last update. It reports false when less than MinDecayInterval passed.
func (p *Pet) Decay(now time.Time) bool {
	elapsed := now.Sub(p.LastUpdate)
	if elapsed < MinDecayInterval {
		return false
	}
	hours := elapsed.Hours()

	p.Hunger = clamp(p.Hunger+int(hours*HungerDecayRate), 0, MaxHunger)
	p.Happiness = clamp(p.Happiness-int(hours*HappinessDecayRate), 0, MaxHappiness)
	switch {
	case p.Hunger >= 8:
		p.Health = clamp(p.Health-1, 0, MaxHealth)
	case p.Hunger <= 2 && p.Happiness >= 7:
		p.Health = clamp(p.Health+1, 0, MaxHealth)
	}
	p.AgeHours += int(hours)
	p.LastUpdate = now.UTC()
	return true
}

// Mood of the pet.
func (p Pet) Mood() Mood {
	switch {
	case p.Health <= 3:
		return MoodSick
	case p.Hunger >= 7:
		return MoodHungry
	case p.Happiness >= 8:
		return MoodHappy
	case p.Happiness <= 3:
		return MoodSad
	default:
		return MoodNeutral
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
