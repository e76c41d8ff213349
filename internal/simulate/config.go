package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	Participants int     // Size of the participant pool
	Duels        int     // Number of duels to attempt
	Workers      int     // Concurrent duel drivers; 1 replays history exactly
	Racers       int     // Concurrent events dispatched at each duel
	RefuseRatio  float64 // Share of racing events that are refusals
	CancelRatio  float64 // Share of racing events that are cancellations
	Seed         uint64  // Random seed
	OutputFile   string  // Optional JSON dump of the history log
	Verbose      bool    // Log every duel
}

// Stats holds simulation statistics.
type Stats struct {
	DuelsCreated     int
	CreateRejected   int
	Dispatches       int
	Wins             int
	Refusals         int
	Cancellations    int
	LostRaces        int
	UnexpectedErrors int
	HistoryRecords   int
	Participants     int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

// DefaultConfig returns a moderate simulation.
func DefaultConfig() *Config {
	return &Config{
		Participants: 50,
		Duels:        2000,
		Workers:      8,
		Racers:       3,
		RefuseRatio:  0.2,
		CancelRatio:  0.1,
		Seed:         1,
	}
}
