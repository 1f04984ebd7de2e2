package models

import (
	"time"

	"gorm.io/gorm"
)

// RoundSummary is emitted after every started round. It never names the spy.
type RoundSummary struct {
	RoomCode    string
	Category    string
	Location    string
	PlayerCount int
	StartedAt   time.Time
}

// RoundRecord is the archived form of a RoundSummary.
type RoundRecord struct {
	gorm.Model
	RoomCode    string    `gorm:"index;not null" json:"roomCode"`
	Category    string    `gorm:"not null" json:"category"`
	Location    string    `gorm:"not null" json:"location"`
	PlayerCount int       `gorm:"not null" json:"playerCount"`
	StartedAt   time.Time `gorm:"index;not null" json:"startedAt"`
}
