package models

// Sequence is a named counter advanced with an atomic UPDATE.
type Sequence struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value int64  `gorm:"not null"`
}

const ReservationSequence = "reservation"
