package models

import "time"

// ProductionSite is a factory location a complaint can be attributed to.
type ProductionSite struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255" json:"name"`
	Address   string    `json:"address"`
	IsActive  bool      `gorm:"default:true" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// ComplaintReason is a catalogue entry classifying why a complaint was filed.
type ComplaintReason struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;uniqueIndex" json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `gorm:"default:true" json:"isActive"`
	SortOrder   int       `gorm:"default:0" json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
}
