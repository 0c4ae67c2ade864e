package models

import (
	"time"
)

// Caregiver 监护联系人（漏服时收到报警；纯记录，无状态机）
type Caregiver struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
