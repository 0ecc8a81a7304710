package models

import "time"

type Session struct {
	ID              string    `db:"id" json:"id"`
	Token           string    `db:"token" json:"-"`
	DiscordUsername string    `db:"discord_username" json:"discord_username"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
