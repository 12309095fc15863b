package platform

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("platform: entity not found")

type User struct {
	ID            string
	Username      string
	Discriminator string
	Bot           bool
}

// Tag renders the user the way moderation logs refer to them.
func (u User) Tag() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

func (u User) Mention() string {
	return "<@" + u.ID + ">"
}

type Member struct {
	GuildID string
	User    User
	Nick    string
	Roles   []string
}

type Role struct {
	ID          string
	Name        string
	Position    int
	Permissions int64
}

type ChannelType int

const (
	ChannelText ChannelType = iota
	ChannelCategory
	ChannelVoice
	ChannelOther
)

type Channel struct {
	ID       string
	GuildID  string
	Name     string
	Type     ChannelType
	ParentID string
}

type Guild struct {
	ID      string
	Name    string
	OwnerID string
	IconURL string
}

type Message struct {
	ID        string
	ChannelID string
	GuildID   string
	Author    User
	Content   string
	Edited    bool
	Timestamp time.Time
}

type Webhook struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

type ChannelCreate struct {
	Name     string
	Type     ChannelType
	ParentID string
}
