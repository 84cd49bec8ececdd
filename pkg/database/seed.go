package database

import (
	"fmt"

	"forum-chat/internal/domain/user"

	"github.com/google/uuid"
)

// SeedResult summarizes what a development seed created.
type SeedResult struct {
	Users []user.User
}

// SeedDevelopment inserts a handful of directory users so local clients have
// someone to message. Idempotent: existing usernames are left untouched.
func SeedDevelopment() (*SeedResult, error) {
	seedUsers := []user.User{
		{ID: uuid.New(), Username: "alice", FullName: "Alice Johnson", Role: "USER"},
		{ID: uuid.New(), Username: "bob", FullName: "Bob Smith", Role: "USER"},
		{ID: uuid.New(), Username: "carol", FullName: "Carol Nguyen", Role: "MODERATOR"},
		{ID: uuid.New(), Username: "dave", FullName: "Dave Okafor", Role: "USER"},
	}

	result := &SeedResult{}
	for _, u := range seedUsers {
		var existing user.User
		err := DB.Where("username = ?", u.Username).First(&existing).Error
		if err == nil {
			result.Users = append(result.Users, existing)
			continue
		}
		if err := DB.Create(&u).Error; err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		result.Users = append(result.Users, u)
	}
	return result, nil
}
