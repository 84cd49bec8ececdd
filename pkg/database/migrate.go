package database

import (
	"fmt"

	"forum-chat/internal/domain/conversation"
	"forum-chat/internal/domain/message"
	"forum-chat/internal/domain/user"
)

// chatTables lists every table the chat core owns, in dependency order.
var chatTables = []string{
	"users",
	"conversations",
	"conversation_members",
	"conversation_pending_messages",
	"messages",
	"message_deletions",
}

// Migrate applies the GORM schema for all chat tables.
func Migrate() error {
	return DB.AutoMigrate(
		&user.User{},
		&conversation.Conversation{},
		&conversation.Member{},
		&conversation.PendingMessage{},
		&message.Message{},
		&message.Deletion{},
	)
}

// Ping verifies the database connection.
func Ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// TableExists reports whether the named table is present.
func TableExists(table string) (bool, error) {
	var exists bool
	err := DB.Raw(
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = ?)",
		table,
	).Scan(&exists).Error
	return exists, err
}

// TableCount returns the row count of the named table.
func TableCount(table string) (int64, error) {
	var count int64
	err := DB.Raw(fmt.Sprintf("SELECT COUNT(*) FROM %q", table)).Scan(&count).Error
	return count, err
}

// Tables returns the chat core's table names in dependency order.
func Tables() []string {
	return chatTables
}

// TruncateAll empties every chat table.
func TruncateAll() error {
	for i := len(chatTables) - 1; i >= 0; i-- {
		if err := DB.Exec(fmt.Sprintf("TRUNCATE TABLE %q CASCADE", chatTables[i])).Error; err != nil {
			return err
		}
	}
	return nil
}
