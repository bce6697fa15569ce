package redis

import "fmt"

// Key prefix for all game-related data
const keyPrefix = "pglass"

// profileKey returns the Redis key for a Profile
func profileKey(username string) string {
	return fmt.Sprintf("%s:profile:%s", keyPrefix, username)
}

// profilesIndexKey returns the Redis key for the SET of all usernames
func profilesIndexKey() string {
	return fmt.Sprintf("%s:idx:profiles", keyPrefix)
}
