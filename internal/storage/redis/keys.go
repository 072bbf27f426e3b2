package redis

import "fmt"

// Key prefix for all registration data
const keyPrefix = "regwhelp"

// recordKey returns the Redis key for an account's Record
func recordKey(accountName string) string {
	return fmt.Sprintf("%s:record:%s", keyPrefix, accountName)
}

// recordIndexKey returns the Redis key for the SET of all account names with a record
func recordIndexKey() string {
	return fmt.Sprintf("%s:idx:records", keyPrefix)
}
