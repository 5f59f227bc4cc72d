package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key for a user's login session.
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// AttemptStreamKey returns the cache key holding the latest relayed
// chunk for one attempt's camera or screen stream.
func (r *CacheKeyStruct) AttemptStreamKey(attemptID, streamType string) string {
	return fmt.Sprintf("attempt:%s:stream:%s", attemptID, streamType)
}

var CacheKey = NewCacheKeyStruct()
