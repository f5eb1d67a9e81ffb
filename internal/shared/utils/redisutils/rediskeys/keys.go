package rediskeys

import (
	"fmt"
)

const (
	matchQueue = "matchqueue"

	MatchQueueWaitingSortedSetKey = "matchqueue:waiting"
	MatchmakeNotifyWorkersPubSub  = "matchmake:notify_worker"
	MatchEventsPubSub             = "matchmake:match_events"
)

func MatchRequestHash(userID string) string {
	return fmt.Sprintf("%s:request:%s", matchQueue, userID)
}
