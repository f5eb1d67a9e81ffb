package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bkohler93/match-engine/internal/shared/utils/files"
	"github.com/bkohler93/match-engine/internal/shared/utils/redisutils/rediskeys"
	"github.com/redis/go-redis/v9"
)

var (
	ErrUnexpectedRedisResult = errors.New("unexpected redis result type")
)

// RedisStore keeps each request in a hash and indexes waiting requests in a sorted set scored
// by createdAt. Matching and eviction go through Lua scripts so the isMatched check and the
// write happen in one step on the server.
type RedisStore struct {
	rdb *redis.Client
	lua map[string]*redis.Script
}

func NewRedisStore(rdb *redis.Client) (*RedisStore, error) {
	r := &RedisStore{
		rdb: rdb,
		lua: make(map[string]*redis.Script),
	}
	for _, name := range []string{files.LuaPairRequests, files.LuaExpireIfStale, files.LuaDeleteMatched} {
		src, err := files.GetLuaScript(name)
		if err != nil {
			return r, fmt.Errorf("failed to load lua src from '%s' with error - %v", name, err)
		}
		r.lua[name] = redis.NewScript(src)
	}
	return r, nil
}

func (r *RedisStore) Put(ctx context.Context, req MatchRequest) error {
	key := rediskeys.MatchRequestHash(req.UserID)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, toHash(req))
		if req.IsMatched {
			pipe.ZRem(ctx, rediskeys.MatchQueueWaitingSortedSetKey, req.UserID)
		} else {
			pipe.ZAdd(ctx, rediskeys.MatchQueueWaitingSortedSetKey, redis.Z{
				Score:  float64(req.CreatedAt),
				Member: req.UserID,
			})
		}
		return nil
	})
	return err
}

func (r *RedisStore) Get(ctx context.Context, userID string) (MatchRequest, error) {
	fields, err := r.rdb.HGetAll(ctx, rediskeys.MatchRequestHash(userID)).Result()
	if err != nil {
		return MatchRequest{}, err
	}
	if len(fields) == 0 {
		return MatchRequest{}, ErrNotFound
	}
	return fromHash(fields)
}

func (r *RedisStore) Delete(ctx context.Context, userID string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, rediskeys.MatchRequestHash(userID))
		pipe.ZRem(ctx, rediskeys.MatchQueueWaitingSortedSetKey, userID)
		return nil
	})
	return err
}

func (r *RedisStore) ScanUnmatched(ctx context.Context) ([]MatchRequest, error) {
	members, err := r.rdb.ZRangeByScore(ctx, rediskeys.MatchQueueWaitingSortedSetKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(members))
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, m := range members {
			cmds[i] = pipe.HGetAll(ctx, rediskeys.MatchRequestHash(m))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	reqs := make([]MatchRequest, 0, len(members))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// cancelled or consumed between the range and the read
			continue
		}
		req, err := fromHash(fields)
		if err != nil {
			return nil, err
		}
		if !req.IsMatched {
			reqs = append(reqs, req)
		}
	}
	return reqs, nil
}

func (r *RedisStore) PairRequests(ctx context.Context, u PairUpdate) error {
	res, err := r.lua[files.LuaPairRequests].Run(
		ctx,
		r.rdb,
		[]string{
			rediskeys.MatchRequestHash(u.A.UserID),
			rediskeys.MatchRequestHash(u.B.UserID),
			rediskeys.MatchQueueWaitingSortedSetKey,
		},
		u.MatchID,
		strconv.FormatInt(u.MatchedAt, 10),
		u.A.UserID, strconv.FormatInt(u.A.ExpectedCreatedAt, 10), u.A.PartnerID, u.A.PartnerUsername,
		u.B.UserID, strconv.FormatInt(u.B.ExpectedCreatedAt, 10), u.B.PartnerID, u.B.PartnerUsername,
		u.A.CategoryAssigned, string(u.A.DifficultyAssigned),
	).Result()
	if err != nil {
		return err
	}
	status, ok := res.(string)
	if !ok {
		return ErrUnexpectedRedisResult
	}
	if userID, found := strings.CutPrefix(status, "CONFLICT:"); found {
		return &PairConflictError{UserID: userID}
	}
	if status != "OK" {
		return fmt.Errorf("%w: %s", ErrUnexpectedRedisResult, status)
	}
	return nil
}

func (r *RedisStore) ListStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	return r.rdb.ZRangeByScore(ctx, rediskeys.MatchQueueWaitingSortedSetKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("(%d", cutoff.UnixMilli()),
	}).Result()
}

func (r *RedisStore) ExpireIfStale(ctx context.Context, userID string, cutoff time.Time) (bool, error) {
	n, err := r.lua[files.LuaExpireIfStale].Run(
		ctx,
		r.rdb,
		[]string{rediskeys.MatchRequestHash(userID), rediskeys.MatchQueueWaitingSortedSetKey},
		userID,
		strconv.FormatInt(cutoff.UnixMilli(), 10),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisStore) DeleteMatched(ctx context.Context, userID string, matchID string) (bool, error) {
	n, err := r.lua[files.LuaDeleteMatched].Run(
		ctx,
		r.rdb,
		[]string{rediskeys.MatchRequestHash(userID)},
		matchID,
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func toHash(req MatchRequest) map[string]any {
	matched := "0"
	if req.IsMatched {
		matched = "1"
	}
	return map[string]any{
		"userId":             req.UserID,
		"username":           req.Username,
		"category":           req.Category,
		"difficulty":         string(req.Difficulty),
		"createdAt":          strconv.FormatInt(req.CreatedAt, 10),
		"isMatched":          matched,
		"partnerId":          req.PartnerID,
		"partnerUsername":    req.PartnerUsername,
		"categoryAssigned":   req.CategoryAssigned,
		"difficultyAssigned": string(req.DifficultyAssigned),
		"matchId":            req.MatchID,
		"matchedAt":          strconv.FormatInt(req.MatchedAt, 10),
	}
}

func fromHash(fields map[string]string) (MatchRequest, error) {
	createdAt, err := strconv.ParseInt(fields["createdAt"], 10, 64)
	if err != nil {
		return MatchRequest{}, fmt.Errorf("invalid createdAt for %s: %w", fields["userId"], err)
	}
	var matchedAt int64
	if v := fields["matchedAt"]; v != "" {
		matchedAt, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return MatchRequest{}, fmt.Errorf("invalid matchedAt for %s: %w", fields["userId"], err)
		}
	}
	return MatchRequest{
		UserID:             fields["userId"],
		Username:           fields["username"],
		Category:           fields["category"],
		Difficulty:         Difficulty(fields["difficulty"]),
		CreatedAt:          createdAt,
		IsMatched:          fields["isMatched"] == "1",
		PartnerID:          fields["partnerId"],
		PartnerUsername:    fields["partnerUsername"],
		CategoryAssigned:   fields["categoryAssigned"],
		DifficultyAssigned: Difficulty(fields["difficultyAssigned"]),
		MatchID:            fields["matchId"],
		MatchedAt:          matchedAt,
	}, nil
}
