package files

import (
	"embed"
	"fmt"
)

const (
	LuaPairRequests  = "pair_requests.lua"
	LuaExpireIfStale = "expire_if_stale.lua"
	LuaDeleteMatched = "delete_matched.lua"
)

//go:embed db/redis/scripts/*.lua
var LuaScripts embed.FS

func GetLuaScript(name string) (string, error) {
	content, err := LuaScripts.ReadFile("db/redis/scripts/" + name)
	if err != nil {
		return "", fmt.Errorf("failed to read embedded Lua script: %s, error: %v", name, err)
	}
	return string(content), nil
}
