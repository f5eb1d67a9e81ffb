package files

import (
	"testing"
)

func TestGetScript(t *testing.T) {
	for _, name := range []string{LuaPairRequests, LuaExpireIfStale, LuaDeleteMatched} {
		src, err := GetLuaScript(name)
		if err != nil {
			t.Errorf("unexpected error loading %s - %v", name, err)
		}
		if src == "" {
			t.Errorf("expected %s to have contents", name)
		}
	}

	t.Run("unknown script returns an error", func(t *testing.T) {
		if _, err := GetLuaScript("missing.lua"); err == nil {
			t.Errorf("expected an error for a script that is not embedded")
		}
	})
}
